package cmd

import (
	"github.com/spf13/cobra"

	"github.com/user/idguard/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "idguard",
	Short: "Identity-infrastructure security posture assessment",
	Long: `idguard ingests identity-infrastructure exports (directory configuration,
privilege/ACL graphs, cloud directory tenant settings, attack-path graph
exports, and third-party risk-scan reports), runs rule-based detectors over
each source, and produces severity-ranked technical reports plus an
aggregated executive risk score.`,
	SilenceUsage: true,
}

// Execute runs the root command. The caller maps the returned error to the
// process exit status.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the run configuration file")
}
