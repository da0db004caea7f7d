package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/idguard/pkg/aggregate"
	"github.com/user/idguard/pkg/report"
)

var summarizeFlags struct {
	organization string
	output       string
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <report.txt>...",
	Short: "Aggregate existing technical reports into an executive document",
	Long: `Summarize re-parses technical reports produced by earlier detector runs
and renders the executive document from the aggregate, without re-running
any detector. Each file becomes one source, named after its base name.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeFlags.organization, "org", "Unnamed Organization", "Organization name for the executive report")
	summarizeCmd.Flags().StringVar(&summarizeFlags.output, "out", "executive.html", "Executive document path")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	var sources []aggregate.SourceFindings
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		findings, err := report.ParseTechnical(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		sources = append(sources, aggregate.SourceFindings{Source: name, Findings: findings})
	}

	metrics := aggregate.Aggregate(sources, time.Now().UTC())
	out, err := os.Create(summarizeFlags.output)
	if err != nil {
		return err
	}
	if err := aggregate.RenderExecutive(out, metrics, summarizeFlags.organization); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "risk score %d/100 across %d findings -> %s\n", metrics.RiskScore, metrics.Total, summarizeFlags.output)
	if metrics.HasCritical() {
		return ErrCriticalFindings
	}
	return nil
}
