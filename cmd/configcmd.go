package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/idguard/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the run configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter run configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		if err := config.Save(config.Default(), configPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", configPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing configuration")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
