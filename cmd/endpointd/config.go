package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"endpointd/internal/config"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect endpointd configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, the config file, ENDPOINTD_*
environment variables and flags have been applied.

Examples:
  endpointd config show                 # YAML
  endpointd config show --format toml
  endpointd config show --format json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, toml, json)")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	res, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := config.Marshal(res.Config, configFormat)
	if err != nil {
		return err
	}
	if res.ConfigPath != "" {
		fmt.Fprintf(os.Stderr, "Loaded from %s\n", res.ConfigPath)
	} else {
		fmt.Fprintln(os.Stderr, "No config file found; showing defaults")
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
