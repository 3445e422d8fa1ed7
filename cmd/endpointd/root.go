package main

import (
	"github.com/spf13/cobra"

	"endpointd/internal/config"
	"endpointd/internal/version"
)

var (
	configFlag    string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "endpointd",
	Short: "endpointd - embeddable HTTP endpoint registry",
	Long: `endpointd hosts HTTP services at context paths that can be registered and
unregistered while the listener is started, stopped and restarted on its own.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("endpointd version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"Config file (default: endpointd.{yaml,toml,json} in . or ~/.endpointd)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Override logging.level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Override logging.format (text, json)")
}

// loadConfig loads the configuration and applies the global flag overrides.
func loadConfig() (*config.LoadResult, error) {
	res, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if logLevelFlag != "" {
		res.Config.Logging.Level = logLevelFlag
	}
	if logFormatFlag != "" {
		res.Config.Logging.Format = logFormatFlag
	}
	if err := res.Config.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}
