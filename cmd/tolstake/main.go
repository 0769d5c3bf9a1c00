// Command tolstake runs a single-validator staking chain node.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolstake/config"
	"github.com/tolelom/tolstake/internal/logging"
)

var cmdMain = &cobra.Command{
	Use:               "tolstake",
	Short:             "Staking ledger node",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

var flagMain struct {
	Config    string
	Key       string
	LogLevel  string
	LogFormat string
}

func init() {
	cmdMain.PersistentFlags().StringVarP(&flagMain.Config, "config", "c", "config.yaml", "Path to the config file (.yaml, .yml or .json)")
	cmdMain.PersistentFlags().StringVarP(&flagMain.Key, "key", "k", "validator.key", "Path to the validator keystore")
	cmdMain.PersistentFlags().StringVar(&flagMain.LogLevel, "log-level", "", "Override the configured log level")
	cmdMain.PersistentFlags().StringVar(&flagMain.LogFormat, "log-format", "", "Override the configured log format (console or json)")
}

func main() {
	if err := cmdMain.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging configures every logger from the config file,
// letting flags take precedence. A missing config file falls back to defaults.
func setupLogging(cmd *cobra.Command, args []string) error {
	logCfg := config.DefaultConfig().Log
	if cfg, err := config.Load(flagMain.Config); err == nil {
		logCfg = cfg.Log
	}
	if flagMain.LogLevel != "" {
		logCfg.Level = flagMain.LogLevel
	}
	if flagMain.LogFormat != "" {
		logCfg.Format = flagMain.LogFormat
	}

	return logging.Configure(logCfg.Level, logCfg.Format)
}

// password reads the keystore password from the environment so it never
// shows up in process listings.
func password() string {
	pw := os.Getenv("TOL_PASSWORD")
	if pw == "" {
		log.Warn().Msg("TOL_PASSWORD not set, keystore uses an empty password")
	}
	return pw
}
