package main

import (
	"log/slog"
	"os"

	"github.com/cwbudde/cogstim/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	appConfig = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "cogstim",
	Short: "Dot-array stimulus generator for numerosity experiments",
	Long: `CogStim places non-overlapping dots on a canvas, equalizes the dot areas
of two groups and renders approximate number system (ANS), one-colour and
match-to-sample datasets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			appConfig = loaded
		}
		if cmd.Flags().Changed("log-level") {
			appConfig.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			appConfig.Log.Format = logFormat
		}
		if err := appConfig.Validate(); err != nil {
			return err
		}

		logger, err := newLogger(os.Stderr, appConfig.Log)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json, logfmt)")
}
