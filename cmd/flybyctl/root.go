package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "flybyctl",
	Short:         "Predict space station passes and inspect prediction history.",
	SilenceErrors: true,
	SilenceUsage:  true,
	// Flags are bound per invocation so subcommands can share names.
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().Bool("verbose", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().String("catalog", "", "YAML catalog of locations and spacecraft (default: built-in)")
	rootCmd.PersistentFlags().String("history-db", "", "SQLite history database")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
}

// initConfig reads FLYBYCTL_* environment variables.
func initConfig() {
	viper.SetEnvPrefix("FLYBYCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
