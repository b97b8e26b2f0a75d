// Package cmd wires configuration, storage and services into the raceday
// command line.
package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"raceday-api/config"
)

// RootCommand creates and returns the root command.
func RootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "raceday",
		Short:         "Raceday event registration API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := serveCommand()
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Args = cobra.NoArgs

	rootCmd.AddCommand(
		serveCmd,
		migrateCommand(),
		gpxCommand(),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := RootCommand().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging installs the process default logger: JSON in production,
// text when debugging locally.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Debug {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
