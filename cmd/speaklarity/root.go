package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/speaklarity/platform/internal/config"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configPath string
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:   "speaklarity",
		Short: "Pronunciation and grammar feedback for recorded conversations",
		Long: `speaklarity splits a recorded conversation into sentences, scores each word's
pronunciation against a synthesized native reference, and checks grammar.

Run "speaklarity serve" for the HTTP API, or process recordings directly from
the terminal with "process" and "record".`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $"+config.EnvConfigFile+")")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if *debugLogging {
			loaded.LogLevel = "debug"
		}
		*cfg = *loaded
		setupLogging(loaded)
		return nil
	}

	// Add subcommands
	cmd.AddCommand(newServeCommand(cfg))
	cmd.AddCommand(newProcessCommand(cfg))
	cmd.AddCommand(newRecordCommand(cfg))
	cmd.AddCommand(newListCommand(cfg))
	cmd.AddCommand(newShowCommand(cfg))
	cmd.AddCommand(newConfigCommand(cfg))

	return cmd
}

func setupLogging(cfg *config.Config) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
