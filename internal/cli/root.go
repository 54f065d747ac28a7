// Package cli provides the command-line interface for docintake.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lkoehler/docintake-go/internal/client"
	"github.com/lkoehler/docintake-go/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	verbose   bool

	// Global config, logger and backend client
	cfg        config.Config
	log        *slog.Logger
	logCleanup func() error
	backend    *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docintake",
	Short: "Staged document ingestion for the document backend",
	Long: `Docintake stages arbitrarily large file selections as metadata-only
records, deduplicates them, and streams their content to the document
backend in adaptively sized batches.

Staging never reads file content, so tens of thousands of files can be
accepted instantly; content is only realized during commit.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		log, logCleanup = config.SetupLogger(cfg.LogFile, level)

		backend = client.New(cfg.ServerURL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "document backend URL (overrides DOCINTAKE_SERVER_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(failuresCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
