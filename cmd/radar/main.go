package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"radar/internal/config"
	"radar/internal/logging"
)

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		if logger != nil {
			logger.Info("Received signal, shutting down gracefully", "signal", sig.String())
		}
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "radar",
		Short: "Adversarial ML threat intelligence agent",
		Long: `Radar consumes research papers from a Redis stream, filters them for
adversarial machine learning relevance, extracts a structured threat
signature with a language model and curates periodic digests.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			logger = logging.New(cfg.Logging.Level, cfg.Logging.Format).With("agent", cfg.Agent.Name)
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "Path to configuration file")

	rootCmd.AddCommand(
		newConsumeCmd(),
		newIngestCmd(),
		newTriggerCmd(),
		newStatusCmd(),
		newCurateCmd(),
		newResetCmd(),
	)
	return rootCmd
}
