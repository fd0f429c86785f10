package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/opbridge/internal/cli"
	"github.com/aretw0/opbridge/pkg/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "opbridge",
	Short: "opbridge runs network and file operations through an async operation bridge",
	Long: `opbridge hands one-shot network and file requests to host executors and
manages long-lived subscriptions (redis pub/sub or HTTP polling) with
two-sided cancellation.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "opbridge.yaml", "Configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "Print JSON even on a terminal")
}

// session is what every command needs: config, logger, host and printer.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	host    *cli.Host
	printer *cli.Printer
	signals *cli.SignalManager
}

// openSession loads the configuration, lets adjust override it from flags and builds the host.
func openSession(cmd *cobra.Command, adjust ...func(*config.Config)) (*session, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	forceJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	for _, fn := range adjust {
		fn(&cfg)
	}
	logger, err := cli.NewLogger(cfg.Log, debug)
	if err != nil {
		return nil, err
	}
	host, err := cli.NewHost(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:     cfg,
		logger:  logger,
		host:    host,
		printer: cli.NewPrinter(cmd.OutOrStdout(), forceJSON),
		signals: cli.NewSignalManager(cmd.Context()),
	}, nil
}

func (s *session) Context() context.Context {
	return s.signals.Context()
}

func (s *session) Close() {
	s.signals.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Stream.GracePeriod.Std()+time.Second)
	defer cancel()
	if err := s.host.Close(ctx); err != nil {
		s.logger.Warn("shutdown incomplete", "err", err)
	}
}
