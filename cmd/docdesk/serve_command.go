package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docdesk/internal/daemon"
	"docdesk/internal/logging"
	"docdesk/internal/metastore"
	"docdesk/internal/triage"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: scanner poller and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			store, err := metastore.Open(cfg)
			if err != nil {
				logger.Error("open meta store", logging.Error(err))
				return err
			}
			defer store.Close()

			svc, err := triage.New(cfg, store, logger)
			if err != nil {
				return fmt.Errorf("create triage service: %w", err)
			}
			d, err := daemon.New(cfg, svc, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			if err := d.Run(signalCtx); err != nil {
				return err
			}
			logger.Info("docdesk daemon shut down")
			return nil
		},
	}
}
