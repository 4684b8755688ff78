package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docdesk/internal/audit"
	"docdesk/internal/layout"
	"docdesk/internal/logs"
)

func newActionsCommand(ctx *commandContext) *cobra.Command {
	var docID string
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Show the action log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := layout.New(cfg.Paths.Root).ActionLogPath()
			out := cmd.OutOrStdout()

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			result, err := logs.Tail(runCtx, path, logs.TailOptions{Offset: -1, Limit: lines, DocID: docID})
			if err != nil {
				return err
			}
			printActions(out, result.Entries)
			for follow {
				result, err = logs.Tail(runCtx, path, logs.TailOptions{
					Offset: result.Offset,
					DocID:  docID,
					Follow: true,
					Wait:   time.Second,
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					return err
				}
				printActions(out, result.Entries)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "Only show entries for this document id")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Wait for new entries")
	return cmd
}

func printActions(out io.Writer, entries []audit.Line) {
	for _, entry := range entries {
		line := fmt.Sprintf("%s  %-14s %-36s by %s", entry.At.Local().Format(time.DateTime), entry.Action, entry.DocID, entry.By)
		if entry.From != "" || entry.To != "" {
			line += fmt.Sprintf("  %s -> %s", entry.From, entry.To)
		}
		if entry.Note != "" {
			line += "  (" + entry.Note + ")"
		}
		fmt.Fprintln(out, line)
	}
}
