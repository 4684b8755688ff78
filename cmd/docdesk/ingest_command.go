package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"docdesk/internal/triage"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>...",
		Short: "Move PDFs into the inbox and create their records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(runCtx context.Context, svc *triage.Service) error {
				out := cmd.OutOrStdout()
				for _, path := range args {
					rec, err := svc.Ingester().IngestFile(runCtx, path)
					if err != nil {
						return fmt.Errorf("ingest %s: %w", path, err)
					}
					fmt.Fprintf(out, "Ingested %s as %s (%s)\n", path, rec.DocID, rec.FilePath)
				}
				return nil
			})
		},
	}
}
