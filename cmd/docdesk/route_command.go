package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"docdesk/internal/triage"
)

func newRouteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "route <doc-id> <state>",
		Short: "Move a document to inbox, review, hold or processed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(runCtx context.Context, svc *triage.Service) error {
				rec, err := svc.RouteDocument(runCtx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Document %s is now %s (%s)\n", rec.DocID, rec.State, rec.FilePath)
				return nil
			})
		},
	}
}
