package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"docdesk/internal/triage"
)

func newAutoRouteCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var threshold float64

	cmd := &cobra.Command{
		Use:   "auto-route [doc-id]",
		Short: "Route classified documents by aggregated confidence",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("specify either a document id or --all")
			}
			var override *float64
			if cmd.Flags().Changed("threshold") {
				override = &threshold
			}
			return ctx.withService(cmd, func(runCtx context.Context, svc *triage.Service) error {
				out := cmd.OutOrStdout()
				if all {
					result, err := svc.BulkAutoRoute(runCtx, override)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Processed %d, reviewed %d, skipped %d, failed %d of %d inbox documents\n",
						result.Processed, result.Reviewed, result.Skipped, result.Failed, result.Scanned)
					return nil
				}
				decision, err := svc.AutoRouteDocument(runCtx, args[0], override)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Document %s routed to %s (%s aggregate %s, threshold %s)\n",
					decision.DocumentID, decision.State, decision.Policy,
					strconv.FormatFloat(decision.Aggregate, 'f', 3, 64),
					strconv.FormatFloat(decision.Threshold, 'f', -1, 64))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Auto-route every inbox document")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Confidence threshold in [0,1] (defaults to routing.threshold)")
	return cmd
}
