package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"docdesk/internal/record"
	"docdesk/internal/triage"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var reclassify bool

	cmd := &cobra.Command{
		Use:   "classify [doc-id]",
		Short: "Submit documents to the classification service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("specify either a document id or --all")
			}
			return ctx.withService(cmd, func(runCtx context.Context, svc *triage.Service) error {
				out := cmd.OutOrStdout()
				if all {
					result, err := svc.BulkClassify(runCtx, reclassify)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Classified %d, failed %d, skipped %d of %d inbox documents\n",
						result.OK, result.Fail, result.Skipped, result.Scanned)
					return nil
				}
				rec, err := svc.ClassifyDocument(runCtx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Classified %s as %q\n", rec.DocID, rec.EffectiveValue(record.FieldKind))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Classify every inbox document")
	cmd.Flags().BoolVar(&reclassify, "reclassify", false, "With --all, also resubmit documents that already have a result")
	return cmd
}
