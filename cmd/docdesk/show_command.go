package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"docdesk/internal/confidence"
	"docdesk/internal/record"
	"docdesk/internal/triage"
)

var displayFields = []record.FieldName{
	record.FieldKind,
	record.FieldDocID,
	record.FieldDocDateSic,
	record.FieldDocDateParsed,
	record.FieldDocSubject,
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <doc-id>",
		Short: "Show a document with effective values and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(runCtx context.Context, svc *triage.Service) error {
				rec, err := svc.GetDocument(runCtx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, rec)
				}
				cfg, _ := ctx.ensureConfig()
				renderRecord(cmd.OutOrStdout(), rec, cfg.Routing.Policy)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the full record as JSON")
	return cmd
}

func renderRecord(out io.Writer, rec *record.Record, policyName string) {
	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Document %s\n", rec.DocID)
	fmt.Fprintf(out, "  State:    %s\n", rec.State)
	fmt.Fprintf(out, "  File:     %s\n", rec.FilePath)
	fmt.Fprintf(out, "  Original: %s\n", rec.OriginalFilename)
	fmt.Fprintf(out, "  Created:  %s by %s\n", rec.CreatedAt.Local().Format(time.DateTime), rec.CreatedBy)
	if rec.ClassificationMode != "" {
		fmt.Fprintf(out, "  Mode:     %s\n", rec.ClassificationMode)
	}
	if rec.Classification != nil && rec.Classification.Error != nil {
		fmt.Fprintf(out, "  Last classification failed: %s %s\n", rec.Classification.Error.Code, rec.Classification.Error.Message)
	}

	if rec.IsClassified() || rec.HasCorrections() {
		rows := make([][]string, 0, len(displayFields))
		for _, field := range displayFields {
			score := ""
			if v, ok := rec.EffectiveScore(field); ok {
				score = strconv.FormatFloat(v, 'f', 2, 64)
			}
			corrected := ""
			if rec.Corrections != nil && rec.Corrections.Value(field) != "" {
				corrected = "yes"
			}
			rows = append(rows, []string{string(field), rec.EffectiveValue(field), score, corrected})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Field", "Value", "Score", "Corrected"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			colorize,
		))
		if policy, err := confidence.ParsePolicy(policyName); err == nil {
			if agg, ok := confidence.Aggregate(policy, confidence.Scores(rec)); ok {
				fmt.Fprintf(out, "Aggregate (%s): %s\n", policy, strconv.FormatFloat(agg, 'f', 3, 64))
			}
		}
	}

	if len(rec.History) == 0 {
		return
	}
	rows := make([][]string, 0, len(rec.History))
	for _, entry := range rec.History {
		rows = append(rows, []string{
			entry.At.Local().Format(time.DateTime),
			entry.Event,
			entry.By,
			entry.From,
			entry.To,
			entry.Note,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"At", "Event", "By", "From", "To", "Note"},
		rows,
		nil,
		colorize,
	))
}
