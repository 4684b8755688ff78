package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docdesk/internal/record"
	"docdesk/internal/triage"
)

var correctableFields = map[record.FieldName]struct{}{
	record.FieldKind:          {},
	record.FieldDocID:         {},
	record.FieldDocDateSic:    {},
	record.FieldDocDateParsed: {},
	record.FieldDocSubject:    {},
}

func newCorrectCommand(ctx *commandContext) *cobra.Command {
	var sets []string
	var overrides []string

	cmd := &cobra.Command{
		Use:   "correct <doc-id>",
		Short: "Save corrections and confidence overrides",
		Long: "Save corrections and confidence overrides.\n\n" +
			"--set field=value corrects kind, doc_id, doc_date_sic, doc_date_parsed or doc_subject;\n" +
			"an empty value clears the correction. --override field=score sets a confidence\n" +
			"override in [0,1] for doc_id, doc_date_sic or doc_subject; an empty score clears it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := buildPatchBody(sets, overrides)
			if err != nil {
				return err
			}
			patch, err := triage.DecodePatch(body)
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(runCtx context.Context, svc *triage.Service) error {
				rec, err := svc.ApplyCorrections(runCtx, args[0], patch)
				if err != nil {
					return err
				}
				cfg, _ := ctx.ensureConfig()
				renderRecord(cmd.OutOrStdout(), rec, cfg.Routing.Policy)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Correction as field=value (repeatable)")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, "Confidence override as field=score (repeatable)")
	return cmd
}

// buildPatchBody renders flag pairs as the JSON patch accepted by the API so
// both surfaces share one validator.
func buildPatchBody(sets, overrides []string) ([]byte, error) {
	if len(sets) == 0 && len(overrides) == 0 {
		return nil, fmt.Errorf("nothing to correct: pass --set or --override")
	}
	patch := make(map[string]any, len(sets)+1)
	for _, pair := range sets {
		key, value, err := splitPair(pair, "--set")
		if err != nil {
			return nil, err
		}
		if _, ok := correctableFields[record.FieldName(key)]; !ok {
			return nil, fmt.Errorf("--set: unknown field %q", key)
		}
		patch[key] = value
	}
	if len(overrides) > 0 {
		conf := make(map[string]any, len(overrides))
		for _, pair := range overrides {
			key, value, err := splitPair(pair, "--override")
			if err != nil {
				return nil, err
			}
			if value == "" {
				conf[record.OverrideKey(record.FieldName(key))] = nil
				continue
			}
			score, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("--override %s: %q is not a number", key, value)
			}
			conf[record.OverrideKey(record.FieldName(key))] = score
		}
		patch["conf_overrides"] = conf
	}
	return json.Marshal(patch)
}

func splitPair(pair, flag string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("%s: expected field=value, got %q", flag, pair)
	}
	return key, strings.TrimSpace(value), nil
}
