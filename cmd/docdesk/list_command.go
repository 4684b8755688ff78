package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docdesk/internal/triage"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var state string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents in a state (inbox by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(runCtx context.Context, svc *triage.Service) error {
				items, err := svc.ListDocuments(runCtx, state)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No documents")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.DocID,
						string(item.State),
						item.OriginalFilename,
						item.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Doc ID", "State", "File", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
					shouldColorize(out),
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&state, "state", "s", "", "State to list: inbox, review, hold, processed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
