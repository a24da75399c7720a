package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"weft/internal/api"
	"weft/internal/client"
)

func newDiffCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <session-id>",
		Short: "Show the reconciliation diff for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := strings.TrimSpace(args[0])
			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Diff(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Routes) == 0 {
					fmt.Fprintln(out, "No captured routes")
					return nil
				}
				for _, route := range resp.Routes {
					page := "unknown page"
					if route.PageKnown {
						page = fmt.Sprintf("page %d", route.PageID)
					}
					fmt.Fprintf(out, "Route %s (%s, %d unchanged)\n", route.Route, page, route.Unchanged)
					if len(route.Changes) == 0 {
						fmt.Fprintln(out, "  nothing to reconcile")
						continue
					}
					rows := make([][]string, 0, len(route.Changes))
					for _, change := range route.Changes {
						rows = append(rows, []string{
							change.Kind,
							change.Key,
							change.CurrentModule,
							change.SuggestedModule,
							strconv.FormatInt(change.SeenCount, 10),
							diffText(change),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Kind", "Key", "Module", "Suggested", "Seen", "Text"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					))
				}
				return nil
			})
		},
	}
}

// diffText picks the most useful text snippet for a change row.
func diffText(change api.DiffChange) string {
	text := change.CapturedText
	if text == "" {
		text = change.CatalogText
	}
	const max = 48
	if len(text) > max {
		text = text[:max-1] + "…"
	}
	if change.TextChanged {
		text += " (changed)"
	}
	return text
}
