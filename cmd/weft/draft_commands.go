package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"weft/internal/api"
	"weft/internal/client"
)

func newDraftCommand(ctx *commandContext) *cobra.Command {
	draftCmd := &cobra.Command{
		Use:   "draft",
		Short: "Stage and inspect reconciliation decisions",
	}

	draftCmd.AddCommand(newDraftSetCommand(ctx))
	draftCmd.AddCommand(newDraftListCommand(ctx))

	return draftCmd
}

func newDraftSetCommand(ctx *commandContext) *cobra.Command {
	var route string
	var key string
	var action string
	var targetPageID int64
	var targetModuleID int64

	cmd := &cobra.Command{
		Use:   "set <session-id>",
		Short: "Stage one decision for a captured pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := strings.TrimSpace(args[0])
			req := api.DraftRequest{
				Route:          strings.TrimSpace(route),
				Key:            strings.TrimSpace(key),
				Action:         strings.TrimSpace(action),
				TargetPageID:   targetPageID,
				TargetModuleID: targetModuleID,
			}
			return ctx.withClient(func(cl *client.Client) error {
				draft, err := cl.StageDraft(cmd.Context(), sessionID, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Staged %s for %s on %s\n", draft.Action, draft.Key, draft.Route)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&route, "route", "", "Captured route")
	cmd.Flags().StringVar(&key, "key", "", "Translation key")
	cmd.Flags().StringVar(&action, "action", "", "Decision: bind, delete, or ignore")
	cmd.Flags().Int64Var(&targetPageID, "page", 0, "Target page ID (bind)")
	cmd.Flags().Int64Var(&targetModuleID, "module", 0, "Target module ID (bind)")
	_ = cmd.MarkFlagRequired("route")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func newDraftListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <session-id>",
		Short: "List staged decisions for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := strings.TrimSpace(args[0])
			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Drafts(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Drafts) == 0 {
					fmt.Fprintln(out, "No drafts staged")
					return nil
				}
				rows := make([][]string, 0, len(resp.Drafts))
				for _, draft := range resp.Drafts {
					rows = append(rows, []string{
						draft.Route,
						draft.Key,
						draft.Action,
						formatTargetID(draft.TargetPageID),
						formatTargetID(draft.TargetModuleID),
						draft.UpdatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Route", "Key", "Action", "Page", "Module", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func formatTargetID(id int64) string {
	if id == 0 {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}

func newApplyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <session-id>",
		Short: "Apply a session's staged drafts to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := strings.TrimSpace(args[0])
			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Apply(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Applied session %s\n", resp.Session.ID)
				result := resp.Result
				rows := [][]string{
					{"bound", strconv.Itoa(result.Bound)},
					{"moved", strconv.Itoa(result.Moved)},
					{"deleted", strconv.Itoa(result.Deleted)},
					{"ignored", strconv.Itoa(result.Ignored)},
					{"entries created", strconv.Itoa(result.EntriesCreated)},
				}
				fmt.Fprintln(out, renderTable([]string{"Change", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
