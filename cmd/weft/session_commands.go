package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"weft/internal/capture"
	"weft/internal/client"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect capture sessions",
	}

	sessionsCmd.AddCommand(newSessionsListCommand(ctx))
	sessionsCmd.AddCommand(newSessionsShowCommand(ctx))

	return sessionsCmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var projectID int64
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List capture sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]capture.SessionStatus, 0, len(statusFilters))
			for _, raw := range statusFilters {
				status, ok := capture.ParseSessionStatus(raw)
				if !ok {
					return fmt.Errorf("unknown session status %q", raw)
				}
				statuses = append(statuses, status)
			}
			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Sessions(cmd.Context(), projectID, statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(out, "No sessions found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Sessions))
				for _, s := range resp.Sessions {
					rows = append(rows, []string{
						s.ID,
						strconv.FormatInt(s.ProjectID, 10),
						s.SDKIdentity,
						s.Env,
						s.Status,
						s.LastSeenAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Session", "Project", "Identity", "Env", "Status", "Last Seen"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "Filter by project ID")
	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by session status (repeatable)")
	return cmd
}

func newSessionsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := strings.TrimSpace(args[0])
			return ctx.withClient(func(cl *client.Client) error {
				detail, err := cl.Session(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				s := detail.Session
				fmt.Fprintf(out, "Session: %s\n", s.ID)
				fmt.Fprintf(out, "Project: %d\n", s.ProjectID)
				fmt.Fprintf(out, "Identity: %s\n", s.SDKIdentity)
				if s.Env != "" {
					fmt.Fprintf(out, "Env: %s\n", s.Env)
				}
				if s.RequestedLocale != "" {
					fmt.Fprintf(out, "Locale: %s\n", s.RequestedLocale)
				}
				fmt.Fprintf(out, "Status: %s\n", s.Status)
				fmt.Fprintf(out, "Started: %s\n", s.StartedAt)
				fmt.Fprintf(out, "Last seen: %s\n", s.LastSeenAt)
				if s.ClosedAt != "" {
					fmt.Fprintf(out, "Closed: %s (%s)\n", s.ClosedAt, s.CloseReason)
				}
				fmt.Fprintf(out, "Collected pairs: %d\n", detail.Collected)

				if len(detail.RouteStats) > 0 {
					rows := make([][]string, 0, len(detail.RouteStats))
					for _, stat := range detail.RouteStats {
						rows = append(rows, []string{
							stat.Route,
							strconv.Itoa(stat.KeysTotal),
							strconv.Itoa(stat.NewKeysCount),
							strconv.Itoa(stat.TextChangedCount),
							stat.LastSeenAt,
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Route", "Keys", "New", "Changed", "Last Seen"},
						rows,
						[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
					))
				}
				if len(detail.Drafts) > 0 {
					fmt.Fprintf(out, "Staged drafts: %d (run 'weft draft list %s')\n", len(detail.Drafts), s.ID)
				}
				return nil
			})
		},
	}
}

func newDiscardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <session-id>",
		Short: "Abandon an active session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := strings.TrimSpace(args[0])
			return ctx.withClient(func(cl *client.Client) error {
				if err := cl.Discard(cmd.Context(), sessionID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discarded session %s\n", sessionID)
				return nil
			})
		},
	}
}
