package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"weft/internal/client"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				status, err := cl.Status(cmd.Context(), verbose)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				running := "no"
				if status.Running {
					running = "yes"
				}
				fmt.Fprintf(out, "Running: %s (pid %d)\n", running, status.PID)
				fmt.Fprintf(out, "Capture DB: %s\n", status.CaptureDBPath)
				fmt.Fprintf(out, "Catalog DB: %s\n", status.CatalogDBPath)
				fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)

				rows := [][]string{
					{"active", strconv.Itoa(status.Sessions.Active)},
					{"closing", strconv.Itoa(status.Sessions.Closing)},
					{"applied", strconv.Itoa(status.Sessions.Applied)},
					{"discarded", strconv.Itoa(status.Sessions.Discarded)},
					{"expired", strconv.Itoa(status.Sessions.Expired)},
					{"total", strconv.Itoa(status.Sessions.Total)},
				}
				fmt.Fprintln(out, renderTable([]string{"Sessions", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

				if verbose && status.Health != nil {
					health := status.Health
					fmt.Fprintln(out, "Capture database health:")
					fmt.Fprintf(out, "  exists: %v  readable: %v  integrity: %v\n",
						health.DatabaseExists, health.DatabaseReadable, health.IntegrityCheck)
					if len(health.MissingTables) > 0 {
						fmt.Fprintf(out, "  missing tables: %s\n", strings.Join(health.MissingTables, ", "))
					}
					if health.Error != "" {
						fmt.Fprintf(out, "  error: %s\n", health.Error)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include capture database diagnostics")
	return cmd
}
