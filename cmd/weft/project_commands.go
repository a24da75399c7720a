package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"weft/internal/api"
	"weft/internal/client"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage catalog projects",
	}

	projectCmd.AddCommand(newProjectAddCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectPagesCommand(ctx))
	projectCmd.AddCommand(newProjectAddPageCommand(ctx))
	projectCmd.AddCommand(newProjectAddModuleCommand(ctx))
	projectCmd.AddCommand(newProjectEntriesCommand(ctx))

	return projectCmd
}

func newProjectAddCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <slug>",
		Short: "Register a project and print its SDK token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.CreateProjectRequest{
				Slug: strings.TrimSpace(args[0]),
				Name: strings.TrimSpace(name),
			}
			return ctx.withClient(func(cl *client.Client) error {
				project, err := cl.CreateProject(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created project %s (id %d)\n", project.Slug, project.ID)
				fmt.Fprintf(out, "SDK token: %s\n", project.SDKToken)
				fmt.Fprintln(out, "Store the token now; it is not shown again.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the slug)")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Projects(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Projects) == 0 {
					fmt.Fprintln(out, "No projects registered")
					return nil
				}
				rows := make([][]string, 0, len(resp.Projects))
				for _, project := range resp.Projects {
					rows = append(rows, []string{
						strconv.FormatInt(project.ID, 10),
						project.Slug,
						project.Name,
						project.CreatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Slug", "Name", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newProjectAddPageCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add-page <project-id> <route>",
		Short: "Register a page route so drafts can bind to it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			req := api.CreatePageRequest{
				Route: strings.TrimSpace(args[1]),
				Name:  strings.TrimSpace(name),
			}
			return ctx.withClient(func(cl *client.Client) error {
				page, err := cl.CreatePage(cmd.Context(), projectID, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created page %s (id %d)\n", page.Route, page.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the page")
	return cmd
}

func newProjectAddModuleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-module <project-id> <page-id> <name>",
		Short: "Name a module on a page, creating it when missing",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			pageID, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid page id %q", args[1])
			}
			req := api.CreateModuleRequest{Name: strings.TrimSpace(args[2])}
			return ctx.withClient(func(cl *client.Client) error {
				module, err := cl.CreateModule(cmd.Context(), projectID, pageID, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Module %s (id %d) on page %d\n", module.Name, module.ID, pageID)
				return nil
			})
		},
	}
}

func newProjectEntriesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "entries <project-id>",
		Short: "List a project's catalog entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Entries(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(out, "No entries in catalog")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						entry.Key,
						entry.SourceText,
						entry.UpdatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Key", "Source Text", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newProjectPagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <project-id>",
		Short: "List a project's pages and modules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Pages(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Pages) == 0 {
					fmt.Fprintln(out, "No pages registered")
					return nil
				}
				rows := make([][]string, 0, len(resp.Pages))
				for _, page := range resp.Pages {
					modules := make([]string, 0, len(page.Modules))
					for _, module := range page.Modules {
						modules = append(modules, module.Name)
					}
					rows = append(rows, []string{
						strconv.FormatInt(page.ID, 10),
						page.Route,
						page.Name,
						strings.Join(modules, ", "),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Route", "Name", "Modules"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}
