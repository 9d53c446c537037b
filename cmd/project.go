/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/guidedmodules/internal/ui"
)

// projectCmd represents the project parent command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create projects and manage their members",
	Long: `A project groups the tasks of an organization. Creating one also creates
its root task, an instance of the "project" module, and makes you its admin.

Examples:
  guidedmodules project new "Acme SaaS"
  guidedmodules project list
  guidedmodules project show proj-1a2b3c4d
  guidedmodules project add-member proj-1a2b3c4d bob --admin`,
}

var projectNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a project and its root task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProjectNew,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects you are a member of",
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project and its members",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectAddMemberCmd = &cobra.Command{
	Use:   "add-member <project-id> <user-id>",
	Short: "Add or update a project member (admins only)",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectAddMember,
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectNewCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectAddMemberCmd)

	projectAddMemberCmd.Flags().Bool("admin", false, "grant project admin")
}

func runProjectNew(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		p, root, err := a.engine.CreateProject(ctx, actor, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, map[string]any{"project": p, "rootTask": root})
		}
		cmd.Printf("✓ Created project %s (%s)\n", p.Title, p.ID)
		cmd.Printf("  Root task: %s\n", root.ID)
		cmd.Printf("\nNext: guidedmodules task run %s\n", root.ID)
		return nil
	})
}

func runProjectList(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		projects, err := a.engine.Projects(ctx, actor)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, projects)
		}
		if len(projects) == 0 {
			cmd.Println("No projects yet. Create one with 'guidedmodules project new <title>'.")
			return nil
		}
		table := &ui.Table{Headers: []string{"ID", "TITLE", "ROOT TASK", "CREATED"}, MaxWidth: 48}
		for _, p := range projects {
			table.Rows = append(table.Rows, []string{p.ID, p.Title, p.RootTaskID, p.CreatedAt.Format("2006-01-02 15:04")})
		}
		cmd.Print(table.Render())
		return nil
	})
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		projectID, err := a.projectID(ctx, args[0])
		if err != nil {
			return err
		}
		p, members, err := a.engine.Project(ctx, actor, projectID)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, map[string]any{"project": p, "members": members})
		}
		cmd.Println(ui.StyleHeader.Render(p.Title) + ui.StyleSubtle.Render(" "+p.ID))
		cmd.Printf("  Organization: %s\n", p.OrganizationID)
		cmd.Printf("  Root task:    %s\n\n", p.RootTaskID)

		table := &ui.Table{Headers: []string{"MEMBER", "ROLE"}}
		for _, m := range members {
			role := "member"
			if m.IsAdmin {
				role = "admin"
			}
			table.Rows = append(table.Rows, []string{m.UserID, role})
		}
		cmd.Print(table.Render())
		return nil
	})
}

func runProjectAddMember(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	admin, _ := cmd.Flags().GetBool("admin")
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		projectID, err := a.projectID(ctx, args[0])
		if err != nil {
			return err
		}
		m, err := a.engine.AddMember(ctx, actor, projectID, args[1], admin)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, m)
		}
		role := "member"
		if m.IsAdmin {
			role = "admin"
		}
		cmd.Printf("✓ %s is now a %s of %s\n", m.UserID, role, m.ProjectID)
		return nil
	})
}
