/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/guidedmodules/internal/policy"
	"github.com/josephgoksu/guidedmodules/internal/ui"
	"github.com/josephgoksu/guidedmodules/internal/util"
)

// starterPolicy is written by 'policy init'.
const starterPolicy = `# Operator policy for guidedmodules.
# Rules here extend the built-in policy in the same package: add
# allow_read / allow_write rules to grant access, or deny messages to block it.
# Learn more: https://www.openpolicyagent.org/docs/latest/policy-language/

package guidedmodules.authz

import rego.v1

# Deleted tasks are read-only until restored.
deny contains msg if {
	input.action == "write"
	input.task.deleted
	msg := sprintf("task %s is deleted", [input.task.id])
}
`

const starterPolicyTest = `package guidedmodules.authz

import rego.v1

test_deleted_task_is_read_only if {
	count(deny) > 0 with input as {"action": "write", "task": {"id": "task-00000000", "deleted": true}}
}

test_active_task_not_denied if {
	count(deny) == 0 with input as {"action": "write", "task": {"id": "task-00000000", "deleted": false}}
}
`

// policyCmd represents the policy parent command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage OPA access policies",
	Long: `Manage the Open Policy Agent (OPA) policies that decide who may read and
write tasks.

A built-in policy grants access by organization, editorship and project
membership. Operator policies are Rego files in .guidedmodules/policies/.

Examples:
  guidedmodules policy init
  guidedmodules policy list
  guidedmodules policy check --task task-1a2b3c4d --action write
  guidedmodules policy test
  guidedmodules policy decisions --task task-1a2b3c4d`,
}

var policyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter operator policy and its test",
	RunE:  runPolicyInit,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded policies",
	RunE:  runPolicyList,
}

var policyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the policy for one access to a task",
	RunE:  runPolicyCheck,
}

var policyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run Rego policy tests (*_test.rego)",
	RunE:  runPolicyTest,
}

var policyDecisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show recorded policy decisions",
	RunE:  runPolicyDecisions,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyInitCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyCheckCmd)
	policyCmd.AddCommand(policyTestCmd)
	policyCmd.AddCommand(policyDecisionsCmd)

	policyInitCmd.Flags().Bool("force", false, "overwrite existing files")
	policyCheckCmd.Flags().String("task", "", "task ID (required)")
	policyCheckCmd.Flags().String("action", string(policy.ActionRead), "read or write")
	_ = policyCheckCmd.MarkFlagRequired("task")
	policyDecisionsCmd.Flags().String("task", "", "only decisions about this task")
	policyDecisionsCmd.Flags().String("result", "", "only allow or deny decisions")
	policyDecisionsCmd.Flags().Int("limit", 20, "maximum number of decisions")
}

// policyFs is where operator policies are read and written.
var policyFs = afero.NewOsFs()

func runPolicyInit(cmd *cobra.Command, args []string) error {
	dir := GetConfig().Project.PoliciesDir
	force, _ := cmd.Flags().GetBool("force")

	if err := policyFs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create policies directory: %w", err)
	}
	files := map[string]string{
		filepath.Join(dir, "operator.rego"):      starterPolicy,
		filepath.Join(dir, "operator_test.rego"): starterPolicyTest,
	}
	created := []string{}
	for _, path := range []string{filepath.Join(dir, "operator.rego"), filepath.Join(dir, "operator_test.rego")} {
		exists, err := afero.Exists(policyFs, path)
		if err != nil {
			return err
		}
		if exists && !force {
			continue
		}
		if err := afero.WriteFile(policyFs, path, []byte(files[path]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		created = append(created, path)
	}

	if isJSON() {
		return printJSON(cmd, map[string]any{"created": created})
	}
	if len(created) == 0 {
		cmd.Printf("Policy files already exist in %s. Use --force to overwrite.\n", dir)
		return nil
	}
	for _, path := range created {
		cmd.Printf("✓ Created %s\n", path)
	}
	return nil
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	dir := GetConfig().Project.PoliciesDir
	policies, err := policy.NewLoader(policyFs, dir).LoadAll()
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}

	if isJSON() {
		return printJSON(cmd, map[string]any{
			"policies_dir": dir,
			"builtin":      policy.DefaultPolicyPackage,
			"count":        len(policies),
			"policies":     policies,
		})
	}

	cmd.Printf("Built-in policy: %s\n", policy.DefaultPolicyPackage)
	if len(policies) == 0 {
		cmd.Printf("No operator policies in %s.\n", dir)
		cmd.Println("Run 'guidedmodules policy init' to create one.")
		return nil
	}
	cmd.Printf("Operator policies in %s:\n", dir)
	for _, p := range policies {
		cmd.Printf("  • %s (%s)\n", p.Name, p.Path)
	}
	return nil
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	taskID, _ := cmd.Flags().GetString("task")
	actionName, _ := cmd.Flags().GetString("action")
	action := policy.Action(actionName)
	if action != policy.ActionRead && action != policy.ActionWrite {
		return fmt.Errorf("unknown action %q (want read or write)", actionName)
	}

	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		taskID, err := a.taskID(ctx, taskID)
		if err != nil {
			return err
		}
		t, err := a.store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		d, err := policy.NewAuthorizer(a.policy, a.store, a.store, a.logger).Decide(ctx, action, actor, t)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, d)
		}
		if d.IsAllowed() {
			cmd.Println(ui.StyleSuccess.Render(fmt.Sprintf("✓ %s may %s %s", actor, action, t.ID)))
		} else {
			cmd.Println(ui.StyleError.Render(fmt.Sprintf("✗ %s may not %s %s", actor, action, t.ID)))
		}
		for _, v := range d.Violations {
			cmd.Printf("  • %s\n", v)
		}
		cmd.Println(ui.StyleSubtle.Render("decision " + d.DecisionID))
		return nil
	})
}

func runPolicyTest(cmd *cobra.Command, args []string) error {
	dir := GetConfig().Project.PoliciesDir
	runner := policy.NewTestRunner(policyFs, dir)
	runner.Builtin = true
	summary, err := runner.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run policy tests: %w", err)
	}

	if isJSON() {
		if err := printJSON(cmd, summary); err != nil {
			return err
		}
	} else {
		for _, r := range summary.Results {
			switch {
			case r.Passed:
				cmd.Printf("  %s %s\n", ui.StyleSuccess.Render("PASS"), r.Name)
			case r.Skipped:
				cmd.Printf("  %s %s\n", ui.StyleSubtle.Render("SKIP"), r.Name)
			default:
				cmd.Printf("  %s %s %s\n", ui.StyleError.Render("FAIL"), r.Name, r.Error)
			}
		}
		cmd.Print(summary.FormatSummary())
	}
	if !summary.AllPassed() {
		return fmt.Errorf("%d policy test(s) failed", summary.Failed+summary.Errored)
	}
	return nil
}

func runPolicyDecisions(cmd *cobra.Command, args []string) error {
	taskID, _ := cmd.Flags().GetString("task")
	result, _ := cmd.Flags().GetString("result")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		if taskID != "" {
			var err error
			if taskID, err = a.taskID(ctx, taskID); err != nil {
				return err
			}
		}
		decisions, err := a.store.ListDecisions(ctx, policy.ListDecisionsOptions{
			TaskID: taskID,
			Result: result,
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, decisions)
		}
		if len(decisions) == 0 {
			cmd.Println("No decisions recorded.")
			return nil
		}
		table := &ui.Table{Headers: []string{"DECISION", "WHEN", "ACTOR", "ACTION", "TASK", "RESULT"}}
		for _, d := range decisions {
			table.Rows = append(table.Rows, []string{
				util.ShortID(d.DecisionID, 0), d.EvaluatedAt.Format("2006-01-02 15:04:05"),
				d.ActorID, string(d.Action), d.TaskID, d.Result,
			})
		}
		cmd.Print(table.Render())
		return nil
	})
}
