/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/guidedmodules/internal/answer"
	"github.com/josephgoksu/guidedmodules/internal/logger"
	"github.com/josephgoksu/guidedmodules/internal/render"
	"github.com/josephgoksu/guidedmodules/internal/taskgraph"
	"github.com/josephgoksu/guidedmodules/internal/ui"
	"github.com/josephgoksu/guidedmodules/models"
)

// taskCmd represents the task parent command
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Start, inspect and answer tasks",
	Long: `A task is one instantiation of a module inside a project.

Examples:
  guidedmodules task start app --project proj-1a2b3c4d
  guidedmodules task show task-1a2b3c4d
  guidedmodules task next task-1a2b3c4d
  guidedmodules task run task-1a2b3c4d
  guidedmodules task list --module app
  guidedmodules task history task-1a2b3c4d org_name`,
}

var taskStartCmd = &cobra.Command{
	Use:   "start <module>",
	Short: "Start a task, or resume your latest one for the module",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskStart,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show every question of a task with its status",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskNextCmd = &cobra.Command{
	Use:   "next <task-id>",
	Short: "Show the next question to answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskNext,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks you can read",
	RunE:  runTaskList,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Soft-delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTaskSetDeleted(cmd, args[0], true)
	},
}

var taskUndeleteCmd = &cobra.Command{
	Use:   "undelete <task-id>",
	Short: "Restore a deleted task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTaskSetDeleted(cmd, args[0], false)
	},
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history <task-id> <question>",
	Short: "Show every recorded answer to a question",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskHistory,
}

var taskEventsCmd = &cobra.Command{
	Use:   "events <task-id>",
	Short: "Show the interaction log of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEvents,
}

var taskRunCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Answer a task's questions interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRun,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskStartCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskNextCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskUndeleteCmd)
	taskCmd.AddCommand(taskHistoryCmd)
	taskCmd.AddCommand(taskEventsCmd)
	taskCmd.AddCommand(taskRunCmd)

	taskStartCmd.Flags().String("project", "", "project ID (required)")
	_ = taskStartCmd.MarkFlagRequired("project")
	taskListCmd.Flags().String("module", "", "only tasks of this module")
	taskListCmd.Flags().String("project", "", "list tasks of this project first")
}

func runTaskStart(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	projectID, _ := cmd.Flags().GetString("project")
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		projectID, err := a.projectID(ctx, projectID)
		if err != nil {
			return err
		}
		t, created, err := a.engine.StartTask(ctx, actor, projectID, args[0])
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, map[string]any{"task": t, "created": created})
		}
		if created {
			cmd.Printf("✓ Started %s (%s)\n", t.Title, t.ID)
		} else {
			cmd.Printf("Resuming %s (%s)\n", t.Title, t.ID)
		}
		return nil
	})
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		taskID, err := a.taskID(ctx, args[0])
		if err != nil {
			return err
		}
		t, err := a.engine.Task(ctx, actor, taskID, true)
		if err != nil {
			return err
		}
		res, err := a.engine.ComputeAnswers(ctx, actor, t.ID)
		if err != nil {
			return err
		}
		if isJSON() {
			statuses := make([]map[string]any, 0, len(res.Statuses))
			for _, st := range res.Statuses {
				statuses = append(statuses, map[string]any{
					"key":     st.Key(),
					"type":    st.Question.Type,
					"status":  st.Status,
					"value":   st.Value,
					"skipped": st.Skipped,
				})
			}
			return printJSON(cmd, map[string]any{
				"task":      t,
				"module":    res.Module.Ref(),
				"complete":  res.Complete,
				"questions": statuses,
			})
		}
		if intro, err := render.RenderIntroduction(res); err == nil && intro != "" {
			cmd.Println(ui.WrapText(intro, ui.TerminalWidth(100)))
			cmd.Println()
		}
		cmd.Print(ui.RenderResolution(t, res, ui.TerminalWidth(100)))
		return nil
	})
}

func runTaskNext(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		taskID, err := a.taskID(ctx, args[0])
		if err != nil {
			return err
		}
		res, err := a.engine.ComputeAnswers(ctx, actor, taskID)
		if err != nil {
			return err
		}
		next := res.Next()
		if next == nil {
			if isJSON() {
				return printJSON(cmd, map[string]any{"complete": res.Complete, "pending": res.Pending()})
			}
			if res.Complete {
				cmd.Println(ui.RenderSuccessPanel("Task complete",
					fmt.Sprintf("Render its documents with 'guidedmodules render %s'.", taskID)))
			} else {
				cmd.Println("Nothing can be answered right now.")
			}
			return nil
		}

		t, err := a.engine.ShowQuestion(ctx, actor, taskID, next.Key())
		if err != nil {
			return err
		}
		step := stepFor(t, res, next.Question)
		if isJSON() {
			return printJSON(cmd, step)
		}
		cmd.Println(ui.NewPanel(step.Prompt, fmt.Sprintf("%s · %s · %s", step.Key, step.Type, step.Progress)).Render())
		if len(step.Choices) > 0 {
			cmd.Printf("Choices: %v\n", step.Choices)
		}
		cmd.Printf("\nguidedmodules answer save %s %s <value>\n", t.ID, step.Key)
		return nil
	})
}

func runTaskList(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	moduleKey, _ := cmd.Flags().GetString("module")
	projectID, _ := cmd.Flags().GetString("project")
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		if projectID != "" {
			if projectID, err = a.projectID(ctx, projectID); err != nil {
				return err
			}
		}
		tasks, err := a.engine.ReadableTasks(ctx, actor, taskgraph.ReadableFilter{ModuleKey: moduleKey, ProjectID: projectID})
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, tasks)
		}
		if len(tasks) == 0 {
			cmd.Println("No tasks found.")
			return nil
		}
		table := &ui.Table{Headers: []string{"ID", "TITLE", "MODULE", "PROJECT", "UPDATED"}, MaxWidth: 40}
		for _, t := range tasks {
			table.Rows = append(table.Rows, []string{
				t.ID, t.Title, fmt.Sprintf("%s@%d", t.ModuleKey, t.ModuleVersion), t.ProjectID,
				t.UpdatedAt.Format("2006-01-02 15:04"),
			})
		}
		cmd.Print(table.Render())
		return nil
	})
}

func runTaskSetDeleted(cmd *cobra.Command, arg string, deleted bool) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		taskID, err := a.taskID(ctx, arg)
		if err != nil {
			return err
		}
		var t *models.Task
		if deleted {
			t, err = a.engine.DeleteTask(ctx, actor, taskID)
		} else {
			t, err = a.engine.UndeleteTask(ctx, actor, taskID)
		}
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, t)
		}
		if deleted {
			cmd.Printf("✓ Deleted %s\n", t.ID)
		} else {
			cmd.Printf("✓ Restored %s\n", t.ID)
		}
		return nil
	})
}

func runTaskHistory(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		taskID, err := a.taskID(ctx, args[0])
		if err != nil {
			return err
		}
		records, err := a.engine.History(ctx, actor, taskID, args[1])
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, records)
		}
		if len(records) == 0 {
			cmd.Printf("%s has never been answered.\n", args[1])
			return nil
		}
		table := &ui.Table{Headers: []string{"#", "WHEN", "BY", "ANSWER"}, MaxWidth: 60}
		for _, r := range records {
			table.Rows = append(table.Rows, []string{
				fmt.Sprint(r.Seq), r.CreatedAt.Format("2006-01-02 15:04:05"), r.ActorID, describeRecord(r),
			})
		}
		cmd.Print(table.Render())
		return nil
	})
}

func describeRecord(r *models.AnswerRecord) string {
	switch {
	case r.Cleared:
		return "(cleared)"
	case r.Skipped:
		return "(skipped)"
	case r.AnsweredByFile != nil:
		return r.AnsweredByFile.Name
	case r.AnsweredByTasks != nil:
		return ui.FormatValue(toAny(r.AnsweredByTasks))
	}
	return ui.FormatValue(r.Value)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func runTaskEvents(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		taskID, err := a.taskID(ctx, args[0])
		if err != nil {
			return err
		}
		events, err := a.engine.Events(ctx, actor, taskID)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, events)
		}
		table := &ui.Table{Headers: []string{"WHEN", "EVENT", "QUESTION", "BY"}}
		for _, e := range events {
			table.Rows = append(table.Rows, []string{e.CreatedAt.Format("2006-01-02 15:04:05"), e.Type, e.QuestionKey, e.ActorID})
		}
		cmd.Print(table.Render())
		return nil
	})
}

func runTaskRun(cmd *cobra.Command, args []string) error {
	if !ui.IsInteractive() {
		return errors.New("task run needs a terminal; use 'task next' and 'answer save' instead")
	}
	actor, err := currentActor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		taskID, err := a.taskID(ctx, args[0])
		if err != nil {
			return err
		}
		first, err := nextStep(ctx, a, actor, taskID)
		if err != nil {
			return err
		}
		submit := func(ctx context.Context, in ui.Input) (*ui.Step, error) {
			logger.SetFocus(taskID, in.Key)
			q, err := lookupQuestion(ctx, a, actor, taskID, in.Key)
			if err != nil {
				return nil, err
			}
			typed := runnerInput(q, in.Value)
			if !in.Skip {
				if typed.Tasks, err = a.taskIDs(ctx, typed.Tasks); err != nil {
					return nil, err
				}
			}
			p, err := saveProposal(taskID, q, typed)
			if in.Skip {
				p.Method, err = answer.MethodSkip, nil
			}
			if err != nil {
				return nil, err
			}
			if _, err := a.engine.ApplyAnswer(ctx, actor, p); err != nil {
				return nil, err
			}
			return nextStep(ctx, a, actor, taskID)
		}
		n, err := ui.RunTask(ctx, first, submit)
		if err != nil {
			return err
		}
		cmd.Printf("%d answer(s) saved.\n", n)
		return nil
	})
}

// nextStep records the next answerable question as shown and describes it,
// or returns nil when there is none.
func nextStep(ctx context.Context, a *app, actor models.Actor, taskID string) (*ui.Step, error) {
	res, err := a.engine.ComputeAnswers(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	next := res.Next()
	if next == nil {
		return nil, nil
	}
	t, err := a.engine.ShowQuestion(ctx, actor, taskID, next.Key())
	if err != nil {
		return nil, err
	}
	return stepFor(t, res, next.Question), nil
}
