/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/guidedmodules/internal/answer"
	"github.com/josephgoksu/guidedmodules/internal/engine"
	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/ui"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// answerCmd represents the answer parent command
var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Save, skip or clear an answer",
	Long: `Change the answer to one question of a task. Every change is appended to
the question's history; nothing is overwritten.

Examples:
  guidedmodules answer save task-1a2b3c4d org_name "Acme Inc"
  guidedmodules answer save task-1a2b3c4d platforms web,ios
  guidedmodules answer save task-1a2b3c4d apps --new
  guidedmodules answer save task-1a2b3c4d apps --tasks task-9f8e7d6c,task-0a1b2c3d
  guidedmodules answer save task-1a2b3c4d logo --file logo.png
  guidedmodules answer skip task-1a2b3c4d notes
  guidedmodules answer clear task-1a2b3c4d notes`,
}

var answerSaveCmd = &cobra.Command{
	Use:   "save <task-id> <question> [values...]",
	Short: "Save an answer",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAnswerSave,
}

var answerSkipCmd = &cobra.Command{
	Use:   "skip <task-id> <question>",
	Short: "Skip an optional question",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnswerMethod(cmd, args, answer.MethodSkip)
	},
}

var answerClearCmd = &cobra.Command{
	Use:   "clear <task-id> <question>",
	Short: "Clear an answer so the question is asked again",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnswerMethod(cmd, args, answer.MethodClear)
	},
}

func init() {
	rootCmd.AddCommand(answerCmd)
	answerCmd.AddCommand(answerSaveCmd)
	answerCmd.AddCommand(answerSkipCmd)
	answerCmd.AddCommand(answerClearCmd)

	answerSaveCmd.Flags().String("tasks", "", "comma separated task IDs answering a module question")
	answerSaveCmd.Flags().Bool("new", false, "create a new task to answer a module question")
	answerSaveCmd.Flags().String("file", "", "file to upload as the answer")
}

func runAnswerSave(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	in := answerInput{Values: args[2:]}
	in.NewTask, _ = cmd.Flags().GetBool("new")
	in.File, _ = cmd.Flags().GetString("file")
	if cmd.Flags().Changed("tasks") {
		ids, _ := cmd.Flags().GetString("tasks")
		in.Tasks = splitIDs(ids)
	}

	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		taskID, err := a.taskID(ctx, args[0])
		if err != nil {
			return err
		}
		if in.Tasks, err = a.taskIDs(ctx, in.Tasks); err != nil {
			return err
		}
		q, err := lookupQuestion(ctx, a, actor, taskID, args[1])
		if err != nil {
			return err
		}
		p, err := saveProposal(taskID, q, in)
		if err != nil {
			return err
		}
		res, err := a.engine.ApplyAnswer(ctx, actor, p)
		if err != nil {
			return err
		}
		return printApplyResult(cmd, q.Key, res)
	})
}

func runAnswerMethod(cmd *cobra.Command, args []string, method answer.Method) error {
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
		res, err := a.engine.ApplyAnswer(ctx, actor, engine.Proposal{
			TaskID:      taskID,
			QuestionKey: args[1],
			Method:      method,
		})
		if err != nil {
			return err
		}
		return printApplyResult(cmd, args[1], res)
	})
}

// lookupQuestion finds a question of a task's module.
func lookupQuestion(ctx context.Context, a *app, actor models.Actor, taskID, key string) (*module.Question, error) {
	res, err := a.engine.ComputeAnswers(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	q, ok := res.Module.Question(key)
	if !ok {
		return nil, types.NewValidationError("module %s has no question %q", res.Module.Ref(), key)
	}
	return q, nil
}

func printApplyResult(cmd *cobra.Command, key string, res *engine.ApplyResult) error {
	if isJSON() {
		out := map[string]any{
			"task":     res.Task.ID,
			"event":    res.Outcome.Event,
			"changed":  res.Outcome.Changed,
			"answer":   res.Outcome.Current,
			"complete": res.Resolution != nil && res.Resolution.Complete,
		}
		if res.Child != nil {
			out["child"] = res.Child
		}
		return printJSON(cmd, out)
	}

	switch res.Outcome.Event {
	case answer.EventKeep:
		cmd.Printf("= %s unchanged\n", key)
	case answer.EventSkip:
		cmd.Printf("✓ %s skipped\n", key)
	case answer.EventClear:
		cmd.Printf("✓ %s cleared\n", key)
	case answer.EventChange:
		cmd.Printf("✓ %s changed\n", key)
	default:
		cmd.Printf("✓ %s saved\n", key)
	}
	if res.Child != nil {
		cmd.Printf("  Created %s (%s)\n", res.Child.ID, res.Child.Title)
	}
	if res.Resolution != nil {
		if res.Resolution.Complete {
			cmd.Println(ui.StyleSuccess.Render("  Task complete."))
		} else if next := res.Resolution.Next(); next != nil {
			cmd.Printf("  Next: %s (%s)\n", next.Key(), ui.Progress(res.Resolution))
		}
	}
	return nil
}
