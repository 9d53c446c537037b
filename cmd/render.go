/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/guidedmodules/internal/render"
	"github.com/josephgoksu/guidedmodules/types"
)

// renderCmd renders an output document of a task
var renderCmd = &cobra.Command{
	Use:   "render <task-id> [document]",
	Short: "Render an output document of a task",
	Long: `Render one of the output documents defined by a task's module. The document
may be omitted when the module defines exactly one.

A task with unanswered questions is rejected unless --allow-incomplete is
given, in which case pending answers render empty.

Examples:
  guidedmodules render task-1a2b3c4d
  guidedmodules render task-1a2b3c4d summary --format html -o summary.html`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringP("format", "f", "", "output format: markdown, html or text (default from config)")
	renderCmd.Flags().Bool("allow-incomplete", false, "render even if questions are unanswered")
	renderCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	formatName, _ := cmd.Flags().GetString("format")
	if formatName == "" {
		formatName = GetConfig().Render.DefaultFormat
	}
	format, err := render.ParseFormat(formatName)
	if err != nil {
		return err
	}
	allow, _ := cmd.Flags().GetBool("allow-incomplete")
	output, _ := cmd.Flags().GetString("output")

	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		taskID, err := a.taskID(ctx, args[0])
		if err != nil {
			return err
		}
		docID := ""
		if len(args) > 1 {
			docID = args[1]
		} else {
			res, err := a.engine.ComputeAnswers(ctx, actor, taskID)
			if err != nil {
				return err
			}
			docs := res.Module.Documents
			switch len(docs) {
			case 0:
				return types.NewNotFoundError("module %s defines no documents", res.Module.Ref())
			case 1:
				docID = docs[0].ID
			default:
				ids := make([]string, len(docs))
				for i, d := range docs {
					ids[i] = d.ID
				}
				return types.NewValidationError("module %s defines several documents; pick one of: %s",
					res.Module.Ref(), strings.Join(ids, ", "))
			}
		}

		doc, err := a.engine.RenderDocument(ctx, actor, taskID, docID, format, render.Options{AllowIncomplete: allow})
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd, doc)
		}
		if output != "" {
			if err := afero.WriteFile(uploadFs, output, []byte(doc.Body), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			cmd.Printf("✓ Wrote %s (%s)\n", output, doc.Format)
			return nil
		}
		cmd.Print(doc.Body)
		if !strings.HasSuffix(doc.Body, "\n") {
			cmd.Println()
		}
		return nil
	})
}
