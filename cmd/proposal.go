package cmd

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/josephgoksu/guidedmodules/internal/answer"
	"github.com/josephgoksu/guidedmodules/internal/engine"
	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/render"
	"github.com/josephgoksu/guidedmodules/internal/resolver"
	"github.com/josephgoksu/guidedmodules/internal/ui"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// uploadFs is where file answers are read from.
var uploadFs = afero.NewOsFs()

// answerInput is a save request as typed on the command line.
type answerInput struct {
	Values  []string
	Tasks   []string
	NewTask bool
	File    string
}

// saveProposal turns command-line input into a save proposal for q.
//
// Multiple-choice values may be separate arguments or comma separated.
// Reference questions take --tasks or --new, file questions take --file,
// external functions and interstitials take nothing.
func saveProposal(taskID string, q *module.Question, in answerInput) (engine.Proposal, error) {
	p := engine.Proposal{TaskID: taskID, QuestionKey: q.Key, Method: answer.MethodSave}

	switch {
	case q.IsReference():
		if !in.NewTask && in.Tasks == nil {
			return p, types.NewValidationError("question %s is answered with --tasks <ids> or --new", q.Key)
		}
		p.NewTask = in.NewTask
		p.Tasks = in.Tasks
		return p, nil

	case q.Type == module.TypeFile:
		if in.File == "" {
			return p, types.NewValidationError("question %s is answered with --file <path>", q.Key)
		}
		upload, err := readUpload(in.File)
		if err != nil {
			return p, err
		}
		p.File = upload
		return p, nil

	case q.Type == module.TypeExternalFunction, q.Type == module.TypeInterstitial:
		return p, nil

	case q.Type == module.TypeMultipleChoice:
		keys := []string{}
		for _, v := range in.Values {
			for _, k := range strings.Split(v, ",") {
				if k = strings.TrimSpace(k); k != "" {
					keys = append(keys, k)
				}
			}
		}
		p.Value = keys
		return p, nil
	}

	if len(in.Values) == 0 {
		return p, types.NewValidationError("no value given for %s; use 'answer skip' to skip it", q.Key)
	}
	p.Value = strings.Join(in.Values, " ")
	return p, nil
}

// readUpload reads a file answer and guesses its content type from the
// extension, then from the content.
func readUpload(path string) (*engine.FileUpload, error) {
	content, err := afero.ReadFile(uploadFs, path)
	if err != nil {
		return nil, types.NewValidationError("cannot read %s: %v", path, err)
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct = http.DetectContentType(content)
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return &engine.FileUpload{Name: filepath.Base(path), ContentType: ct, Content: content}, nil
}

// splitIDs parses a comma separated --tasks value.
func splitIDs(s string) []string {
	out := []string{}
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// stepFor describes a question for the interactive runner.
func stepFor(t *models.Task, res *resolver.Resolution, q *module.Question) *ui.Step {
	prompt, err := render.RenderPrompt(res, q)
	if err != nil {
		prompt = q.Title
	}
	step := &ui.Step{
		TaskTitle: t.Title,
		Key:       q.Key,
		Type:      string(q.Type),
		Prompt:    prompt,
		Required:  q.Required,
		Progress:  ui.Progress(res),
	}
	switch spec := q.Spec.(type) {
	case *module.ChoiceSpec:
		step.Choices = choiceKeys(spec.Choices)
	case *module.MultipleChoiceSpec:
		step.Choices = choiceKeys(spec.Choices)
	case *module.YesNoSpec:
		step.Choices = []string{"yes", "no"}
	}
	return step
}

func choiceKeys(choices []module.Choice) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = c.Key
	}
	return out
}

// runnerInput maps a line typed in the runner to save input. Reference
// questions accept "new" or task IDs, file questions a path.
func runnerInput(q *module.Question, line string) answerInput {
	line = strings.TrimSpace(line)
	switch {
	case q.IsReference():
		if line == "" || strings.EqualFold(line, "new") {
			return answerInput{NewTask: true}
		}
		return answerInput{Tasks: splitIDs(line)}
	case q.Type == module.TypeFile:
		return answerInput{File: line}
	case line == "":
		return answerInput{}
	}
	return answerInput{Values: []string{line}}
}
