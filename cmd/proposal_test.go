package cmd

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/guidedmodules/internal/answer"
	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/resolver"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

const formModule = `
key: form
version: 1
title: Form
questions:
  - {key: name, type: text, title: Name, prompt: "What is your name?", required: true}
  - key: color
    type: choice
    title: Color
    prompt: "Hi {{.name}}, pick a color"
    choices: [{key: red, text: Red}, {key: blue, text: Blue}]
  - key: tags
    type: multiple-choice
    title: Tags
    choices: [{key: a}, {key: b}, {key: c}]
  - {key: ok, type: yesno, title: OK}
  - {key: logo, type: file, title: Logo}
  - {key: helper, type: module, title: Helper, module: form}
  - {key: stamp, type: external-function, title: Stamp, function: today}
`

func parseForm(t *testing.T) *module.Module {
	t.Helper()
	m, err := module.Parse([]byte(formModule))
	require.NoError(t, err)
	require.NoError(t, m.Prepare(context.Background()))
	return m
}

func question(t *testing.T, m *module.Module, key string) *module.Question {
	t.Helper()
	q, ok := m.Question(key)
	require.True(t, ok, key)
	return q
}

func TestSaveProposal(t *testing.T) {
	m := parseForm(t)

	p, err := saveProposal("task-00000001", question(t, m, "name"), answerInput{Values: []string{"Ada", "Lovelace"}})
	require.NoError(t, err)
	assert.Equal(t, answer.MethodSave, p.Method)
	assert.Equal(t, "Ada Lovelace", p.Value)

	p, err = saveProposal("task-00000001", question(t, m, "tags"), answerInput{Values: []string{"a, c", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, p.Value)

	p, err = saveProposal("task-00000001", question(t, m, "helper"), answerInput{NewTask: true})
	require.NoError(t, err)
	assert.True(t, p.NewTask)

	p, err = saveProposal("task-00000001", question(t, m, "helper"), answerInput{Tasks: []string{}})
	require.NoError(t, err)
	assert.Empty(t, p.Tasks)
	assert.False(t, p.NewTask)

	p, err = saveProposal("task-00000001", question(t, m, "stamp"), answerInput{})
	require.NoError(t, err)
	assert.Nil(t, p.Value)
}

func TestSaveProposalErrors(t *testing.T) {
	m := parseForm(t)

	_, err := saveProposal("task-00000001", question(t, m, "name"), answerInput{})
	assert.True(t, types.KindOf(err) == types.KindValidation)

	_, err = saveProposal("task-00000001", question(t, m, "helper"), answerInput{})
	assert.True(t, types.KindOf(err) == types.KindValidation)

	_, err = saveProposal("task-00000001", question(t, m, "logo"), answerInput{})
	assert.True(t, types.KindOf(err) == types.KindValidation)
}

func TestSaveProposalFile(t *testing.T) {
	saved := uploadFs
	uploadFs = afero.NewMemMapFs()
	t.Cleanup(func() { uploadFs = saved })

	require.NoError(t, afero.WriteFile(uploadFs, "/tmp/logo.png", []byte("\x89PNG\r\n\x1a\n0000"), 0o644))
	require.NoError(t, afero.WriteFile(uploadFs, "/tmp/blob", []byte("plain words"), 0o644))
	m := parseForm(t)

	p, err := saveProposal("task-00000001", question(t, m, "logo"), answerInput{File: "/tmp/logo.png"})
	require.NoError(t, err)
	require.NotNil(t, p.File)
	assert.Equal(t, "logo.png", p.File.Name)
	assert.Equal(t, "image/png", p.File.ContentType)

	upload, err := readUpload("/tmp/blob")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", upload.ContentType)

	_, err = readUpload("/tmp/missing.png")
	assert.True(t, types.KindOf(err) == types.KindValidation)
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"task-1", "task-2"}, splitIDs(" task-1, ,task-2 "))
	assert.Equal(t, []string{}, splitIDs(""))
}

func TestRunnerInput(t *testing.T) {
	m := parseForm(t)

	assert.Equal(t, answerInput{NewTask: true}, runnerInput(question(t, m, "helper"), "new"))
	assert.Equal(t, answerInput{NewTask: true}, runnerInput(question(t, m, "helper"), ""))
	assert.Equal(t, answerInput{Tasks: []string{"task-1", "task-2"}}, runnerInput(question(t, m, "helper"), "task-1,task-2"))
	assert.Equal(t, answerInput{File: "a.png"}, runnerInput(question(t, m, "logo"), " a.png "))
	assert.Equal(t, answerInput{Values: []string{"Ada"}}, runnerInput(question(t, m, "name"), "Ada"))
	assert.Equal(t, answerInput{}, runnerInput(question(t, m, "name"), "  "))
}

func TestStepFor(t *testing.T) {
	m := parseForm(t)
	task := &models.Task{ID: "task-00000001", Title: "My form"}
	answers := map[string]*models.AnswerRecord{
		"name": {TaskID: task.ID, QuestionKey: "name", Value: "Ada"},
	}
	res, err := resolver.Resolve(context.Background(), m, answers, resolver.Options{})
	require.NoError(t, err)

	step := stepFor(task, res, question(t, m, "color"))
	assert.Equal(t, "My form", step.TaskTitle)
	assert.Equal(t, "color", step.Key)
	assert.Equal(t, "choice", step.Type)
	assert.Equal(t, "Hi Ada, pick a color", step.Prompt)
	assert.Equal(t, []string{"red", "blue"}, step.Choices)
	assert.False(t, step.Required)
	assert.Equal(t, "1/7", step.Progress)

	step = stepFor(task, res, question(t, m, "ok"))
	assert.Equal(t, []string{"yes", "no"}, step.Choices)
	assert.Equal(t, "OK", step.Prompt)
}
