package ui

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/resolver"
	"github.com/josephgoksu/guidedmodules/models"
)

const statusModule = `
key: profile
version: 1
title: Profile
questions:
  - {key: size, type: integer, title: Headcount}
  - {key: sector, type: text, title: Sector}
  - {key: notes, type: text, title: Notes, ask_if: 'input.size > 10', default: none}
  - {key: email, type: email, title: Email, ask_first: [sector]}
`

func TestRenderResolution(t *testing.T) {
	m, err := module.Parse([]byte(statusModule))
	require.NoError(t, err)
	res, err := resolver.Resolve(context.Background(), m, map[string]*models.AnswerRecord{
		"size":   {QuestionKey: "size", Value: float64(3)},
		"sector": {QuestionKey: "sector", Skipped: true},
	}, resolver.Options{})
	require.NoError(t, err)

	task := &models.Task{ID: "task-00000001", Title: "Acme profile", State: models.TaskActive}
	out := RenderResolution(task, res, 80)

	assert.Contains(t, out, "Acme profile")
	assert.Contains(t, out, "profile@1")
	assert.Contains(t, out, "(skipped)")
	assert.Contains(t, out, "none (ask_if)")
	assert.Contains(t, out, "3 of 4 questions settled")
	assert.Equal(t, "3/4", Progress(res))
	assert.False(t, strings.Contains(out, "[deleted]"))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "yes"},
		{float64(42), "42"},
		{[]any{"a", "b"}, "a, b"},
		{map[string]any{"name": "logo.png", "sha256": "ab"}, "logo.png"},
		{map[string]any{"size": float64(3)}, `{"size":3}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}
