package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestStyles_RenderWithColor(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI256)

	out := StyleCanAnswer.Render("size")
	assert.Contains(t, out, "size")
	assert.NotEqual(t, "size", out, "style should add ANSI codes when forced")
}

func TestIcon(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI256)

	out := Icon("✓", StyleAnswered)
	assert.Contains(t, out, "✓")
	assert.NotEqual(t, "✓", out)
}
