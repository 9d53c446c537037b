package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// IsInteractive reports whether stdin and stdout are both terminals, so
// prompting and the full-screen runner are usable.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalWidth returns the width of stdout, or fallback when unknown.
func TerminalWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// Panel is a bordered box with an optional title.
type Panel struct {
	Title       string
	Content     string
	BorderColor lipgloss.Color
	Width       int
}

// NewPanel creates a panel with the default border.
func NewPanel(title, content string) *Panel {
	return &Panel{Title: title, Content: content, BorderColor: ColorSecondary}
}

// WithBorderColor sets the border color.
func (p *Panel) WithBorderColor(c lipgloss.Color) *Panel {
	p.BorderColor = c
	return p
}

// Render returns the panel as a string.
func (p *Panel) Render() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.BorderColor).
		Padding(0, 1)
	if p.Width > 0 {
		style = style.Width(p.Width)
	}
	content := p.Content
	if p.Title != "" {
		content = StyleTitle.Foreground(ColorPrimary).Render(p.Title) + "\n" + content
	}
	return style.Render(content)
}

// RenderErrorPanel renders a panel with a red border.
func RenderErrorPanel(title, content string) string {
	return NewPanel(title, content).WithBorderColor(ColorError).Render()
}

// RenderSuccessPanel renders a panel with a green border.
func RenderSuccessPanel(title, content string) string {
	return NewPanel(title, content).WithBorderColor(ColorSuccess).Render()
}

// Truncate shortens s to maxLen runes, ending with "...".
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// WrapText word-wraps each line of text to width columns.
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) <= width {
			continue
		}
		var out []string
		cur := ""
		for _, word := range strings.Fields(line) {
			switch {
			case cur == "":
				cur = word
			case lipgloss.Width(cur)+1+lipgloss.Width(word) <= width:
				cur += " " + word
			default:
				out = append(out, cur)
				cur = word
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
		lines[i] = strings.Join(out, "\n")
	}
	return strings.Join(lines, "\n")
}
