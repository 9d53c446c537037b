package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	ColorPrimary   = lipgloss.Color("62")  // Indigo
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Amber
	ColorText      = lipgloss.Color("252")
	ColorInfo      = lipgloss.Color("75") // Blue

	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleInputBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary).
			Padding(0, 1)

	// Question status markers.
	StyleAnswered    = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleImputed     = lipgloss.NewStyle().Foreground(ColorInfo)
	StyleCanAnswer   = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	StyleUnreachable = lipgloss.NewStyle().Foreground(ColorSecondary)
)

// Icon returns a styled icon string.
func Icon(icon string, style lipgloss.Style) string {
	return style.Render(icon)
}

// DisableColor renders every style as plain text.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
