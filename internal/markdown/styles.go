package markdown

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1e3c72"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#603fc7"))

	// TitleStyle renders the application banner
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#603fc7"))
	// SubtleStyle renders hints and status lines
	SubtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	// ErrorStyle renders user-facing errors
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d7263d"))
)

// RoleLabel renders the speaker label shown before a message
func RoleLabel(role string) string {
	if role == "assistant" {
		return assistantLabelStyle.Render("DocuMiner")
	}
	return userLabelStyle.Render("You")
}
