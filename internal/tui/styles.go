package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by the views.
type Styles struct {
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Active   lipgloss.Style
	Inactive lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Label    lipgloss.Style
	Box      lipgloss.Style
	Current  lipgloss.Style
}

// DefaultStyles targets dark terminals.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Active:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Inactive: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Label:    lipgloss.NewStyle().Width(20).Foreground(lipgloss.Color("245")),
		Box:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		Current:  lipgloss.NewStyle().Bold(true).Underline(true),
	}
}
