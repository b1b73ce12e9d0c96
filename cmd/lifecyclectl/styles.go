package main

import "github.com/charmbracelet/lipgloss"

type styles struct {
	label    lipgloss.Style
	state    lipgloss.Style
	terminal lipgloss.Style
	event    lipgloss.Style
	muted    lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	warning  lipgloss.Style
}

// newStyles binds styles to r so color is dropped when the output is not a terminal.
func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		label:    r.NewStyle().Bold(true).Width(10),
		state:    r.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true),
		terminal: r.NewStyle().Foreground(lipgloss.Color("#2E7D32")).Bold(true),
		event:    r.NewStyle().Foreground(lipgloss.Color("#01579B")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#808080")),
		success:  r.NewStyle().Foreground(lipgloss.Color("#2E7D32")).Bold(true),
		failure:  r.NewStyle().Foreground(lipgloss.Color("#C62828")).Bold(true),
		warning:  r.NewStyle().Foreground(lipgloss.Color("#F57F17")),
	}
}
