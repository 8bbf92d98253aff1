package main

import "github.com/charmbracelet/lipgloss"

// Semantic colors
var (
	Destructive = lipgloss.Color("#e53935") // Red
	Success     = lipgloss.Color("#8BC34A") // Lime Green
	Warning     = lipgloss.Color("#FFC107") // Yellow
	Muted       = lipgloss.Color("#8a94a6")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(Success)
	warnStyle    = lipgloss.NewStyle().Foreground(Warning)
	errorStyle   = lipgloss.NewStyle().Foreground(Destructive).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(Muted)
)
