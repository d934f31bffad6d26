// Package ui renders pipeline state in the terminal.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/psychon7/Triage-AI/internal/pipeline"
)

var (
	// Colors
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange/Yellow
	ColorText      = lipgloss.Color("252") // White/Gray
	ColorCyan      = lipgloss.Color("87")  // Cyan for running work

	// Base Styles
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)
	StyleRunning = lipgloss.NewStyle().Foreground(ColorCyan)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleSectionTitle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				Underline(true)
)

// Icon returns a styled icon string
func Icon(icon string, style lipgloss.Style) string {
	return style.Render(icon)
}

// StatusIcon returns the icon and style for a stage status.
func StatusIcon(s pipeline.StageStatus) (string, lipgloss.Style) {
	switch s {
	case pipeline.StatusInProgress:
		return "●", StyleRunning
	case pipeline.StatusAwaitingApproval:
		return "◆", StyleWarning
	case pipeline.StatusApproved:
		return "✓", StyleSuccess
	case pipeline.StatusNeedsRevision:
		return "↻", StyleWarning
	case pipeline.StatusError:
		return "✗", StyleError
	default:
		return "○", StyleSubtle
	}
}

// PhaseStyle returns the style for a task-level phase.
func PhaseStyle(phase string) lipgloss.Style {
	switch phase {
	case "complete":
		return StyleSuccess
	case "failed":
		return StyleError
	case "paused":
		return StyleWarning
	default:
		return StyleRunning
	}
}
