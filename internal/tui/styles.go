// Package tui provides terminal output components for GLEANER.
//
// All colors use AdaptiveColor for light/dark terminal support. Status
// displays keep triple redundancy: icon + color + text, so state is still
// readable when colors are disabled via NO_COLOR or TERM=dumb.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/mrz1836/gleaner/internal/constants"
)

//nolint:gochecknoglobals // Intentional package-level constants for styling API
var (
	// ColorPrimary is blue, used for active states and primary values.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for succeeded runs and merged workspaces.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for pending and attention-required states.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for failed runs and abandoned workspaces.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}
)

// colorDisabled reports whether color output should be suppressed.
func colorDisabled() bool {
	return os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb"
}

// OutputStyles holds styles for message output.
type OutputStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
}

// NewOutputStyles creates output styles, plain when colors are disabled.
func NewOutputStyles() *OutputStyles {
	if colorDisabled() {
		return &OutputStyles{}
	}
	return &OutputStyles{
		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Error:   lipgloss.NewStyle().Foreground(ColorError),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Info:    lipgloss.NewStyle().Foreground(ColorPrimary),
	}
}

// TableStyles holds styles for table rendering.
type TableStyles struct {
	Header lipgloss.Style
}

// NewTableStyles creates table styles, plain when colors are disabled.
func NewTableStyles() *TableStyles {
	if colorDisabled() {
		return &TableStyles{}
	}
	return &TableStyles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(ColorMuted),
	}
}

// RunStatusIcon returns the icon for a run status.
func RunStatusIcon(status constants.RunStatus) string {
	switch status {
	case constants.RunStatusSucceeded:
		return "✓"
	case constants.RunStatusFailed:
		return "✗"
	case constants.RunStatusRunning:
		return "●"
	case constants.RunStatusPending:
		return "○"
	default:
		return "?"
	}
}

// RenderRunStatus returns the status with its icon, colored when enabled.
func RenderRunStatus(status constants.RunStatus) string {
	text := RunStatusIcon(status) + " " + string(status)
	if colorDisabled() {
		return text
	}
	var color lipgloss.AdaptiveColor
	switch status {
	case constants.RunStatusSucceeded:
		color = ColorSuccess
	case constants.RunStatusFailed:
		color = ColorError
	case constants.RunStatusRunning:
		color = ColorPrimary
	default:
		color = ColorWarning
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

// RenderWorkspaceStatus returns the workspace status, colored when enabled.
func RenderWorkspaceStatus(status constants.WorkspaceStatus) string {
	if colorDisabled() {
		return string(status)
	}
	var color lipgloss.AdaptiveColor
	switch status {
	case constants.WorkspaceStatusMerged:
		color = ColorSuccess
	case constants.WorkspaceStatusAbandoned:
		color = ColorError
	default:
		color = ColorPrimary
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(status))
}
