// styles.go defines the lipgloss styles used for human-readable output.
// JSON output never passes through these; machine output stays plain.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// Catppuccin Mocha accents, true-color hex values.
// https://catppuccin.com/palette
const (
	colorGreen   lipgloss.Color = "#a6e3a1"
	colorTeal    lipgloss.Color = "#94e2d5"
	colorRed     lipgloss.Color = "#f38ba8"
	colorYellow  lipgloss.Color = "#f9e2af"
	colorOverlay lipgloss.Color = "#6c7086"
)

// statusStyles maps each converge step outcome to its badge style.
// present is calm, applied is the "work happened" accent, failed is loud,
// pending and missing are muted since they describe absence, not action.
var statusStyles = map[model.StepStatus]lipgloss.Style{
	model.StatusPresent: lipgloss.NewStyle().Foreground(colorGreen),
	model.StatusApplied: lipgloss.NewStyle().Foreground(colorTeal).Bold(true),
	model.StatusFailed:  lipgloss.NewStyle().Foreground(colorRed).Bold(true),
	model.StatusPending: lipgloss.NewStyle().Foreground(colorOverlay),
	model.StatusMissing: lipgloss.NewStyle().Foreground(colorYellow),
}

// headingStyle renders section headings in text output.
var headingStyle = lipgloss.NewStyle().Bold(true)

// renderStatus returns the styled badge text for a step status.
// Unknown statuses render unstyled rather than panicking.
func renderStatus(s model.StepStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		return s.String()
	}
	return style.Render(s.String())
}

// renderHeading returns styled heading text for human output sections.
func renderHeading(s string) string {
	return headingStyle.Render(s)
}
