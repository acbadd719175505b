package cli

import "github.com/charmbracelet/lipgloss"

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A89")
)

// Styles used by command output. lipgloss drops colors when the output is
// not a terminal.
var (
	StyleBold    = lipgloss.NewStyle().Bold(true)
	StyleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	StyleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	StyleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	StyleError   = lipgloss.NewStyle().Foreground(colorError)
)

// Status icons.
const (
	IconSuccess = "✓"
	IconWarning = "⚠"
	IconError   = "✗"
	IconPending = "○"
)

// StatusLabel renders an upload or poll state with an icon and color.
func StatusLabel(state string) string {
	switch state {
	case "success", "settled", "uploaded":
		return StyleSuccess.Render(IconSuccess + " " + state)
	case "timeout", "canceled":
		return StyleWarning.Render(IconWarning + " " + state)
	case "error", "failed":
		return StyleError.Render(IconError + " " + state)
	default:
		return StyleMuted.Render(IconPending + " " + state)
	}
}
