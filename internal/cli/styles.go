package cli

import "github.com/charmbracelet/lipgloss"

// Shared terminal styles.
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#FF4672"}
	colorAmber  = lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FFA500"}
	colorSubtle = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}

	okStyle     = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(colorAmber)
	subtleStyle = lipgloss.NewStyle().Foreground(colorSubtle)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

func markActive(active bool) string {
	if active {
		return okStyle.Render("●")
	}
	return subtleStyle.Render("○")
}
