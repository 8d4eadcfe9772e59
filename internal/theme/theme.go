// Package theme holds the lipgloss styles used by command output.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines the styles for CLI listings.
type Theme struct {
	Name    string
	Accent  lipgloss.Style
	Dim     lipgloss.Style
	Text    lipgloss.Style
	Title   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
}

// registry maps theme names to constructors.
var registry = map[string]func() Theme{
	"dark":    Dark,
	"light":   Light,
	"nocolor": NoColor,
}

// Get returns a theme by name. "auto" picks dark or light from the terminal
// background; unknown names fall back to dark. noColor overrides the name.
func Get(name string, noColor bool) Theme {
	if noColor {
		return NoColor()
	}
	if name == "auto" {
		if lipgloss.HasDarkBackground() {
			return Dark()
		}
		return Light()
	}
	if fn, ok := registry[name]; ok {
		return fn()
	}
	return Dark()
}

// Dark suits dark terminal backgrounds.
func Dark() Theme {
	return Theme{
		Name:    "dark",
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6FF7")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6F93")),
		Text:    lipgloss.NewStyle().Foreground(lipgloss.Color("#E6E6FA")),
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#8EEBFF")).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F56")).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#5CFF5C")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD166")).Bold(true),
	}
}

// Light suits light terminal backgrounds.
func Light() Theme {
	return Theme{
		Name:    "light",
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("#B4009E")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A")),
		Text:    lipgloss.NewStyle().Foreground(lipgloss.Color("#1F1F1F")),
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#005F87")).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#C0392B")).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#1E8449")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#B9770E")).Bold(true),
	}
}

// NoColor uses only bold and reverse, for NO_COLOR environments.
func NoColor() Theme {
	reset := lipgloss.NewStyle()
	return Theme{
		Name:    "nocolor",
		Accent:  reset.Bold(true),
		Dim:     reset,
		Text:    reset,
		Title:   reset.Bold(true),
		Error:   reset.Bold(true),
		Success: reset.Bold(true),
		Warning: reset.Reverse(true),
	}
}
