package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the adaptive colors used by every screen. Styles are built
// from Renderer so tests can render without a terminal.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor

	Positive lipgloss.AdaptiveColor
	Negative lipgloss.AdaptiveColor
	Selected lipgloss.AdaptiveColor
	Warning  lipgloss.AdaptiveColor

	Base lipgloss.Style
}

// DefaultTheme returns the standard palette bound to r.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#5a3fc0", Dark: "#bd93f9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#0b7a75", Dark: "#8be9fd"},
		Text:      lipgloss.AdaptiveColor{Light: "#000000", Dark: "#f8f8f2"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#4b5563", Dark: "#bfbfbf"},
		Muted:     lipgloss.AdaptiveColor{Light: "#9ca3af", Dark: "#6272a4"},
		Border:    lipgloss.AdaptiveColor{Light: "#d1d5db", Dark: "#44475a"},
		Highlight: lipgloss.AdaptiveColor{Light: "#e5e7eb", Dark: "#343746"},

		Positive: lipgloss.AdaptiveColor{Light: "#2563eb", Dark: "#6ea8fe"},
		Negative: lipgloss.AdaptiveColor{Light: "#dc2626", Dark: "#ff5555"},
		Selected: lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#f1fa8c"},
		Warning:  lipgloss.AdaptiveColor{Light: "#c2410c", Dark: "#ffb86c"},
	}
	t.Base = r.NewStyle().Foreground(t.Text)
	return t
}
