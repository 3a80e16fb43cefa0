package ux

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles contains the lipgloss styles used for text output.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Border  lipgloss.Style

	plain bool
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("35")), // Green
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")), // Orange
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("35")).
			Padding(0, 1),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() Styles {
	p := lipgloss.NewStyle()
	return Styles{
		Title:   p,
		Label:   p,
		Value:   p,
		Success: p,
		Warning: p,
		Error:   p,
		Muted:   p,
		Border:  p,
		plain:   true,
	}
}

// Plain reports whether s renders without color.
func (s Styles) Plain() bool { return s.plain }

// Hex returns a style with the given foreground color, or an unstyled one
// for plain output and empty colors.
func (s Styles) Hex(color string) lipgloss.Style {
	if s.plain || color == "" {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// Status styles a health or session status word.
func (s Styles) Status(status string) string {
	switch strings.ToLower(status) {
	case "healthy", "ok", "authenticated", "resolved":
		return s.Success.Render(status)
	case "degraded", "anonymous", "investigating", "unknown":
		return s.Warning.Render(status)
	case "unhealthy", "error", "active":
		return s.Error.Render(status)
	default:
		return s.Value.Render(status)
	}
}

// Field renders "label: value" with the label padded to width.
func (s Styles) Field(label, value string, width int) string {
	pad := width - lipgloss.Width(label)
	if pad < 0 {
		pad = 0
	}
	return s.Label.Render(label+":") + strings.Repeat(" ", pad+1) + s.Value.Render(value)
}
