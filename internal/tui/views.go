package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nauru-yvy/nauru/internal/resources"
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.spinner.View() + " Loading alerts..."
	}
	if m.currentView == ViewHelp {
		return m.renderHelp()
	}
	return m.renderFeed()
}

func (m Model) renderFeed() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Nauru alert feed"))
	if m.opts.User != "" {
		b.WriteString(m.styles.Muted.Render("  " + m.opts.User))
	}
	b.WriteString("\n\n")

	list := m.visible()
	if len(list) == 0 {
		b.WriteString(m.styles.Muted.Render("No alerts."))
		b.WriteString("\n")
	}
	for i, a := range list {
		row := m.renderRow(a)
		if i == m.selected {
			row = m.styles.Selected.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}

	if len(list) > 0 && m.selected < len(list) {
		b.WriteString("\n")
		b.WriteString(m.renderDetail(list[m.selected]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString(m.styles.Help.Render("↑/↓ select • f filter • r refresh • ? help • q quit"))
	return b.String()
}

func (m Model) renderRow(a resources.Alert) string {
	dot := lipgloss.NewStyle().Foreground(lipgloss.Color(a.Color)).Render("●")
	title := strings.TrimSpace(a.Icon + " " + a.Type)
	return fmt.Sprintf("%s %-28s %-8s %s", dot, title, m.severity(a.Severity), a.Location)
}

func (m Model) severity(s resources.Severity) string {
	switch s {
	case resources.SeverityHigh:
		return m.styles.Error.Render(string(s))
	case resources.SeverityMedium:
		return m.styles.Warning.Render(string(s))
	default:
		return m.styles.Success.Render(string(s))
	}
}

func (m Model) renderDetail(a resources.Alert) string {
	lines := []string{m.styles.Title.Render(a.Type)}
	if a.Description != "" {
		lines = append(lines, a.Description)
	}
	meta := []string{"status " + a.Status}
	if a.CreatedAt != "" {
		meta = append(meta, a.CreatedAt)
	}
	if a.ID != "" {
		meta = append(meta, "#"+string(a.ID))
	}
	lines = append(lines, m.styles.Muted.Render(strings.Join(meta, " · ")))

	box := m.styles.Border
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	return box.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar() string {
	parts := []string{fmt.Sprintf("%d alerts", len(m.alerts))}
	if sev := filterCycle[m.filter]; sev != "" {
		parts = append(parts, "filter "+string(sev))
	}
	if !m.lastPoll.IsZero() {
		parts = append(parts, "updated "+m.lastPoll.Format(time.TimeOnly))
	}
	if m.fetching {
		parts = append(parts, m.spinner.View())
	}
	bar := m.styles.StatusBar.Render(strings.Join(parts, " · "))
	if m.lastErr != "" {
		bar += "\n" + m.styles.Error.Render("poll failed: ") + m.lastErr
	}
	return bar
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Keys"))
	b.WriteString("\n\n")
	for _, k := range []struct{ keys, desc string }{
		{m.keys.Up.Help().Key, m.keys.Up.Help().Desc},
		{m.keys.Down.Help().Key, m.keys.Down.Help().Desc},
		{m.keys.Filter.Help().Key, m.keys.Filter.Help().Desc},
		{m.keys.Refresh.Help().Key, m.keys.Refresh.Help().Desc},
		{m.keys.Help.Help().Key, m.keys.Help.Help().Desc},
		{m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc},
	} {
		fmt.Fprintf(&b, "  %-8s %s\n", k.keys, m.styles.Muted.Render(k.desc))
	}
	b.WriteString(m.styles.Help.Render(fmt.Sprintf("Polling every %s.", m.opts.Interval)))
	return b.String()
}
