// Package tui renders a live alert dashboard with Bubble Tea.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nauru-yvy/nauru/internal/resources"
)

// ViewType is the screen being displayed.
type ViewType int

const (
	ViewFeed ViewType = iota
	ViewHelp
)

// Fetcher returns the current server alert feed.
type Fetcher func(ctx context.Context) ([]resources.Alert, error)

// Options configures the dashboard.
type Options struct {
	Fetch    Fetcher
	Interval time.Duration

	// Fatal reports whether a fetch error should end the dashboard, e.g.
	// an expired session.
	Fatal func(error) bool

	// User is shown in the header.
	User string
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Filter  key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var defaultKeys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle severity filter")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh now")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// severity filter cycle; "" shows everything
var filterCycle = []resources.Severity{"", resources.SeverityHigh, resources.SeverityMedium, resources.SeverityLow}

// Model is the dashboard state.
type Model struct {
	opts Options
	keys keyMap

	alerts   []resources.Alert
	seen     map[resources.ID]bool
	filter   int
	selected int

	polls    int
	fetching bool
	lastPoll time.Time
	lastErr  string
	err      error

	currentView ViewType
	width       int
	height      int
	ready       bool
	quitting    bool

	spinner spinner.Model
	styles  Styles
}

// Styles contains lipgloss styles for the dashboard.
type Styles struct {
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
	Selected  lipgloss.Style
	Border    lipgloss.Style
	Help      lipgloss.Style
	StatusBar lipgloss.Style
}

// DefaultStyles returns the default dashboard styles.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E7D32")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Warning:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		Success:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		Selected: lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("236")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2E7D32")).
			Padding(0, 1),
		Help:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	}
}

// NewModel creates a dashboard model.
func NewModel(opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		opts:        opts,
		keys:        defaultKeys,
		seen:        make(map[resources.ID]bool),
		currentView: ViewFeed,
		spinner:     s,
		styles:      DefaultStyles(),
	}
}

// Err is the error that ended the dashboard, if any.
func (m Model) Err() error { return m.err }

// Alerts returns the collected feed, newest first.
func (m Model) Alerts() []resources.Alert { return m.alerts }

// alertsMsg carries one poll result.
type alertsMsg struct {
	alerts []resources.Alert
	err    error
	at     time.Time
}

type tickMsg time.Time

func (m Model) fetch() tea.Cmd {
	fetch := m.opts.Fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.Interval)
		defer cancel()
		list, err := fetch(ctx)
		return alertsMsg{alerts: list, err: err, at: time.Now()}
	}
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the spinner and the first poll.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case alertsMsg:
		m.fetching = false
		m.polls++
		m.lastPoll = msg.at
		if msg.err != nil {
			if m.opts.Fatal != nil && m.opts.Fatal(msg.err) {
				m.err = msg.err
				m.quitting = true
				return m, tea.Quit
			}
			m.lastErr = msg.err.Error()
			return m, m.scheduleTick()
		}
		m.lastErr = ""
		m.merge(msg.alerts)
		return m, m.scheduleTick()

	case tickMsg:
		if m.fetching {
			return m, nil
		}
		m.fetching = true
		return m, m.fetch()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// merge puts unseen alerts at the top of the feed in server order.
func (m *Model) merge(list []resources.Alert) {
	var fresh []resources.Alert
	for _, a := range list {
		k := alertKey(a)
		if m.seen[k] {
			continue
		}
		m.seen[k] = true
		fresh = append(fresh, a)
	}
	if len(fresh) > 0 {
		m.alerts = append(fresh, m.alerts...)
		m.selected = 0
	}
}

func alertKey(a resources.Alert) resources.ID {
	if a.ID != "" {
		return a.ID
	}
	return resources.ID(a.Type + "|" + a.Location + "|" + a.CreatedAt)
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = ViewFeed
		} else {
			m.currentView = ViewHelp
		}

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.visible())-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Filter):
		m.filter = (m.filter + 1) % len(filterCycle)
		m.selected = 0

	case key.Matches(msg, m.keys.Refresh):
		if !m.fetching {
			m.fetching = true
			return m, m.fetch()
		}
	}
	return m, nil
}

// visible returns the alerts passing the severity filter.
func (m Model) visible() []resources.Alert {
	sev := filterCycle[m.filter]
	if sev == "" {
		return m.alerts
	}
	var out []resources.Alert
	for _, a := range m.alerts {
		if a.Severity == sev {
			out = append(out, a)
		}
	}
	return out
}
