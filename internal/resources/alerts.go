package resources

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nauru-yvy/nauru/internal/metrics"
	"github.com/nauru-yvy/nauru/internal/storage"
)

// KeyAlerts is the store key holding the local alert feed.
const KeyAlerts = "alerts"

// SourceOccurrence marks alerts derived from a reported occurrence.
const SourceOccurrence = "occurrence"

type alertStyle struct {
	title string
	icon  string
	color string
}

var occurrenceAlerts = map[string]alertStyle{
	"deforestation":  {"Deforestation Detected", "🌳", "#FF4444"},
	"illegal_mining": {"Illegal Mining", "⛏️", "#FF8800"},
	"poaching":       {"Illegal Hunting", "🦌", "#FF6600"},
	"pollution":      {"Pollution Detected", "🏭", "#AA4444"},
	"fire":           {"Forest Fire", "🔥", "#FF2222"},
}

var defaultAlertStyle = alertStyle{"Environmental Occurrence", "⚠️", "#FFAA00"}

var severityColors = map[Severity]string{
	SeverityLow:    "#44AA44",
	SeverityMedium: "#FFAA00",
	SeverityHigh:   "#FF4444",
}

// AlertBookOption configures an AlertBook.
type AlertBookOption func(*AlertBook)

// WithAlertStore persists the feed under KeyAlerts in store.
func WithAlertStore(store storage.Store) AlertBookOption {
	return func(b *AlertBook) { b.store = store }
}

// WithAlertMetrics counts recorded alerts.
func WithAlertMetrics(m *metrics.Metrics) AlertBookOption {
	return func(b *AlertBook) { b.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) AlertBookOption {
	return func(b *AlertBook) { b.now = now }
}

// AlertBook is the local alert feed, newest first.
type AlertBook struct {
	mu      sync.RWMutex
	alerts  []Alert
	store   storage.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAlertBook creates a feed, loading any persisted alerts.
func NewAlertBook(opts ...AlertBookOption) (*AlertBook, error) {
	b := &AlertBook{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}

	if b.store != nil {
		raw, ok, err := b.store.Get(KeyAlerts)
		if err != nil {
			return nil, fmt.Errorf("load alerts: %w", err)
		}
		if ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &b.alerts); err != nil {
				return nil, fmt.Errorf("decode alerts: %w", err)
			}
		}
	}
	return b, nil
}

// Add records a at the top of the feed, filling in ID, status and time when
// unset, and returns the stored alert.
func (b *AlertBook) Add(a Alert) (Alert, error) {
	if a.ID == "" {
		a.ID = ID(uuid.NewString())
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.CreatedAt == "" {
		a.CreatedAt = b.now().UTC().Format(time.RFC3339)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.alerts = append([]Alert{a}, b.alerts...)
	if err := b.persistLocked(); err != nil {
		b.alerts = b.alerts[1:]
		return Alert{}, err
	}
	b.metrics.ObserveAlert(string(a.Severity), a.Source)
	return a, nil
}

// AlertUpdate lists fields to change. Nil fields are left untouched.
type AlertUpdate struct {
	Status      *string
	Severity    *Severity
	Description *string
}

// Update applies upd to the alert with id. It reports whether the alert
// exists.
func (b *AlertBook) Update(id ID, upd AlertUpdate) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.alerts {
		if b.alerts[i].ID != id {
			continue
		}
		prev := b.alerts[i]
		if upd.Status != nil {
			b.alerts[i].Status = *upd.Status
		}
		if upd.Severity != nil {
			b.alerts[i].Severity = *upd.Severity
		}
		if upd.Description != nil {
			b.alerts[i].Description = *upd.Description
		}
		if err := b.persistLocked(); err != nil {
			b.alerts[i] = prev
			return true, err
		}
		return true, nil
	}
	return false, nil
}

// Remove deletes the alert with id. It reports whether the alert existed.
func (b *AlertBook) Remove(id ID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.alerts {
		if b.alerts[i].ID != id {
			continue
		}
		prev := b.alerts
		b.alerts = append(append([]Alert{}, b.alerts[:i]...), b.alerts[i+1:]...)
		if err := b.persistLocked(); err != nil {
			b.alerts = prev
			return true, err
		}
		return true, nil
	}
	return false, nil
}

// List returns all alerts, newest first.
func (b *AlertBook) List() []Alert {
	return b.filter(func(Alert) bool { return true })
}

// BySeverity returns the alerts with severity s.
func (b *AlertBook) BySeverity(s Severity) []Alert {
	return b.filter(func(a Alert) bool { return a.Severity == s })
}

// ByStatus returns the alerts with status.
func (b *AlertBook) ByStatus(status string) []Alert {
	return b.filter(func(a Alert) bool { return a.Status == status })
}

func (b *AlertBook) filter(keep func(Alert) bool) []Alert {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Alert, 0, len(b.alerts))
	for _, a := range b.alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// FromOccurrence derives an alert from o and adds it to the feed. The title
// and icon follow the occurrence type; the colour follows the severity.
func (b *AlertBook) FromOccurrence(o Occurrence) (Alert, error) {
	style, ok := occurrenceAlerts[o.Type]
	if !ok {
		style = defaultAlertStyle
	}
	color, ok := severityColors[o.Severity]
	if !ok {
		color = style.color
	}

	return b.Add(Alert{
		Type:        style.title,
		Location:    o.Location,
		Severity:    o.Severity,
		Description: o.Description,
		Icon:        style.icon,
		Color:       color,
		Source:      SourceOccurrence,
	})
}

func (b *AlertBook) persistLocked() error {
	if b.store == nil {
		return nil
	}
	data, err := json.Marshal(b.alerts)
	if err != nil {
		return fmt.Errorf("encode alerts: %w", err)
	}
	if err := b.store.Set(KeyAlerts, string(data)); err != nil {
		return fmt.Errorf("save alerts: %w", err)
	}
	return nil
}
