package resources

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID is a resource identifier. The API sends either numbers or strings.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Severity of an occurrence or alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity normalizes English or Portuguese severity names. Unknown
// values are returned lowercased and ok is false.
func ParseSeverity(s string) (Severity, bool) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "low", "baixa":
		return SeverityLow, true
	case "medium", "média", "media":
		return SeverityMedium, true
	case "high", "alta":
		return SeverityHigh, true
	default:
		return Severity(v), false
	}
}

// UnmarshalJSON normalizes the severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s, _ = ParseSeverity(raw)
	return nil
}

// Occurrence is an environmental incident reported from the field.
type Occurrence struct {
	ID          ID       `json:"id,omitempty" yaml:"id,omitempty"`
	Type        string   `json:"type" yaml:"type"`
	Location    string   `json:"location" yaml:"location"`
	Severity    Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Status      string   `json:"status,omitempty" yaml:"status,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	ReportedBy  string   `json:"reported_by,omitempty" yaml:"reported_by,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// missing returns the names of empty required fields.
func (o Occurrence) missing() []string {
	var out []string
	if strings.TrimSpace(o.Type) == "" {
		out = append(out, "type")
	}
	if strings.TrimSpace(o.Location) == "" {
		out = append(out, "location")
	}
	if strings.TrimSpace(o.Description) == "" {
		out = append(out, "description")
	}
	return out
}

// OccurrenceStats is the aggregate document returned by the API. Its shape
// is owned by the server.
type OccurrenceStats map[string]any

// Alert status values.
const (
	StatusActive        = "active"
	StatusInvestigating = "investigating"
	StatusResolved      = "resolved"
)

// Alert is an entry in the alert feed.
type Alert struct {
	ID          ID       `json:"id,omitempty" yaml:"id,omitempty"`
	Type        string   `json:"type" yaml:"type"`
	Location    string   `json:"location,omitempty" yaml:"location,omitempty"`
	Severity    Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string   `json:"status,omitempty" yaml:"status,omitempty"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color       string   `json:"color,omitempty" yaml:"color,omitempty"`
	Source      string   `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// SoilAnalysis is a soil sample report for a monitored territory.
type SoilAnalysis struct {
	ID             ID       `json:"id,omitempty" yaml:"id,omitempty"`
	Territory      string   `json:"territory" yaml:"territory"`
	SoilType       string   `json:"soil_type,omitempty" yaml:"soil_type,omitempty"`
	Moisture       *float64 `json:"moisture,omitempty" yaml:"moisture,omitempty"`
	Texture        string   `json:"texture,omitempty" yaml:"texture,omitempty"`
	WaterRetention string   `json:"water_retention,omitempty" yaml:"water_retention,omitempty"`
	Fertility      string   `json:"fertility,omitempty" yaml:"fertility,omitempty"`
	Drainage       string   `json:"drainage,omitempty" yaml:"drainage,omitempty"`
	Notes          string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// ServiceHealth is the API's health report.
type ServiceHealth struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}
