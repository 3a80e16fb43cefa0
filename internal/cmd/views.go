package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nauru-yvy/nauru/internal/health"
	"github.com/nauru-yvy/nauru/internal/resources"
	"github.com/nauru-yvy/nauru/internal/session"
	"github.com/nauru-yvy/nauru/internal/ux"
)

// sessionView is printed by auth status, login and register.
type sessionView struct {
	State       string        `json:"state" yaml:"state"`
	APIURL      string        `json:"api_url" yaml:"api_url"`
	User        *session.User `json:"user,omitempty" yaml:"user,omitempty"`
	TokenExpiry *time.Time    `json:"token_expiry,omitempty" yaml:"token_expiry,omitempty"`
}

func newSessionView(a *app) sessionView {
	snap := a.session.Snapshot()
	v := sessionView{State: snap.State.String(), APIURL: a.cfg.API.BaseURL, User: snap.User}
	if exp, ok := a.session.TokenExpiry(); ok {
		v.TokenExpiry = &exp
	}
	return v
}

func (v sessionView) RenderText(w io.Writer, s ux.Styles) error {
	lines := []string{
		s.Field("State", s.Status(v.State), 8),
		s.Field("Server", v.APIURL, 8),
	}
	if v.User != nil {
		lines = append(lines, s.Field("User", v.User.DisplayName(), 8))
		if v.User.Email != "" {
			lines = append(lines, s.Field("Email", v.User.Email, 8))
		}
		if v.User.RoleLabel != "" {
			lines = append(lines, s.Field("Role", v.User.RoleLabel, 8))
		}
	}
	if v.TokenExpiry != nil {
		lines = append(lines, s.Field("Expires", v.TokenExpiry.Local().Format(time.RFC1123), 8))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// profileView prints every populated profile field.
type profileView struct {
	session.User `yaml:",inline"`
}

func (v profileView) RenderText(w io.Writer, s ux.Styles) error {
	u := v.User
	rows := [][2]string{
		{"Name", u.Name},
		{"Social name", u.SocialName},
		{"Indigenous name", u.IndigenousName},
		{"Email", u.Email},
		{"Role", u.RoleLabel},
		{"Community", u.Community},
		{"Territory", u.TerritoryLocation},
		{"Phone", u.Phone},
		{"Activity", u.MainActivity},
		{"Bio", u.Bio},
	}
	if u.Age != nil {
		rows = append(rows, [2]string{"Age", strconv.Itoa(*u.Age)})
	}

	fmt.Fprintln(w, s.Title.Render(u.DisplayName()))
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		if _, err := fmt.Fprintln(w, s.Field(r[0], r[1], 15)); err != nil {
			return err
		}
	}
	return nil
}

type occurrenceList []resources.Occurrence

func (l occurrenceList) RenderText(w io.Writer, s ux.Styles) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, s.Muted.Render("No occurrences."))
		return err
	}
	for _, o := range l {
		if err := renderOccurrence(w, s, o); err != nil {
			return err
		}
	}
	return nil
}

func renderOccurrence(w io.Writer, s ux.Styles, o resources.Occurrence) error {
	head := fmt.Sprintf("%s  %s", s.Title.Render(o.Type), severityLabel(s, o.Severity))
	if o.Status != "" {
		head += "  " + s.Status(o.Status)
	}
	if o.ID != "" {
		head += "  " + s.Muted.Render("#"+string(o.ID))
	}
	_, err := fmt.Fprintf(w, "%s\n  %s\n  %s\n", head, s.Field("Location", o.Location, 8), o.Description)
	return err
}

func severityLabel(s ux.Styles, sev resources.Severity) string {
	switch sev {
	case resources.SeverityHigh:
		return s.Error.Render(string(sev))
	case resources.SeverityMedium:
		return s.Warning.Render(string(sev))
	default:
		return s.Success.Render(string(sev))
	}
}

// reportView is printed after an occurrence is created.
type reportView struct {
	Occurrence resources.Occurrence `json:"occurrence" yaml:"occurrence"`
	Alert      resources.Alert      `json:"alert" yaml:"alert"`
}

func (v reportView) RenderText(w io.Writer, s ux.Styles) error {
	fmt.Fprintln(w, s.Success.Render("Occurrence reported."))
	if err := renderOccurrence(w, s, v.Occurrence); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return renderAlert(w, s, v.Alert)
}

type alertList []resources.Alert

func (l alertList) RenderText(w io.Writer, s ux.Styles) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, s.Muted.Render("No alerts."))
		return err
	}
	for _, a := range l {
		if err := renderAlert(w, s, a); err != nil {
			return err
		}
	}
	return nil
}

func renderAlert(w io.Writer, s ux.Styles, a resources.Alert) error {
	title := strings.TrimSpace(a.Icon + " " + a.Type)
	head := fmt.Sprintf("%s  %s  %s", s.Hex(a.Color).Bold(!s.Plain()).Render(title), severityLabel(s, a.Severity), s.Status(a.Status))
	if a.ID != "" {
		head += "  " + s.Muted.Render("#"+string(a.ID))
	}
	lines := []string{head}
	if a.Location != "" {
		lines = append(lines, "  "+s.Field("Location", a.Location, 8))
	}
	if a.Description != "" {
		lines = append(lines, "  "+a.Description)
	}
	if a.CreatedAt != "" {
		lines = append(lines, "  "+s.Muted.Render(a.CreatedAt))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

type soilList []resources.SoilAnalysis

func (l soilList) RenderText(w io.Writer, s ux.Styles) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, s.Muted.Render("No soil analyses."))
		return err
	}
	for _, a := range l {
		rows := [][2]string{
			{"Soil type", a.SoilType},
			{"Texture", a.Texture},
			{"Water retention", a.WaterRetention},
			{"Fertility", a.Fertility},
			{"Drainage", a.Drainage},
			{"Notes", a.Notes},
		}
		if a.Moisture != nil {
			rows = append(rows, [2]string{"Moisture", strconv.FormatFloat(*a.Moisture, 'f', -1, 64) + "%"})
		}
		fmt.Fprintln(w, s.Title.Render(a.Territory))
		for _, r := range rows {
			if r[1] != "" {
				fmt.Fprintln(w, "  "+s.Field(r[0], r[1], 15))
			}
		}
	}
	return nil
}

type statsView resources.OccurrenceStats

func (v statsView) RenderText(w io.Writer, s ux.Styles) error {
	keys := make([]string, 0, len(v))
	width := 0
	for k := range v {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintln(w, s.Field(k, fmt.Sprint(v[k]), width)); err != nil {
			return err
		}
	}
	return nil
}

// healthReport is printed by the health command.
type healthReport struct {
	Status health.Status             `json:"status" yaml:"status"`
	Checks map[string]*health.Result `json:"checks" yaml:"checks"`
}

func (r healthReport) RenderText(w io.Writer, s ux.Styles) error {
	names := make([]string, 0, len(r.Checks))
	for name := range r.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, s.Field("Overall", s.Status(r.Status.String()), 8))
	for _, name := range names {
		res := r.Checks[name]
		line := fmt.Sprintf("  %s %s", s.Field(name, s.Status(res.Status.String()), 8), res.Message)
		if res.Latency > 0 {
			line += s.Muted.Render(fmt.Sprintf(" (%s)", res.Latency.Round(time.Millisecond)))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
