package health

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nauru-yvy/nauru/internal/gateway"
	"github.com/nauru-yvy/nauru/internal/resources"
	"github.com/nauru-yvy/nauru/internal/session"
	"github.com/nauru-yvy/nauru/internal/storage"
)

type mockChecker struct {
	name   string
	result *Result
	delay  time.Duration
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) *Result {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Unhealthy("check cancelled").WithDetail("error", ctx.Err().Error())
		}
	}
	return m.result
}

func TestResultBuilders(t *testing.T) {
	r := Degraded("offline").WithDetail("cached", true).WithLatency(50 * time.Millisecond)

	if r.Status != StatusDegraded {
		t.Errorf("Status = %v, want %v", r.Status, StatusDegraded)
	}
	if r.Details["cached"] != true {
		t.Errorf("Details[cached] = %v, want true", r.Details["cached"])
	}
	if r.Latency != 50*time.Millisecond {
		t.Errorf("Latency = %v, want 50ms", r.Latency)
	}
	if Healthy("x").Status.String() != "healthy" || Unhealthy("x").Status.String() != "unhealthy" {
		t.Error("unexpected status strings")
	}
}

func TestManagerCheck(t *testing.T) {
	m := NewManager().WithTimeout(100 * time.Millisecond)
	m.AddChecker(&mockChecker{name: "fast", result: Healthy("ok")})
	m.AddChecker(&mockChecker{name: "slow", result: Healthy("ok"), delay: time.Second})
	m.AddChecker(&mockChecker{name: "nil"})

	results := m.Check(context.Background())

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results["fast"].Status != StatusHealthy {
		t.Errorf("fast = %v, want healthy", results["fast"].Status)
	}
	if results["slow"].Status != StatusUnhealthy {
		t.Errorf("slow = %v, want unhealthy after timeout", results["slow"].Status)
	}
	if results["nil"].Status != StatusUnhealthy {
		t.Errorf("nil = %v, want unhealthy", results["nil"].Status)
	}
	if results["fast"].Latency == 0 {
		t.Error("latency should be filled in")
	}
}

func TestManagerReplacesByName(t *testing.T) {
	m := NewManager()
	m.AddChecker(&mockChecker{name: "api", result: Unhealthy("down")})
	m.AddChecker(&mockChecker{name: "api", result: Healthy("up")})
	m.AddChecker(&mockChecker{name: "store", result: Healthy("ok")})

	if got := m.Names(); len(got) != 2 || got[0] != "api" || got[1] != "store" {
		t.Errorf("Names() = %v, want [api store]", got)
	}
	if got := m.Check(context.Background())["api"].Status; got != StatusHealthy {
		t.Errorf("api = %v, want healthy", got)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]*Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]*Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]*Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]*Result{"a": Degraded(""), "b": Unhealthy("")}, StatusUnhealthy},
	}

	m := NewManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

type probeFunc func(ctx context.Context) (*resources.ServiceHealth, error)

func (f probeFunc) Health(ctx context.Context) (*resources.ServiceHealth, error) { return f(ctx) }

func TestAPIChecker(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"reachable", nil, StatusHealthy},
		{"network", &gateway.NetworkError{Timeout: true, Err: context.DeadlineExceeded}, StatusUnhealthy},
		{"server error", &gateway.HTTPError{Status: 503, Message: "maintenance"}, StatusUnhealthy},
		{"client error", &gateway.HTTPError{Status: 404, Message: "Not Found"}, StatusDegraded},
		{"other", errors.New("boom"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAPIChecker(probeFunc(func(context.Context) (*resources.ServiceHealth, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &resources.ServiceHealth{Status: "healthy"}, nil
			}))

			got := c.Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", got.Status, tt.want, got.Message)
			}
			if c.Name() != "api" {
				t.Errorf("Name() = %q", c.Name())
			}
		})
	}
}

type brokenStore struct{ err error }

func (s brokenStore) Get(string) (string, bool, error) { return "", false, s.err }

func TestStoreChecker(t *testing.T) {
	mem := storage.NewMemoryStore()
	_ = mem.Set(storage.KeyToken, "abc")

	got := NewStoreChecker(mem).Check(context.Background())
	if got.Status != StatusHealthy || got.Details["has_token"] != true {
		t.Errorf("memory store = %+v", got)
	}

	corrupt := brokenStore{err: fmt.Errorf("open: %w", storage.ErrCorrupt)}
	got = NewStoreChecker(corrupt).Check(context.Background())
	if got.Status != StatusUnhealthy {
		t.Errorf("corrupt store = %v, want unhealthy", got.Status)
	}

	dir := t.TempDir()
	fs, err := storage.NewFileStore(dir+"/session.json", "pass")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	got = NewStoreChecker(fs).Check(context.Background())
	if got.Details["path"] != dir+"/session.json" {
		t.Errorf("path detail = %v", got.Details["path"])
	}
}

type fakeSession struct {
	state  session.State
	expiry time.Time
}

func (f fakeSession) State() session.State { return f.state }

func (f fakeSession) TokenExpiry() (time.Time, bool) { return f.expiry, !f.expiry.IsZero() }

func TestSessionChecker(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session fakeSession
		want    Status
	}{
		{"anonymous", fakeSession{state: session.Anonymous}, StatusDegraded},
		{"authenticated opaque token", fakeSession{state: session.Authenticated}, StatusHealthy},
		{"authenticated valid token", fakeSession{state: session.Authenticated, expiry: now.Add(time.Hour)}, StatusHealthy},
		{"expired token", fakeSession{state: session.Authenticated, expiry: now.Add(-time.Minute)}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSessionChecker(tt.session)
			c.now = func() time.Time { return now }

			if got := c.Check(context.Background()); got.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", got.Status, tt.want, got.Message)
			}
		})
	}
}

func TestProbeManager(t *testing.T) {
	pm := NewProbeManager("1.0.0")
	pm.AddChecker(&mockChecker{name: "api", result: Degraded("slow")})
	ctx := context.Background()

	if got := pm.CheckStartup(ctx).Status; got != StatusUnhealthy {
		t.Errorf("startup before init = %v", got)
	}
	pm.MarkInitialized()
	if got := pm.CheckStartup(ctx).Status; got != StatusHealthy {
		t.Errorf("startup after init = %v", got)
	}

	ready := pm.CheckReadiness(ctx)
	if ready.Status != StatusDegraded || len(ready.Checks) != 1 || ready.Version != "1.0.0" {
		t.Errorf("readiness = %+v", ready)
	}

	pm.MarkShutdown()
	if got := pm.CheckReadiness(ctx).Status; got != StatusUnhealthy {
		t.Errorf("readiness during shutdown = %v", got)
	}
	if got := pm.CheckLiveness(ctx).Status; got != StatusDegraded {
		t.Errorf("liveness during shutdown = %v", got)
	}
}
