package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nauru-yvy/nauru/internal/exitcode"
)

// testEnv is a fake API plus a config file pointing at it. Every run shares
// the same encrypted session store, like consecutive CLI invocations.
type testEnv struct {
	t          *testing.T
	configPath string
	storePath  string

	mu     sync.Mutex
	calls  map[string]int
	bodies map[string]map[string]any
}

func newTestEnv(t *testing.T, routes map[string]http.HandlerFunc) *testEnv {
	t.Helper()

	dir := t.TempDir()
	e := &testEnv{
		t:          t,
		configPath: filepath.Join(dir, "config.yaml"),
		storePath:  filepath.Join(dir, "session.json"),
		calls:      map[string]int{},
		bodies:     map[string]map[string]any{},
	}

	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			if r.Body != nil {
				_ = json.NewDecoder(r.Body).Decode(&body)
			}
			e.mu.Lock()
			e.calls[pattern]++
			e.bodies[pattern] = body
			e.mu.Unlock()
			h(w, r)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := fmt.Sprintf("api:\n  base_url: %s\n  timeout: 2s\nstorage:\n  path: %s\nsession:\n  verify_on_start: false\n",
		srv.URL, e.storePath)
	require.NoError(t, os.WriteFile(e.configPath, []byte(cfg), 0o600))

	t.Setenv("NAURU_PASSPHRASE", "test-passphrase")
	t.Setenv("CI", "true")
	return e
}

func (e *testEnv) run(stdin string, args ...string) (string, error) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath, "--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(stdin string, args ...string) string {
	e.t.Helper()
	out, err := e.run(stdin, args...)
	require.NoError(e.t, err, "nauru %s", strings.Join(args, " "))
	return out
}

func (e *testEnv) count(pattern string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[pattern]
}

func (e *testEnv) body(pattern string) map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bodies[pattern]
}

func (e *testEnv) login() {
	e.t.Helper()
	e.mustRun("s3cret\n", "auth", "login", "--email", "ana@aldeia.org", "--password-stdin")
}

func respond(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func authRoutes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"POST /auth/login": respond(http.StatusOK, map[string]any{"access_token": "tok-1", "token_type": "bearer"}),
		"GET /auth/me": respond(http.StatusOK, map[string]any{
			"id": 42, "email": "ana@aldeia.org", "name": "Ana", "role": "monitor_ambiental",
		}),
		"POST /auth/logout":       respond(http.StatusOK, map[string]any{"message": "ok"}),
		"POST /auth/verify-token": respond(http.StatusOK, map[string]any{"valid": true}),
	}
}

func withRoutes(base map[string]http.HandlerFunc, extra map[string]http.HandlerFunc) map[string]http.HandlerFunc {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestLoginStatusLogout(t *testing.T) {
	e := newTestEnv(t, authRoutes())

	out := e.mustRun("s3cret\n", "auth", "login", "--email", "ana@aldeia.org", "--password-stdin")
	assert.Contains(t, out, "authenticated")
	assert.Contains(t, out, "Environmental Monitor")
	assert.Equal(t, "s3cret", e.body("POST /auth/login")["password"])

	status := decode[sessionView](t, e.mustRun("", "auth", "status", "-o", "json"))
	assert.Equal(t, "authenticated", status.State)
	require.NotNil(t, status.User)
	assert.Equal(t, "ana@aldeia.org", status.User.Email)
	assert.Equal(t, "42", status.User.ID)

	e.mustRun("", "auth", "logout")
	assert.Equal(t, 1, e.count("POST /auth/logout"))

	status = decode[sessionView](t, e.mustRun("", "auth", "status", "-o", "json"))
	assert.Equal(t, "anonymous", status.State)
	assert.Nil(t, status.User)
}

func TestStoreIsEncrypted(t *testing.T) {
	e := newTestEnv(t, authRoutes())
	e.login()

	raw, err := os.ReadFile(e.storePath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tok-1")
	assert.NotContains(t, string(raw), "ana@aldeia.org")

	t.Setenv("NAURU_PASSPHRASE", "wrong")
	status := decode[sessionView](t, e.mustRun("", "auth", "status", "-o", "json"))
	assert.Equal(t, "anonymous", status.State)

	t.Setenv("NAURU_PASSPHRASE", "test-passphrase")
	status = decode[sessionView](t, e.mustRun("", "auth", "status", "-o", "json"))
	assert.Equal(t, "authenticated", status.State)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		routes   map[string]http.HandlerFunc
		stdin    string
		args     []string
		wantCode int
	}{
		{
			name:     "rejected credentials",
			routes:   map[string]http.HandlerFunc{"POST /auth/login": respond(http.StatusUnauthorized, map[string]any{"detail": "bad"})},
			stdin:    "nope\n",
			args:     []string{"--email", "ana@aldeia.org", "--password-stdin"},
			wantCode: exitcode.AuthError,
		},
		{
			name:     "server error",
			routes:   map[string]http.HandlerFunc{"POST /auth/login": respond(http.StatusInternalServerError, map[string]any{"detail": "boom"})},
			stdin:    "s3cret\n",
			args:     []string{"--email", "ana@aldeia.org", "--password-stdin"},
			wantCode: exitcode.AuthError,
		},
		{
			name:     "no password source",
			routes:   authRoutes(),
			args:     []string{"--email", "ana@aldeia.org"},
			wantCode: exitcode.UsageError,
		},
		{
			name:     "no email",
			routes:   authRoutes(),
			stdin:    "s3cret\n",
			args:     []string{"--password-stdin"},
			wantCode: exitcode.UsageError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, tt.routes)
			_, err := e.run(tt.stdin, append([]string{"auth", "login"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, exitcode.DetermineExitCode(err), err.Error())

			status := decode[sessionView](t, e.mustRun("", "auth", "status", "-o", "json"))
			assert.Equal(t, "anonymous", status.State)
		})
	}
}

func TestRegister(t *testing.T) {
	e := newTestEnv(t, withRoutes(authRoutes(), map[string]http.HandlerFunc{
		"POST /auth/register": respond(http.StatusCreated, map[string]any{"id": 42}),
	}))

	out := e.mustRun("s3cret\n", "auth", "register",
		"--name", "Ana", "--email", "ana@aldeia.org", "--community", "Aldeia Nova", "--age", "31", "--password-stdin")
	assert.Contains(t, out, "authenticated")

	body := e.body("POST /auth/register")
	assert.Equal(t, "Ana", body["name"])
	assert.Equal(t, "membro_comunidade", body["role"])
	assert.Equal(t, "Aldeia Nova", body["community"])
	assert.EqualValues(t, 31, body["age"])
	assert.Equal(t, 1, e.count("POST /auth/login"))
}

func TestRegisterFailures(t *testing.T) {
	t.Run("email in use", func(t *testing.T) {
		e := newTestEnv(t, map[string]http.HandlerFunc{
			"POST /auth/register": respond(http.StatusConflict, map[string]any{"detail": "exists"}),
		})
		_, err := e.run("s3cret\n", "auth", "register", "--name", "Ana", "--email", "ana@aldeia.org", "--password-stdin")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email already in use")
		assert.Equal(t, exitcode.ValidationError, exitcode.DetermineExitCode(err))
	})

	t.Run("unknown role", func(t *testing.T) {
		e := newTestEnv(t, authRoutes())
		_, err := e.run("s3cret\n", "auth", "register", "--name", "Ana", "--email", "a@b.c", "--role", "chief", "--password-stdin")
		require.Error(t, err)
		assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
		assert.Zero(t, e.count("POST /auth/register"))
	})
}

func TestProfile(t *testing.T) {
	e := newTestEnv(t, withRoutes(authRoutes(), map[string]http.HandlerFunc{
		"PUT /auth/update-profile": respond(http.StatusOK, map[string]any{
			"id": 42, "email": "ana@aldeia.org", "name": "Ana", "role": "monitor_ambiental", "community": "Aldeia Nova",
		}),
	}))

	_, err := e.run("", "profile", "show")
	require.Error(t, err)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))

	e.login()

	_, err = e.run("", "profile", "update")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))

	out := e.mustRun("", "profile", "update", "--community", "Aldeia Nova", "--bio", "")
	assert.Contains(t, out, "Aldeia Nova")
	body := e.body("PUT /auth/update-profile")
	assert.Equal(t, "Aldeia Nova", body["community"])
	assert.Contains(t, body, "bio")
	assert.NotContains(t, body, "phone")

	shown := decode[profileView](t, e.mustRun("", "profile", "show", "-o", "json"))
	assert.Equal(t, "Aldeia Nova", shown.Community)
}

func TestOccurrenceCreateRecordsLocalAlert(t *testing.T) {
	e := newTestEnv(t, withRoutes(authRoutes(), map[string]http.HandlerFunc{
		"POST /occurrences/": respond(http.StatusCreated, map[string]any{"id": 7}),
	}))
	e.login()

	report := decode[reportView](t, e.mustRun("", "occurrences", "create",
		"--type", "fire", "--location", "Igarapé Norte", "--description", "smoke", "--severity", "alta", "-o", "json"))
	assert.Equal(t, "7", string(report.Occurrence.ID))
	assert.Equal(t, "high", string(report.Occurrence.Severity))
	assert.Equal(t, "Forest Fire", report.Alert.Type)
	assert.Equal(t, "#FF4444", report.Alert.Color)
	assert.Equal(t, "high", e.body("POST /occurrences/")["severity"])

	local := decode[alertList](t, e.mustRun("", "alerts", "list", "--local", "-o", "json"))
	require.Len(t, local, 1)
	assert.Equal(t, report.Alert.ID, local[0].ID)
	assert.Equal(t, "occurrence", local[0].Source)

	id := string(local[0].ID)
	e.mustRun("", "alerts", "resolve", id)
	local = decode[alertList](t, e.mustRun("", "alerts", "list", "--local", "--status", "resolved", "-o", "json"))
	require.Len(t, local, 1)

	e.mustRun("", "alerts", "remove", id)
	_, err := e.run("", "alerts", "remove", id)
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}

func TestOccurrenceCreateValidation(t *testing.T) {
	e := newTestEnv(t, withRoutes(authRoutes(), map[string]http.HandlerFunc{
		"POST /occurrences/": respond(http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body", "location"}, "msg": "field required"}},
		}),
	}))
	e.login()

	_, err := e.run("", "occurrences", "create", "--type", "fire", "--location", "x", "--description", "y", "--severity", "extreme")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))

	_, err = e.run("", "occurrences", "create", "--type", "fire", "--location", "x", "--description", "y")
	require.Error(t, err)
	assert.Equal(t, exitcode.ValidationError, exitcode.DetermineExitCode(err))
	assert.Contains(t, err.Error(), "field required")
}

func TestAlertsListFilters(t *testing.T) {
	e := newTestEnv(t, withRoutes(authRoutes(), map[string]http.HandlerFunc{
		"GET /alerts": respond(http.StatusOK, []map[string]any{
			{"id": 1, "type": "Fire", "severity": "alta", "status": "active"},
			{"id": 2, "type": "Mining", "severity": "media", "status": "active"},
			{"id": 3, "type": "Flood", "severity": "high", "status": "resolved"},
		}),
	}))
	e.login()

	all := decode[alertList](t, e.mustRun("", "alerts", "list", "-o", "json"))
	assert.Len(t, all, 3)

	high := decode[alertList](t, e.mustRun("", "alerts", "list", "--severity", "high", "-o", "json"))
	assert.Len(t, high, 2)

	active := decode[alertList](t, e.mustRun("", "alerts", "list", "--severity", "high", "--status", "active", "-o", "json"))
	require.Len(t, active, 1)
	assert.Equal(t, "1", string(active[0].ID))

	text := e.mustRun("", "alerts", "list")
	assert.Contains(t, text, "Mining")
	assert.Contains(t, text, "#2")
}

func TestUnauthorizedCallEndsSession(t *testing.T) {
	e := newTestEnv(t, withRoutes(authRoutes(), map[string]http.HandlerFunc{
		"GET /alerts": respond(http.StatusUnauthorized, map[string]any{"detail": "expired"}),
	}))
	e.login()

	_, err := e.run("", "alerts", "list")
	require.Error(t, err)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))

	status := decode[sessionView](t, e.mustRun("", "auth", "status", "-o", "json"))
	assert.Equal(t, "anonymous", status.State)
}

func TestAlertsWatchPrintsNewAlertsOnce(t *testing.T) {
	var polls int
	var mu sync.Mutex
	e := newTestEnv(t, withRoutes(authRoutes(), map[string]http.HandlerFunc{
		"GET /alerts": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			polls++
			n := polls
			mu.Unlock()

			list := []map[string]any{{"id": 1, "type": "Forest Fire", "severity": "high", "status": "active"}}
			if n > 1 {
				list = append(list, map[string]any{"id": 2, "type": "Illegal Mining", "severity": "medium", "status": "active"})
			}
			respond(http.StatusOK, list)(w, r)
		},
	}))
	e.login()

	out := e.mustRun("", "alerts", "watch", "--interval", "10ms", "--count", "3")
	assert.Equal(t, 1, strings.Count(out, "Forest Fire"))
	assert.Equal(t, 1, strings.Count(out, "Illegal Mining"))
	assert.Equal(t, 3, e.count("GET /alerts"))
}

func TestHealth(t *testing.T) {
	t.Run("degraded without session", func(t *testing.T) {
		e := newTestEnv(t, map[string]http.HandlerFunc{
			"GET /auth/health": respond(http.StatusOK, map[string]any{"status": "ok"}),
		})
		report := decode[healthReport](t, e.mustRun("", "health", "-o", "json"))
		assert.Equal(t, "degraded", string(report.Status))
		assert.Equal(t, "healthy", string(report.Checks["api"].Status))
		assert.Equal(t, "healthy", string(report.Checks["store"].Status))
		assert.Equal(t, "degraded", string(report.Checks["session"].Status))
	})

	t.Run("unhealthy api", func(t *testing.T) {
		e := newTestEnv(t, map[string]http.HandlerFunc{
			"GET /auth/health": respond(http.StatusServiceUnavailable, map[string]any{"detail": "down"}),
		})
		out, err := e.run("", "health", "-o", "json")
		require.Error(t, err)
		report := decode[healthReport](t, out)
		assert.Equal(t, "unhealthy", string(report.Status))
	})
}

func TestSoil(t *testing.T) {
	e := newTestEnv(t, withRoutes(authRoutes(), map[string]http.HandlerFunc{
		"POST /soil-analyses": respond(http.StatusCreated, map[string]any{"id": "s1"}),
		"GET /soil-analyses": respond(http.StatusOK, []map[string]any{
			{"id": "s1", "territory": "Vale", "soil_type": "argiloso", "moisture": 23.5},
			{"id": "s2", "territory": "Serra"},
		}),
	}))
	e.login()

	_, err := e.run("", "soil", "create")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))

	e.mustRun("", "soil", "create", "--territory", "Vale", "--moisture", "23.5")
	assert.Equal(t, 23.5, e.body("POST /soil-analyses")["moisture"])

	list := decode[soilList](t, e.mustRun("", "soil", "list", "--territory", "Vale", "-o", "json"))
	require.Len(t, list, 1)
	assert.Equal(t, "argiloso", list[0].SoilType)

	assert.Contains(t, e.mustRun("", "soil", "list"), "Moisture:        23.5%")
}

func TestConfigCommands(t *testing.T) {
	e := newTestEnv(t, nil)

	path := filepath.Join(t.TempDir(), "new", "config.yaml")
	root := func(args ...string) (string, error) {
		cmd := NewRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(append([]string{"--config", path}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := root("config", "init", "--api-url", "https://nauru.example.org/api/v1")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = root("config", "init")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))

	out, err = root("config", "show", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"base_url": "https://nauru.example.org/api/v1"`)
	assert.Contains(t, out, `"passphrase_set": true`)
	assert.NotContains(t, out, "test-passphrase")

	out = e.mustRun("", "config", "path")
	assert.Equal(t, e.configPath, strings.TrimSpace(out))
}

func TestVersionAndUsageErrors(t *testing.T) {
	e := newTestEnv(t, nil)

	assert.Equal(t, "nauru dev\n", e.mustRun("", "version"))

	_, err := e.run("", "version", "-o", "xml")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))

	_, err = e.run("", "bogus")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}
