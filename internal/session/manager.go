// Package session owns the signed-in user. A Manager derives the session
// from persisted credentials, runs sign-in, sign-up, sign-out and profile
// updates against the API, and notifies subscribers of every change.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nauru-yvy/nauru/internal/gateway"
	"github.com/nauru-yvy/nauru/internal/log"
	"github.com/nauru-yvy/nauru/internal/metrics"
	"github.com/nauru-yvy/nauru/internal/storage"
)

// Failure messages returned in Result.Error.
const (
	MsgInvalidCredentials = "invalid credentials"
	MsgNetwork            = "unable to reach the server, check your connection"
	MsgEmailInUse         = "email already in use"
	MsgNotSignedIn        = "not signed in"
	MsgSessionExpired     = "session expired, sign in again"
	MsgUnexpectedResponse = "unexpected response from server"
)

const logoutTimeout = 5 * time.Second

// State is the session lifecycle state.
type State int

const (
	// Unknown is the state before Rehydrate completes.
	Unknown State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Result reports the outcome of an operation. Expected failures are
// reported here rather than as errors.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result                { return Result{Success: true} }
func fail(msg string) Result    { return Result{Error: msg} }
func (r Result) String() string { return r.Error }

// Snapshot is delivered to subscribers after each change.
type Snapshot struct {
	State State
	User  *User
}

// API is the subset of *gateway.Client the Manager uses.
type API interface {
	Do(ctx context.Context, path string, opts gateway.RequestOptions, out any) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records transitions and operation results.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithInFlightGuard coalesces concurrent identical operations into one API
// call. Without it, concurrent calls run independently and the last to
// finish wins.
func WithInFlightGuard() Option {
	return func(m *Manager) { m.guard = &singleflight.Group{} }
}

// WithBackgroundVerify makes Rehydrate validate a restored token in the
// background. Only an explicit rejection downgrades the session.
func WithBackgroundVerify(enabled bool) Option {
	return func(m *Manager) { m.backgroundVerify = enabled }
}

// WithRemoteProfileUpdate sends profile changes to the API before persisting
// them locally. When disabled, UpdateProfile is local only.
func WithRemoteProfileUpdate(enabled bool) Option {
	return func(m *Manager) { m.remoteProfile = enabled }
}

// WithDialect selects the request field names.
func WithDialect(d Dialect) Option {
	return func(m *Manager) { m.dialect = d }
}

// Manager is the session state machine. It is the only writer of the
// credential pair in the store.
type Manager struct {
	api              API
	store            storage.Store
	logger           *log.Logger
	metrics          *metrics.Metrics
	guard            *singleflight.Group
	dialect          Dialect
	backgroundVerify bool
	remoteProfile    bool

	mu    sync.RWMutex
	state State
	token string
	user  *User

	// credMu orders writes of the stored credential pair with the matching
	// state change. The stored token is the one the gateway sends.
	credMu sync.Mutex

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	background sync.WaitGroup
}

// NewManager creates a Manager in the Unknown state.
func NewManager(api API, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		api:           api,
		store:         store,
		logger:        log.DefaultLogger(),
		remoteProfile: true,
		subs:          make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CurrentUser returns a copy of the signed-in user.
func (m *Manager) CurrentUser() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return User{}, false
	}
	return *m.user, true
}

// Snapshot returns the current state and user.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{State: m.state}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// Subscribe registers fn for change notifications. fn runs synchronously on
// the goroutine that made the change. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// Wait blocks until background work started by Rehydrate has finished.
func (m *Manager) Wait() {
	m.background.Wait()
}

// Rehydrate derives the session from the store. A complete credential pair
// is trusted as is; a partial or unreadable one is cleared.
func (m *Manager) Rehydrate(ctx context.Context) State {
	token, hasToken := m.read(storage.KeyToken)
	raw, hasUser := m.read(storage.KeyUser)

	switch {
	case hasToken && hasUser:
		user, err := ParseUser([]byte(raw))
		if err != nil {
			m.logger.WarnContext(ctx, "stored user record is malformed, starting signed out", "error", err)
			m.clearStore()
			m.commit(Anonymous, "", nil)
			return Anonymous
		}

		m.commit(Authenticated, token, &user)
		if m.backgroundVerify {
			m.background.Add(1)
			go func() {
				defer m.background.Done()
				m.Verify(ctx)
			}()
		}
		return Authenticated

	case hasToken || hasUser:
		m.logger.InfoContext(ctx, "clearing dangling credential entry", "has_token", hasToken, "has_user", hasUser)
		m.clearStore()
	}

	m.commit(Anonymous, "", nil)
	return Anonymous
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	UserInfo    json.RawMessage `json:"user_info"`
}

// SignIn authenticates with identifier and secret and replaces any current
// session.
func (m *Manager) SignIn(ctx context.Context, identifier, secret string) Result {
	return m.guarded("signin:"+identifier, func() Result {
		res := m.signIn(ctx, identifier, secret)
		m.metrics.ObserveAuth("signin", res.Success)
		return res
	})
}

func (m *Manager) signIn(ctx context.Context, identifier, secret string) Result {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return fail("email and password are required")
	}

	var resp loginResponse
	err := m.api.Do(ctx, "/auth/login", gateway.RequestOptions{
		Method: http.MethodPost,
		Body:   m.dialect.loginBody(identifier, secret),
	}, &resp)
	if err != nil {
		if gateway.IsUnauthorized(err) {
			return fail(MsgInvalidCredentials)
		}
		m.logger.WithError(err).InfoContext(ctx, "sign in failed")
		return fail(failureMessage(err))
	}
	if resp.AccessToken == "" {
		return fail("sign in failed: no access token in response")
	}

	// The token must be stored before /auth/me so the gateway sends it.
	m.credMu.Lock()
	prev, _ := m.read(storage.KeyToken)
	err = m.store.Set(storage.KeyToken, resp.AccessToken)
	m.credMu.Unlock()
	if err != nil {
		m.logger.WithError(err).ErrorContext(ctx, "failed to persist token")
		return fail(fmt.Sprintf("could not save session: %v", err))
	}

	user, res := m.fetchUser(ctx, identifier, resp.UserInfo)
	if !res.Success {
		m.restoreToken(prev, resp.AccessToken)
		return res
	}

	m.credMu.Lock()
	if stored, _ := m.read(storage.KeyToken); stored != resp.AccessToken {
		// signed out or replaced while /auth/me was in flight
		m.credMu.Unlock()
		return fail("sign in interrupted by another session change")
	}
	if err := m.persistUser(user); err != nil {
		m.credMu.Unlock()
		m.logger.WithError(err).ErrorContext(ctx, "failed to persist user")
		m.restoreToken(prev, resp.AccessToken)
		return fail(fmt.Sprintf("could not save session: %v", err))
	}
	from, snap := m.swap(Authenticated, resp.AccessToken, &user)
	m.credMu.Unlock()
	m.notify(from, snap)

	m.logger.InfoContext(ctx, "signed in", "user_id", user.ID)
	return ok()
}

// fetchUser loads the profile for a fresh token. Failures other than 401
// fall back to the login response's user_info, then to a minimal record.
func (m *Manager) fetchUser(ctx context.Context, identifier string, userInfo json.RawMessage) (User, Result) {
	var raw json.RawMessage
	err := m.api.Do(ctx, "/auth/me", gateway.RequestOptions{Method: http.MethodGet}, &raw)
	if err == nil {
		user, perr := ParseUser(raw)
		if perr == nil {
			return user, ok()
		}
		err = perr
	}
	if gateway.IsUnauthorized(err) {
		return User{}, fail(MsgInvalidCredentials)
	}

	m.logger.WithError(err).WarnContext(ctx, "could not load profile, using login response")
	if len(userInfo) > 0 {
		if user, perr := ParseUser(userInfo); perr == nil {
			return user, ok()
		}
	}
	return User{Email: identifier}, ok()
}

// SignUp validates req locally, registers the account and signs in with the
// same credentials.
func (m *Manager) SignUp(ctx context.Context, req SignUpRequest) Result {
	return m.guarded("signup:"+strings.TrimSpace(req.Email), func() Result {
		res := m.signUp(ctx, req)
		m.metrics.ObserveAuth("signup", res.Success)
		return res
	})
}

func (m *Manager) signUp(ctx context.Context, req SignUpRequest) Result {
	if missing := req.missing(); len(missing) > 0 {
		return fail("missing required fields: " + strings.Join(missing, ", "))
	}

	err := m.api.Do(ctx, "/auth/register", gateway.RequestOptions{
		Method: http.MethodPost,
		Body:   m.dialect.registerBody(req),
	}, nil)
	if err != nil {
		m.logger.WithError(err).InfoContext(ctx, "registration failed")

		var he *gateway.HTTPError
		if errors.As(err, &he) {
			switch he.Status {
			case http.StatusUnprocessableEntity:
				if details := he.Details(); len(details) > 0 {
					return fail(strings.Join(details, "; "))
				}
				return fail(he.Message)
			case http.StatusConflict:
				return fail(MsgEmailInUse)
			}
		}
		return fail(failureMessage(err))
	}

	return m.signIn(ctx, req.Email, req.Secret)
}

// SignOut tells the API the session is over, best effort, then clears memory
// and storage. Calling it while signed out is a no-op.
func (m *Manager) SignOut(ctx context.Context) Result {
	return m.guarded("signout", func() Result {
		m.mu.RLock()
		token := m.token
		m.mu.RUnlock()
		if token == "" {
			token, _ = m.read(storage.KeyToken)
		}

		if token != "" {
			logoutCtx, cancel := context.WithTimeout(ctx, logoutTimeout)
			err := m.api.Do(logoutCtx, "/auth/logout", gateway.RequestOptions{Method: http.MethodPost}, nil)
			cancel()
			if err != nil {
				m.logger.WithError(err).DebugContext(ctx, "logout call failed, clearing session anyway")
			}
		}

		m.credMu.Lock()
		m.clearStore()
		from, snap := m.swap(Anonymous, "", nil)
		m.credMu.Unlock()
		m.notify(from, snap)
		m.metrics.ObserveAuth("signout", true)
		return ok()
	})
}

// UpdateProfile merges upd into the current user and persists the result.
// When remote updates are enabled the API is called first; a 401 ends the
// session, a 422 rejects the update, and other failures keep the change
// local.
func (m *Manager) UpdateProfile(ctx context.Context, upd ProfileUpdate) Result {
	res := m.updateProfile(ctx, upd)
	m.metrics.ObserveAuth("update_profile", res.Success)
	return res
}

func (m *Manager) updateProfile(ctx context.Context, upd ProfileUpdate) Result {
	m.mu.RLock()
	state, token := m.state, m.token
	var current User
	if m.user != nil {
		current = *m.user
	}
	m.mu.RUnlock()

	if state != Authenticated {
		return fail(MsgNotSignedIn)
	}
	if upd.IsEmpty() {
		return ok()
	}

	merged := upd.Apply(current)

	if m.remoteProfile {
		var raw json.RawMessage
		err := m.api.Do(ctx, "/auth/update-profile", gateway.RequestOptions{
			Method: http.MethodPut,
			Body:   m.dialect.profileBody(upd),
		}, &raw)

		var he *gateway.HTTPError
		switch {
		case err == nil:
			if server, perr := ParseUser(unwrapData(raw)); perr == nil {
				merged = upd.Apply(server)
			}
		case gateway.IsUnauthorized(err):
			m.expire(ctx, token)
			return fail(MsgSessionExpired)
		case errors.As(err, &he) && he.Status == http.StatusUnprocessableEntity:
			if details := he.Details(); len(details) > 0 {
				return fail(strings.Join(details, "; "))
			}
			return fail(he.Message)
		default:
			m.logger.WithError(err).WarnContext(ctx, "profile update not sent, keeping local change")
		}
	}

	m.credMu.Lock()
	if stored, _ := m.read(storage.KeyToken); stored != token {
		m.credMu.Unlock()
		return fail(MsgSessionExpired)
	}
	if err := m.persistUser(merged); err != nil {
		m.credMu.Unlock()
		m.logger.WithError(err).ErrorContext(ctx, "failed to persist profile")
		return fail(fmt.Sprintf("could not save profile: %v", err))
	}
	from, snap := m.swap(Authenticated, token, &merged)
	m.credMu.Unlock()
	m.notify(from, snap)
	return ok()
}

type verifyResponse struct {
	Valid *bool `json:"valid"`
}

// Verify asks the API whether the current token is still valid. The session
// ends on {"valid": false} or 401 and survives any other failure.
func (m *Manager) Verify(ctx context.Context) Result {
	m.mu.RLock()
	state, token := m.state, m.token
	m.mu.RUnlock()

	if state != Authenticated {
		return fail(MsgNotSignedIn)
	}

	var resp verifyResponse
	err := m.api.Do(ctx, "/auth/verify-token", gateway.RequestOptions{Method: http.MethodPost}, &resp)
	switch {
	case err == nil && resp.Valid != nil && !*resp.Valid:
		m.expire(ctx, token)
		return fail(MsgSessionExpired)
	case err == nil:
		return ok()
	case gateway.IsUnauthorized(err):
		m.expire(ctx, token)
		return fail(MsgSessionExpired)
	default:
		m.logger.WithError(err).WarnContext(ctx, "token verification failed, keeping cached session")
		return fail(failureMessage(err))
	}
}

// Refresh exchanges the current token for a new one.
func (m *Manager) Refresh(ctx context.Context) Result {
	return m.guarded("refresh", func() Result {
		m.mu.RLock()
		state, token := m.state, m.token
		m.mu.RUnlock()

		if state != Authenticated {
			return fail(MsgNotSignedIn)
		}

		var resp loginResponse
		err := m.api.Do(ctx, "/auth/refresh", gateway.RequestOptions{Method: http.MethodPost}, &resp)
		if err != nil {
			if gateway.IsUnauthorized(err) {
				m.expire(ctx, token)
				return fail(MsgSessionExpired)
			}
			return fail(failureMessage(err))
		}
		if resp.AccessToken == "" {
			return fail(MsgUnexpectedResponse)
		}

		m.credMu.Lock()
		defer m.credMu.Unlock()
		if stored, _ := m.read(storage.KeyToken); stored != token {
			return fail(MsgSessionExpired)
		}
		if err := m.store.Set(storage.KeyToken, resp.AccessToken); err != nil {
			return fail(fmt.Sprintf("could not save session: %v", err))
		}

		m.mu.Lock()
		if m.token == token {
			m.token = resp.AccessToken
		}
		m.mu.Unlock()
		return ok()
	})
}

// HandleUnauthorized ends the session when err is an HTTP 401 from any
// authenticated call, and reports whether it did.
func (m *Manager) HandleUnauthorized(err error) bool {
	if !gateway.IsUnauthorized(err) {
		return false
	}

	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	if token == "" {
		return false
	}

	m.expire(context.Background(), token)
	return true
}

// expire ends the session if token is still the stored one. A rejection
// that arrives after a sign-in or refresh stored a newer token is ignored.
func (m *Manager) expire(ctx context.Context, token string) {
	m.credMu.Lock()
	if stored, _ := m.read(storage.KeyToken); stored != token {
		m.credMu.Unlock()
		m.logger.DebugContext(ctx, "ignoring rejection of a replaced token")
		return
	}

	m.logger.InfoContext(ctx, "session rejected by server, signing out")
	m.clearStore()
	from, snap := m.swap(Anonymous, "", nil)
	m.credMu.Unlock()
	m.notify(from, snap)
}

func (m *Manager) guarded(key string, fn func() Result) Result {
	if m.guard == nil {
		return fn()
	}
	v, _, _ := m.guard.Do(key, func() (any, error) {
		return fn(), nil
	})
	return v.(Result)
}

func (m *Manager) commit(state State, token string, user *User) {
	m.notify(m.swap(state, token, user))
}

// swap replaces the in-memory session. Callers holding credMu call notify
// after releasing it so subscribers may call back into the Manager.
func (m *Manager) swap(state State, token string, user *User) (State, Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.state
	m.state, m.token, m.user = state, token, user
	return from, m.snapshotLocked()
}

func (m *Manager) notify(from State, snap Snapshot) {
	state := snap.State
	if from != state {
		m.logger.Debug("session state changed", "from", from.String(), "to", state.String())
	}
	m.metrics.ObserveTransition(from.String(), state.String())

	m.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Manager) read(key string) (string, bool) {
	v, present, err := m.store.Get(key)
	if err != nil {
		m.logger.Warn("failed to read stored credential", "key", key, "error", err)
		return "", false
	}
	return v, present && v != ""
}

func (m *Manager) persistUser(u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return m.store.Set(storage.KeyUser, string(data))
}

// restoreToken puts back the token that was stored before a failed sign-in,
// unless pending was replaced or cleared in the meantime.
func (m *Manager) restoreToken(prev, pending string) {
	m.credMu.Lock()
	defer m.credMu.Unlock()
	if stored, _ := m.read(storage.KeyToken); stored != pending {
		return
	}

	var err error
	if prev == "" {
		err = m.store.Remove(storage.KeyToken)
	} else {
		err = m.store.Set(storage.KeyToken, prev)
	}
	if err != nil {
		m.logger.Warn("failed to restore stored token", "error", err)
	}
}

func (m *Manager) clearStore() {
	for _, key := range []string{storage.KeyToken, storage.KeyUser} {
		if err := m.store.Remove(key); err != nil {
			m.logger.Warn("failed to clear stored credential", "key", key, "error", err)
		}
	}
}

// failureMessage turns a gateway error into a Result message.
func failureMessage(err error) string {
	var (
		ne *gateway.NetworkError
		he *gateway.HTTPError
		pe *gateway.ParseError
	)
	switch {
	case errors.As(err, &ne):
		return MsgNetwork
	case errors.As(err, &he):
		return he.Message
	case errors.As(err, &pe):
		return MsgUnexpectedResponse
	default:
		return err.Error()
	}
}
