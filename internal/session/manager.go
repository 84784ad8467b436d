package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/kipsunya/storefront-go/internal/api"
)

// State is the authentication lifecycle state.
type State int

const (
	// StateInitializing is the state before Restore has run.
	StateInitializing State = iota

	// StateAnonymous means no session is held.
	StateAnonymous

	// StateAuthenticated means a token pair and account record are held.
	StateAuthenticated

	// StateRefreshing means an expired access token is being replaced.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Event describes an authentication state transition.
type Event struct {
	State State
	User  *api.User
}

// Manager owns the session: the current account, the token pair, expiry
// tracking, and refresh-on-demand. It is the single writer of persisted
// session state; other components read tokens through it.
type Manager struct {
	client *api.Client
	store  *Store

	mu      sync.RWMutex
	state   State
	user    *api.User
	access  string
	refresh string

	refreshGroup singleflight.Group

	handlerMu sync.Mutex
	handlers  []func(Event)
}

// NewManager creates a session manager in the Initializing state. Call
// Restore to resume a persisted session or settle into Anonymous.
func NewManager(client *api.Client, store *Store) *Manager {
	return &Manager{
		client: client,
		store:  store,
		state:  StateInitializing,
	}
}

// OnChange registers a handler called after every state transition.
// Handlers run synchronously on the transitioning goroutine.
func (m *Manager) OnChange(fn func(Event)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.handlers = append(m.handlers, fn)
}

func (m *Manager) notify(ev Event) {
	m.handlerMu.Lock()
	handlers := make([]func(Event), len(m.handlers))
	copy(handlers, m.handlers)
	m.handlerMu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsAuthenticated reports whether a session is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateAuthenticated || m.state == StateRefreshing
}

// User returns a copy of the current account record, or nil.
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// HasRole reports whether the current account holds the given role.
func (m *Manager) HasRole(role api.Role) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.Role == role
}

// Token returns the current access token without refreshing it. Callers
// that need a guaranteed-fresh token must use WithToken.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access
}

// Restore resumes a persisted session at startup. Failures degrade
// silently to Anonymous: an unauthenticated start is a normal state,
// not an error.
func (m *Manager) Restore(ctx context.Context) {
	ps, err := m.store.Load()
	if err != nil {
		// A corrupt session file would fail again on every startup;
		// discard it rather than keep re-reading it.
		if !errors.Is(err, ErrNoSession) {
			log.Warn().Err(err).Msg("discarding unreadable session state")
			m.toAnonymous(true)
			return
		}
		m.toAnonymous(false)
		return
	}

	if IsTokenExpired(ps.AccessToken) {
		if ps.RefreshToken != "" && !IsTokenExpired(ps.RefreshToken) {
			pair, err := m.client.Refresh(ctx, ps.RefreshToken)
			if err == nil {
				m.adoptSession(pair.AccessToken, orDefault(pair.RefreshToken, ps.RefreshToken), ps.User)
				return
			}
			log.Debug().Err(err).Msg("token refresh failed during restore")
		}
		m.toAnonymous(true)
		return
	}

	user, err := m.client.Verify(ctx, ps.AccessToken)
	if err != nil {
		log.Debug().Err(err).Msg("session verification failed during restore")
		m.toAnonymous(true)
		return
	}

	m.adoptSession(ps.AccessToken, ps.RefreshToken, user)
}

// Login exchanges credentials for a session. On failure no local or
// persisted state is mutated.
func (m *Manager) Login(ctx context.Context, email, password string) (*api.User, error) {
	resp, err := m.client.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	if err := m.store.Save(&PersistedSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = resp.User
	m.access = resp.AccessToken
	m.refresh = resp.RefreshToken
	m.mu.Unlock()

	log.Info().Str("email", resp.User.Email).Str("role", resp.User.Role.String()).Msg("logged in")

	m.notify(Event{State: StateAuthenticated, User: resp.User})

	return resp.User, nil
}

// Register creates an account without authenticating it. The caller stays
// Anonymous and must log in explicitly; registration and authentication
// are deliberately decoupled.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) (string, error) {
	resp, err := m.client.Register(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Message != "" {
		return resp.Message, nil
	}
	return "Registration successful. Please log in to continue.", nil
}

// Logout clears the session. The server-side call is best-effort; local
// state is cleared regardless of its outcome.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	access, refresh := m.access, m.refresh
	m.mu.RUnlock()

	if access != "" {
		if err := m.client.Logout(ctx, access, refresh); err != nil {
			log.Debug().Err(err).Msg("logout request failed")
		}
	}

	m.toAnonymous(true)
}

// UpdateProfile applies a partial profile update and replaces the cached
// account record with the backend's response.
func (m *Manager) UpdateProfile(ctx context.Context, updates map[string]any) (*api.User, error) {
	var user *api.User
	err := m.WithToken(ctx, func(ctx context.Context, token string) error {
		u, err := m.client.UpdateProfile(ctx, token, updates)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.user = user
	access, refresh := m.access, m.refresh
	m.mu.Unlock()

	if err := m.store.Save(&PersistedSession{AccessToken: access, RefreshToken: refresh, User: user}); err != nil {
		log.Warn().Err(err).Msg("failed to persist updated profile")
	}

	m.notify(Event{State: StateAuthenticated, User: user})

	return user, nil
}

// WithToken runs fn with a non-expired access token, refreshing first if
// needed. Expiry is checked immediately before use; a stale token is
// never attached to a request. If the refresh token is itself expired or
// rejected, the session is destroyed and ErrSessionExpired is returned.
func (m *Manager) WithToken(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	m.mu.RLock()
	state, access := m.state, m.access
	m.mu.RUnlock()

	if state != StateAuthenticated && state != StateRefreshing {
		return api.ErrUnauthenticated
	}

	if IsTokenExpired(access) {
		refreshed, err := m.refreshShared(ctx)
		if err != nil {
			m.toAnonymous(true)
			return api.ErrSessionExpired
		}
		access = refreshed
	}

	return fn(ctx, access)
}

// refreshShared coalesces concurrent refreshes: all callers that find the
// access token expired share a single in-flight refresh call instead of
// racing and invalidating each other's tokens.
func (m *Manager) refreshShared(ctx context.Context) (string, error) {
	v, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		m.mu.Lock()
		access, refresh := m.access, m.refresh
		// A caller that queued behind the winning refresh finds a fresh
		// token here and returns it without another network call.
		if !IsTokenExpired(access) {
			m.mu.Unlock()
			return access, nil
		}
		if refresh == "" || IsTokenExpired(refresh) {
			m.mu.Unlock()
			return "", api.ErrSessionExpired
		}
		m.state = StateRefreshing
		user := m.user
		m.mu.Unlock()

		m.notify(Event{State: StateRefreshing, User: user})

		pair, err := m.client.Refresh(ctx, refresh)
		if err != nil {
			return "", err
		}

		newRefresh := orDefault(pair.RefreshToken, refresh)

		m.mu.Lock()
		m.access = pair.AccessToken
		m.refresh = newRefresh
		m.state = StateAuthenticated
		user = m.user
		m.mu.Unlock()

		if err := m.store.Save(&PersistedSession{
			AccessToken:  pair.AccessToken,
			RefreshToken: newRefresh,
			User:         user,
		}); err != nil {
			log.Warn().Err(err).Msg("failed to persist refreshed tokens")
		}

		log.Debug().Msg("access token refreshed")

		m.notify(Event{State: StateAuthenticated, User: user})

		return pair.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// adoptSession installs a restored session.
func (m *Manager) adoptSession(access, refresh string, user *api.User) {
	if err := m.store.Save(&PersistedSession{AccessToken: access, RefreshToken: refresh, User: user}); err != nil {
		log.Warn().Err(err).Msg("failed to persist restored session")
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = user
	m.access = access
	m.refresh = refresh
	m.mu.Unlock()

	m.notify(Event{State: StateAuthenticated, User: user})
}

// toAnonymous destroys local session state. The persisted slots are
// cleared as a group when clear is true.
func (m *Manager) toAnonymous(clear bool) {
	if clear {
		if err := m.store.Clear(); err != nil {
			log.Warn().Err(err).Msg("failed to clear persisted session")
		}
	}

	m.mu.Lock()
	m.state = StateAnonymous
	m.user = nil
	m.access = ""
	m.refresh = ""
	m.mu.Unlock()

	m.notify(Event{State: StateAnonymous})
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
