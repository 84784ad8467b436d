package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kipsunya/storefront-go/internal/api"
)

// fakeBackend implements the auth endpoints the manager talks to.
type fakeBackend struct {
	mu sync.Mutex

	// tokens minted on login
	access  string
	refresh string

	failRefresh  bool
	refreshCalls int32
	logoutCalls  int32
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"message": "Invalid password",
			})
			return
		}

		b.mu.Lock()
		access, refresh := b.access, b.refresh
		b.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"accessToken":  access,
			"refreshToken": refresh,
			"user": map[string]any{
				"id":         1,
				"email":      req.Email,
				"first_name": "Alice",
				"last_name":  "Tester",
				"role":       "customer",
			},
		})
	})

	mux.HandleFunc("POST /api/auth/register/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": "Registration successful. Please log in to continue.",
		})
	})

	mux.HandleFunc("POST /api/auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshCalls, 1)
		time.Sleep(50 * time.Millisecond)

		b.mu.Lock()
		fail := b.failRefresh
		access := b.access
		b.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "token blacklisted"})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"access": access})
	})

	mux.HandleFunc("GET /api/auth/verify/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		access := b.access
		b.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+access {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"user": map[string]any{
				"id": 1, "email": "a@b.com",
				"first_name": "Alice", "last_name": "Tester",
				"role": "customer",
			},
		})
	})

	mux.HandleFunc("POST /api/auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.logoutCalls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	mux.HandleFunc("PUT /api/auth/profile/", func(w http.ResponseWriter, r *http.Request) {
		var updates map[string]any
		_ = json.NewDecoder(r.Body).Decode(&updates)

		user := map[string]any{
			"id": 1, "email": "a@b.com",
			"first_name": "Alice", "last_name": "Tester",
			"role": "customer",
		}
		for k, v := range updates {
			user[k] = v
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "user": user})
	})

	return mux
}

func newTestManager(t *testing.T, b *fakeBackend) (*Manager, *Store, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	return NewManager(api.New(srv.URL), store), store, srv
}

func TestManager_LoginSuccess(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(time.Hour))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, store, _ := newTestManager(t, b)

	user, err := m.Login(t.Context(), "a@b.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, api.RoleCustomer, user.Role)

	assert.Equal(t, StateAuthenticated, m.State())
	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, b.access, m.Token())

	// tokens are persisted as a group
	ps, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, b.access, ps.AccessToken)
	assert.Equal(t, b.refresh, ps.RefreshToken)
	require.NotNil(t, ps.User)
}

func TestManager_LoginFailure(t *testing.T) {
	b := &fakeBackend{}
	m, store, _ := newTestManager(t, b)

	_, err := m.Login(t.Context(), "a@b.com", "wrong")
	require.Error(t, err)

	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid password", apiErr.Message)

	// no local or persisted state was mutated
	assert.False(t, m.IsAuthenticated())
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RegisterDoesNotAuthenticate(t *testing.T) {
	b := &fakeBackend{}
	m, store, _ := newTestManager(t, b)

	message, err := m.Register(t.Context(), api.RegisterRequest{
		Email:    "new@b.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Contains(t, message, "log in")

	// registration leaves the caller anonymous
	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.Token())
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestManager_LogoutAlwaysClearsLocally(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(time.Hour))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, store, srv := newTestManager(t, b)

	_, err := m.Login(t.Context(), "a@b.com", "secret1")
	require.NoError(t, err)

	// the server-side logout call is best-effort
	srv.Close()

	m.Logout(t.Context())

	assert.Equal(t, StateAnonymous, m.State())
	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.Token())
	assert.Nil(t, m.User())

	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RestoreValidSession(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(time.Hour))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, store, _ := newTestManager(t, b)

	require.NoError(t, store.Save(&PersistedSession{
		AccessToken:  b.access,
		RefreshToken: b.refresh,
		User:         &api.User{ID: 1, Email: "a@b.com"},
	}))

	m.Restore(t.Context())

	assert.Equal(t, StateAuthenticated, m.State())
	require.NotNil(t, m.User())
	assert.Equal(t, "a@b.com", m.User().Email)
}

func TestManager_RestoreRefreshesExpiredAccess(t *testing.T) {
	b := &fakeBackend{}
	expired := tokenExpiring(t, time.Now().Add(-time.Minute))
	b.access = tokenExpiring(t, time.Now().Add(time.Hour))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, store, _ := newTestManager(t, b)

	require.NoError(t, store.Save(&PersistedSession{
		AccessToken:  expired,
		RefreshToken: b.refresh,
		User:         &api.User{ID: 1, Email: "a@b.com"},
	}))

	m.Restore(t.Context())

	assert.Equal(t, StateAuthenticated, m.State())
	assert.Equal(t, b.access, m.Token())
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.refreshCalls))
}

func TestManager_RestoreBothExpired(t *testing.T) {
	b := &fakeBackend{}
	m, store, _ := newTestManager(t, b)

	require.NoError(t, store.Save(&PersistedSession{
		AccessToken:  tokenExpiring(t, time.Now().Add(-time.Hour)),
		RefreshToken: tokenExpiring(t, time.Now().Add(-time.Minute)),
	}))

	m.Restore(t.Context())

	// degrades silently to anonymous and clears the stale tokens
	assert.Equal(t, StateAnonymous, m.State())
	assert.Equal(t, int32(0), atomic.LoadInt32(&b.refreshCalls))
	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RestoreVerifyRejected(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(time.Hour))

	m, store, _ := newTestManager(t, b)

	// a token the backend does not recognise
	require.NoError(t, store.Save(&PersistedSession{
		AccessToken:  tokenExpiring(t, time.Now().Add(2*time.Hour)),
		RefreshToken: "",
	}))

	m.Restore(t.Context())

	assert.Equal(t, StateAnonymous, m.State())
	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RestoreNoSession(t *testing.T) {
	b := &fakeBackend{}
	m, _, _ := newTestManager(t, b)

	m.Restore(t.Context())

	assert.Equal(t, StateAnonymous, m.State())
}

func TestManager_RestoreDiscardsCorruptSession(t *testing.T) {
	b := &fakeBackend{}

	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte("{not json"), 0600))

	m := NewManager(api.New(srv.URL), store)
	m.Restore(t.Context())

	assert.Equal(t, StateAnonymous, m.State())

	// the unreadable file is gone, so the next startup is clean
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestManager_WithTokenFresh(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(time.Hour))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, _, _ := newTestManager(t, b)
	_, err := m.Login(t.Context(), "a@b.com", "secret1")
	require.NoError(t, err)

	var got string
	err = m.WithToken(t.Context(), func(ctx context.Context, token string) error {
		got = token
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, b.access, got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&b.refreshCalls))
}

func TestManager_WithTokenRefreshesTransparently(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(-time.Minute))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, _, _ := newTestManager(t, b)
	_, err := m.Login(t.Context(), "a@b.com", "secret1")
	require.NoError(t, err)

	// the backend will mint a fresh access token on refresh
	fresh := tokenExpiring(t, time.Now().Add(time.Hour))
	b.mu.Lock()
	b.access = fresh
	b.mu.Unlock()

	var got string
	err = m.WithToken(t.Context(), func(ctx context.Context, token string) error {
		got = token
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.refreshCalls))
	assert.Equal(t, StateAuthenticated, m.State())
}

func TestManager_WithTokenCoalescesRefreshes(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(-time.Minute))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, _, _ := newTestManager(t, b)
	_, err := m.Login(t.Context(), "a@b.com", "secret1")
	require.NoError(t, err)

	fresh := tokenExpiring(t, time.Now().Add(time.Hour))
	b.mu.Lock()
	b.access = fresh
	b.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.WithToken(t.Context(), func(ctx context.Context, token string) error {
				assert.Equal(t, fresh, token)
				return nil
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	// concurrent callers share a single in-flight refresh
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.refreshCalls))
}

func TestManager_WithTokenSessionExpired(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(-time.Minute))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, store, _ := newTestManager(t, b)
	_, err := m.Login(t.Context(), "a@b.com", "secret1")
	require.NoError(t, err)

	b.mu.Lock()
	b.failRefresh = true
	b.mu.Unlock()

	err = m.WithToken(t.Context(), func(ctx context.Context, token string) error {
		t.Fatal("callback must not run with an unrefreshable token")
		return nil
	})
	require.ErrorIs(t, err, api.ErrSessionExpired)

	// an irrecoverable refresh failure forces logout
	assert.Equal(t, StateAnonymous, m.State())
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestManager_WithTokenUnauthenticated(t *testing.T) {
	b := &fakeBackend{}
	m, _, _ := newTestManager(t, b)
	m.Restore(t.Context())

	err := m.WithToken(t.Context(), func(ctx context.Context, token string) error {
		t.Fatal("callback must not run without a session")
		return nil
	})
	require.ErrorIs(t, err, api.ErrUnauthenticated)
}

func TestManager_UpdateProfile(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(time.Hour))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, store, _ := newTestManager(t, b)
	_, err := m.Login(t.Context(), "a@b.com", "secret1")
	require.NoError(t, err)

	user, err := m.UpdateProfile(t.Context(), map[string]any{"first_name": "Alicia"})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", user.FirstName)
	assert.Equal(t, "Alicia", m.User().FirstName)

	ps, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, ps.User)
	assert.Equal(t, "Alicia", ps.User.FirstName)
}

func TestManager_OnChangeEvents(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(time.Hour))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, _, _ := newTestManager(t, b)

	var mu sync.Mutex
	var states []State
	m.OnChange(func(ev Event) {
		mu.Lock()
		states = append(states, ev.State)
		mu.Unlock()
	})

	_, err := m.Login(t.Context(), "a@b.com", "secret1")
	require.NoError(t, err)
	m.Logout(t.Context())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateAuthenticated, StateAnonymous}, states)
}

func TestManager_HasRole(t *testing.T) {
	b := &fakeBackend{}
	b.access = tokenExpiring(t, time.Now().Add(time.Hour))
	b.refresh = tokenExpiring(t, time.Now().Add(24*time.Hour))

	m, _, _ := newTestManager(t, b)

	assert.False(t, m.HasRole(api.RoleCustomer))

	_, err := m.Login(t.Context(), "a@b.com", "secret1")
	require.NoError(t, err)

	assert.True(t, m.HasRole(api.RoleCustomer))
	assert.False(t, m.HasRole(api.RoleAdmin))
}
