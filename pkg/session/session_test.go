package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "valid-token"

// newTestServer fakes the two auth endpoints the store talks to. Only the
// fixed test token verifies.
func newTestServer(t *testing.T, user *User) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid or expired token"})
			return
		}
		_ = json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "Secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(authResponse{
			Token:     testToken,
			ExpiresAt: time.Now().Add(15 * time.Minute),
			User:      user,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoad_NoPersistedToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &User{ID: "u1"})
	store := New(srv.URL, &MemoryTokenStore{})

	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, StateUnauthenticated, store.State())
	assert.Nil(t, store.User())
}

func TestLoad_InvalidTokenSilentLogout(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &User{ID: "u1"})

	persisted := &MemoryTokenStore{}
	persisted.Write("stale-token", time.Now().Add(time.Hour))

	store := New(srv.URL, persisted)
	require.NoError(t, store.Load(context.Background()))

	assert.Equal(t, StateUnauthenticated, store.State())
	_, _, ok := persisted.Read()
	assert.False(t, ok, "stale token should be cleared")
}

func TestLoad_ValidTokenAuthenticates(t *testing.T) {
	t.Parallel()

	user := &User{ID: "u1", Email: "u@example.com", Role: "buyer"}
	srv := newTestServer(t, user)

	persisted := &MemoryTokenStore{}
	persisted.Write(testToken, time.Now().Add(time.Minute))

	store := New(srv.URL, persisted, WithSlide(0, time.Hour))
	require.NoError(t, store.Load(context.Background()))

	assert.Equal(t, StateAuthenticated, store.State())
	require.NotNil(t, store.User())
	assert.Equal(t, "u1", store.User().ID)

	// Load pushes the persisted expiry out by the session TTL.
	_, exp, ok := persisted.Read()
	require.True(t, ok)
	assert.True(t, exp.After(time.Now().Add(30*time.Minute)))
}

func TestLoginLogout(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &User{ID: "u1", Role: "seller", VerifiedSeller: true})
	persisted := &MemoryTokenStore{}
	store := New(srv.URL, persisted, WithSlide(0, time.Hour))

	_, err := store.Login(context.Background(), "u@example.com", "wrong")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, StateUnauthenticated, store.State())

	user, err := store.Login(context.Background(), "u@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, StateAuthenticated, store.State())
	assert.Equal(t, testToken, store.Token())

	tok, _, ok := persisted.Read()
	require.True(t, ok)
	assert.Equal(t, testToken, tok)

	store.Logout()
	assert.Equal(t, StateUnauthenticated, store.State())
	assert.Empty(t, store.Token())
	_, _, ok = persisted.Read()
	assert.False(t, ok)
}

func TestSlide_ExtendsPersistedExpiry(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &User{ID: "u1"})
	persisted := &MemoryTokenStore{}
	store := New(srv.URL, persisted, WithSlide(0, time.Hour))

	_, err := store.Login(context.Background(), "u@example.com", "Secret123")
	require.NoError(t, err)

	// Rewind the persisted expiry, then slide: it must move forward again
	// without touching the token itself.
	persisted.Write(testToken, time.Now().Add(time.Minute))
	store.slide()

	tok, exp, ok := persisted.Read()
	require.True(t, ok)
	assert.Equal(t, testToken, tok)
	assert.True(t, exp.After(time.Now().Add(30*time.Minute)))

	// After logout the slide is a no-op.
	store.Logout()
	store.slide()
	_, _, ok = persisted.Read()
	assert.False(t, ok)
}

func TestGuard(t *testing.T) {
	t.Parallel()

	store := New("http://unused", &MemoryTokenStore{})

	assert.Equal(t, RedirectLogin, store.Guard("", false))

	store.setState(StateLoading)
	assert.Equal(t, Wait, store.Guard("", false))

	setUser := func(u *User) {
		store.mu.Lock()
		store.user = u
		store.state = StateAuthenticated
		store.mu.Unlock()
	}

	setUser(&User{ID: "b1", Role: "buyer"})
	assert.Equal(t, Allow, store.Guard("", false))
	assert.Equal(t, RedirectUnauthorized, store.Guard("seller", false))

	setUser(&User{ID: "s1", Role: "seller"})
	assert.Equal(t, Allow, store.Guard("seller", false))
	assert.Equal(t, RedirectVerify, store.Guard("seller", true))

	setUser(&User{ID: "s2", Role: "seller", VerifiedSeller: true})
	assert.Equal(t, Allow, store.Guard("seller", true))

	setUser(&User{ID: "a1", Role: "admin"})
	assert.Equal(t, Allow, store.Guard("seller", true))

	// An authenticated state without a profile never panics.
	setUser(nil)
	assert.Equal(t, RedirectLogin, store.Guard("seller", false))
}
