// Package session holds the client side of the marketplace auth lifecycle:
// a token plus cached profile, a startup verification call, and a sliding
// cookie refresh that runs until logout.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	VerifiedSeller bool   `json:"verified_seller"`
}

// TokenStore abstracts the persisted cookie: the browser cookie in the real
// UI, an in-memory value in tests and CLI tools.
type TokenStore interface {
	Read() (token string, expiresAt time.Time, ok bool)
	Write(token string, expiresAt time.Time)
	Clear()
}

type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
	exp   time.Time
}

func (m *MemoryTokenStore) Read() (string, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", time.Time{}, false
	}
	return m.token, m.exp, true
}

func (m *MemoryTokenStore) Write(token string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.exp = token, expiresAt
}

func (m *MemoryTokenStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.exp = "", time.Time{}
}

// APIError is the typed failure of every session call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Store owns the session lifecycle explicitly: the sliding-refresh ticker is
// a cancellable background task started on login and stopped on logout, not
// a global side effect.
type Store struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore

	// SlideEvery is how often the ticker re-persists the token expiry;
	// SessionTTL is how far each slide pushes it. The slide never contacts
	// the server, mirroring the trust-the-client design of the original UI.
	slideEvery time.Duration
	sessionTTL time.Duration

	mu     sync.Mutex
	state  State
	token  string
	user   *User
	cancel context.CancelFunc
}

type Option func(*Store)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.httpClient = c }
}

func WithSlide(every, ttl time.Duration) Option {
	return func(s *Store) { s.slideEvery = every; s.sessionTTL = ttl }
}

func New(baseURL string, tokens TokenStore, opts ...Option) *Store {
	s := &Store{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tokens:     tokens,
		slideEvery: time.Minute,
		sessionTTL: 24 * time.Hour,
		state:      StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Load is the startup path: read the persisted token, verify it against
// /api/auth/me, slide the expiry on success, silently log out on failure.
func (s *Store) Load(ctx context.Context) error {
	token, _, ok := s.tokens.Read()
	if !ok {
		s.setState(StateUnauthenticated)
		return nil
	}

	s.mu.Lock()
	s.state = StateLoading
	s.token = token
	s.mu.Unlock()

	var user User
	if err := s.call(ctx, http.MethodGet, "/api/auth/me", nil, token, &user); err != nil {
		// Verification failure means silent logout, never a surfaced error.
		s.Logout()
		return nil
	}

	exp := time.Now().Add(s.sessionTTL)
	s.tokens.Write(token, exp)

	s.mu.Lock()
	s.user = &user
	s.state = StateAuthenticated
	s.mu.Unlock()
	s.startSliding()
	return nil
}

func (s *Store) Login(ctx context.Context, email, password string) (*User, error) {
	return s.authenticate(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (s *Store) Register(ctx context.Context, email, password, name, role string) (*User, error) {
	return s.authenticate(ctx, "/api/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
		"role":     role,
	})
}

func (s *Store) authenticate(ctx context.Context, path string, body map[string]string) (*User, error) {
	var res authResponse
	if err := s.call(ctx, http.MethodPost, path, body, "", &res); err != nil {
		return nil, err
	}

	s.tokens.Write(res.Token, time.Now().Add(s.sessionTTL))

	s.mu.Lock()
	s.token = res.Token
	s.user = res.User
	s.state = StateAuthenticated
	s.mu.Unlock()
	s.startSliding()
	return res.User, nil
}

// Logout clears the persisted token and stops the ticker. The server keeps
// no session state, so there is nothing to revoke remotely.
func (s *Store) Logout() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.token = ""
	s.user = nil
	s.state = StateUnauthenticated
	s.mu.Unlock()
	s.tokens.Clear()
}

// startSliding arms the refresh ticker. It is only ever called with a token
// already held, so the ticker and a concurrent Load cannot race into an
// empty session.
func (s *Store) startSliding() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if s.slideEvery <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		ticker := time.NewTicker(s.slideEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.slide()
			}
		}
	}()
}

// slide re-persists the same token with a fresh expiry. Idempotent:
// rewriting the cookie twice is harmless.
func (s *Store) slide() {
	s.mu.Lock()
	token := s.token
	ttl := s.sessionTTL
	s.mu.Unlock()
	if token == "" {
		return
	}
	s.tokens.Write(token, time.Now().Add(ttl))
}

type Decision int

const (
	Allow Decision = iota
	Wait
	RedirectLogin
	RedirectUnauthorized
	RedirectVerify
)

// Guard is the route-guard decision for a protected view. It blocks while
// the store is still loading and otherwise mirrors the server-side checks;
// the API re-verifies every call regardless.
func (s *Store) Guard(requiredRole string, needVerifiedSeller bool) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateLoading:
		return Wait
	case StateUnauthenticated:
		return RedirectLogin
	}

	// A malformed auth response can leave an authenticated state with no
	// profile; treat it as logged out rather than dereferencing nil.
	if s.user == nil {
		return RedirectLogin
	}

	if requiredRole != "" && s.user.Role != requiredRole && s.user.Role != "admin" {
		return RedirectUnauthorized
	}
	if needVerifiedSeller && s.user.Role != "admin" && !s.user.VerifiedSeller {
		return RedirectVerify
	}
	return Allow
}

func (s *Store) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Store) call(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message any `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprint(apiErr.Message)}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
