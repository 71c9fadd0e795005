// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

/*
session.go - GLPI Session Lifecycle

GLPI's REST API is stateful: every call carries a Session-Token obtained
from an initSession exchange, and the server expires tokens at its own
discretion. The SessionManager owns that token lifecycle:

  - Acquires a session via the App-Token + user-token login exchange
  - Tracks when the session was obtained and last used
  - Re-authenticates on demand when the executor reports a 401/403
  - Serializes concurrent renewals to exactly one in-flight login
    (single-flight): concurrent callers needing renewal wait for the
    one login instead of each issuing their own

State machine:

	NoSession -> Authenticating -> Valid -> (401/403) -> Invalid
	     ^                                                  |
	     +-------------- Authenticating <-------------------+

AuthFailure is terminal: it is reached after maxReauthAttempts
consecutive failed logins and requires operator intervention.
*/
package glpi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/metrics"
)

// SessionState tracks where the manager is in the session lifecycle.
type SessionState int32

const (
	StateNoSession SessionState = iota
	StateAuthenticating
	StateValid
	StateInvalid

	// StateAuthFailure is terminal; see SessionManager.
	StateAuthFailure
)

// String returns the state name for logging.
func (s SessionState) String() string {
	switch s {
	case StateNoSession:
		return "no-session"
	case StateAuthenticating:
		return "authenticating"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	case StateAuthFailure:
		return "auth-failure"
	default:
		return "unknown"
	}
}

// Session is an authenticated GLPI session token. At most one valid
// Session exists per process; concurrent requests share it.
type Session struct {
	Token      string
	ObtainedAt time.Time

	lastUsed atomic.Int64 // unix nanos
}

// LastUsedAt reports when the session last carried a request.
func (s *Session) LastUsedAt() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	// BaseURL is the GLPI API root, e.g. "https://glpi.example.com/apirest.php".
	BaseURL string

	// AppToken and UserToken are the GLPI API credentials.
	AppToken  string
	UserToken string

	// LoginTimeout bounds a single initSession exchange. Default: 10s.
	LoginTimeout time.Duration

	// MaxReauthAttempts is the number of consecutive failed logins
	// tolerated before the manager enters the terminal AuthFailure
	// state. Default: 2.
	MaxReauthAttempts int

	// HTTPClient overrides the HTTP client used for login exchanges.
	// Intended for tests.
	HTTPClient *http.Client
}

// SessionManager owns the authenticated session token lifecycle.
// Safe for concurrent use; renewal is the only mutation and it is
// mutually exclusive via the single-flight gate.
type SessionManager struct {
	baseURL      string
	appToken     string
	userToken    string
	client       *http.Client
	loginTimeout time.Duration
	maxReauth    int

	mu       sync.Mutex
	state    SessionState
	current  *Session
	failures int // consecutive failed logins

	renew singleflight.Group
}

// NewSessionManager creates a session manager. No login is performed
// until the first EnsureValid call.
func NewSessionManager(cfg SessionConfig) *SessionManager {
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 10 * time.Second
	}
	if cfg.MaxReauthAttempts <= 0 {
		cfg.MaxReauthAttempts = 2
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.LoginTimeout}
	}

	return &SessionManager{
		baseURL:      cfg.BaseURL,
		appToken:     cfg.AppToken,
		userToken:    cfg.UserToken,
		client:       client,
		loginTimeout: cfg.LoginTimeout,
		maxReauth:    cfg.MaxReauthAttempts,
		state:        StateNoSession,
	}
}

// EnsureValid returns a currently valid session, performing a login if
// none exists or the held session has been invalidated. Concurrent
// callers during a renewal block on the single in-flight login and all
// receive its result.
func (m *SessionManager) EnsureValid(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	switch {
	case m.state == StateAuthFailure:
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d consecutive login failures, operator intervention required", ErrAuthFailure, m.failures)
	case m.state == StateValid && m.current != nil:
		sess := m.current
		m.mu.Unlock()
		sess.touch()
		return sess, nil
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err, _ := m.renew.Do("renew", func() (interface{}, error) {
		return m.login()
	})
	if err != nil {
		return nil, err
	}

	sess := result.(*Session)
	sess.touch()
	return sess, nil
}

// Invalidate marks the current session unusable. Called by the request
// executor upon receiving 401/403. Idempotent; the next EnsureValid
// triggers a renewal.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateValid {
		m.state = StateInvalid
		m.current = nil
		metrics.SessionValid.Set(0)
		logging.Debug().Msg("glpi session invalidated")
	}
}

// SessionValid reports whether a valid session is currently held,
// without triggering a login.
func (m *SessionManager) SessionValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateValid && m.current != nil
}

// State returns the current lifecycle state.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Logout terminates the upstream session via killSession and drops the
// local token. Idempotent; a failed killSession only logs, since the
// local session is discarded either way.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	sess := m.current
	m.state = StateNoSession
	m.current = nil
	m.mu.Unlock()
	metrics.SessionValid.Set(0)

	if sess == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/killSession", http.NoBody)
	if err != nil {
		return fmt.Errorf("create killSession request: %w", err)
	}
	req.Header.Set("App-Token", m.appToken)
	req.Header.Set("Session-Token", sess.Token)

	resp, err := m.client.Do(req)
	if err != nil {
		logging.Warn().Err(err).Msg("glpi killSession failed")
		return nil
	}
	defer resp.Body.Close()

	logging.Info().Int("status", resp.StatusCode).Msg("glpi session terminated")
	return nil
}

// login performs one initSession exchange. It runs inside the
// single-flight gate, so at most one login is in flight at a time.
//
// The login deliberately uses a detached context: co-waiters of the
// single flight must not lose the renewal because the first caller's
// request context was canceled.
func (m *SessionManager) login() (*Session, error) {
	m.mu.Lock()
	m.state = StateAuthenticating
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.loginTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/initSession", http.NoBody)
	if err != nil {
		return nil, m.loginFailed(fmt.Errorf("create initSession request: %w", err))
	}
	req.Header.Set("App-Token", m.appToken)
	req.Header.Set("Authorization", "user_token "+m.userToken)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, m.loginFailed(fmt.Errorf("initSession request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, m.loginFailed(fmt.Errorf("initSession returned status %d", resp.StatusCode))
	}

	var payload struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, m.loginFailed(fmt.Errorf("decode initSession response: %w", err))
	}
	if payload.SessionToken == "" {
		return nil, m.loginFailed(fmt.Errorf("initSession returned empty session token"))
	}

	sess := &Session{
		Token:      payload.SessionToken,
		ObtainedAt: time.Now(),
	}
	sess.touch()

	m.mu.Lock()
	m.state = StateValid
	m.current = sess
	m.failures = 0
	m.mu.Unlock()

	metrics.SessionRenewalsTotal.WithLabelValues("success").Inc()
	metrics.SessionValid.Set(1)
	logging.Info().Msg("glpi session established")

	return sess, nil
}

// loginFailed records a failed login and decides whether the manager
// enters the terminal AuthFailure state.
func (m *SessionManager) loginFailed(cause error) error {
	metrics.SessionRenewalsTotal.WithLabelValues("failure").Inc()
	metrics.SessionValid.Set(0)

	m.mu.Lock()
	m.failures++
	failures := m.failures
	terminal := failures >= m.maxReauth
	if terminal {
		m.state = StateAuthFailure
	} else {
		m.state = StateInvalid
	}
	m.mu.Unlock()

	if terminal {
		logging.Error().Err(cause).Int("failures", failures).Msg("glpi authentication exhausted, entering terminal failure state")
		return fmt.Errorf("%w: %v", ErrAuthFailure, cause)
	}

	logging.Warn().Err(cause).Int("failures", failures).Msg("glpi login failed")
	return fmt.Errorf("glpi: session login failed: %w", cause)
}
