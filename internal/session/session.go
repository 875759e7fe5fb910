// Package session holds the dashboard-side authentication context for calls
// to the scoring API, plus the small per-user scoring history. Persistence
// goes through the Store port so tests can substitute an in-memory store.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultHistoryLimit caps the per-user scoring history at the five most
// recent submissions.
const DefaultHistoryLimit = 5

// Session is one authenticated dashboard session bound to an upstream token.
type Session struct {
	ID        string         `json:"id"`
	Token     string         `json:"-"`
	Username  string         `json:"username,omitempty"`
	User      map[string]any `json:"user,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// HistoryEntry is one retained scoring submission.
type HistoryEntry struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Payload   map[string]any `json:"payload"`
	Result    map[string]any `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store is the storage port for sessions and history.
type Store interface {
	SaveSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	AppendHistory(ctx context.Context, entry HistoryEntry, limit int) error
	ListHistory(ctx context.Context, username string, limit int) ([]HistoryEntry, error)
	Close() error
}

// ErrNotFound is returned by stores when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Manager creates, resolves and ends sessions against a Store.
type Manager struct {
	store        Store
	historyLimit int
}

func NewManager(store Store, historyLimit int) *Manager {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Manager{store: store, historyLimit: historyLimit}
}

// Begin persists a new session for a freshly obtained token. Expiry comes
// from the token's exp claim when one is present.
func (m *Manager) Begin(ctx context.Context, token, username string, user map[string]any) (*Session, error) {
	s := Session{
		ID:        uuid.NewString(),
		Token:     token,
		Username:  username,
		User:      user,
		CreatedAt: time.Now().UTC(),
	}
	if exp, ok := TokenExpiry(token); ok {
		utc := exp.UTC()
		s.ExpiresAt = &utc
	}
	if err := m.store.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Resolve returns the session for an ID, or nil when it is missing or its
// token is expired. Expired sessions are removed as a side effect.
func (m *Manager) Resolve(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	s, err := m.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !TokenUsable(s.Token, time.Now()) {
		_ = m.store.DeleteSession(ctx, id)
		return nil, nil
	}
	return s, nil
}

// End removes a session. Missing sessions are not an error.
func (m *Manager) End(ctx context.Context, id string) error {
	err := m.store.DeleteSession(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// RecordScore appends a scoring submission to the user's capped history.
func (m *Manager) RecordScore(ctx context.Context, username string, payload, result map[string]any) error {
	entry := HistoryEntry{
		ID:        uuid.NewString(),
		Username:  username,
		Payload:   payload,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	return m.store.AppendHistory(ctx, entry, m.historyLimit)
}

// History lists the user's retained submissions, most recent first.
func (m *Manager) History(ctx context.Context, username string) ([]HistoryEntry, error) {
	return m.store.ListHistory(ctx, username, m.historyLimit)
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// TokenExpiry decodes the exp claim without verifying the signature. The
// dashboard is a client of the scoring API, not the token issuer; the gate
// only avoids sending requests that would be rejected anyway.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenUsername extracts a display name from the token claims when one is
// present.
func TokenUsername(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	for _, key := range []string{"username", "preferred_username", "sub"} {
		if v, ok := claims[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// TokenUsable reports whether a token should still be attached to upstream
// calls. Undecodable tokens are unusable; tokens without an exp claim never
// expire client-side.
func TokenUsable(token string, now time.Time) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return now.Before(exp.Time)
}
