package tokenstore

import (
	"encoding/json"
	"sync"
	"time"
)

// Memory is an in-process Store. It is the default for tests and for
// ephemeral gateway sessions that should not outlive the process.
type Memory struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	hasExpiry    bool
	user         json.RawMessage
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{}
}

// SetTokens stores both tokens unconditionally
func (m *Memory) SetTokens(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = access
	m.refreshToken = refresh
	return nil
}

// SetExpiry stores the absolute expiry instant
func (m *Memory) SetExpiry(expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiresAt = expiry
	m.hasExpiry = !expiry.IsZero()
	return nil
}

// SetCredentials stores the full pair under one lock acquisition
func (m *Memory) SetCredentials(creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = creds.AccessToken
	m.refreshToken = creds.RefreshToken
	m.expiresAt = creds.ExpiresAt
	m.hasExpiry = !creds.ExpiresAt.IsZero()
	return nil
}

// SetUser stores the serialized user snapshot
func (m *Memory) SetUser(snapshot json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = append(json.RawMessage(nil), snapshot...)
	return nil
}

// AccessToken returns the stored access token, if any
func (m *Memory) AccessToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken, m.accessToken != ""
}

// RefreshToken returns the stored refresh token, if any
func (m *Memory) RefreshToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshToken, m.refreshToken != ""
}

// ExpiresAt returns the stored expiry instant, if any
func (m *Memory) ExpiresAt() (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt, m.hasExpiry
}

// User returns the stored user snapshot, if any
func (m *Memory) User() (json.RawMessage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil, false
	}
	return append(json.RawMessage(nil), m.user...), true
}

// Expired reports whether the stored expiry has passed
func (m *Memory) Expired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return expired(time.Now(), m.expiresAt, m.hasExpiry)
}

// Clear removes all fields together
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = ""
	m.refreshToken = ""
	m.expiresAt = time.Time{}
	m.hasExpiry = false
	m.user = nil
	return nil
}
