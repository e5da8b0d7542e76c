package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileState is the on-disk layout: the three credential fields keyed
// independently plus the user snapshot.
type fileState struct {
	AccessToken  string          `json:"access_token,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	User         json.RawMessage `json:"user,omitempty"`
}

// File is a Store backed by a JSON file. State is cached in memory and
// every mutation is persisted through a temp-file rename, so a crashed
// write leaves either the old file or the new one, never a torn one.
type File struct {
	mu    sync.RWMutex
	path  string
	state fileState
}

// NewFile opens (or creates) a file-backed store at path
func NewFile(path string) (*File, error) {
	f := &File{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if err := json.Unmarshal(raw, &f.state); err != nil {
		// A corrupt session file is treated as no session
		f.state = fileState{}
	}

	return f, nil
}

// persist writes the current state; callers hold the write lock
func (f *File) persist() error {
	raw, err := json.Marshal(f.state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// SetTokens stores both tokens unconditionally
func (f *File) SetTokens(access, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.AccessToken = access
	f.state.RefreshToken = refresh
	return f.persist()
}

// SetExpiry stores the absolute expiry instant
func (f *File) SetExpiry(expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if expiry.IsZero() {
		f.state.ExpiresAt = nil
	} else {
		f.state.ExpiresAt = &expiry
	}
	return f.persist()
}

// SetCredentials stores the full pair in one write
func (f *File) SetCredentials(creds Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.AccessToken = creds.AccessToken
	f.state.RefreshToken = creds.RefreshToken
	if creds.ExpiresAt.IsZero() {
		f.state.ExpiresAt = nil
	} else {
		expiry := creds.ExpiresAt
		f.state.ExpiresAt = &expiry
	}
	return f.persist()
}

// SetUser stores the serialized user snapshot
func (f *File) SetUser(snapshot json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.User = append(json.RawMessage(nil), snapshot...)
	return f.persist()
}

// AccessToken returns the stored access token, if any
func (f *File) AccessToken() (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.AccessToken, f.state.AccessToken != ""
}

// RefreshToken returns the stored refresh token, if any
func (f *File) RefreshToken() (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.RefreshToken, f.state.RefreshToken != ""
}

// ExpiresAt returns the stored expiry instant, if any
func (f *File) ExpiresAt() (time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state.ExpiresAt == nil {
		return time.Time{}, false
	}
	return *f.state.ExpiresAt, true
}

// User returns the stored user snapshot, if any
func (f *File) User() (json.RawMessage, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state.User == nil {
		return nil, false
	}
	return append(json.RawMessage(nil), f.state.User...), true
}

// Expired reports whether the stored expiry has passed
func (f *File) Expired() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state.ExpiresAt == nil {
		return true
	}
	return expired(time.Now(), *f.state.ExpiresAt, true)
}

// Clear removes all fields together
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = fileState{}

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Path returns the backing file location
func (f *File) Path() string {
	return filepath.Clean(f.path)
}
