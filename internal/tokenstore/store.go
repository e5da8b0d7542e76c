package tokenstore

import (
	"encoding/json"
	"time"
)

// Credentials is the persisted token pair plus its expiry instant.
// A present access token must carry a present expiry; a zero ExpiresAt is
// read as already expired.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Store persists the credential pair and the denormalized user snapshot.
// Pure data access: no validation of token shape, no network calls, and no
// policy. Getters never fail; a backend read error reads as absence.
type Store interface {
	// SetTokens stores both tokens unconditionally
	SetTokens(access, refresh string) error

	// SetExpiry stores the absolute expiry instant
	SetExpiry(expiry time.Time) error

	// SetCredentials stores the full pair in one write. A concurrent
	// reader sees either the previous credentials or the new ones,
	// never a mix.
	SetCredentials(creds Credentials) error

	// SetUser stores the serialized user snapshot
	SetUser(snapshot json.RawMessage) error

	// AccessToken returns the stored access token, if any
	AccessToken() (string, bool)

	// RefreshToken returns the stored refresh token, if any
	RefreshToken() (string, bool)

	// ExpiresAt returns the stored expiry instant, if any
	ExpiresAt() (time.Time, bool)

	// User returns the stored user snapshot, if any
	User() (json.RawMessage, bool)

	// Expired reports whether the stored expiry has passed. No expiry
	// stored means expired. No grace window is applied; callers wanting
	// skew add it themselves.
	Expired() bool

	// Clear removes tokens, expiry, and user snapshot together
	Clear() error
}

// expired is the single expiry rule shared by every backend:
// true when nothing is stored or when now is at or past the stored instant.
func expired(now, expiry time.Time, ok bool) bool {
	if !ok || expiry.IsZero() {
		return true
	}
	return !now.Before(expiry)
}
