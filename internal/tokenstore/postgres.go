package tokenstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const postgresOpTimeout = 3 * time.Second

// Postgres is a Store backed by a single session row per gateway namespace.
// Each mutation is one UPSERT, so readers see either the previous row or the
// new one. Survives gateway restarts and is shared across replicas that use
// the same namespace.
type Postgres struct {
	db        *sqlx.DB
	namespace string
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS gateway_sessions (
	namespace      TEXT PRIMARY KEY,
	access_token   TEXT NOT NULL DEFAULT '',
	refresh_token  TEXT NOT NULL DEFAULT '',
	expires_at     TIMESTAMPTZ,
	user_snapshot  JSONB,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgres creates a Postgres-backed store and ensures its table exists
func NewPostgres(db *sqlx.DB, namespace string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, sessionSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure session table: %w", err)
	}
	return &Postgres{db: db, namespace: namespace}, nil
}

func (p *Postgres) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), postgresOpTimeout)
}

// SetTokens stores both tokens in one upsert
func (p *Postgres) SetTokens(access, refresh string) error {
	ctx, cancel := p.ctx()
	defer cancel()

	query := `INSERT INTO gateway_sessions (namespace, access_token, refresh_token, updated_at)
			  VALUES ($1, $2, $3, now())
			  ON CONFLICT (namespace) DO UPDATE
			  SET access_token = $2, refresh_token = $3, updated_at = now()`

	if _, err := p.db.ExecContext(ctx, query, p.namespace, access, refresh); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

// SetExpiry stores the absolute expiry instant
func (p *Postgres) SetExpiry(expiry time.Time) error {
	ctx, cancel := p.ctx()
	defer cancel()

	query := `INSERT INTO gateway_sessions (namespace, expires_at, updated_at)
			  VALUES ($1, $2, now())
			  ON CONFLICT (namespace) DO UPDATE
			  SET expires_at = $2, updated_at = now()`

	if _, err := p.db.ExecContext(ctx, query, p.namespace, expiry.UTC()); err != nil {
		return fmt.Errorf("failed to store expiry: %w", err)
	}
	return nil
}

// SetCredentials stores the full pair in one upsert
func (p *Postgres) SetCredentials(creds Credentials) error {
	ctx, cancel := p.ctx()
	defer cancel()

	query := `INSERT INTO gateway_sessions (namespace, access_token, refresh_token, expires_at, updated_at)
			  VALUES ($1, $2, $3, $4, now())
			  ON CONFLICT (namespace) DO UPDATE
			  SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = now()`

	if _, err := p.db.ExecContext(ctx, query, p.namespace, creds.AccessToken, creds.RefreshToken, creds.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// SetUser stores the serialized user snapshot
func (p *Postgres) SetUser(snapshot json.RawMessage) error {
	ctx, cancel := p.ctx()
	defer cancel()

	query := `INSERT INTO gateway_sessions (namespace, user_snapshot, updated_at)
			  VALUES ($1, $2, now())
			  ON CONFLICT (namespace) DO UPDATE
			  SET user_snapshot = $2, updated_at = now()`

	if _, err := p.db.ExecContext(ctx, query, p.namespace, []byte(snapshot)); err != nil {
		return fmt.Errorf("failed to store user snapshot: %w", err)
	}
	return nil
}

type sessionRow struct {
	Namespace    string       `db:"namespace"`
	AccessToken  string       `db:"access_token"`
	RefreshToken string       `db:"refresh_token"`
	ExpiresAt    sql.NullTime `db:"expires_at"`
	UserSnapshot []byte       `db:"user_snapshot"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func (p *Postgres) load() (*sessionRow, bool) {
	ctx, cancel := p.ctx()
	defer cancel()

	var row sessionRow
	query := `SELECT namespace, access_token, refresh_token, expires_at, user_snapshot, updated_at
			  FROM gateway_sessions
			  WHERE namespace = $1`

	err := p.db.GetContext(ctx, &row, query, p.namespace)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return &row, true
}

// AccessToken returns the stored access token, if any
func (p *Postgres) AccessToken() (string, bool) {
	row, ok := p.load()
	if !ok || row.AccessToken == "" {
		return "", false
	}
	return row.AccessToken, true
}

// RefreshToken returns the stored refresh token, if any
func (p *Postgres) RefreshToken() (string, bool) {
	row, ok := p.load()
	if !ok || row.RefreshToken == "" {
		return "", false
	}
	return row.RefreshToken, true
}

// ExpiresAt returns the stored expiry instant, if any
func (p *Postgres) ExpiresAt() (time.Time, bool) {
	row, ok := p.load()
	if !ok || !row.ExpiresAt.Valid {
		return time.Time{}, false
	}
	return row.ExpiresAt.Time, true
}

// User returns the stored user snapshot, if any
func (p *Postgres) User() (json.RawMessage, bool) {
	row, ok := p.load()
	if !ok || len(row.UserSnapshot) == 0 {
		return nil, false
	}
	return json.RawMessage(row.UserSnapshot), true
}

// Expired reports whether the stored expiry has passed
func (p *Postgres) Expired() bool {
	expiry, ok := p.ExpiresAt()
	return expired(time.Now(), expiry, ok)
}

// Clear removes the session row
func (p *Postgres) Clear() error {
	ctx, cancel := p.ctx()
	defer cancel()

	if _, err := p.db.ExecContext(ctx, `DELETE FROM gateway_sessions WHERE namespace = $1`, p.namespace); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
