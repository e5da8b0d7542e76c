package authservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/classpoint/gatehouse/internal/apiclient"
	"github.com/classpoint/gatehouse/internal/roles"
	"github.com/classpoint/gatehouse/internal/tokenstore"
	apperrors "github.com/classpoint/gatehouse/pkg/errors"
)

// Service translates auth operations into API calls and Token Store
// mutations. It is the only component that writes credentials in response
// to business operations; everything it knows lives in the store.
type Service struct {
	client *apiclient.Client
	store  tokenstore.Store
	logger *zap.Logger
}

// NewService creates an auth service
func NewService(client *apiclient.Client, store tokenstore.Store, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		store:  store,
		logger: logger,
	}
}

// RegisterRequest carries the account-creation payload
type RegisterRequest struct {
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	Role       roles.Role `json:"role"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	MiddleName string     `json:"middleName,omitempty"`
}

// authPayload is the shape of login/register responses
type authPayload struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Login authenticates with email and password. On success the credential
// pair and user snapshot are persisted together; on failure nothing is
// written and a typed error is returned.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	email = SanitizeEmail(email)
	if err := validateLogin(email, password); err != nil {
		return nil, err
	}

	data, err := s.client.Request(ctx, "/auth/login", apiclient.Options{
		Method: http.MethodPost,
		Body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}

	user, err := s.persistSession(data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("logged in",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role.String()),
	)
	return user, nil
}

// Register creates an account and signs it in, with the same persistence
// contract as Login. The role must belong to the closed enumeration.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Email = SanitizeEmail(req.Email)
	if err := validateRegister(req); err != nil {
		return nil, err
	}

	data, err := s.client.Request(ctx, "/auth/register", apiclient.Options{
		Method: http.MethodPost,
		Body:   req,
	})
	if err != nil {
		return nil, err
	}

	user, err := s.persistSession(data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("registered",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role.String()),
	)
	return user, nil
}

// Logout notifies the server best-effort and then clears local state
// unconditionally. A dead backend never blocks local cleanup.
func (s *Service) Logout(ctx context.Context) error {
	if _, ok := s.store.AccessToken(); ok {
		if _, err := s.client.AuthenticatedRequest(ctx, "/auth/logout", apiclient.Options{
			Method: http.MethodPost,
		}); err != nil {
			s.logger.Warn("server-side logout failed, clearing local session anyway", zap.Error(err))
		}
	}

	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear local session: %w", err)
	}
	return nil
}

// DiscardLocal clears the persisted session without contacting the server.
// The session controller uses it to throw away credentials written by an
// operation that a logout had already superseded.
func (s *Service) DiscardLocal() error {
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("failed to discard local session: %w", err)
	}
	return nil
}

// CurrentUser fetches the canonical account from the server and overwrites
// the persisted snapshot. On failure the snapshot is left untouched; the
// caller decides whether the failure means session loss.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	data, err := s.client.AuthenticatedRequest(ctx, "/auth/me", apiclient.Options{})
	if err != nil {
		return nil, err
	}

	var payload struct {
		User User `json:"user"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, apperrors.Malformed(err)
	}

	raw, err := json.Marshal(payload.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user snapshot: %w", err)
	}
	if err := s.store.SetUser(raw); err != nil {
		return nil, fmt.Errorf("failed to persist user snapshot: %w", err)
	}

	return &payload.User, nil
}

// IsAuthenticated is a synchronous, local-only predicate: token present,
// snapshot present, token unexpired. It never touches the network, so it can
// be optimistically true after a server-side revocation; enforcement happens
// on the next authenticated call through the 401 path.
func (s *Service) IsAuthenticated() bool {
	if _, ok := s.store.AccessToken(); !ok {
		return false
	}
	if _, ok := s.store.User(); !ok {
		return false
	}
	return !s.store.Expired()
}

// StoredUser decodes the persisted user snapshot, if any
func (s *Service) StoredUser() (*User, bool) {
	raw, ok := s.store.User()
	if !ok {
		return nil, false
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, false
	}
	return &user, true
}

// Role returns the snapshot's role, or false when no user is stored
func (s *Service) Role() (roles.Role, bool) {
	user, ok := s.StoredUser()
	if !ok {
		return "", false
	}
	return user.Role, true
}

// HasRole reports whether the stored user holds exactly the given role
func (s *Service) HasRole(role roles.Role) bool {
	current, ok := s.Role()
	return ok && current == role
}

// HasAnyRole reports whether the stored user holds one of the given roles
func (s *Service) HasAnyRole(set []roles.Role) bool {
	current, ok := s.Role()
	return ok && roles.Contains(set, current)
}

// persistSession decodes an auth payload and writes the credential pair and
// user snapshot together. Everything is decoded and encoded before the first
// write, so a malformed response mutates nothing.
func (s *Service) persistSession(data json.RawMessage) (*User, error) {
	var payload authPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, apperrors.Malformed(err)
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		return nil, apperrors.Malformed(fmt.Errorf("auth response missing tokens"))
	}
	if !payload.User.Role.Valid() {
		return nil, apperrors.Malformed(fmt.Errorf("auth response carries unknown role %q", payload.User.Role))
	}

	snapshot, err := json.Marshal(payload.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user snapshot: %w", err)
	}

	creds := tokenstore.Credentials{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    apiclient.DeriveExpiry(payload.AccessToken, payload.ExpiresAt),
	}
	if err := s.store.SetCredentials(creds); err != nil {
		return nil, fmt.Errorf("failed to persist credentials: %w", err)
	}
	if err := s.store.SetUser(snapshot); err != nil {
		// Roll back to avoid credentials without a snapshot
		_ = s.store.Clear()
		return nil, fmt.Errorf("failed to persist user snapshot: %w", err)
	}

	return &payload.User, nil
}
