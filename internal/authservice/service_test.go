package authservice_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/classpoint/gatehouse/internal/apiclient"
	"github.com/classpoint/gatehouse/internal/authservice"
	"github.com/classpoint/gatehouse/internal/roles"
	"github.com/classpoint/gatehouse/internal/schoolapi"
	"github.com/classpoint/gatehouse/internal/tokenstore"
	apperrors "github.com/classpoint/gatehouse/pkg/errors"
)

func newService(t *testing.T) (*schoolapi.Server, *httptest.Server, *tokenstore.Memory, *authservice.Service) {
	t.Helper()

	backend := schoolapi.New(time.Hour)
	server := httptest.NewServer(backend.Router())
	t.Cleanup(server.Close)

	store := tokenstore.NewMemory()
	client := apiclient.New(server.URL, 5*time.Second, 0, store, zap.NewNop())
	return backend, server, store, authservice.NewService(client, store, zap.NewNop())
}

func seed(t *testing.T, backend *schoolapi.Server, role roles.Role, status string) {
	t.Helper()
	err := backend.Seed(authservice.User{
		Email:         "user@school.test",
		Role:          role,
		Status:        status,
		EmailVerified: true,
	}, "secret123")
	if err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
}

func TestLoginPersistsCredentialsAndSnapshot(t *testing.T) {
	backend, _, store, service := newService(t)
	seed(t, backend, roles.Librarian, authservice.StatusActive)

	user, err := service.Login(context.Background(), "user@school.test", "secret123")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if user.Role != roles.Librarian {
		t.Errorf("user role = %q, want librarian", user.Role)
	}

	if _, ok := store.AccessToken(); !ok {
		t.Error("no access token persisted")
	}
	if _, ok := store.RefreshToken(); !ok {
		t.Error("no refresh token persisted")
	}
	if store.Expired() {
		t.Error("persisted credentials read as expired")
	}
	if _, ok := store.User(); !ok {
		t.Error("no user snapshot persisted")
	}
	if !service.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after login")
	}
}

func TestLoginErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		email    string
		password string
		wantCode string
	}{
		{
			name:     "wrong password",
			status:   authservice.StatusActive,
			email:    "user@school.test",
			password: "nope",
			wantCode: apperrors.ErrCodeInvalidCredentials,
		},
		{
			name:     "unknown account",
			status:   authservice.StatusActive,
			email:    "ghost@school.test",
			password: "secret123",
			wantCode: apperrors.ErrCodeInvalidCredentials,
		},
		{
			name:     "suspended account",
			status:   authservice.StatusSuspended,
			email:    "user@school.test",
			password: "secret123",
			wantCode: apperrors.ErrCodeAccountSuspended,
		},
		{
			name:     "unverified account",
			status:   authservice.StatusPending,
			email:    "user@school.test",
			password: "secret123",
			wantCode: apperrors.ErrCodeEmailNotVerified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, _, store, service := newService(t)
			seed(t, backend, roles.Teacher, tt.status)

			_, err := service.Login(context.Background(), tt.email, tt.password)
			if err == nil {
				t.Fatal("Login() succeeded, want failure")
			}

			apiErr, ok := err.(*apperrors.APIError)
			if !ok {
				t.Fatalf("error type = %T, want *APIError", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", apiErr.Code, tt.wantCode)
			}

			// Failed logins persist nothing
			if _, ok := store.AccessToken(); ok {
				t.Error("access token persisted after failed login")
			}
		})
	}
}

func TestLoginValidation(t *testing.T) {
	_, _, _, service := newService(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "empty email", email: "", password: "secret123"},
		{name: "bad email shape", email: "not-an-email", password: "secret123"},
		{name: "empty password", email: "user@school.test", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Login(context.Background(), tt.email, tt.password)
			if err == nil {
				t.Fatal("Login() passed validation, want failure")
			}
			apiErr, ok := err.(*apperrors.APIError)
			if !ok || apiErr.Code != apperrors.ErrCodeValidationFailed {
				t.Errorf("error = %v, want VALIDATION_FAILED", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	backend, _, _, service := newService(t)
	seed(t, backend, roles.Teacher, authservice.StatusActive)

	_, err := service.Register(context.Background(), authservice.RegisterRequest{
		Email:    "user@school.test",
		Password: "longenough1",
		Role:     roles.Teacher,
	})
	if err == nil {
		t.Fatal("Register() succeeded with a taken email")
	}
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.Code != apperrors.ErrCodeEmailTaken {
		t.Errorf("error = %v, want EMAIL_TAKEN", err)
	}
}

func TestCurrentUserOverwritesSnapshot(t *testing.T) {
	backend, _, store, service := newService(t)
	seed(t, backend, roles.Student, authservice.StatusActive)

	if _, err := service.Login(context.Background(), "user@school.test", "secret123"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	// Poison the local snapshot; CurrentUser must restore the truth
	if err := store.SetUser(json.RawMessage(`{"id":"fake","role":"admin"}`)); err != nil {
		t.Fatalf("SetUser() failed: %v", err)
	}
	if !service.HasRole(roles.Admin) {
		t.Fatal("test setup: poisoned snapshot not visible")
	}

	user, err := service.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() failed: %v", err)
	}
	if user.Role != roles.Student {
		t.Errorf("user role = %q, want student", user.Role)
	}
	if !service.HasRole(roles.Student) {
		t.Error("snapshot not overwritten by CurrentUser()")
	}
}

func TestCurrentUserFailureLeavesSnapshotAlone(t *testing.T) {
	backend, server, store, service := newService(t)
	seed(t, backend, roles.Student, authservice.StatusActive)

	if _, err := service.Login(context.Background(), "user@school.test", "secret123"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	before, _ := store.User()

	server.Close()

	if _, err := service.CurrentUser(context.Background()); err == nil {
		t.Fatal("CurrentUser() succeeded against a dead server")
	}

	after, ok := store.User()
	if !ok || string(after) != string(before) {
		t.Error("snapshot mutated by a failed CurrentUser()")
	}
}

func TestIsAuthenticatedIsLocalOnly(t *testing.T) {
	backend, server, store, service := newService(t)
	seed(t, backend, roles.Teacher, authservice.StatusActive)

	if _, err := service.Login(context.Background(), "user@school.test", "secret123"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	// The server going away must not change the local predicate
	server.Close()
	if !service.IsAuthenticated() {
		t.Error("IsAuthenticated() = false with valid local session")
	}

	// An expired token flips it without any network involvement
	if err := store.SetExpiry(time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetExpiry() failed: %v", err)
	}
	if service.IsAuthenticated() {
		t.Error("IsAuthenticated() = true with expired token")
	}
}

func TestRolePredicates(t *testing.T) {
	_, _, store, service := newService(t)

	if service.HasRole(roles.Admin) {
		t.Error("HasRole() = true with no stored user")
	}
	if service.HasAnyRole(roles.All) {
		t.Error("HasAnyRole() = true with no stored user")
	}
	if _, ok := service.Role(); ok {
		t.Error("Role() reported a role with no stored user")
	}

	for _, current := range roles.All {
		raw, err := json.Marshal(authservice.User{ID: "u1", Role: current})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if err := store.SetUser(raw); err != nil {
			t.Fatalf("SetUser() failed: %v", err)
		}

		for _, candidate := range roles.All {
			want := candidate == current
			if got := service.HasRole(candidate); got != want {
				t.Errorf("role %s: HasRole(%s) = %v, want %v", current, candidate, got, want)
			}
		}

		// Membership is order-independent
		if !service.HasAnyRole([]roles.Role{current, roles.Admin}) {
			t.Errorf("role %s: HasAnyRole with self first = false", current)
		}
		if !service.HasAnyRole([]roles.Role{roles.Admin, current}) {
			t.Errorf("role %s: HasAnyRole with self last = false", current)
		}
	}
}

func TestLogoutRevokesServerSide(t *testing.T) {
	backend, _, store, service := newService(t)
	seed(t, backend, roles.Teacher, authservice.StatusActive)

	if _, err := service.Login(context.Background(), "user@school.test", "secret123"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if backend.RefreshCount() != 1 {
		t.Fatalf("RefreshCount() = %d, want 1", backend.RefreshCount())
	}

	if err := service.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() failed: %v", err)
	}

	if backend.RefreshCount() != 0 {
		t.Errorf("RefreshCount() = %d after logout, want 0", backend.RefreshCount())
	}
	if _, ok := store.AccessToken(); ok {
		t.Error("access token still stored after logout")
	}
	if service.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after logout")
	}
}
