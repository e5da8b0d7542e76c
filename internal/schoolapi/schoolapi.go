// Package schoolapi is an in-memory stand-in for the remote school API.
// It implements the /auth/* contract the gateway consumes: bcrypt-verified
// password logins, HS256 access tokens, and rotating opaque refresh tokens.
// Integration tests mount it behind httptest; cmd/schoolapi runs it
// standalone for development.
package schoolapi

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/classpoint/gatehouse/internal/authservice"
	"github.com/classpoint/gatehouse/internal/roles"
	apperrors "github.com/classpoint/gatehouse/pkg/errors"
	"github.com/classpoint/gatehouse/pkg/response"
)

type account struct {
	user         authservice.User
	passwordHash []byte
}

// Server holds the in-memory account and token state
type Server struct {
	mu            sync.Mutex
	accounts      map[string]*account // keyed by email
	refreshTokens map[string]string   // refresh token -> user id
	signingKey    []byte
	accessTTL     time.Duration
	loginLatency  time.Duration
}

// New creates a server with the given access-token lifetime
func New(accessTTL time.Duration) *Server {
	return &Server{
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		signingKey:    []byte(uuid.NewString()),
		accessTTL:     accessTTL,
	}
}

// Seed registers an account directly, bypassing the register endpoint
func (s *Server) Seed(user authservice.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Status == "" {
		user.Status = authservice.StatusActive
	}
	s.accounts[user.Email] = &account{user: user, passwordHash: hash}
	return nil
}

// SetLoginLatency delays login responses. Tests use it to race a logout
// against an in-flight login.
func (s *Server) SetLoginLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginLatency = d
}

// RotateSigningKey invalidates every outstanding access token while leaving
// refresh tokens usable. Tests use it to force the 401-refresh-retry path.
func (s *Server) RotateSigningKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signingKey = []byte(uuid.NewString())
}

// RevokeRefreshTokens drops every refresh token, so the next refresh fails
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]string)
}

// RefreshCount returns how many refresh tokens are outstanding
func (s *Server) RefreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refreshTokens)
}

// Router builds the gin engine serving the auth contract
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	auth := r.Group("/auth")
	{
		auth.POST("/login", s.handleLogin)
		auth.POST("/register", s.handleRegister)
		auth.POST("/refresh", s.handleRefresh)
		auth.POST("/logout", s.handleLogout)
		auth.GET("/me", s.handleMe)
	}

	return r
}

// issueLocked mints a token pair; callers hold the mutex
func (s *Server) issueLocked(userID string) (gin.H, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := uuid.NewString()
	s.refreshTokens[refresh] = userID

	return gin.H{
		"accessToken":  access,
		"refreshToken": refresh,
		"expiresAt":    expiresAt.UTC(),
	}, nil
}

func (s *Server) findByID(userID string) (*account, bool) {
	for _, acct := range s.accounts {
		if acct.user.ID == userID {
			return acct, true
		}
	}
	return nil, false
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	s.mu.Lock()
	delay := s.loginLatency
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(req.Email)]
	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		response.Error(c, apperrors.Business(http.StatusUnauthorized, apperrors.ErrCodeInvalidCredentials, "Invalid credentials"))
		return
	}

	switch acct.user.Status {
	case authservice.StatusSuspended:
		response.Error(c, apperrors.Business(http.StatusForbidden, apperrors.ErrCodeAccountSuspended, "Account suspended"))
		return
	case authservice.StatusPending:
		response.Error(c, apperrors.Business(http.StatusForbidden, apperrors.ErrCodeEmailNotVerified, "Email not verified"))
		return
	}

	tokens, err := s.issueLocked(acct.user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	tokens["user"] = acct.user
	response.Success(c, http.StatusOK, tokens)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Email      string `json:"email" binding:"required"`
		Password   string `json:"password" binding:"required"`
		Role       string `json:"role" binding:"required"`
		FirstName  string `json:"firstName"`
		LastName   string `json:"lastName"`
		MiddleName string `json:"middleName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	role, err := roles.Parse(req.Role)
	if err != nil {
		response.Error(c, apperrors.Business(http.StatusBadRequest, apperrors.ErrCodeInvalidRole, err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(req.Email)
	if _, exists := s.accounts[email]; exists {
		response.Error(c, apperrors.Business(http.StatusConflict, apperrors.ErrCodeEmailTaken, "Email already registered"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		response.Error(c, err)
		return
	}

	user := authservice.User{
		ID:            uuid.NewString(),
		Email:         email,
		Role:          role,
		Status:        authservice.StatusActive,
		EmailVerified: true,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
	}
	s.accounts[email] = &account{user: user, passwordHash: hash}

	tokens, err := s.issueLocked(user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	tokens["user"] = user
	response.Success(c, http.StatusCreated, tokens)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.refreshTokens[req.RefreshToken]
	if !ok {
		response.Error(c, apperrors.Unauthorized("refresh token expired"))
		return
	}

	// Rotation: the presented token is spent
	delete(s.refreshTokens, req.RefreshToken)

	tokens, err := s.issueLocked(userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tokens)
}

func (s *Server) handleLogout(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for token, owner := range s.refreshTokens {
		if owner == userID {
			delete(s.refreshTokens, token)
		}
	}

	response.Success(c, http.StatusOK, gin.H{"loggedOut": true})
}

func (s *Server) handleMe(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		return
	}

	s.mu.Lock()
	acct, found := s.findByID(userID)
	s.mu.Unlock()
	if !found {
		response.Error(c, apperrors.Unauthorized("account gone"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": acct.user})
}

// authenticate validates the bearer token and returns the subject. On
// failure it writes the 401 response itself and returns ok=false.
func (s *Server) authenticate(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		response.Error(c, apperrors.Unauthorized("missing bearer token"))
		return "", false
	}

	s.mu.Lock()
	key := s.signingKey
	s.mu.Unlock()

	parsed, err := jwt.ParseWithClaims(header[7:], &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil || !parsed.Valid {
		response.Error(c, apperrors.Unauthorized("token expired"))
		return "", false
	}

	claims := parsed.Claims.(*jwt.RegisteredClaims)
	return claims.Subject, true
}
