package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpoint/gatehouse/internal/tokenstore"
	apperrors "github.com/classpoint/gatehouse/pkg/errors"
)

const refreshEndpoint = "/auth/refresh"

// Client executes requests against the school API. Authenticated requests
// get the bearer token attached and a single transparent refresh-and-retry
// when the server answers 401. Concurrent refreshes are coalesced into one
// network call whose result every waiter shares.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       tokenstore.Store
	logger      *zap.Logger
	refreshSkew time.Duration

	mu   sync.Mutex
	wave *refreshWave
}

// refreshWave is one in-flight refresh cycle. Late arrivals wait on done
// and read err instead of starting their own cycle.
type refreshWave struct {
	done chan struct{}
	err  error
}

// Options configures a single request
type Options struct {
	Method string
	Body   any
	Query  url.Values
}

// envelope mirrors the API's response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// tokenResponse is the refresh endpoint's payload
type tokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// New creates an API client for the given origin
func New(baseURL string, timeout, refreshSkew time.Duration, store tokenstore.Store, logger *zap.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		store:       store,
		logger:      logger,
		refreshSkew: refreshSkew,
	}
}

// Request executes an unauthenticated request and returns the decoded data
// payload. Failures are typed: transport, malformed, unauthorized, business.
func (c *Client) Request(ctx context.Context, endpoint string, opts Options) (json.RawMessage, error) {
	return c.do(ctx, endpoint, opts, "")
}

// AuthenticatedRequest executes a request with the stored bearer token.
// A 401 answer triggers exactly one refresh cycle and one retry; a second
// 401 ends the session and fails the call without recursing.
func (c *Client) AuthenticatedRequest(ctx context.Context, endpoint string, opts Options) (json.RawMessage, error) {
	// Proactive refresh when the token is expired or about to be. This is
	// an optimization; the 401 path below is the correctness backstop.
	if c.nearExpiry() {
		if err := c.Refresh(ctx); err != nil && !apperrors.IsUnauthorized(err) {
			c.logger.Debug("proactive refresh failed", zap.Error(err))
		}
	}

	token, _ := c.store.AccessToken()
	data, err := c.do(ctx, endpoint, opts, token)
	if !isUnauthorizedStatus(err) {
		return data, err
	}

	// First 401: one refresh cycle, then one retry with the new token
	if refreshErr := c.Refresh(ctx); refreshErr != nil {
		if apperrors.IsUnauthorized(refreshErr) {
			return nil, apperrors.Unauthorized("session expired")
		}
		return nil, refreshErr
	}

	recordRetry()
	token, _ = c.store.AccessToken()
	data, err = c.do(ctx, endpoint, opts, token)
	if isUnauthorizedStatus(err) {
		// The server refuses freshly minted credentials; the session is
		// dead and must not survive a restart
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.Warn("failed to clear token store after rejected retry", zap.Error(clearErr))
		}
		return nil, apperrors.Unauthorized("session expired")
	}
	return data, err
}

// Refresh runs one refresh cycle against the API. When a cycle is already in
// flight the caller attaches to it and shares its outcome, so N concurrent
// 401s produce a single refresh call.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if w := c.wave; w != nil {
		c.mu.Unlock()
		recordRefresh("coalesced")
		select {
		case <-w.done:
			return w.err
		case <-ctx.Done():
			return apperrors.Transport(ctx.Err())
		}
	}

	w := &refreshWave{done: make(chan struct{})}
	c.wave = w
	c.mu.Unlock()

	w.err = c.doRefresh(ctx)

	c.mu.Lock()
	c.wave = nil
	c.mu.Unlock()
	close(w.done)

	return w.err
}

func (c *Client) doRefresh(ctx context.Context) error {
	refreshToken, ok := c.store.RefreshToken()
	if !ok {
		recordRefresh("no_session")
		return apperrors.ErrNoSession
	}

	data, err := c.do(ctx, refreshEndpoint, Options{
		Method: http.MethodPost,
		Body:   map[string]string{"refreshToken": refreshToken},
	}, "")
	if err != nil {
		// The server rejecting the refresh token ends the session; a
		// network or decoding problem does not.
		kind := apperrors.KindOf(err)
		if kind == apperrors.KindUnauthorized || kind == apperrors.KindBusiness {
			recordRefresh("failure")
			if clearErr := c.store.Clear(); clearErr != nil {
				c.logger.Warn("failed to clear token store after refresh rejection", zap.Error(clearErr))
			}
			return apperrors.Unauthorized("session expired")
		}
		recordRefresh("failure")
		return err
	}

	var tokens tokenResponse
	if err := json.Unmarshal(data, &tokens); err != nil {
		recordRefresh("failure")
		return apperrors.Malformed(err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		recordRefresh("failure")
		return apperrors.Malformed(fmt.Errorf("refresh response missing tokens"))
	}

	creds := tokenstore.Credentials{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    DeriveExpiry(tokens.AccessToken, tokens.ExpiresAt),
	}
	if err := c.store.SetCredentials(creds); err != nil {
		recordRefresh("failure")
		return fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}

	recordRefresh("success")
	c.logger.Debug("token refreshed", zap.Time("expires_at", creds.ExpiresAt))
	return nil
}

// nearExpiry reports whether the stored token is expired or inside the
// configured skew window.
func (c *Client) nearExpiry() bool {
	expiry, ok := c.store.ExpiresAt()
	if !ok {
		return true
	}
	return !time.Now().Add(c.refreshSkew).Before(expiry)
}

// do executes a single HTTP round trip and decodes the response envelope
func (c *Client) do(ctx context.Context, endpoint string, opts Options, token string) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + endpoint
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		raw, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordRequest(method, endpoint, 0, time.Since(start))
		return nil, apperrors.Transport(err)
	}
	defer resp.Body.Close()

	recordRequest(method, endpoint, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transport(err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, apperrors.Malformed(err)
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		apiErr := apperrors.Unauthorized("authentication required")
		if env.Error != nil {
			apiErr = apperrors.Unauthorized(env.Error.Message)
			if env.Error.Code != "" {
				// Keep the server's code so a credential rejection
				// stays distinguishable from session loss
				apiErr.Code = env.Error.Code
			}
		}
		return nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := apperrors.ErrCodeInternalError
		message := http.StatusText(resp.StatusCode)
		if env.Error != nil {
			code = env.Error.Code
			message = env.Error.Message
		}
		return nil, apperrors.Business(resp.StatusCode, code, message)
	}

	return env.Data, nil
}

// isUnauthorizedStatus reports whether err is a 401 answer worth a
// refresh-retry. Post-retry failures are rewrapped before returning, so
// callers never see a retryable 401.
func isUnauthorizedStatus(err error) bool {
	return err != nil && apperrors.IsUnauthorized(err)
}
