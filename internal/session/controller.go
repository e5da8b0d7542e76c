package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/classpoint/gatehouse/internal/authservice"
	"github.com/classpoint/gatehouse/internal/roles"
	apperrors "github.com/classpoint/gatehouse/pkg/errors"
)

// Snapshot is the session state UI consumers read. IsLoading is the only
// field spinners should gate on; Error holds the last user-facing failure
// message until the next operation starts or ClearError is called.
type Snapshot struct {
	User      *authservice.User
	IsLoading bool
	Error     string
}

// Controller owns the in-memory session state. It is the single writer;
// any number of readers take snapshots. Operations may be issued from
// concurrent goroutines: each one is tagged with a generation, and a result
// arriving after a newer operation has taken over is discarded, so a late
// refresh can never resurrect a session that logout already cleared.
type Controller struct {
	service *authservice.Service
	logger  *zap.Logger

	mu      sync.RWMutex
	user    *authservice.User
	loading bool
	errMsg  string
	gen     uint64

	// lastClear is the generation of the most recent logout. A successful
	// result from an operation older than it must not leave credentials
	// behind in the store.
	lastClear uint64
}

// NewController creates a controller in the uninitialized state. It reads
// as loading until Initialize resolves, so guards render a loading state
// instead of flashing a login redirect before storage has been consulted.
func NewController(service *authservice.Service, logger *zap.Logger) *Controller {
	return &Controller{
		service: service,
		logger:  logger,
		loading: true,
	}
}

// Initialize rebuilds session state from persisted storage. When a local
// session exists the stored user is set optimistically, then confirmed
// against the server. A transport failure keeps the stored user; only a
// refresh rejection surfaced as an authorization failure logs the session
// out. Always resolves with IsLoading false.
func (c *Controller) Initialize(ctx context.Context) {
	g := c.begin()

	if !c.service.IsAuthenticated() {
		c.finish(g, func() {
			c.user = nil
		})
		return
	}

	stored, _ := c.service.StoredUser()
	c.mu.Lock()
	if c.gen == g {
		c.user = stored
	}
	c.mu.Unlock()

	user, err := c.service.CurrentUser(ctx)
	c.finish(g, func() {
		switch {
		case err == nil:
			c.user = user
		case apperrors.IsUnauthorized(err):
			// Refresh was rejected, the store is already cleared
			c.user = nil
		default:
			// Keep the stored snapshot on a transient failure
			c.logger.Debug("startup refresh failed, keeping stored user", zap.Error(err))
		}
	})
}

// Login authenticates and, on success, transitions to Authenticated. On
// failure the message is mirrored into Snapshot.Error and also returned,
// so both state-readers and callers observe it.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	g := c.begin()

	user, err := c.service.Login(ctx, email, password)
	applied := c.finish(g, func() {
		if err != nil {
			c.errMsg = apperrors.MessageOf(err)
			return
		}
		c.user = user
		c.errMsg = ""
	})
	c.discardIfSuperseded(g, applied, err)
	return err
}

// Register creates an account with the same state contract as Login
func (c *Controller) Register(ctx context.Context, req authservice.RegisterRequest) error {
	g := c.begin()

	user, err := c.service.Register(ctx, req)
	applied := c.finish(g, func() {
		if err != nil {
			c.errMsg = apperrors.MessageOf(err)
			return
		}
		c.user = user
		c.errMsg = ""
	})
	c.discardIfSuperseded(g, applied, err)
	return err
}

// Logout clears the session regardless of backend outcome. Bumping the
// generation first invalidates every in-flight operation, so a superseded
// login or refresh cannot overwrite the cleared state.
func (c *Controller) Logout(ctx context.Context) error {
	g := c.begin()
	c.markCleared(g)

	err := c.service.Logout(ctx)
	if err != nil {
		c.logger.Warn("logout cleanup failed", zap.Error(err))
	}

	c.finish(g, func() {
		c.user = nil
		c.errMsg = ""
	})
	return err
}

// RefreshUser re-fetches the canonical user. Unlike the silent refresh at
// startup, a failure here terminates the session when one was present:
// this is a user-initiated check, so a dead session must not linger.
func (c *Controller) RefreshUser(ctx context.Context) error {
	g := c.begin()

	user, err := c.service.CurrentUser(ctx)
	if err == nil {
		applied := c.finish(g, func() {
			c.user = user
		})
		c.discardIfSuperseded(g, applied, nil)
		return nil
	}

	c.mu.RLock()
	hadUser := c.user != nil
	c.mu.RUnlock()

	if hadUser {
		c.markCleared(g)
		if logoutErr := c.service.Logout(ctx); logoutErr != nil {
			c.logger.Warn("forced logout cleanup failed", zap.Error(logoutErr))
		}
	}

	c.finish(g, func() {
		if hadUser {
			c.user = nil
		}
		c.errMsg = apperrors.MessageOf(err)
	})
	return err
}

// ClearError clears the error without touching user or loading state
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
}

// Snapshot returns a copy of the current session state
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		IsLoading: c.loading,
		Error:     c.errMsg,
	}
	if c.user != nil {
		user := *c.user
		snap.User = &user
	}
	return snap
}

// IsAuthenticated reports whether a user is present in session state
func (c *Controller) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil
}

// Role returns the session user's role, if any
func (c *Controller) Role() (roles.Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return "", false
	}
	return c.user.Role, true
}

// HasRole reports whether the session user holds exactly the given role
func (c *Controller) HasRole(role roles.Role) bool {
	current, ok := c.Role()
	return ok && current == role
}

// HasAnyRole reports whether the session user holds one of the given roles
func (c *Controller) HasAnyRole(set []roles.Role) bool {
	current, ok := c.Role()
	return ok && roles.Contains(set, current)
}

// begin starts an operation: bumps the generation, raises loading, and
// clears the previous error.
func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.loading = true
	c.errMsg = ""
	return c.gen
}

// finish applies an operation's result unless a newer operation has taken
// over. The newer operation owns the loading flag in that case, so it is
// never left raised by a stale result on any path. Reports whether the
// result was applied.
func (c *Controller) finish(g uint64, apply func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != g {
		return false
	}
	c.loading = false
	apply()
	return true
}

// markCleared records that generation g cleared the session
func (c *Controller) markCleared(g uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g > c.lastClear {
		c.lastClear = g
	}
}

// discardIfSuperseded removes credentials persisted by a successful
// operation that a logout overtook while it was in flight. Without this a
// late login response would leave a live token pair behind the cleared
// session state.
func (c *Controller) discardIfSuperseded(g uint64, applied bool, err error) {
	if applied || err != nil {
		return
	}

	c.mu.RLock()
	cleared := g < c.lastClear
	c.mu.RUnlock()
	if !cleared {
		return
	}

	if derr := c.service.DiscardLocal(); derr != nil {
		c.logger.Warn("failed to discard superseded session", zap.Error(derr))
	}
}
