package guard

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classpoint/gatehouse/internal/middleware"
	"github.com/classpoint/gatehouse/internal/roles"
	"github.com/classpoint/gatehouse/internal/session"
	apperrors "github.com/classpoint/gatehouse/pkg/errors"
	"github.com/classpoint/gatehouse/pkg/response"
)

// DefaultLoginPath is where unauthenticated visitors are sent
const DefaultLoginPath = "/login"

// Requirement states what a protected region demands. Role wins when both
// fields are set, so exactly one check path fires per evaluation.
type Requirement struct {
	Role  roles.Role
	Roles []roles.Role
}

// required returns the acceptable role set for display
func (r Requirement) required() []roles.Role {
	if r.Role != "" {
		return []roles.Role{r.Role}
	}
	return r.Roles
}

// Outcome is the guard's verdict
type Outcome int

const (
	// OutcomeLoading renders a loading indicator, no redirect
	OutcomeLoading Outcome = iota
	// OutcomeRedirect sends the visitor to the login path
	OutcomeRedirect
	// OutcomeDenied renders the access-denied view, no redirect
	OutcomeDenied
	// OutcomeAllow renders the protected content
	OutcomeAllow
)

// String implements fmt.Stringer
func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeDenied:
		return "denied"
	default:
		return "allow"
	}
}

// Decision is one guard evaluation
type Decision struct {
	Outcome    Outcome
	RedirectTo string
	Required   []roles.Role
	Actual     roles.Role
}

// DeniedMessage renders the denial view's two lines
func (d Decision) DeniedMessage() string {
	return fmt.Sprintf("Required roles: %s. Your current role: %s.",
		roles.Join(d.Required), d.Actual)
}

// Evaluate decides the outcome for one snapshot and requirement. Precedence
// is strict: loading before authentication, authentication before role,
// role before content.
func Evaluate(snap session.Snapshot, req Requirement, loginPath string) Decision {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}

	if snap.IsLoading {
		return Decision{Outcome: OutcomeLoading}
	}

	if snap.User == nil {
		return Decision{Outcome: OutcomeRedirect, RedirectTo: loginPath}
	}

	actual := snap.User.Role
	switch {
	case req.Role != "":
		if actual != req.Role {
			return Decision{Outcome: OutcomeDenied, Required: req.required(), Actual: actual}
		}
	case len(req.Roles) > 0:
		if !roles.Contains(req.Roles, actual) {
			return Decision{Outcome: OutcomeDenied, Required: req.required(), Actual: actual}
		}
	}

	return Decision{Outcome: OutcomeAllow, Actual: actual}
}

// Guard gates portal routes on the session controller's state
type Guard struct {
	controller *session.Controller
	loginPath  string
}

// New creates a guard redirecting unauthenticated visitors to loginPath
func New(controller *session.Controller, loginPath string) *Guard {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return &Guard{controller: controller, loginPath: loginPath}
}

// Require builds middleware enforcing the requirement
func (g *Guard) Require(req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := Evaluate(g.controller.Snapshot(), req, g.loginPath)
		middleware.RecordGuardDecision(decision.Outcome.String())

		switch decision.Outcome {
		case OutcomeLoading:
			c.Header("Retry-After", "1")
			response.Success(c, http.StatusAccepted, gin.H{"status": "loading"})
			c.Abort()

		case OutcomeRedirect:
			c.Redirect(http.StatusFound, decision.RedirectTo)
			c.Abort()

		case OutcomeDenied:
			c.JSON(http.StatusForbidden, response.Envelope{
				Success: false,
				Error: &response.ErrorDetail{
					Code:    apperrors.ErrCodeForbidden,
					Message: decision.DeniedMessage(),
				},
				Data: gin.H{
					"requiredRoles": decision.Required,
					"currentRole":   decision.Actual,
					"goBack":        true,
				},
			})
			c.Abort()

		default:
			c.Next()
		}
	}
}

// RequireRole gates on a single role
func (g *Guard) RequireRole(role roles.Role) gin.HandlerFunc {
	return g.Require(Requirement{Role: role})
}

// RequireAny gates on a set of acceptable roles
func (g *Guard) RequireAny(set []roles.Role) gin.HandlerFunc {
	return g.Require(Requirement{Roles: set})
}

// Convenience wrappers over the centrally defined role sets. New roles are
// picked up from the roles package; nothing is enumerated here.

// AdminOnly admits only administrators
func (g *Guard) AdminOnly() gin.HandlerFunc {
	return g.RequireRole(roles.Admin)
}

// StaffOnly admits school-side employees
func (g *Guard) StaffOnly() gin.HandlerFunc {
	return g.RequireAny(roles.Staff)
}

// AdministrativeOnly admits users who manage other users
func (g *Guard) AdministrativeOnly() gin.HandlerFunc {
	return g.RequireAny(roles.Administrative)
}

// LibraryOnly admits library portal managers
func (g *Guard) LibraryOnly() gin.HandlerFunc {
	return g.RequireAny(roles.Library)
}
