package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpoint/gatehouse/internal/authservice"
	"github.com/classpoint/gatehouse/internal/guard"
	"github.com/classpoint/gatehouse/internal/roles"
	"github.com/classpoint/gatehouse/internal/session"
	"github.com/classpoint/gatehouse/pkg/response"
)

// handler exposes the session operations over HTTP
type handler struct {
	controller *session.Controller
	sso        *authservice.GoogleSSO
	logger     *zap.Logger
}

func newHandler(controller *session.Controller, sso *authservice.GoogleSSO, logger *zap.Logger) *handler {
	return &handler{controller: controller, sso: sso, logger: logger}
}

// sessionBody renders the snapshot the way UI consumers read it
func sessionBody(snap session.Snapshot) gin.H {
	body := gin.H{
		"isLoading": snap.IsLoading,
	}
	if snap.User != nil {
		body["user"] = snap.User
	}
	if snap.Error != "" {
		body["error"] = snap.Error
	}
	return body
}

// POST /session/login
func (h *handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	// The controller mirrors failures into session state; the wire answer
	// is the coded error envelope
	if err := h.controller.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sessionBody(h.controller.Snapshot()))
}

// POST /session/register
func (h *handler) register(c *gin.Context) {
	var req authservice.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.controller.Register(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, sessionBody(h.controller.Snapshot()))
}

// POST /session/logout
func (h *handler) logout(c *gin.Context) {
	if err := h.controller.Logout(c.Request.Context()); err != nil {
		h.logger.Warn("logout cleanup failed", zap.Error(err))
	}
	response.Success(c, http.StatusOK, sessionBody(h.controller.Snapshot()))
}

// GET /session
func (h *handler) current(c *gin.Context) {
	response.Success(c, http.StatusOK, sessionBody(h.controller.Snapshot()))
}

// POST /session/refresh
func (h *handler) refresh(c *gin.Context) {
	if err := h.controller.RefreshUser(c.Request.Context()); err != nil {
		snap := h.controller.Snapshot()
		response.Success(c, http.StatusUnauthorized, sessionBody(snap))
		return
	}
	response.Success(c, http.StatusOK, sessionBody(h.controller.Snapshot()))
}

// GET /login/google
func (h *handler) googleLogin(c *gin.Context) {
	if h.sso == nil {
		response.ValidationError(c, "Google SSO is not configured")
		return
	}
	c.Redirect(http.StatusFound, h.sso.AuthURL(uuid.NewString()))
}

// GET /auth/google/callback
func (h *handler) googleCallback(c *gin.Context) {
	if h.sso == nil {
		response.ValidationError(c, "Google SSO is not configured")
		return
	}

	code := c.Query("code")
	if code == "" {
		response.ValidationError(c, "code parameter is required")
		return
	}

	if _, err := h.sso.Login(c.Request.Context(), code); err != nil {
		response.Error(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// portalPage renders a placeholder body for a portal surface
func portalPage(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"portal": name})
	}
}

// registerRoutes mounts the session endpoints and the guarded portal
// surfaces. Each surface states its requirement through the guard; the
// role lists themselves live in the roles package.
func registerRoutes(r *gin.Engine, h *handler, g *guard.Guard) {
	s := r.Group("/session")
	{
		s.GET("", h.current)
		s.POST("/login", h.login)
		s.POST("/register", h.register)
		s.POST("/logout", h.logout)
		s.POST("/refresh", h.refresh)
	}

	r.GET("/login/google", h.googleLogin)
	r.GET("/auth/google/callback", h.googleCallback)
	r.GET("/login", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"page": "login"})
	})

	p := r.Group("/portal")
	{
		p.GET("/admin", g.AdminOnly(), portalPage("admin"))
		p.GET("/coordinator", g.RequireRole(roles.Coordinator), portalPage("coordinator"))
		p.GET("/teacher", g.RequireRole(roles.Teacher), portalPage("teacher"))
		p.GET("/student", g.RequireRole(roles.Student), portalPage("student"))
		p.GET("/parent", g.RequireRole(roles.Parent), portalPage("parent"))
		p.GET("/library", g.LibraryOnly(), portalPage("library"))
		p.GET("/media", g.RequireRole(roles.MediaCoordinator), portalPage("media"))
		p.GET("/staff", g.StaffOnly(), portalPage("staff"))
	}
}
