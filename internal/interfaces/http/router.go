package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"dovita-portal/internal/domain"
)

type Middleware struct {
	Auth          echo.MiddlewareFunc
	XRay          echo.MiddlewareFunc
	RequestLogger echo.MiddlewareFunc
}

type Handlers struct {
	Session     *SessionHandler
	Me          *MeHandler
	Bootstrap   *BootstrapHandler
	Auth        *AuthHandler
	Permissions *PermissionsHandler
	Admin       *AdminHandler
	Modules     *ModulesHandler
	ClientState *ClientStateHandler
	Guard       *Guard
}

func NewRouter(h Handlers, m Middleware) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if m.XRay != nil {
		e.Use(m.XRay)
	}
	if m.RequestLogger != nil {
		e.Use(m.RequestLogger)
	}
	if m.Auth != nil {
		e.Use(m.Auth)
	}

	// Session establishment surface: reachable without a confirmed session.
	e.GET("/session", h.Session.Status)
	e.POST("/bootstrap", h.Bootstrap.Run)
	e.POST("/auth/otp", h.Auth.SignInWithOTP)
	e.POST("/auth/reset-password", h.Auth.ResetPassword)
	// Auth-state webhook from the identity platform. Public for the same
	// reason /bootstrap is: SIGNED_IN arrives before a session is
	// confirmable on our side.
	e.POST("/auth/events", h.Auth.PublishEvent)

	authed := e.Group("", h.Guard.RequireSession)
	authed.GET("/me", h.Me.Current)
	authed.GET("/permissions", h.Permissions.List)
	authed.GET("/modules/:module", h.Modules.Probe, h.Guard.RequireModuleParam(domain.CapabilityView))

	authed.GET("/state/active-project", h.ClientState.GetActiveProject)
	authed.PUT("/state/active-project", h.ClientState.SetActiveProject)
	authed.GET("/state/preview-mode", h.ClientState.GetPreviewMode)
	authed.PUT("/state/preview-mode", h.ClientState.SetPreviewMode)

	admin := authed.Group("", h.Guard.RequireModule(domain.ModuleAdmin, domain.CapabilityEdit))
	admin.PUT("/users/:user_id/permissions/:module", h.Admin.UpsertPermission)
	admin.POST("/users/:user_id/roles", h.Admin.AssignRole)
	admin.GET("/users/:user_id/roles", h.Admin.ListRoles)

	return e
}
