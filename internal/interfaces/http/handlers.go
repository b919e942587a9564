package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"dovita-portal/internal/application"
	"dovita-portal/internal/domain"
	"dovita-portal/internal/ports"
)

func handleError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(stdhttp.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		return c.JSON(stdhttp.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

type SessionHandler struct {
	oracle  *application.SessionOracle
	queries *application.QueryCache
}

func NewSessionHandler(oracle *application.SessionOracle, queries *application.QueryCache) *SessionHandler {
	return &SessionHandler{oracle: oracle, queries: queries}
}

// Status reports the tri-state session answer: a confirmed session, or
// unauthenticated-so-far with a retry hint. A confirmed session is memoized
// until a token refresh or sign-out invalidates it; the negative answer is
// never cached, it must stay retryable.
func (h *SessionHandler) Status(c echo.Context) error {
	if cached, ok := h.queries.Get(application.QuerySession); ok {
		if sess, ok := cached.(*domain.Session); ok {
			return c.JSON(stdhttp.StatusOK, map[string]any{
				"authenticated": true,
				"session":       sess,
			})
		}
	}
	sess := h.oracle.SessionOrNil(c.Request().Context())
	if sess == nil {
		return c.JSON(stdhttp.StatusOK, map[string]any{
			"authenticated": false,
			"retryable":     true,
		})
	}
	h.queries.Set(application.QuerySession, sess)
	return c.JSON(stdhttp.StatusOK, map[string]any{
		"authenticated": true,
		"session":       sess,
	})
}

type MeHandler struct {
	provider ports.AuthProvider
	queries  *application.QueryCache
}

func NewMeHandler(provider ports.AuthProvider, queries *application.QueryCache) *MeHandler {
	return &MeHandler{provider: provider, queries: queries}
}

// Current serves the signed-in user's profile, memoized until a USER_UPDATED
// or sign-out event invalidates it.
func (h *MeHandler) Current(c echo.Context) error {
	if cached, ok := h.queries.Get(application.QueryCurrentUser); ok {
		if user, ok := cached.(domain.User); ok {
			return c.JSON(stdhttp.StatusOK, user)
		}
	}
	user, err := h.provider.User(c.Request().Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			return c.JSON(stdhttp.StatusUnauthorized, map[string]string{"state": "unauthenticated"})
		}
		return handleError(c, err)
	}
	h.queries.Set(application.QueryCurrentUser, user)
	return c.JSON(stdhttp.StatusOK, user)
}

type BootstrapHandler struct {
	sequencer *application.Sequencer
	cache     *application.PermissionCache
}

func NewBootstrapHandler(sequencer *application.Sequencer, cache *application.PermissionCache) *BootstrapHandler {
	return &BootstrapHandler{sequencer: sequencer, cache: cache}
}

func (h *BootstrapHandler) Run(c echo.Context) error {
	res := h.sequencer.Bootstrap(c.Request().Context())
	switch {
	case res.OK:
		h.cache.SaveIfValid(c.Request().Context(), res.Permissions)
		return c.JSON(stdhttp.StatusOK, res)
	case res.Reason == domain.ReasonNoSession:
		return c.JSON(stdhttp.StatusUnauthorized, res)
	default:
		return c.JSON(stdhttp.StatusServiceUnavailable, res)
	}
}

type AuthHandler struct {
	provider ports.AuthProvider
	logger   ports.Logger
}

func NewAuthHandler(provider ports.AuthProvider, logger ports.Logger) *AuthHandler {
	return &AuthHandler{provider: provider, logger: logger}
}

func (h *AuthHandler) SignInWithOTP(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.provider.SignInWithOTP(c.Request().Context(), req.Email); err != nil {
		h.logger.Warn(c.Request().Context(), "otp sign-in failed", "error", err)
		return c.JSON(stdhttp.StatusBadGateway, map[string]string{"error": "auth provider unavailable"})
	}
	return c.NoContent(stdhttp.StatusAccepted)
}

// PublishEvent ingests an auth-state webhook from the identity platform and
// feeds it to the provider's subscriber fan-out. Unknown event names are
// accepted: the router treats them as no-ops, and rejecting them would force
// a redeploy every time the platform adds one.
func (h *AuthHandler) PublishEvent(c echo.Context) error {
	var req struct {
		Event  string `json:"event"`
		UserID string `json:"user_id"`
	}
	if err := c.Bind(&req); err != nil || req.Event == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	eventID := uuid.NewString()
	h.logger.Info(c.Request().Context(), "auth event received",
		"event_id", eventID, "event", req.Event, "user_id", req.UserID)
	h.provider.Emit(req.Event, req.UserID)
	return c.JSON(stdhttp.StatusAccepted, map[string]string{"event_id": eventID})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.provider.ResetPasswordForEmail(c.Request().Context(), req.Email); err != nil {
		h.logger.Warn(c.Request().Context(), "password reset failed", "error", err)
		return c.JSON(stdhttp.StatusBadGateway, map[string]string{"error": "auth provider unavailable"})
	}
	return c.NoContent(stdhttp.StatusAccepted)
}

type PermissionsHandler struct {
	cache *application.PermissionCache
}

func NewPermissionsHandler(cache *application.PermissionCache) *PermissionsHandler {
	return &PermissionsHandler{cache: cache}
}

// List serves the cached set; consumers get the last-known-good data plus
// the cache status so they can tell stale-but-served from ready.
func (h *PermissionsHandler) List(c echo.Context) error {
	return c.JSON(stdhttp.StatusOK, map[string]any{
		"status":      h.cache.Status(),
		"permissions": h.cache.Snapshot(),
	})
}

type AdminHandler struct {
	identity ports.IdentityStore
}

func NewAdminHandler(identity ports.IdentityStore) *AdminHandler {
	return &AdminHandler{identity: identity}
}

func (h *AdminHandler) UpsertPermission(c echo.Context) error {
	var req struct {
		CanView   bool `json:"can_view"`
		CanCreate bool `json:"can_create"`
		CanEdit   bool `json:"can_edit"`
		CanDelete bool `json:"can_delete"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	perm := domain.ModulePermission{
		UserID:    c.Param("user_id"),
		Module:    c.Param("module"),
		CanView:   req.CanView,
		CanCreate: req.CanCreate,
		CanEdit:   req.CanEdit,
		CanDelete: req.CanDelete,
	}
	if err := h.identity.UpsertPermission(c.Request().Context(), perm); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusOK)
}

func (h *AdminHandler) AssignRole(c echo.Context) error {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	role := domain.Role(req.Role)
	switch role {
	case domain.RoleAdmin, domain.RoleColaborador, domain.RoleCliente, domain.RoleContador:
	default:
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": domain.ErrInvalidInput.Error()})
	}
	if err := h.identity.AssignRole(c.Request().Context(), c.Param("user_id"), role); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusCreated)
}

func (h *AdminHandler) ListRoles(c echo.Context) error {
	roles, err := h.identity.RolesByUser(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string]any{"roles": roles})
}

type ModulesHandler struct{}

func NewModulesHandler() *ModulesHandler {
	return &ModulesHandler{}
}

// Probe is the guarded entry point for a feature area; reaching it means the
// guard chain allowed the module.
func (h *ModulesHandler) Probe(c echo.Context) error {
	return c.JSON(stdhttp.StatusOK, map[string]string{
		"module": c.Param("module"),
		"state":  "ok",
	})
}

type ClientStateHandler struct {
	ephemeral ports.EphemeralStore
}

func NewClientStateHandler(ephemeral ports.EphemeralStore) *ClientStateHandler {
	return &ClientStateHandler{ephemeral: ephemeral}
}

func (h *ClientStateHandler) GetActiveProject(c echo.Context) error {
	project, err := h.ephemeral.ActiveProject(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string]string{"project_id": project})
}

func (h *ClientStateHandler) SetActiveProject(c echo.Context) error {
	var req struct {
		ProjectID string `json:"project_id"`
	}
	if err := c.Bind(&req); err != nil || req.ProjectID == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.ephemeral.SetActiveProject(c.Request().Context(), req.ProjectID); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusOK)
}

func (h *ClientStateHandler) GetPreviewMode(c echo.Context) error {
	enabled, err := h.ephemeral.PreviewMode(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string]bool{"enabled": enabled})
}

func (h *ClientStateHandler) SetPreviewMode(c echo.Context) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.ephemeral.SetPreviewMode(c.Request().Context(), req.Enabled); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusOK)
}
