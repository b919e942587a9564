package http

import (
	"context"
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"dovita-portal/internal/application"
	"dovita-portal/internal/domain"
	"dovita-portal/internal/ports"
)

// Guard gates protected routes on session and permission state. It always
// answers with a state: loading, unauthenticated, denied or error-with-retry
// are response bodies, never panics or blank 500s.
type Guard struct {
	oracle *application.SessionOracle
	cache  *application.PermissionCache
	logger ports.Logger
}

func NewGuard(oracle *application.SessionOracle, cache *application.PermissionCache, logger ports.Logger) *Guard {
	return &Guard{oracle: oracle, cache: cache, logger: logger}
}

// RequireSession passes requests from an authenticated principal: either the
// bearer middleware already identified one, or the oracle confirms the
// ambient session. Anything else is an explicit unauthenticated state with a
// login path, since "could not confirm" must stay retryable.
func (g *Guard) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if uid, ok := c.Get("user_id").(string); ok && uid != "" {
			return next(c)
		}
		if sess := g.oracle.SessionOrNil(c.Request().Context()); sess != nil {
			c.Set("user_id", sess.UserID)
			return next(c)
		}
		return c.JSON(stdhttp.StatusUnauthorized, map[string]string{
			"state": "unauthenticated",
			"login": "/login",
		})
	}
}

// RequireModule gates on a fixed module name.
func (g *Guard) RequireModule(module string, cap domain.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return g.check(c, module, cap, next)
		}
	}
}

// RequireModuleParam gates on the :module path parameter.
func (g *Guard) RequireModuleParam(cap domain.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return g.check(c, c.Param("module"), cap, next)
		}
	}
}

func (g *Guard) check(c echo.Context, module string, cap domain.Capability, next echo.HandlerFunc) error {
	if module == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": domain.ErrInvalidInput.Error()})
	}
	if g.cache.Allows(module, cap) {
		return next(c)
	}
	if len(g.cache.Snapshot()) == 0 {
		switch g.cache.Status() {
		case application.CacheLoading:
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(stdhttp.StatusServiceUnavailable, map[string]string{"state": "loading"})
		case application.CacheTimeout:
			return c.JSON(stdhttp.StatusServiceUnavailable, map[string]string{
				"state": "error",
				"error": "could not load your permissions, please retry",
			})
		default:
			// Session confirmed but no permission data yet: render
			// optimistically and let the trailing fetch disagree on a later
			// request. Latency over strictness.
			g.logger.Warn(c.Request().Context(), "optimistic render before permission fetch",
				"module", module)
			go g.cache.FetchOnce(context.Background())
			return next(c)
		}
	}
	return c.JSON(stdhttp.StatusForbidden, map[string]string{
		"state":  "denied",
		"error":  domain.ErrPermissionDeny.Error(),
		"module": module,
	})
}
