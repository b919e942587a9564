package middleware

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
)

type Mode string

const (
	// ModeNone disables request authentication; route guards still apply.
	ModeNone Mode = "none"
	// ModeBearer validates provider-issued JWTs on every request.
	ModeBearer Mode = "bearer"
)

func ParseAuthMode() (Mode, error) {
	mode := Mode(os.Getenv("AUTH_MODE"))
	switch mode {
	case "":
		return ModeNone, nil
	case ModeNone, ModeBearer:
		return mode, nil
	default:
		return "", errors.New("invalid auth mode")
	}
}

// AuthMiddleware selects the request authentication strategy from the
// environment. bearer requires the provider-backed token middleware.
func AuthMiddleware(bearer echo.MiddlewareFunc) (echo.MiddlewareFunc, error) {
	mode, err := ParseAuthMode()
	if err != nil {
		return nil, err
	}
	if mode == ModeBearer && bearer == nil {
		return nil, errors.New("bearer middleware is required when AUTH_MODE=bearer")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch mode {
			case ModeNone:
				return next(c)
			case ModeBearer:
				return bearer(next)(c)
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "invalid auth mode")
			}
		}
	}, nil
}
