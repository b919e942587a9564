package middleware

import (
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
)

// XRayMiddleware opens a trace segment per request so downstream identity
// store calls and log records share a trace id. The segment is annotated
// with the route pattern, response status and, when the auth chain
// identified one, the acting user.
func XRayMiddleware(segmentName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, seg := xray.BeginSegment(c.Request().Context(), segmentName)
			c.SetRequest(c.Request().Clone(ctx))
			err := next(c)
			_ = seg.AddAnnotation("route", c.Path())
			_ = seg.AddAnnotation("status", c.Response().Status)
			if uid, ok := c.Get("user_id").(string); ok && uid != "" {
				_ = seg.AddAnnotation("user_id", uid)
			}
			seg.Close(err)
			return err
		}
	}
}
