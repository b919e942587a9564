package lambda

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"

	"dovita-portal/internal/ports"
)

type Handler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// NewHandler proxies API Gateway v2 events into the portal's echo router,
// for deployments that run the service behind Lambda instead of a long-lived
// listener.
func NewHandler(e *echo.Echo, logger ports.Logger) Handler {
	adapter := echoadapter.NewV2(e)
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		logger.Debug(ctx, "lambda invocation", "path", req.RawPath)
		return adapter.ProxyWithContext(ctx, req)
	}
}
