package main

import (
	"context"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"

	adaptermiddleware "dovita-portal/internal/adapters/http/middleware"
	adapterlogger "dovita-portal/internal/adapters/logger"
	"dovita-portal/internal/application"
	"dovita-portal/internal/infrastructure"
	"dovita-portal/internal/infrastructure/auth"
	"dovita-portal/internal/infrastructure/dynamodb"
	"dovita-portal/internal/infrastructure/redisstore"
	httpiface "dovita-portal/internal/interfaces/http"
	lambdahandler "dovita-portal/internal/platform/lambda"
)

// Lambda entrypoint. Same wiring as cmd/portal but the router is served
// through the API Gateway proxy instead of a listener, and the background
// session warm loop is skipped because invocations are short-lived.
func main() {
	logger := adapterlogger.New()
	ctx := context.Background()

	cfg, err := infrastructure.LoadConfig()
	if err != nil {
		logger.Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	xray.Configure(xray.Config{LogLevel: "error"})

	ddbClient, err := dynamodb.NewClient(ctx, cfg.Region, cfg.TableName)
	if err != nil {
		logger.Error(ctx, "failed to initialize dynamodb client", "error", err)
		os.Exit(1)
	}
	identity := dynamodb.NewIdentityStore(ddbClient)

	redisClient, err := redisstore.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	store := redisstore.NewStore(redisClient, logger)

	var tokens auth.TokenSource = auth.StaticTokenSource{}
	if cfg.SessionTokenFile != "" {
		tokens = auth.FileTokenSource{Path: cfg.SessionTokenFile}
	}
	provider := auth.NewProvider(cfg.AuthProviderURL, tokens)

	oracle := application.NewSessionOracle(provider, logger)
	sequencer := application.NewSequencer(oracle, identity, logger)
	cache := application.NewPermissionCache(store, identity, oracle, logger)
	queries := application.NewQueryCache()
	router := application.NewEventRouter(sequencer, cache, queries, store, logger)

	cache.Load(ctx)
	unsubscribe := router.Attach(provider)
	defer unsubscribe()
	go router.Run(ctx)

	var bearer echo.MiddlewareFunc
	if cfg.AuthMode == string(adaptermiddleware.ModeBearer) {
		bearer = auth.NewBearerMiddleware(provider).Handler
	}
	authMiddleware, err := adaptermiddleware.AuthMiddleware(bearer)
	if err != nil {
		logger.Error(ctx, "failed to initialize auth middleware", "error", err)
		os.Exit(1)
	}
	mw := httpiface.Middleware{
		Auth:          authMiddleware,
		XRay:          adaptermiddleware.XRayMiddleware("dovita-portal-http"),
		RequestLogger: adaptermiddleware.RequestLogger(logger),
	}
	handlers := httpiface.Handlers{
		Session:     httpiface.NewSessionHandler(oracle, queries),
		Me:          httpiface.NewMeHandler(provider, queries),
		Bootstrap:   httpiface.NewBootstrapHandler(sequencer, cache),
		Auth:        httpiface.NewAuthHandler(provider, logger),
		Permissions: httpiface.NewPermissionsHandler(cache),
		Admin:       httpiface.NewAdminHandler(identity),
		Modules:     httpiface.NewModulesHandler(),
		ClientState: httpiface.NewClientStateHandler(store),
		Guard:       httpiface.NewGuard(oracle, cache, logger),
	}

	e := httpiface.NewRouter(handlers, mw)
	awslambda.Start(lambdahandler.NewHandler(e, logger))
}
