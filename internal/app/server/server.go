package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/GeoLink/config"
	"github.com/sifan077/GeoLink/internal/app/service"
	inthttp "github.com/sifan077/GeoLink/internal/http/handler"
	"github.com/sifan077/GeoLink/internal/http/middleware"
	natsclient "github.com/sifan077/GeoLink/internal/infra/nats"
	infraPostgres "github.com/sifan077/GeoLink/internal/infra/postgres"
	infraRedis "github.com/sifan077/GeoLink/internal/infra/redis"
	"go.uber.org/zap"
)

// Dependencies bundles what the HTTP server needs. Infrastructure clients are
// optional; nil ones are left out of routing and health checks.
type Dependencies struct {
	Logger    *zap.Logger
	Config    config.ServerConfig
	RateLimit config.RateLimitConfig

	Links  service.LinkService
	Clicks service.ClickService

	Postgres *pgxpool.Pool
	Redis    *redis.Client
	NATS     *nats.Conn
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "GeoLink",
		DisableStartupMessage: true,
		Immutable:             true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS(s.deps.Config.AllowOrigins))
}

func (s *Server) registerRoutes() {
	inthttp.NewHealthHandler(s.deps.Logger, s.healthChecks()).Register(s.app)

	inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:       s.deps.Logger,
		LinkService:  s.deps.Links,
		ClickService: s.deps.Clicks,
		BaseURL:      s.deps.Config.BaseURL,
	}).Register(s.app)

	var limiter fiber.Handler
	if s.deps.RateLimit.Enabled && s.deps.Redis != nil {
		limiter = middleware.RateLimit(s.deps.Redis, middleware.RateLimitConfig{
			MaxRequests: s.deps.RateLimit.MaxRequests,
			Window:      s.deps.RateLimit.Window,
		}, s.deps.Logger)
	}

	inthttp.NewTrackHandler(inthttp.TrackDeps{
		Logger:       s.deps.Logger,
		LinkService:  s.deps.Links,
		ClickService: s.deps.Clicks,
		Secret:       []byte(s.deps.Config.RedirectSecret),
		RateLimit:    limiter,
	}).Register(s.app)
}

func (s *Server) healthChecks() map[string]inthttp.HealthCheck {
	checks := make(map[string]inthttp.HealthCheck)
	if pool := s.deps.Postgres; pool != nil {
		checks["postgres"] = func(ctx context.Context) error {
			return infraPostgres.Ping(ctx, pool)
		}
	}
	if rdb := s.deps.Redis; rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return infraRedis.Ping(ctx, rdb)
		}
	}
	if conn := s.deps.NATS; conn != nil {
		checks["nats"] = func(ctx context.Context) error {
			return natsclient.Check(ctx, conn)
		}
	}
	return checks
}

// errorHandler renders errors that escape handlers, including Fiber's own
// 404/405, as JSON.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}
