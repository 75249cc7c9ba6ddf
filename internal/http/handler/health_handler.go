package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one optional dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness plus the state of optional dependencies.
type HealthHandler struct {
	logger *zap.Logger
	checks map[string]HealthCheck
	now    func() time.Time
}

// NewHealthHandler creates a health handler. checks may be nil.
func NewHealthHandler(logger *zap.Logger, checks map[string]HealthCheck) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{logger: logger, checks: checks, now: time.Now}
}

// Register wires health routes onto the provided router.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
}

// Health is a simple root endpoint so we know the service is running.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	body := fiber.Map{
		"service": "GeoLink",
		"status":  "ok",
		"time":    h.now().UTC().Format(time.RFC3339),
	}
	if len(h.checks) == 0 {
		return c.JSON(body)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	status := fiber.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			results[name] = err.Error()
			body["status"] = "degraded"
			status = fiber.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	body["checks"] = results

	return c.Status(status).JSON(body)
}
