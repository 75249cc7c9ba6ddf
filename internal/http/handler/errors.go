package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/GeoLink/internal/app/repository"
	"github.com/sifan077/GeoLink/internal/validation"
	"go.uber.org/zap"
)

// writeError maps domain errors onto HTTP statuses. Anything unrecognised is
// logged and reported as a 500.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
	case errors.Is(err, repository.ErrClickNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Click not found"})
	case errors.Is(err, validation.ErrInvalidURL):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid URL format"})
	}

	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	}

	logger.Error("failed to "+action, zap.Error(err), zap.String("path", c.Path()))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
