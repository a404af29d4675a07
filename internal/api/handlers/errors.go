/**
 * @description
 * Maps settlement engine error kinds onto HTTP responses so every handler
 * reports failures the same way.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/engine
 */

package handlers

import (
	"errors"

	"github.com/foresight-project/backend/internal/engine"
	"github.com/gofiber/fiber/v2"
)

// statusForEngineError picks the HTTP status for a settlement failure.
func statusForEngineError(err error) int {
	switch {
	case errors.Is(err, engine.ErrMarketNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, engine.ErrAuthorization):
		return fiber.StatusForbidden
	case errors.Is(err, engine.ErrMarketExists), errors.Is(err, engine.ErrState):
		return fiber.StatusConflict
	case errors.Is(err, engine.ErrValidation),
		errors.Is(err, engine.ErrBalance),
		errors.Is(err, engine.ErrArithmetic),
		errors.Is(err, engine.ErrResourceMismatch):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// engineError renders a settlement failure as a JSON error response.
func engineError(c *fiber.Ctx, err error) error {
	status := statusForEngineError(err)
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": "Internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
