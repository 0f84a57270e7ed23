package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/DovakiinZ/Sin-City-sub001/internal/middleware"
	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
)

// serviceError maps service errors onto the API error envelope. Persistence
// failures are reported generically with fallback.
func serviceError(c fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrNotReady):
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "NOT_READY", "Fingerprint not available yet")
	case errors.Is(err, service.ErrFingerprintMismatch):
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "FINGERPRINT_MISMATCH",
			"Signature does not hash to the given fingerprint")
	case errors.Is(err, service.ErrInvalidEmail):
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_EMAIL", "Email address is not valid")
	case errors.Is(err, service.ErrInvalidStatus):
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_STATUS",
			"Invalid status. Must be one of: active, restricted, blocked")
	case errors.Is(err, service.ErrInvalidFlag):
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", "flag is required")
	case errors.Is(err, service.ErrGuestNotFound):
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Guest not found")
	case errors.Is(err, service.ErrGuestBlocked):
		return middleware.ErrorResponse(c, fiber.StatusForbidden, "GUEST_BLOCKED", "This guest has been blocked")
	case errors.Is(err, service.ErrEmailRequired):
		return middleware.ErrorResponse(c, fiber.StatusForbidden, "EMAIL_REQUIRED", "A verified email is required to keep posting")
	default:
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}
