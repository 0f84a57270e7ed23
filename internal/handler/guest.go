package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/DovakiinZ/Sin-City-sub001/internal/middleware"
	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
)

type GuestHandler struct {
	resolver *service.Resolver
	posting  *service.PostingService
}

func NewGuestHandler(resolver *service.Resolver, posting *service.PostingService) *GuestHandler {
	return &GuestHandler{resolver: resolver, posting: posting}
}

// Resolve handles POST /api/guests/resolve
func (h *GuestHandler) Resolve(c fiber.Ctx) error {
	var req model.ResolveRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	req.Fingerprint = strings.TrimSpace(req.Fingerprint)
	if req.Fingerprint == "" {
		recordResolution("not_ready")
		return serviceError(c, service.ErrNotReady, "")
	}
	if msg := middleware.ValidateStruct(req); msg != "" {
		recordResolution("invalid")
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", msg)
	}

	res, err := h.resolver.Resolve(c.Context(), service.ResolveInput{
		Fingerprint:  req.Fingerprint,
		Signature:    req.Signature,
		Email:        req.Email,
		SessionToken: req.SessionToken,
		ClientIP:     c.IP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrFingerprintMismatch):
			recordResolution("invalid")
		default:
			recordResolution("error")
		}
		return serviceError(c, err, "Failed to resolve guest")
	}

	if res.Created {
		recordResolution("created")
		return c.Status(fiber.StatusCreated).JSON(res)
	}
	recordResolution("returning")
	return c.JSON(res)
}

// RecordPost handles POST /api/guests/:guestId/posts
func (h *GuestHandler) RecordPost(c fiber.Ctx) error {
	guestID, errMsg := middleware.ValidateGuestID(c.Params("guestId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	res, err := h.posting.RecordPost(c.Context(), guestID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGuestBlocked):
			recordPost("blocked")
		case errors.Is(err, service.ErrEmailRequired):
			recordPost("email_required")
		case errors.Is(err, service.ErrGuestNotFound):
			recordPost("unknown_guest")
		default:
			recordPost("error")
		}
		return serviceError(c, err, "Failed to record post")
	}

	recordPost("accepted")
	return c.JSON(res)
}
