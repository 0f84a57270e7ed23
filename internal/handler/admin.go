package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/DovakiinZ/Sin-City-sub001/internal/middleware"
	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
)

// AdminHandler serves the moderation console API.
type AdminHandler struct {
	svc *service.ModerationService
}

func NewAdminHandler(svc *service.ModerationService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// List handles GET /api/admin/guests?status=&flag=&limit=&offset=
func (h *AdminHandler) List(c fiber.Ctx) error {
	f := model.GuestFilter{Status: model.GuestStatus(c.Query("status"))}

	if flag := c.Query("flag"); flag != "" {
		normalized, errMsg := middleware.ValidateFlag(flag)
		if errMsg != "" {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
		}
		f.Flag = normalized
	}

	var errMsg string
	if f.Limit, errMsg = intQuery(c, "limit"); errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	if f.Offset, errMsg = intQuery(c, "offset"); errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	guests, err := h.svc.List(c.Context(), f)
	if err != nil {
		return serviceError(c, err, "Failed to list guests")
	}
	return c.JSON(fiber.Map{"guests": guests, "count": len(guests)})
}

// Get handles GET /api/admin/guests/:guestId
func (h *AdminHandler) Get(c fiber.Ctx) error {
	guestID, errMsg := middleware.ValidateGuestID(c.Params("guestId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	g, err := h.svc.Get(c.Context(), guestID)
	if err != nil {
		return serviceError(c, err, "Failed to lookup guest")
	}
	return c.JSON(g)
}

// History handles GET /api/admin/guests/:guestId/history
func (h *AdminHandler) History(c fiber.Ctx) error {
	guestID, errMsg := middleware.ValidateGuestID(c.Params("guestId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	limit, errMsg := intQuery(c, "limit")
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	events, err := h.svc.History(c.Context(), guestID, limit)
	if err != nil {
		return serviceError(c, err, "Failed to load guest history")
	}
	return c.JSON(fiber.Map{"events": events})
}

// SetStatus handles PUT /api/admin/guests/:guestId/status
func (h *AdminHandler) SetStatus(c fiber.Ctx) error {
	guestID, errMsg := middleware.ValidateGuestID(c.Params("guestId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	var req model.StatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	if msg := middleware.ValidateStruct(req); msg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", msg)
	}

	g, err := h.svc.SetStatus(c.Context(), guestID, req.Status, middleware.Actor(c))
	if err != nil {
		return serviceError(c, err, "Failed to update status")
	}
	recordModeration("status_" + string(req.Status))
	return c.JSON(g)
}

// SetTrust handles PUT /api/admin/guests/:guestId/trust
func (h *AdminHandler) SetTrust(c fiber.Ctx) error {
	guestID, errMsg := middleware.ValidateGuestID(c.Params("guestId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	var req model.TrustRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	if msg := middleware.ValidateStruct(req); msg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", msg)
	}

	g, err := h.svc.SetTrustScore(c.Context(), guestID, *req.TrustScore, middleware.Actor(c))
	if err != nil {
		return serviceError(c, err, "Failed to update trust score")
	}
	recordModeration("trust")
	return c.JSON(g)
}

// ToggleFlag handles POST /api/admin/guests/:guestId/flags
func (h *AdminHandler) ToggleFlag(c fiber.Ctx) error {
	guestID, errMsg := middleware.ValidateGuestID(c.Params("guestId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	var req model.FlagRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	flag, errMsg := middleware.ValidateFlag(req.Flag)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	g, err := h.svc.ToggleFlag(c.Context(), guestID, flag, middleware.Actor(c))
	if err != nil {
		return serviceError(c, err, "Failed to toggle flag")
	}
	recordModeration("flag")
	return c.JSON(g)
}

// VerifyEmail handles POST /api/admin/guests/:guestId/verify-email
func (h *AdminHandler) VerifyEmail(c fiber.Ctx) error {
	guestID, errMsg := middleware.ValidateGuestID(c.Params("guestId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	var req model.VerifyEmailRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	if msg := middleware.ValidateStruct(req); msg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", msg)
	}

	g, err := h.svc.VerifyEmail(c.Context(), guestID, req.Email, middleware.Actor(c))
	if err != nil {
		return serviceError(c, err, "Failed to verify email")
	}
	recordModeration("verify_email")
	return c.JSON(g)
}

func intQuery(c fiber.Ctx, key string) (int, string) {
	raw := c.Query(key)
	if raw == "" {
		return 0, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, key + " must be a non-negative integer"
	}
	return n, ""
}
