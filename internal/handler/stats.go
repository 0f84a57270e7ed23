package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
)

type StatsHandler struct {
	svc *service.ModerationService
}

func NewStatsHandler(svc *service.ModerationService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// GetStats handles GET /api/admin/stats
func (h *StatsHandler) GetStats(c fiber.Ctx) error {
	stats, err := h.svc.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to fetch statistics",
			},
		})
	}

	return c.JSON(stats)
}
