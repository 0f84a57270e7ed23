package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
)

type EnrichmentHandler struct {
	svc *service.EnrichmentService
}

func NewEnrichmentHandler(svc *service.EnrichmentService) *EnrichmentHandler {
	return &EnrichmentHandler{svc: svc}
}

// Get handles GET /api/enrichment. It never fails: unknown fields are null.
func (h *EnrichmentHandler) Get(c fiber.Ctx) error {
	e := h.svc.Lookup(c.Context(), c.IP())
	recordEnrichment(e.Country != nil || e.ISP != nil)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(e)
}
