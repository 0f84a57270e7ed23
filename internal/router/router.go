package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/DovakiinZ/Sin-City-sub001/internal/handler"
	"github.com/DovakiinZ/Sin-City-sub001/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Guest      *handler.GuestHandler
	Enrichment *handler.EnrichmentHandler
	Admin      *handler.AdminHandler
	Stats      *handler.StatsHandler
	Health     *handler.HealthHandler
}

// Options carries the router settings taken from config.
type Options struct {
	CORSOrigins string
	AdminToken  string
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, opts Options) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(handler.MetricsMiddleware())
	app.Use(middleware.NewRequestLogger())
	app.Use(middleware.NewCORS(opts.CORSOrigins))

	// Probes and metrics (before API group, no auth needed)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	// API routes
	api := app.Group("/api")

	// Enrichment
	api.Get("/enrichment", middleware.NewEnrichmentRateLimiter().Handler(), h.Enrichment.Get)

	// Guest identity and posting gate
	api.Post("/guests/resolve", middleware.NewResolveRateLimiter().Handler(), h.Guest.Resolve)
	api.Post("/guests/:guestId/posts", middleware.NewPostRateLimiter().Handler(), h.Guest.RecordPost)

	// Admin console
	admin := api.Group("/admin",
		middleware.NewAdminAuth(opts.AdminToken),
		middleware.NewAdminRateLimiter().Handler(),
	)
	admin.Get("/stats", h.Stats.GetStats)
	admin.Get("/guests", h.Admin.List)
	admin.Get("/guests/:guestId", h.Admin.Get)
	admin.Get("/guests/:guestId/history", h.Admin.History)
	admin.Put("/guests/:guestId/status", h.Admin.SetStatus)
	admin.Put("/guests/:guestId/trust", h.Admin.SetTrust)
	admin.Post("/guests/:guestId/flags", h.Admin.ToggleFlag)
	admin.Post("/guests/:guestId/verify-email", h.Admin.VerifyEmail)
}
