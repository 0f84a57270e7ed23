package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/DovakiinZ/Sin-City-sub001/internal/config"
	"github.com/DovakiinZ/Sin-City-sub001/internal/db"
	"github.com/DovakiinZ/Sin-City-sub001/internal/handler"
	"github.com/DovakiinZ/Sin-City-sub001/internal/kvstore"
	"github.com/DovakiinZ/Sin-City-sub001/internal/middleware"
	"github.com/DovakiinZ/Sin-City-sub001/internal/repository"
	"github.com/DovakiinZ/Sin-City-sub001/internal/router"
	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
)

func main() {
	cfg := config.Load()
	middleware.InitLogger(cfg.LogLevel, "guest-api")
	log := middleware.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	cache := service.NewCacheService(cfg.RedisURL, log)
	defer cache.Close()

	// Guest id cache shared by all API instances; falls back to process memory.
	var localIDs kvstore.Store = kvstore.NewMemoryStore()
	if rdb := cache.Client(); rdb != nil {
		localIDs = kvstore.NewRedisStore(rdb, "guestid:", 24*time.Hour)
	}

	var provider service.GeoProvider
	if cfg.EnrichmentTable != "" {
		table, err := service.LoadNetworkTable(cfg.EnrichmentTable)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load enrichment table")
		}
		log.Info().Int("networks", table.Len()).Msg("enrichment table loaded")
		provider = table
	}

	guests := repository.NewGuestRepo(pool)
	tasks := service.NewTaskRunner(log, 10*time.Second)

	enrichSvc := service.NewEnrichmentService(provider, cache, cfg.IPHashSalt, log)
	resolver := service.NewResolver(guests, guests, localIDs, enrichSvc, tasks, log)
	postingSvc := service.NewPostingService(guests, guests, tasks, log)
	moderationSvc := service.NewModerationService(guests, guests, cache, log)

	changeWorker := service.NewGuestChangeWorker(pool, cache, log)
	go changeWorker.Start(ctx)

	purgeWorker := service.NewPurgeWorker(guests, cfg.PurgeMaxAge, log)
	if cfg.PurgeSchedule != "" {
		if err := purgeWorker.Start(ctx, cfg.PurgeSchedule); err != nil {
			log.Fatal().Err(err).Msg("failed to schedule purge")
		}
		defer purgeWorker.Stop()
	}

	if cfg.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN not set, admin API disabled")
	}

	handler.InitMetrics(pool)

	app := fiber.New(fiber.Config{
		AppName:      "Guest Identity API",
		ServerHeader: "guest-api",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	router.Setup(app, &router.Handlers{
		Guest:      handler.NewGuestHandler(resolver, postingSvc),
		Enrichment: handler.NewEnrichmentHandler(enrichSvc),
		Admin:      handler.NewAdminHandler(moderationSvc),
		Stats:      handler.NewStatsHandler(moderationSvc),
		Health:     handler.NewHealthHandler(pool, cache.Client()),
	}, router.Options{
		CORSOrigins: cfg.CORSOrigins,
		AdminToken:  cfg.AdminToken,
	})

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("guest API starting")
	if err := app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: cfg.IsProduction()}); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server stopped")
	}

	tasks.Wait()
}
