package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caddie_backend/internal/bookings"
	"caddie_backend/internal/conversation"
	"caddie_backend/internal/email"
	"caddie_backend/internal/events"
	apphttp "caddie_backend/internal/http"
	"caddie_backend/internal/http/router"
	"caddie_backend/internal/members"
	"caddie_backend/internal/notification"
	"caddie_backend/internal/venues"
	"caddie_backend/internal/webhook"
	"caddie_backend/internal/whatsapp"
	"caddie_backend/platform/ai"
	"caddie_backend/platform/ai/gemini"
	"caddie_backend/platform/ai/moonshot"
	"caddie_backend/platform/cache"
	"caddie_backend/platform/config"
	"caddie_backend/platform/db"
	"caddie_backend/platform/logger"
	"caddie_backend/platform/validator"
)

const correctionCacheSize = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for post-commit fan-out between modules
	eventBus := events.NewInMemoryBus(log)

	aiClient, err := initAIClient(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize ai client", "error", err)
		panic("failed to initialize ai client: " + err.Error())
	}
	log.Info("ai client initialized", "provider", cfg.GetAIProvider())

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	sender := email.NewSender(cfg)
	notificationModule := notification.New(pool, sender, cfg, cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	notificationModule.SetWhatsAppSender(whatsapp.NewClient(cfg, log))

	membersService := members.NewService(members.NewRepository(pool), log)
	venuesRepo := venues.NewRepository(pool)
	bookingsRepo := bookings.NewRepository(pool)
	bookingEngine := bookings.NewEngine(pool, cfg, eventBus, log)
	statusEngine := bookings.NewStatusEngine(pool, cfg, eventBus, log)

	oracle := conversation.NewOracle(aiClient, val, cfg.GetOracleTimeout(), log)
	convService := conversation.NewService(
		conversation.NewEnvelopeStore(pool, cfg, log),
		conversation.NewRouter(oracle),
		conversation.NewCorrectionDetector(oracle, cache.NewTTL[bool](correctionCacheSize, cfg.GetCorrectionCacheTTL())),
		bookingsRepo,
		eventBus,
		conversation.NewBookingFlow(oracle, venuesRepo, bookingEngine, membersService, cfg, log),
		conversation.NewStatusFlow(oracle),
		conversation.NewCancelFlow(oracle, statusEngine, cfg),
		conversation.NewModifyFlow(oracle, statusEngine),
		conversation.NewOnboardingFlow(oracle, membersService),
		conversation.NewSupportFlow(),
		log,
	)

	webhookModule := webhook.NewModule(pool, membersService, convService, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			webhookModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initAIClient(ctx context.Context, cfg config.OracleConfig) (ai.Client, error) {
	switch cfg.GetAIProvider() {
	case "moonshot":
		return moonshot.New(moonshot.Config{
			APIKey: cfg.GetMoonshotAPIKey(),
			Model:  cfg.GetMoonshotModel(),
		}), nil
	default:
		return gemini.New(ctx, gemini.Config{
			APIKey: cfg.GetGeminiAPIKey(),
			Model:  cfg.GetGeminiModel(),
		})
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
