package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/adapters/cache"
	"github.com/zatekoja/mindcare-directory/internal/adapters/database"
	"github.com/zatekoja/mindcare-directory/internal/adapters/events"
	"github.com/zatekoja/mindcare-directory/internal/adapters/providers/directory"
	"github.com/zatekoja/mindcare-directory/internal/api/handlers"
	"github.com/zatekoja/mindcare-directory/internal/api/middleware"
	"github.com/zatekoja/mindcare-directory/internal/api/routes"
	"github.com/zatekoja/mindcare-directory/internal/application/services"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/redis"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	"github.com/zatekoja/mindcare-directory/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env, cfg.App.LogLevel)
	logger := observability.GetLogger()

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis backs the shared cache, session snapshots and the event bus.
	// Without it each instance runs on its own state.
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable; running without shared cache or events")
	} else {
		defer redisClient.Close()
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient, "")
		eventBus = events.NewRedisEventBus(redisClient)
	}

	quotaStore, err := newQuotaStore(cfg.Contact.QuotaBackend, redisClient, pgClient, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize contact quota store")
	}

	dir, err := directory.New(directory.Config{
		BaseURL:      cfg.Booking.ProviderAPIURL,
		APIKey:       cfg.Booking.ProviderAPIKey,
		Timeout:      cfg.Booking.ProviderAPITimeout,
		FixturesPath: cfg.Booking.FixturesPath,
	}, time.Now())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize provider directory")
	}
	logger.Info().Str("source", dir.Source).Msg("provider directory ready")

	// Initialize services
	clock := services.SystemClock{}

	availabilityService := services.NewProviderAvailabilityService(
		dir.Loader,
		cacheProvider,
		cfg.Booking.AvailabilityCacheTTL,
		cfg.Booking.BatchWait,
		metrics,
	)

	bookingService := services.NewBookingService(services.BookingServiceDeps{
		Availability: availabilityService,
		Bookings:     database.NewBookingAdapter(pgClient, metrics),
		Cache:        cacheProvider,
		Events:       eventBus,
		Clock:        clock,
		Metrics:      metrics,
		SnapshotTTL:  cfg.Booking.SessionTTL,
	})

	contactService := services.NewContactService(services.ContactServiceDeps{
		Quotas:    quotaStore,
		Roster:    dir.Roster,
		Revealer:  dir.Revealer,
		Requests:  database.NewContactRequestAdapter(pgClient, metrics),
		Events:    eventBus,
		Clock:     clock,
		Metrics:   metrics,
		Allowance: cfg.Contact.Allowance,
		FlowTTL:   cfg.Contact.FlowTTL,
	})

	var invalidationService *services.CacheInvalidationService
	if eventBus != nil {
		invalidationService = services.NewCacheInvalidationService(availabilityService, contactService, eventBus)
		if err := invalidationService.Start(); err != nil {
			logger.Warn().Err(err).Msg("failed to start cache invalidation service")
			invalidationService = nil
		}
	}

	if cacheProvider != nil && len(cfg.Booking.WarmProviderIDs) > 0 {
		warmer := services.NewCacheWarmingService(availabilityService, cfg.Booking.WarmProviderIDs)
		go warmer.StartPeriodicWarming(observability.WithLogger(ctx, *logger), cfg.Booking.WarmInterval)
		logger.Info().Int("providers", len(cfg.Booking.WarmProviderIDs)).Dur("interval", cfg.Booking.WarmInterval).Msg("availability cache warming started")
	}

	// Initialize handlers
	checks := map[string]handlers.HealthCheck{"postgres": pgClient.Ping}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}

	router := routes.NewRouter(
		handlers.NewBookingHandler(bookingService),
		handlers.NewContactHandler(contactService),
		handlers.NewProviderHandler(availabilityService, clock),
		handlers.NewHealthHandler(checks),
		middleware.NewCacheMiddleware(cacheProvider, metrics),
		metrics,
		routes.Options{
			AdminToken:           cfg.App.AdminToken,
			CORSOrigins:          cfg.Server.CORSOrigins,
			AvailabilityCacheTTL: cfg.Booking.AvailabilityCacheTTL,
			ContactLimiter:       middleware.NewRateLimiter(cfg.Contact.RateLimitPerMinute, cfg.Contact.RateLimitBurst),
			EventStream:          handlers.NewSSEHandler(eventBus),
		},
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Str("env", cfg.App.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	if invalidationService != nil {
		invalidationService.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	logger.Info().Msg("server stopped")
}

func newQuotaStore(backend string, redisClient *redis.Client, pgClient *postgres.Client, metrics *observability.Metrics) (providers.QuotaStore, error) {
	switch backend {
	case "redis":
		if redisClient == nil {
			return nil, errors.New("CONTACT_QUOTA_BACKEND=redis requires a reachable Redis")
		}
		return cache.NewRedisQuotaStore(redisClient), nil
	case "postgres":
		return database.NewContactQuotaAdapter(pgClient, metrics), nil
	default:
		observability.GetLogger().Warn().Msg("contact quotas are kept in memory and reset on restart")
		return cache.NewMemoryQuotaStore(), nil
	}
}
