package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	appvoice "github.com/storyvoice/backend/internal/application/voice"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/infrastructure/auth"
	"github.com/storyvoice/backend/internal/infrastructure/cache"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"github.com/storyvoice/backend/internal/infrastructure/event"
	"github.com/storyvoice/backend/internal/infrastructure/logger"
	"github.com/storyvoice/backend/internal/infrastructure/persistence"
	"github.com/storyvoice/backend/internal/infrastructure/speech"
	"github.com/storyvoice/backend/internal/infrastructure/storage"
	"github.com/storyvoice/backend/internal/infrastructure/telemetry"
	"github.com/storyvoice/backend/internal/interfaces/http/handler"
	"github.com/storyvoice/backend/internal/interfaces/http/middleware"
	"github.com/storyvoice/backend/internal/interfaces/http/router"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const (
	apiVersion      = "v1"
	audioRoute      = "/api/" + apiVersion + "/audio"
	shutdownTimeout = 30 * time.Second
	slowQuery       = 200 * time.Millisecond
)

//go:generate swag init -g cmd/server/main.go -d ../.. -o ../../docs --parseInternal

//	@title			Storyvoice API
//	@version		1.0
//	@description	Voice quota accounting and story narration backed by failover between speech vendors.

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	log.Info("Starting storyvoice backend",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", telemetry.ServiceVersion))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

// run wires every component, serves until ctx is cancelled and then drains in reverse order
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Telemetry first so the database and HTTP layers pick up the global providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "meter provider", meterProvider.Shutdown)
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	logProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "logger provider", logProvider.Shutdown)
	if logProvider.IsEnabled() {
		log = telemetry.NewBridgedLogger(log, telemetry.NewZapOTELCore(
			logProvider, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
	}

	profiler, err := telemetry.NewProfiler(cfg.Profiling, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	voiceMetrics, err := telemetry.NewVoiceMetrics(meter)
	if err != nil {
		return err
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), slowQuery)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:          cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		IncludeVariables: cfg.App.Env == "development",
		SlowThreshold:    slowQuery,
	}, log); err != nil {
		return err
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		if reg, err := telemetry.RegisterPoolMetrics(meter, sqlDB); err != nil {
			log.Warn("Failed to register connection pool metrics", zap.Error(err))
		} else {
			defer func() { _ = reg.Unregister() }()
		}
	}

	// Repositories
	ledgerRepo := persistence.NewGormUsageLedgerRepository(db.DB)
	accountRepo := persistence.NewGormAccountRepository(db.DB)
	preferenceRepo := persistence.NewGormPreferenceRepository(db.DB)
	storyRepo := persistence.NewGormStoryRepository(db.DB)

	catalog, redisClient := cache.NewCatalogCache(ctx, persistence.NewGormVoiceCatalog(db.DB), cfg.Redis, cfg.Voice, log)
	defer catalog.Close()
	if redisClient != nil {
		defer closeRedis(log, redisClient)
	}

	var revocations auth.RevocationList = auth.NewInMemoryRevocationList()
	if redisClient != nil {
		revocations = auth.NewRedisRevocationList(redisClient)
	}

	// Usage events: in-process analytics plus optional NATS fan-out
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(appvoice.NewUsageAnalyticsHandler(appvoice.UsagePricing{
		voice.ResourceSynthesis: cfg.Pricing.Synthesis,
		voice.ResourceStoryGen:  cfg.Pricing.StoryGen,
		voice.ResourceImageGen:  cfg.Pricing.ImageGen,
	}, voiceMetrics, log), voice.EventTypeUsageTracked)
	if err := eventBus.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	var publisher shared.EventPublisher = eventBus
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = event.Connect(cfg.NATS, cfg.App.Name, log)
		if err != nil {
			return err
		}
		defer natsConn.Close()

		serializer := event.NewSerializer()
		serializer.Register(voice.EventTypeUsageTracked, &voice.UsageTrackedEvent{})
		natsPublisher := event.NewNATSPublisher(natsConn, cfg.NATS.Subject, serializer, log)
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := natsPublisher.Flush(flushCtx); err != nil {
				log.Warn("Failed to flush usage events", zap.Error(err))
			}
		}()
		publisher = event.NewFanOutPublisher(eventBus, natsPublisher)
	}

	// Speech providers and failover
	providers, err := speech.NewProviders(cfg.Providers, log)
	if err != nil {
		return err
	}
	names := speech.Names(providers)
	order, preferred := providerOrder(cfg.Voice, names, log)

	breaker := appvoice.NewCircuitBreaker(appvoice.BreakerConfig{
		FailureThreshold: cfg.Voice.BreakerFailureThreshold,
		Cooldown:         cfg.Voice.BreakerCooldown,
	}, log, names, appvoice.WithTransitionHook(func(provider string, from, to appvoice.CircuitState) {
		voiceMetrics.RecordBreakerTransition(context.Background(), provider, from, to)
	}))
	orchestrator, err := appvoice.NewProviderOrchestrator(providers, breaker, voiceMetrics, log, appvoice.OrchestratorConfig{
		ProviderOrder:     order,
		PreferredProvider: preferred,
	})
	if err != nil {
		return err
	}

	// Quota accounting and narration
	resolver := appvoice.NewVoiceIdentityResolver(catalog, log, appvoice.ResolverConfig{
		Keys:             cfg.Voice.Keys,
		DefaultFreeVoice: cfg.Voice.DefaultFreeVoice,
	})
	ledger := appvoice.NewUsageLedger(ledgerRepo, publisher, log)
	policy := appvoice.NewTierPolicy(accountRepo, ledger, resolver, log, appvoice.TierPolicyConfig{
		FreeMonthlyLimit:    cfg.Voice.FreeMonthlyLimit,
		PremiumMonthlyLimit: cfg.Voice.PremiumMonthlyLimit,
		LockableSlots:       cfg.Voice.LockableSlots,
	})
	quota := appvoice.NewVoiceQuotaService(ledger, policy, resolver, preferenceRepo, voiceMetrics, log)

	audioStore, audioReader, err := storage.NewAudioStore(ctx, &cfg.Storage, natsConn, audioRoute, log)
	if err != nil {
		return err
	}
	narrationCfg := appvoice.DefaultNarrationConfig()
	narrationCfg.MaxParagraphs = cfg.Voice.MaxParagraphs
	narrationCfg.Concurrency = cfg.Voice.SynthesisConcurrency
	narration := appvoice.NewNarrationService(quota, orchestrator, storyRepo, audioStore, log, narrationCfg)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimit > 0 {
		rateLimiter = middleware.NewRateLimiter(ctx, cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
	}
	var audioHandler *handler.AudioHandler
	if audioReader != nil {
		audioHandler = handler.NewAudioHandler(audioReader)
	}

	engine, err := router.NewEngine(router.Dependencies{
		HTTP:           cfg.HTTP,
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         log,
		JWT:            auth.NewJWTService(cfg.JWT),
		Revocations:    revocations,
		TracerProvider: otel.GetTracerProvider(),
		Meter:          meter,
		RateLimiter:    rateLimiter,
		Voice:          handler.NewVoiceHandler(quota, narration),
		Health:         handler.NewHealthHandler(db, telemetry.ServiceVersion, log),
		Audio:          audioHandler,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.Strings("providers", order))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// providerOrder drops configured names that were skipped at construction and
// clears a preferred provider that is no longer registered
func providerOrder(cfg config.VoiceConfig, registered []string, log *zap.Logger) ([]string, string) {
	var order []string
	for _, name := range cfg.ProviderOrder {
		if slices.Contains(registered, name) {
			order = append(order, name)
		} else {
			log.Warn("Provider in voice.provider_order is not configured", zap.String("provider", name))
		}
	}

	preferred := cfg.PreferredProvider
	if preferred != "" && !slices.Contains(registered, preferred) {
		log.Warn("Preferred provider is not configured, falling back to priority order",
			zap.String("provider", preferred))
		preferred = ""
	}
	return order, preferred
}

func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	if err := fn(context.Background()); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}

func closeRedis(log *zap.Logger, client *redis.Client) {
	if err := client.Close(); err != nil {
		log.Error("Error closing redis client", zap.Error(err))
	}
}
