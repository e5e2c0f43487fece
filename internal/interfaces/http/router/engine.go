package router

import (
	"github.com/gin-gonic/gin"
	_ "github.com/storyvoice/backend/docs"
	"github.com/storyvoice/backend/internal/infrastructure/auth"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"github.com/storyvoice/backend/internal/infrastructure/logger"
	"github.com/storyvoice/backend/internal/interfaces/http/handler"
	"github.com/storyvoice/backend/internal/interfaces/http/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HealthPath is served outside the API group and kept out of logs and traces
const HealthPath = "/health"

// SwaggerPath serves the API documentation UI and doc.json
const SwaggerPath = "/swagger/*any"

// Dependencies are the handlers and infrastructure the engine is assembled from.
// Optional fields may be nil.
type Dependencies struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Logger      *zap.Logger

	JWT         *auth.JWTService
	Revocations auth.RevocationList

	// TracerProvider and Meter enable request tracing and HTTP metrics
	TracerProvider trace.TracerProvider
	Meter          metric.Meter

	// RateLimiter guards the narration route
	RateLimiter *middleware.RateLimiter

	Voice  *handler.VoiceHandler
	Health *handler.HealthHandler
	// Audio is set only when audio is served by this API rather than a CDN
	Audio *handler.AudioHandler
}

// NewEngine builds the gin engine with the full middleware chain and routes
func NewEngine(deps Dependencies) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(deps.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(deps.Logger),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    deps.ServiceName,
			TracerProvider: deps.TracerProvider,
			SkipPaths:      []string{HealthPath},
		}),
		logger.GinMiddleware(deps.Logger, HealthPath),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfigFrom(deps.HTTP)),
		middleware.BodyLimit(deps.HTTP.MaxBodySize),
	)
	if deps.Meter != nil {
		metrics, err := middleware.HTTPMetrics(deps.Meter)
		if err != nil {
			return nil, err
		}
		engine.Use(metrics)
	}

	if deps.Health != nil {
		engine.GET(HealthPath, deps.Health.Health)
	}
	engine.GET(SwaggerPath, ginSwagger.WrapHandler(swaggerFiles.Handler))

	authenticated := []gin.HandlerFunc{
		middleware.JWTAuth(middleware.JWTMiddlewareConfig{
			JWTService:  deps.JWT,
			Revocations: deps.Revocations,
			Logger:      deps.Logger,
		}),
		middleware.SpanAttributes(),
	}

	narrate := []gin.HandlerFunc{deps.Voice.NarrateBatch}
	if deps.RateLimiter != nil {
		narrate = append([]gin.HandlerFunc{middleware.RateLimit(deps.RateLimiter)}, narrate...)
	}

	r := NewRouter(engine)
	r.Register(NewDomainGroup("voice", "/voice").
		Use(authenticated...).
		GET("/access", deps.Voice.GetAccess).
		POST("/preferred", deps.Voice.SetPreferred))
	r.Register(NewDomainGroup("story", "/story").
		Use(authenticated...).
		POST("/audio/batch", narrate...))
	if deps.Audio != nil {
		r.Register(NewDomainGroup("audio", "/audio").
			GET("/*key", deps.Audio.Get))
	}
	r.Setup()

	return engine, nil
}
