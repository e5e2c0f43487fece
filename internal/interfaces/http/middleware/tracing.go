package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/storyvoice/backend/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// TracerProvider defaults to the global provider when nil.
	TracerProvider trace.TracerProvider
	// SkipPaths are served without a span, e.g. health probes.
	SkipPaths []string
}

// Tracing returns otelgin server tracing. Span names follow "METHOD /route/:param".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skipped[p] = struct{}{}
	}

	opts := []otelgin.Option{
		otelgin.WithGinFilter(func(c *gin.Context) bool {
			_, skip := skipped[c.Request.URL.Path]
			return !skip
		}),
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// SpanAttributes tags the active server span with the request and account.
// It runs after JWTAuth so the account is known.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := GetRequestID(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if id := c.GetString(logger.GinAccountIDKey); id != "" {
				span.SetAttributes(attribute.String("account_id", id))
			}
		}
		c.Next()
	}
}
