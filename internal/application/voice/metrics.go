package voice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storyvoice/backend/internal/domain/voice"
)

// Metrics receives voice subsystem measurements.
// The telemetry package provides the OpenTelemetry implementation.
type Metrics interface {
	RecordSynthesisAttempt(ctx context.Context, provider string, success bool, duration time.Duration)
	RecordFallback(ctx context.Context, preferred, used string)
	RecordProviderExhausted(ctx context.Context)
	RecordBreakerTransition(ctx context.Context, provider string, from, to CircuitState)
	RecordUsage(ctx context.Context, resource voice.ResourceType, units int64, cost decimal.Decimal)
	RecordQuotaDenied(ctx context.Context, resource voice.ResourceType)
}

// NoopMetrics discards all measurements
type NoopMetrics struct{}

func (NoopMetrics) RecordSynthesisAttempt(context.Context, string, bool, time.Duration) {}
func (NoopMetrics) RecordFallback(context.Context, string, string) {}
func (NoopMetrics) RecordProviderExhausted(context.Context) {}
func (NoopMetrics) RecordBreakerTransition(context.Context, string, CircuitState, CircuitState) {}
func (NoopMetrics) RecordUsage(context.Context, voice.ResourceType, int64, decimal.Decimal) {}
func (NoopMetrics) RecordQuotaDenied(context.Context, voice.ResourceType) {}
