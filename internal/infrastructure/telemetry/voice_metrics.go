package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	appvoice "github.com/storyvoice/backend/internal/application/voice"
	"github.com/storyvoice/backend/internal/domain/voice"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by the voice instruments
var (
	AttrProvider  = attribute.Key("provider")
	AttrOutcome   = attribute.Key("outcome")
	AttrPreferred = attribute.Key("preferred_provider")
	AttrFromState = attribute.Key("from")
	AttrToState   = attribute.Key("to")
	AttrResource  = attribute.Key("resource")
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("meter cannot be nil")

// VoiceMetrics records voice subsystem measurements as OpenTelemetry instruments
type VoiceMetrics struct {
	synthesisAttempts  metric.Int64Counter
	synthesisDuration  metric.Float64Histogram
	fallbacks          metric.Int64Counter
	exhausted          metric.Int64Counter
	breakerTransitions metric.Int64Counter
	usageTracked       metric.Int64Counter
	usageCost          metric.Float64Counter
	quotaDenied        metric.Int64Counter
}

// NewVoiceMetrics creates every instrument on meter
func NewVoiceMetrics(meter metric.Meter) (*VoiceMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &VoiceMetrics{}
	var errs []error
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}

	m.synthesisAttempts = counter("voice_synthesis_attempts_total", "Speech provider calls by outcome", "{calls}")
	m.fallbacks = counter("voice_provider_fallbacks_total", "Syntheses served by a non-preferred provider", "{calls}")
	m.exhausted = counter("voice_provider_exhausted_total", "Syntheses where every provider failed or was open", "{calls}")
	m.breakerTransitions = counter("voice_breaker_transitions_total", "Circuit breaker state changes", "{transitions}")
	m.usageTracked = counter("voice_usage_tracked_total", "Metered units recorded in the usage ledger", "{units}")
	m.quotaDenied = counter("voice_quota_denied_total", "Requests denied by the monthly quota", "{requests}")

	var err error
	m.synthesisDuration, err = meter.Float64Histogram("voice_synthesis_duration_seconds",
		metric.WithDescription("Speech provider call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(SynthesisDurationBuckets...))
	errs = append(errs, err)

	m.usageCost, err = meter.Float64Counter("voice_usage_cost_total",
		metric.WithDescription("Estimated vendor cost of metered usage"),
		metric.WithUnit("{USD}"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to create voice metrics: %w", err)
	}
	return m, nil
}

// RecordSynthesisAttempt implements appvoice.Metrics
func (m *VoiceMetrics) RecordSynthesisAttempt(ctx context.Context, provider string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(AttrProvider.String(provider), AttrOutcome.String(outcome))
	m.synthesisAttempts.Add(ctx, 1, attrs)
	m.synthesisDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordFallback implements appvoice.Metrics
func (m *VoiceMetrics) RecordFallback(ctx context.Context, preferred, used string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(AttrPreferred.String(preferred), AttrProvider.String(used)))
}

// RecordProviderExhausted implements appvoice.Metrics
func (m *VoiceMetrics) RecordProviderExhausted(ctx context.Context) {
	m.exhausted.Add(ctx, 1)
}

// RecordBreakerTransition implements appvoice.Metrics
func (m *VoiceMetrics) RecordBreakerTransition(ctx context.Context, provider string, from, to appvoice.CircuitState) {
	m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(
		AttrProvider.String(provider),
		AttrFromState.String(from.String()),
		AttrToState.String(to.String())))
}

// RecordUsage implements appvoice.Metrics
func (m *VoiceMetrics) RecordUsage(ctx context.Context, resource voice.ResourceType, units int64, cost decimal.Decimal) {
	attrs := metric.WithAttributes(AttrResource.String(string(resource)))
	m.usageTracked.Add(ctx, units, attrs)
	if cost.IsPositive() {
		m.usageCost.Add(ctx, cost.InexactFloat64(), attrs)
	}
}

// RecordQuotaDenied implements appvoice.Metrics
func (m *VoiceMetrics) RecordQuotaDenied(ctx context.Context, resource voice.ResourceType) {
	m.quotaDenied.Add(ctx, 1, metric.WithAttributes(AttrResource.String(string(resource))))
}

var _ appvoice.Metrics = (*VoiceMetrics)(nil)
