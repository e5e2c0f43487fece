package voice

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"go.uber.org/zap"
)

// UsagePricing holds the estimated vendor cost of one unit of each resource
type UsagePricing map[voice.ResourceType]decimal.Decimal

// Cost returns the estimated cost of units of resource. Unpriced resources cost zero.
func (p UsagePricing) Cost(resource voice.ResourceType, units int64) decimal.Decimal {
	price, ok := p[resource]
	if !ok {
		return decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(units))
}

// UsageAnalyticsHandler turns usage-tracked events into cross-vendor cost metrics
type UsageAnalyticsHandler struct {
	pricing UsagePricing
	metrics Metrics
	logger  *zap.Logger
}

// NewUsageAnalyticsHandler creates a new UsageAnalyticsHandler
func NewUsageAnalyticsHandler(pricing UsagePricing, metrics Metrics, logger *zap.Logger) *UsageAnalyticsHandler {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &UsageAnalyticsHandler{
		pricing: pricing,
		metrics: metrics,
		logger:  logger,
	}
}

// EventTypes implements shared.EventHandler
func (h *UsageAnalyticsHandler) EventTypes() []string {
	return []string{voice.EventTypeUsageTracked}
}

// Handle implements shared.EventHandler
func (h *UsageAnalyticsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	tracked, ok := event.(*voice.UsageTrackedEvent)
	if !ok {
		return nil
	}
	cost := h.pricing.Cost(tracked.Resource, tracked.Delta)
	h.metrics.RecordUsage(ctx, tracked.Resource, tracked.Delta, cost)

	h.logger.Debug("Usage tracked",
		zap.String("account_id", tracked.AccountID().String()),
		zap.String("resource", tracked.Resource.String()),
		zap.String("period", tracked.PeriodKey),
		zap.Int64("count", tracked.Count),
		zap.String("estimated_cost", cost.StringFixed(4)))
	return nil
}
