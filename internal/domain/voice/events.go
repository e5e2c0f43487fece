package voice

import (
	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
)

const (
	// EventTypeUsageTracked is published after every ledger increment
	EventTypeUsageTracked = "voice.usage_tracked"

	// AggregateTypeUsageRecord identifies the ledger aggregate in events
	AggregateTypeUsageRecord = "UsageRecord"
)

// UsageTrackedEvent is a fire-and-forget notification consumed by analytics
type UsageTrackedEvent struct {
	shared.BaseDomainEvent
	Resource  ResourceType `json:"resource"`
	Delta     int64        `json:"delta"`
	PeriodKey string       `json:"period_key"`
	// Count is the counter value after the increment
	Count int64 `json:"count"`
}

// NewUsageTrackedEvent creates an event for one increment of record
func NewUsageTrackedEvent(record *UsageRecord, resource ResourceType, delta int64) *UsageTrackedEvent {
	aggID := record.ID
	if aggID == uuid.Nil {
		aggID = record.AccountID
	}
	return &UsageTrackedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUsageTracked, AggregateTypeUsageRecord, aggID, record.AccountID),
		Resource:        resource,
		Delta:           delta,
		PeriodKey:       record.PeriodKey,
		Count:           record.Count(resource),
	}
}
