package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"go.uber.org/zap"
)

// Clock returns the current time. Services take one so tests can move across periods.
type Clock func() time.Time

// UsageLedger is the single source of truth for how much of each metered
// resource an account consumed in the current period.
type UsageLedger struct {
	repo      voice.UsageLedgerRepository
	publisher shared.EventPublisher
	logger    *zap.Logger
	now       Clock
}

// LedgerOption configures a UsageLedger
type LedgerOption func(*UsageLedger)

// WithLedgerClock overrides the clock used to compute the current period
func WithLedgerClock(clock Clock) LedgerOption {
	return func(l *UsageLedger) {
		l.now = clock
	}
}

// NewUsageLedger creates a new UsageLedger. publisher may be nil.
func NewUsageLedger(
	repo voice.UsageLedgerRepository,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...LedgerOption,
) *UsageLedger {
	l := &UsageLedger{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CurrentPeriod returns the period key for the ledger clock
func (l *UsageLedger) CurrentPeriod() string {
	return voice.PeriodKeyAt(l.now())
}

// GetOrInitPeriod returns the account's record for the current period,
// creating it or rolling a stale one over first.
func (l *UsageLedger) GetOrInitPeriod(ctx context.Context, accountID uuid.UUID) (*voice.UsageRecord, error) {
	if accountID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	record, err := l.repo.EnsurePeriod(ctx, accountID, l.CurrentPeriod())
	if err != nil {
		return nil, l.storageError("ensure period", accountID, err)
	}
	return record, nil
}

// IncrementSynthesis adds one narration call to the current period
func (l *UsageLedger) IncrementSynthesis(ctx context.Context, accountID uuid.UUID) (*voice.UsageRecord, error) {
	record, _, err := l.increment(ctx, accountID, voice.ResourceSynthesis, voice.Unlimited)
	return record, err
}

// IncrementStoryGen adds one generative story call to the current period
func (l *UsageLedger) IncrementStoryGen(ctx context.Context, accountID uuid.UUID) (*voice.UsageRecord, error) {
	record, _, err := l.increment(ctx, accountID, voice.ResourceStoryGen, voice.Unlimited)
	return record, err
}

// IncrementImageGen adds one generative image call to the current period
func (l *UsageLedger) IncrementImageGen(ctx context.Context, accountID uuid.UUID) (*voice.UsageRecord, error) {
	record, _, err := l.increment(ctx, accountID, voice.ResourceImageGen, voice.Unlimited)
	return record, err
}

// TryReserve increments the resource counter only while it is below limit.
// The check and the increment are one atomic step in the repository.
func (l *UsageLedger) TryReserve(ctx context.Context, accountID uuid.UUID, resource voice.ResourceType, limit int64) (*voice.UsageRecord, bool, error) {
	return l.increment(ctx, accountID, resource, limit)
}

// QuotaRemaining returns max(0, limit - synthesisCount) after rollover
func (l *UsageLedger) QuotaRemaining(ctx context.Context, accountID uuid.UUID, limit int64) (int64, error) {
	record, err := l.GetOrInitPeriod(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return record.Remaining(limit), nil
}

// LockVoice records voiceID as the account's locked voice if none is set yet
func (l *UsageLedger) LockVoice(ctx context.Context, accountID uuid.UUID, voiceID string) (*voice.UsageRecord, error) {
	if accountID == uuid.Nil || voiceID == "" {
		return nil, shared.ErrInvalidInput
	}
	record, err := l.repo.LockVoice(ctx, accountID, l.CurrentPeriod(), voiceID)
	if err != nil {
		return nil, l.storageError("lock voice", accountID, err)
	}
	return record, nil
}

func (l *UsageLedger) increment(ctx context.Context, accountID uuid.UUID, resource voice.ResourceType, limit int64) (*voice.UsageRecord, bool, error) {
	if accountID == uuid.Nil {
		return nil, false, shared.ErrInvalidInput
	}
	if !resource.IsValid() {
		return nil, false, shared.NewDomainError("INVALID_RESOURCE_TYPE", "Invalid resource type")
	}

	record, applied, err := l.repo.Increment(ctx, accountID, l.CurrentPeriod(), resource, limit)
	if err != nil {
		return nil, false, l.storageError("increment "+resource.String(), accountID, err)
	}
	if !applied {
		l.logger.Debug("Usage increment denied by limit",
			zap.String("account_id", accountID.String()),
			zap.String("resource", resource.String()),
			zap.Int64("count", record.Count(resource)),
			zap.Int64("limit", limit))
		return record, false, nil
	}

	l.logger.Debug("Usage incremented",
		zap.String("account_id", accountID.String()),
		zap.String("resource", resource.String()),
		zap.String("period", record.PeriodKey),
		zap.Int64("count", record.Count(resource)))

	l.publishTracked(ctx, record.Clone(), resource)
	return record, true, nil
}

// publishTracked delivers the usage-tracked event without blocking or failing the caller
func (l *UsageLedger) publishTracked(ctx context.Context, record *voice.UsageRecord, resource voice.ResourceType) {
	if l.publisher == nil {
		return
	}
	event := voice.NewUsageTrackedEvent(record, resource, 1)
	pubCtx := context.WithoutCancel(ctx)
	go func() {
		if err := l.publisher.Publish(pubCtx, event); err != nil {
			l.logger.Warn("Failed to publish usage tracked event",
				zap.String("account_id", record.AccountID.String()),
				zap.String("resource", resource.String()),
				zap.Error(err))
		}
	}()
}

// storageError maps any repository failure to StorageUnavailable so callers deny by default
func (l *UsageLedger) storageError(op string, accountID uuid.UUID, err error) error {
	l.logger.Error("Usage ledger operation failed",
		zap.String("operation", op),
		zap.String("account_id", accountID.String()),
		zap.Error(err))
	return fmt.Errorf("%w: %s: %v", voice.ErrStorageUnavailable, op, err)
}
