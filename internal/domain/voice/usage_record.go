package voice

import (
	"time"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
)

// Unlimited marks a limit that never denies an increment
const Unlimited int64 = -1

// UsageRecord holds one account's metered counters for a single accounting period.
// There is at most one record per account; it is soft-reset when the period changes
// and never deleted.
type UsageRecord struct {
	shared.BaseEntity
	AccountID      uuid.UUID
	PeriodKey      string
	SynthesisCount int64
	StoryGenCount  int64
	ImageGenCount  int64
	// LockedVoiceID is the canonical voice a free account chose as its second voice.
	// Once set it is never replaced.
	LockedVoiceID *string
}

// NewUsageRecord creates an empty record for the period containing now
func NewUsageRecord(accountID uuid.UUID, now time.Time) (*UsageRecord, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	base := shared.NewBaseEntity()
	base.CreatedAt = now
	base.UpdatedAt = now
	return &UsageRecord{
		BaseEntity: base,
		AccountID:  accountID,
		PeriodKey:  PeriodKeyAt(now),
	}, nil
}

// IsStale reports whether the record belongs to a period other than periodKey
func (r *UsageRecord) IsStale(periodKey string) bool {
	return r.PeriodKey != periodKey
}

// RollOver resets every metered counter and advances the period when the record is stale.
// All counters reset together. The locked voice survives rollover.
// It returns true when a reset happened.
func (r *UsageRecord) RollOver(periodKey string, now time.Time) bool {
	if !r.IsStale(periodKey) {
		return false
	}
	r.PeriodKey = periodKey
	r.SynthesisCount = 0
	r.StoryGenCount = 0
	r.ImageGenCount = 0
	r.Touch(now)
	return true
}

// Count returns the counter for the given resource
func (r *UsageRecord) Count(resource ResourceType) int64 {
	switch resource {
	case ResourceSynthesis:
		return r.SynthesisCount
	case ResourceStoryGen:
		return r.StoryGenCount
	case ResourceImageGen:
		return r.ImageGenCount
	default:
		return 0
	}
}

// CanIncrement reports whether one more unit fits under limit
func (r *UsageRecord) CanIncrement(resource ResourceType, limit int64) bool {
	return limit == Unlimited || r.Count(resource) < limit
}

// Increment adds exactly one to the resource counter
func (r *UsageRecord) Increment(resource ResourceType, now time.Time) error {
	switch resource {
	case ResourceSynthesis:
		r.SynthesisCount++
	case ResourceStoryGen:
		r.StoryGenCount++
	case ResourceImageGen:
		r.ImageGenCount++
	default:
		return shared.NewDomainError("INVALID_RESOURCE_TYPE", "Invalid resource type")
	}
	r.Touch(now)
	return nil
}

// Remaining returns how many synthesis calls are left under limit, never below zero
func (r *UsageRecord) Remaining(limit int64) int64 {
	if limit == Unlimited {
		return Unlimited
	}
	remaining := limit - r.SynthesisCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasLockedVoice reports whether a second voice has been locked
func (r *UsageRecord) HasLockedVoice() bool {
	return r.LockedVoiceID != nil && *r.LockedVoiceID != ""
}

// LockVoice locks voiceID as the account's second voice.
// Locking the voice that is already locked is a no-op; locking a different one
// fails with ErrVoiceLockConflict.
func (r *UsageRecord) LockVoice(voiceID string, now time.Time) error {
	if voiceID == "" {
		return shared.NewDomainError("INVALID_VOICE", "Voice ID cannot be empty")
	}
	if r.HasLockedVoice() {
		if *r.LockedVoiceID == voiceID {
			return nil
		}
		return ErrVoiceLockConflict
	}
	v := voiceID
	r.LockedVoiceID = &v
	r.Touch(now)
	return nil
}

// Clone returns a deep copy of the record
func (r *UsageRecord) Clone() *UsageRecord {
	c := *r
	if r.LockedVoiceID != nil {
		v := *r.LockedVoiceID
		c.LockedVoiceID = &v
	}
	return &c
}
