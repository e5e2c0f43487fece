package voice

import (
	"context"

	"github.com/google/uuid"
)

// UsageLedgerRepository is the only mutation path for UsageRecord.
// Every method first rolls a stale record over to periodKey; the rollover and
// the mutation that follows are one atomic unit per account.
type UsageLedgerRepository interface {
	// EnsurePeriod returns the account's record for periodKey, creating it
	// or resetting a stale one.
	EnsurePeriod(ctx context.Context, accountID uuid.UUID, periodKey string) (*UsageRecord, error)

	// Increment adds one to the resource counter. When limit is not Unlimited
	// the increment applies only while the counter is below limit; applied
	// reports whether it did. The returned record reflects the final state.
	Increment(ctx context.Context, accountID uuid.UUID, periodKey string, resource ResourceType, limit int64) (record *UsageRecord, applied bool, err error)

	// LockVoice sets the locked voice only when none is set and returns the
	// resulting record. Callers compare the returned lock with what they asked for.
	LockVoice(ctx context.Context, accountID uuid.UUID, periodKey, voiceID string) (*UsageRecord, error)
}

// AccountReader looks up accounts and their subscription
type AccountReader interface {
	// FindByID returns shared.ErrNotFound when the account does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
}

// VoiceCatalog is read-only access to voice reference data.
// Finders return shared.ErrNotFound when nothing matches.
type VoiceCatalog interface {
	FindByKey(ctx context.Context, key string) (*VoiceCatalogEntry, error)
	FindByID(ctx context.Context, id uuid.UUID) (*VoiceCatalogEntry, error)
	FindDefaultFree(ctx context.Context) (*VoiceCatalogEntry, error)
	List(ctx context.Context) ([]VoiceCatalogEntry, error)
}

// PreferenceRepository stores each account's preferred narration voice
type PreferenceRepository interface {
	SetPreferredVoice(ctx context.Context, accountID uuid.UUID, voiceID string) error
	// GetPreferredVoice returns shared.ErrNotFound when no preference is stored
	GetPreferredVoice(ctx context.Context, accountID uuid.UUID) (string, error)
}

// StoryRepository reads stories for narration
type StoryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Story, error)
}
