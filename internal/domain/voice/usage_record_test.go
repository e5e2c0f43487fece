package voice

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsageRecord(t *testing.T) {
	accountID := uuid.New()
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	t.Run("creates record for current period", func(t *testing.T) {
		record, err := NewUsageRecord(accountID, now)

		require.NoError(t, err)
		assert.Equal(t, accountID, record.AccountID)
		assert.Equal(t, "2026-03", record.PeriodKey)
		assert.Zero(t, record.SynthesisCount)
		assert.Zero(t, record.StoryGenCount)
		assert.Zero(t, record.ImageGenCount)
		assert.False(t, record.HasLockedVoice())
		assert.NotEqual(t, uuid.Nil, record.ID)
	})

	t.Run("fails with nil account ID", func(t *testing.T) {
		record, err := NewUsageRecord(uuid.Nil, now)

		assert.Error(t, err)
		assert.Nil(t, record)
		assert.Contains(t, err.Error(), "Account ID cannot be empty")
	})
}

func TestUsageRecord_RollOver(t *testing.T) {
	march := time.Date(2026, time.March, 31, 23, 0, 0, 0, time.UTC)
	april := time.Date(2026, time.April, 1, 0, 30, 0, 0, time.UTC)

	t.Run("resets every counter together", func(t *testing.T) {
		record, err := NewUsageRecord(uuid.New(), march)
		require.NoError(t, err)
		record.SynthesisCount = 2
		record.StoryGenCount = 5
		record.ImageGenCount = 7
		require.NoError(t, record.LockVoice("vendor-voice-1", march))

		rolled := record.RollOver(PeriodKeyAt(april), april)

		assert.True(t, rolled)
		assert.Equal(t, "2026-04", record.PeriodKey)
		assert.Zero(t, record.SynthesisCount)
		assert.Zero(t, record.StoryGenCount)
		assert.Zero(t, record.ImageGenCount)
		require.NotNil(t, record.LockedVoiceID)
		assert.Equal(t, "vendor-voice-1", *record.LockedVoiceID)
	})

	t.Run("is idempotent within a period", func(t *testing.T) {
		record, err := NewUsageRecord(uuid.New(), april)
		require.NoError(t, err)
		record.SynthesisCount = 1

		assert.False(t, record.RollOver(PeriodKeyAt(april), april))
		assert.False(t, record.RollOver(PeriodKeyAt(april.Add(48*time.Hour)), april))
		assert.Equal(t, int64(1), record.SynthesisCount)
	})
}

func TestUsageRecord_Increment(t *testing.T) {
	now := time.Now()
	record, err := NewUsageRecord(uuid.New(), now)
	require.NoError(t, err)

	for _, resource := range AllResourceTypes() {
		require.NoError(t, record.Increment(resource, now))
	}
	require.NoError(t, record.Increment(ResourceSynthesis, now))

	assert.Equal(t, int64(2), record.Count(ResourceSynthesis))
	assert.Equal(t, int64(1), record.Count(ResourceStoryGen))
	assert.Equal(t, int64(1), record.Count(ResourceImageGen))
	assert.Error(t, record.Increment(ResourceType("TOKENS"), now))
}

func TestUsageRecord_Limits(t *testing.T) {
	record := &UsageRecord{SynthesisCount: 2}

	assert.False(t, record.CanIncrement(ResourceSynthesis, 2))
	assert.True(t, record.CanIncrement(ResourceSynthesis, 3))
	assert.True(t, record.CanIncrement(ResourceSynthesis, Unlimited))
	assert.Equal(t, int64(0), record.Remaining(1))
	assert.Equal(t, int64(3), record.Remaining(5))
	assert.Equal(t, Unlimited, record.Remaining(Unlimited))
}

func TestUsageRecord_LockVoice(t *testing.T) {
	now := time.Now()

	t.Run("locks once and keeps the first voice", func(t *testing.T) {
		record, err := NewUsageRecord(uuid.New(), now)
		require.NoError(t, err)

		require.NoError(t, record.LockVoice("v1", now))
		require.NoError(t, record.LockVoice("v1", now))

		err = record.LockVoice("v2", now)
		assert.True(t, errors.Is(err, ErrVoiceLockConflict))
		assert.Equal(t, "v1", *record.LockedVoiceID)
	})

	t.Run("rejects empty voice", func(t *testing.T) {
		record, err := NewUsageRecord(uuid.New(), now)
		require.NoError(t, err)

		assert.Error(t, record.LockVoice("", now))
		assert.False(t, record.HasLockedVoice())
	})

	t.Run("clone does not share the lock pointer", func(t *testing.T) {
		record, err := NewUsageRecord(uuid.New(), now)
		require.NoError(t, err)
		require.NoError(t, record.LockVoice("v1", now))

		clone := record.Clone()
		*clone.LockedVoiceID = "other"

		assert.Equal(t, "v1", *record.LockedVoiceID)
	})
}
