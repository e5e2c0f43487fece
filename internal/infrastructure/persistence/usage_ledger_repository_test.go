package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormUsageLedgerRepository_EnsurePeriod(t *testing.T) {
	repo := NewGormUsageLedgerRepository(newTestDB(t))
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("creates a zeroed record", func(t *testing.T) {
		record, err := repo.EnsurePeriod(ctx, accountID, "2026-03")
		require.NoError(t, err)
		assert.Equal(t, accountID, record.AccountID)
		assert.Equal(t, "2026-03", record.PeriodKey)
		assert.Zero(t, record.SynthesisCount)
		assert.Nil(t, record.LockedVoiceID)
	})

	t.Run("is idempotent within a period", func(t *testing.T) {
		first, err := repo.EnsurePeriod(ctx, accountID, "2026-03")
		require.NoError(t, err)
		second, err := repo.EnsurePeriod(ctx, accountID, "2026-03")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})
}

func TestGormUsageLedgerRepository_RollOver(t *testing.T) {
	repo := NewGormUsageLedgerRepository(newTestDB(t))
	ctx := context.Background()
	accountID := uuid.New()

	for _, r := range voice.AllResourceTypes() {
		_, applied, err := repo.Increment(ctx, accountID, "2026-03", r, voice.Unlimited)
		require.NoError(t, err)
		require.True(t, applied)
	}
	_, err := repo.LockVoice(ctx, accountID, "2026-03", "vendor-bjorn")
	require.NoError(t, err)

	t.Run("new period resets every counter and keeps the lock", func(t *testing.T) {
		record, err := repo.EnsurePeriod(ctx, accountID, "2026-04")
		require.NoError(t, err)
		assert.Equal(t, "2026-04", record.PeriodKey)
		assert.Zero(t, record.SynthesisCount)
		assert.Zero(t, record.StoryGenCount)
		assert.Zero(t, record.ImageGenCount)
		require.NotNil(t, record.LockedVoiceID)
		assert.Equal(t, "vendor-bjorn", *record.LockedVoiceID)
	})

	t.Run("older period key does not roll back", func(t *testing.T) {
		_, _, err := repo.Increment(ctx, accountID, "2026-04", voice.ResourceSynthesis, voice.Unlimited)
		require.NoError(t, err)

		record, err := repo.EnsurePeriod(ctx, accountID, "2026-03")
		require.NoError(t, err)
		assert.Equal(t, "2026-04", record.PeriodKey)
		assert.Equal(t, int64(1), record.SynthesisCount)
	})
}

func TestGormUsageLedgerRepository_Increment(t *testing.T) {
	repo := NewGormUsageLedgerRepository(newTestDB(t))
	ctx := context.Background()

	t.Run("stops at the limit", func(t *testing.T) {
		accountID := uuid.New()
		for i := 0; i < 2; i++ {
			record, applied, err := repo.Increment(ctx, accountID, "2026-03", voice.ResourceSynthesis, 2)
			require.NoError(t, err)
			assert.True(t, applied)
			assert.Equal(t, int64(i+1), record.SynthesisCount)
		}

		record, applied, err := repo.Increment(ctx, accountID, "2026-03", voice.ResourceSynthesis, 2)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, int64(2), record.SynthesisCount)
	})

	t.Run("counters are independent", func(t *testing.T) {
		accountID := uuid.New()
		_, _, err := repo.Increment(ctx, accountID, "2026-03", voice.ResourceStoryGen, voice.Unlimited)
		require.NoError(t, err)
		record, _, err := repo.Increment(ctx, accountID, "2026-03", voice.ResourceImageGen, voice.Unlimited)
		require.NoError(t, err)

		assert.Zero(t, record.SynthesisCount)
		assert.Equal(t, int64(1), record.StoryGenCount)
		assert.Equal(t, int64(1), record.ImageGenCount)
	})

	t.Run("zero limit never applies", func(t *testing.T) {
		_, applied, err := repo.Increment(ctx, uuid.New(), "2026-03", voice.ResourceSynthesis, 0)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("rejects unknown resource", func(t *testing.T) {
		_, _, err := repo.Increment(ctx, uuid.New(), "2026-03", voice.ResourceType("VIDEO"), 1)
		assert.Error(t, err)
	})
}

func TestGormUsageLedgerRepository_ConcurrentReserve(t *testing.T) {
	repo := NewGormUsageLedgerRepository(newTestDB(t))
	ctx := context.Background()
	accountID := uuid.New()

	const callers, limit = 20, 5
	var (
		wg      sync.WaitGroup
		granted atomic.Int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, applied, err := repo.Increment(ctx, accountID, "2026-03", voice.ResourceSynthesis, limit)
			if assert.NoError(t, err) && applied {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), granted.Load())
	record, err := repo.EnsurePeriod(ctx, accountID, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, int64(limit), record.SynthesisCount)
}

func TestGormUsageLedgerRepository_LockVoice(t *testing.T) {
	repo := NewGormUsageLedgerRepository(newTestDB(t))
	ctx := context.Background()
	accountID := uuid.New()

	record, err := repo.LockVoice(ctx, accountID, "2026-03", "vendor-bjorn")
	require.NoError(t, err)
	require.NotNil(t, record.LockedVoiceID)
	assert.Equal(t, "vendor-bjorn", *record.LockedVoiceID)

	record, err = repo.LockVoice(ctx, accountID, "2026-03", "vendor-clara")
	require.NoError(t, err)
	assert.Equal(t, "vendor-bjorn", *record.LockedVoiceID, "first lock wins")
}

func TestGormUsageLedgerRepository_LoadMissing(t *testing.T) {
	repo := NewGormUsageLedgerRepository(newTestDB(t))

	_, err := repo.load(repo.db, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
