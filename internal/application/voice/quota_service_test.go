package voice

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceQuotaService_FreeAccountScenario(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	accountID := uuid.New()

	for i := 0; i < 2; i++ {
		ok, err := f.service.CheckUsage(ctx, accountID)
		require.NoError(t, err)
		assert.True(t, ok, "call %d should be allowed", i+1)
		_, err = f.service.IncrementUsage(ctx, accountID)
		require.NoError(t, err)
	}

	ok, err := f.service.CheckUsage(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := f.service.QuotaRemaining(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	allowed, err := f.service.CanUseVoice(ctx, accountID, "bjorn")
	require.NoError(t, err)
	assert.True(t, allowed)

	summary, err := f.service.GetVoiceAccess(ctx, accountID)
	require.NoError(t, err)
	require.NotNil(t, summary.LockedVoiceID)
	assert.Equal(t, "vendor-bjorn", *summary.LockedVoiceID)

	allowed, err = f.service.CanUseVoice(ctx, accountID, "clara")
	require.NoError(t, err)
	assert.False(t, allowed)

	for _, form := range []string{"luna", luna.ID.String(), "vendor-luna", "bjorn", bjorn.ID.String(), "vendor-bjorn"} {
		allowed, err = f.service.CanUseVoice(ctx, accountID, form)
		require.NoError(t, err)
		assert.True(t, allowed, form)
	}
	for _, form := range []string{"clara", clara.ID.String(), "vendor-clara", "vendor-unknown"} {
		allowed, err = f.service.CanUseVoice(ctx, accountID, form)
		require.NoError(t, err)
		assert.False(t, allowed, form)
	}
}

func TestVoiceQuotaService_PremiumScenario(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	accountID := uuid.New()
	f.accounts.premium[accountID] = true

	for i := 0; i < 20; i++ {
		ok, err := f.service.CheckUsage(ctx, accountID)
		require.NoError(t, err)
		assert.True(t, ok)
		reserved, err := f.service.TryReserve(ctx, accountID)
		require.NoError(t, err)
		assert.True(t, reserved)
	}

	for _, entry := range newTestCatalog().entries {
		allowed, err := f.service.CanUseVoice(ctx, accountID, entry.Key)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	record, err := f.ledger.GetOrInitPeriod(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, record.HasLockedVoice())
}

func TestVoiceQuotaService_TryReserveStopsAtLimit(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	accountID := uuid.New()

	results := make([]bool, 0, 3)
	for i := 0; i < 3; i++ {
		reserved, err := f.service.TryReserve(ctx, accountID)
		require.NoError(t, err)
		results = append(results, reserved)
	}

	assert.Equal(t, []bool{true, true, false}, results)
	record, err := f.ledger.GetOrInitPeriod(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.SynthesisCount)
}

func TestVoiceQuotaService_TrackGemini(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	accountID := uuid.New()

	require.NoError(t, f.service.TrackGeminiStory(ctx, accountID))
	require.NoError(t, f.service.TrackGeminiStory(ctx, accountID))
	require.NoError(t, f.service.TrackGeminiImage(ctx, accountID))

	record, err := f.ledger.GetOrInitPeriod(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.StoryGenCount)
	assert.Equal(t, int64(1), record.ImageGenCount)
	assert.Zero(t, record.SynthesisCount)
}

func TestVoiceQuotaService_StorageDownDenies(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	f.repo.err = errStoreDown

	ok, err := f.service.CheckUsage(ctx, uuid.New())
	assert.False(t, ok)
	assert.ErrorIs(t, err, voice.ErrStorageUnavailable)

	reserved, err := f.service.TryReserve(ctx, uuid.New())
	assert.False(t, reserved)
	assert.ErrorIs(t, err, voice.ErrStorageUnavailable)
}

type memoryPreferences struct {
	voices map[uuid.UUID]string
}

func (m *memoryPreferences) SetPreferredVoice(_ context.Context, accountID uuid.UUID, voiceID string) error {
	m.voices[accountID] = voiceID
	return nil
}

func (m *memoryPreferences) GetPreferredVoice(_ context.Context, accountID uuid.UUID) (string, error) {
	return m.voices[accountID], nil
}

func TestVoiceQuotaService_SetPreferredVoice(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	prefs := &memoryPreferences{voices: map[uuid.UUID]string{}}
	service := NewVoiceQuotaService(f.ledger, f.policy, f.resolver, prefs, nil, f.policy.logger)
	accountID := uuid.New()

	canonical, err := service.SetPreferredVoice(ctx, accountID, clara.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "vendor-clara", canonical)
	assert.Equal(t, "vendor-clara", prefs.voices[accountID])

	_, err = service.SetPreferredVoice(ctx, accountID, "bjorn")
	assert.ErrorIs(t, err, voice.ErrVoiceLockConflict)
	assert.Equal(t, "vendor-clara", prefs.voices[accountID])

	canonical, err = service.SetPreferredVoice(ctx, accountID, "luna")
	require.NoError(t, err)
	assert.Equal(t, "vendor-luna", canonical)
}
