package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryStories map[uuid.UUID]*voice.Story

func (m memoryStories) FindByID(_ context.Context, id uuid.UUID) (*voice.Story, error) {
	if s, ok := m[id]; ok {
		return s, nil
	}
	return nil, shared.ErrNotFound
}

type memoryAudioStore struct {
	mu      sync.Mutex
	objects map[string]*voice.Audio
	err     error
}

func (m *memoryAudioStore) PutAudio(_ context.Context, key string, audio *voice.Audio) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.objects == nil {
		m.objects = make(map[string]*voice.Audio)
	}
	m.objects[key] = audio
	return "https://cdn.test/" + key, nil
}

type narrationFixture struct {
	quota   *quotaFixture
	a, b    *fakeProvider
	audio   *memoryAudioStore
	stories memoryStories
	service *NarrationService
}

func newNarrationFixture(t *testing.T, maxParagraphs int) *narrationFixture {
	t.Helper()
	f := &narrationFixture{
		quota:   newQuotaFixture(),
		a:       newFakeProvider("primary", false),
		b:       newFakeProvider("backup", false),
		audio:   &memoryAudioStore{},
		stories: memoryStories{},
	}
	breaker := NewCircuitBreaker(DefaultBreakerConfig(), zap.NewNop(), []string{"primary", "backup"})
	orchestrator, err := NewProviderOrchestrator([]voice.SpeechProvider{f.a, f.b}, breaker, nil, zap.NewNop(), OrchestratorConfig{})
	require.NoError(t, err)
	f.service = NewNarrationService(f.quota.service, orchestrator, f.stories, f.audio, zap.NewNop(), NarrationConfig{
		MaxParagraphs: maxParagraphs,
		Concurrency:   2,
		KeyPrefix:     "narrations",
	})
	return f
}

func (f *narrationFixture) addStory(paragraphs ...string) uuid.UUID {
	id := uuid.New()
	f.stories[id] = &voice.Story{ID: id, Title: "The Sleepy Fox", Language: "en", Paragraphs: paragraphs}
	return id
}

func TestNarrationService_NarrateStory(t *testing.T) {
	ctx := context.Background()
	f := newNarrationFixture(t, 10)
	storyID := f.addStory("The fox yawned.", "", "The moon rose.")
	accountID := uuid.New()

	result, err := f.service.NarrateStory(ctx, NarrateStoryInput{AccountID: accountID, StoryID: storyID, VoiceID: "luna"})

	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalParagraphs)
	assert.False(t, result.WasTruncated)
	assert.Equal(t, "vendor-luna", result.VoiceID)
	assert.Equal(t, "primary", result.UsedProvider)
	assert.Empty(t, result.PreferredProvider)
	assert.Empty(t, result.ProviderStatus)
	require.Len(t, result.Paragraphs, 2)
	assert.Equal(t, "The moon rose.", result.Paragraphs[1].Text)
	assert.Equal(t, fmt.Sprintf("narrations/%s/vendor-luna/001.mp3", storyID), result.Paragraphs[1].AudioKey)
	assert.True(t, strings.HasPrefix(result.Paragraphs[0].AudioURL, "https://cdn.test/narrations/"))
	assert.Len(t, f.audio.objects, 2)

	record, err := f.quota.ledger.GetOrInitPeriod(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.SynthesisCount, "one batch costs one unit")
}

func TestNarrationService_Truncates(t *testing.T) {
	f := newNarrationFixture(t, 2)
	storyID := f.addStory("one", "two", "three", "four")

	result, err := f.service.NarrateStory(context.Background(), NarrateStoryInput{AccountID: uuid.New(), StoryID: storyID, VoiceID: "luna"})

	require.NoError(t, err)
	assert.Equal(t, 4, result.TotalParagraphs)
	assert.True(t, result.WasTruncated)
	assert.Len(t, result.Paragraphs, 2)
}

func TestNarrationService_FallbackIsDegraded(t *testing.T) {
	f := newNarrationFixture(t, 10)
	f.a.fail.Store(true)
	storyID := f.addStory("one", "two")

	result, err := f.service.NarrateStory(context.Background(), NarrateStoryInput{AccountID: uuid.New(), StoryID: storyID, VoiceID: "luna"})

	require.NoError(t, err)
	assert.Equal(t, "backup", result.UsedProvider)
	assert.Equal(t, "primary", result.PreferredProvider)
	assert.Equal(t, voice.ProviderStatusDegraded, result.ProviderStatus)
}

func TestNarrationService_ExhaustionChargesNothing(t *testing.T) {
	ctx := context.Background()
	f := newNarrationFixture(t, 10)
	f.a.fail.Store(true)
	f.b.fail.Store(true)
	storyID := f.addStory("one")
	accountID := uuid.New()

	_, err := f.service.NarrateStory(ctx, NarrateStoryInput{AccountID: accountID, StoryID: storyID, VoiceID: "luna"})

	assert.ErrorIs(t, err, voice.ErrProviderExhausted)
	record, err := f.quota.ledger.GetOrInitPeriod(ctx, accountID)
	require.NoError(t, err)
	assert.Zero(t, record.SynthesisCount)
	assert.Empty(t, f.audio.objects)
}

func TestNarrationService_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	f := newNarrationFixture(t, 10)
	storyID := f.addStory("one")
	accountID := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := f.service.NarrateStory(ctx, NarrateStoryInput{AccountID: accountID, StoryID: storyID, VoiceID: "luna"})
		require.NoError(t, err)
	}
	calls := f.a.calls.Load()

	_, err := f.service.NarrateStory(ctx, NarrateStoryInput{AccountID: accountID, StoryID: storyID, VoiceID: "luna"})

	assert.ErrorIs(t, err, voice.ErrQuotaExceeded)
	assert.Equal(t, calls, f.a.calls.Load(), "no vendor call after quota is spent")
}

func TestNarrationService_VoiceDenied(t *testing.T) {
	ctx := context.Background()
	f := newNarrationFixture(t, 10)
	storyID := f.addStory("one")
	accountID := uuid.New()

	_, err := f.service.NarrateStory(ctx, NarrateStoryInput{AccountID: accountID, StoryID: storyID, VoiceID: "bjorn"})
	require.NoError(t, err)

	_, err = f.service.NarrateStory(ctx, NarrateStoryInput{AccountID: accountID, StoryID: storyID, VoiceID: "clara"})
	assert.ErrorIs(t, err, voice.ErrVoiceLockConflict)
}

func TestNarrationService_StoryNotFound(t *testing.T) {
	f := newNarrationFixture(t, 10)

	_, err := f.service.NarrateStory(context.Background(), NarrateStoryInput{AccountID: uuid.New(), StoryID: uuid.New(), VoiceID: "luna"})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestNarrationService_ConcurrentBatchesNeverOvercount(t *testing.T) {
	ctx := context.Background()
	f := newNarrationFixture(t, 10)
	f.a.delay = 10 * time.Millisecond
	storyID := f.addStory("one")
	accountID := uuid.New()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.NarrateStory(ctx, NarrateStoryInput{AccountID: accountID, StoryID: storyID, VoiceID: "luna"})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, voice.ErrQuotaExceeded)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, successes)
	record, err := f.quota.ledger.GetOrInitPeriod(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.SynthesisCount)
}

func TestNarrationService_AudioUploadFailureChargesNothing(t *testing.T) {
	ctx := context.Background()
	f := newNarrationFixture(t, 10)
	f.audio.err = errors.New("bucket unreachable")
	storyID := f.addStory("one")
	accountID := uuid.New()

	_, err := f.service.NarrateStory(ctx, NarrateStoryInput{AccountID: accountID, StoryID: storyID, VoiceID: "luna"})

	assert.ErrorIs(t, err, voice.ErrAudioUnavailable)
	record, err := f.quota.ledger.GetOrInitPeriod(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), record.SynthesisCount)
}

func TestSummarizeProviders(t *testing.T) {
	tests := []struct {
		name          string
		results       []*voice.ProviderResult
		wantUsed      string
		wantPreferred string
		wantStatus    voice.ProviderStatus
	}{
		{
			name: "healthy batch",
			results: []*voice.ProviderResult{
				{UsedProvider: "primary"},
				{UsedProvider: "primary"},
			},
			wantUsed: "primary",
		},
		{
			name: "first paragraph names the provider",
			results: []*voice.ProviderResult{
				{UsedProvider: "primary"},
				{UsedProvider: "backup", PreferredProvider: "primary", ProviderStatus: voice.ProviderStatusDegraded},
			},
			wantUsed:      "primary",
			wantPreferred: "primary",
			wantStatus:    voice.ProviderStatusDegraded,
		},
		{
			name: "mixed providers without a fallback tag",
			results: []*voice.ProviderResult{
				{UsedProvider: "backup"},
				{UsedProvider: "primary"},
			},
			wantUsed:   "backup",
			wantStatus: voice.ProviderStatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &NarrationResult{}
			summarizeProviders(result, tt.results)

			assert.Equal(t, tt.wantUsed, result.UsedProvider)
			assert.Equal(t, tt.wantPreferred, result.PreferredProvider)
			assert.Equal(t, tt.wantStatus, result.ProviderStatus)
		})
	}
}
