package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NarrationConfig contains configuration for NarrationService
type NarrationConfig struct {
	// MaxParagraphs caps how many paragraphs one batch narrates
	MaxParagraphs int
	// Concurrency bounds parallel provider calls within one batch
	Concurrency int
	// KeyPrefix is prepended to audio object keys
	KeyPrefix string
}

// DefaultNarrationConfig returns default configuration
func DefaultNarrationConfig() NarrationConfig {
	return NarrationConfig{
		MaxParagraphs: 30,
		Concurrency:   4,
		KeyPrefix:     "narrations",
	}
}

// NarrateStoryInput contains input for a batch story narration
type NarrateStoryInput struct {
	AccountID uuid.UUID
	StoryID   uuid.UUID
	VoiceID   string
}

// NarrationResult is the outcome of a batch narration
type NarrationResult struct {
	Paragraphs        []voice.NarratedParagraph
	TotalParagraphs   int
	WasTruncated      bool
	VoiceID           string
	UsedProvider      string
	PreferredProvider string
	ProviderStatus    voice.ProviderStatus
}

// NarrationService narrates a whole story in one request
type NarrationService struct {
	quota       *VoiceQuotaService
	synthesizer Synthesizer
	stories     voice.StoryRepository
	audio       voice.AudioStore
	logger      *zap.Logger
	config      NarrationConfig
}

// NewNarrationService creates a new NarrationService
func NewNarrationService(
	quota *VoiceQuotaService,
	synthesizer Synthesizer,
	stories voice.StoryRepository,
	audio voice.AudioStore,
	logger *zap.Logger,
	config NarrationConfig,
) *NarrationService {
	if config.MaxParagraphs <= 0 {
		config.MaxParagraphs = DefaultNarrationConfig().MaxParagraphs
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &NarrationService{
		quota:       quota,
		synthesizer: synthesizer,
		stories:     stories,
		audio:       audio,
		logger:      logger,
		config:      config,
	}
}

// NarrateStory checks quota and voice access, synthesizes every paragraph,
// stores the audio and charges one synthesis unit.
// Nothing is charged unless every paragraph was synthesized and stored.
func (s *NarrationService) NarrateStory(ctx context.Context, input NarrateStoryInput) (*NarrationResult, error) {
	if input.AccountID == uuid.Nil || input.StoryID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}

	allowed, err := s.quota.CheckUsage(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, voice.ErrQuotaExceeded
	}

	decision, canonical, err := s.quota.CheckVoiceAccess(ctx, input.AccountID, input.VoiceID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	story, err := s.stories.FindByID(ctx, input.StoryID)
	if err != nil {
		return nil, err
	}

	paragraphs := nonEmptyParagraphs(story.Paragraphs)
	result := &NarrationResult{
		TotalParagraphs: len(paragraphs),
		VoiceID:         canonical,
		UsedProvider:    voice.ProviderNone,
	}
	if len(paragraphs) > s.config.MaxParagraphs {
		paragraphs = paragraphs[:s.config.MaxParagraphs]
		result.WasTruncated = true
	}
	if len(paragraphs) == 0 {
		return result, nil
	}

	results := make([]*voice.ProviderResult, len(paragraphs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, text := range paragraphs {
		g.Go(func() error {
			res, err := s.synthesizer.Synthesize(gctx, voice.SynthesisRequest{
				Text:     text,
				VoiceID:  canonical,
				Language: story.Language,
			})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("Story narration failed",
			zap.String("story_id", input.StoryID.String()),
			zap.Error(err))
		return nil, err
	}

	result.Paragraphs = make([]voice.NarratedParagraph, len(paragraphs))
	for i, text := range paragraphs {
		key := s.audioKey(story.ID, canonical, i, results[i].Audio)
		url, err := s.audio.PutAudio(ctx, key, results[i].Audio)
		if err != nil {
			s.logger.Error("Failed to store narration audio",
				zap.String("key", key),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %w", voice.ErrAudioUnavailable, err)
		}
		result.Paragraphs[i] = voice.NarratedParagraph{
			Index:    i,
			Text:     text,
			AudioURL: url,
			AudioKey: key,
		}
	}

	// Charged only once the audio is durable; an unsold upload is orphaned, not billed.
	reserved, err := s.quota.TryReserve(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}
	if !reserved {
		s.logger.Info("Quota consumed by a concurrent request, discarding narration",
			zap.String("account_id", input.AccountID.String()))
		return nil, voice.ErrQuotaExceeded
	}

	summarizeProviders(result, results)

	s.logger.Info("Story narrated",
		zap.String("account_id", input.AccountID.String()),
		zap.String("story_id", input.StoryID.String()),
		zap.Int("paragraphs", len(paragraphs)),
		zap.Bool("truncated", result.WasTruncated),
		zap.String("used_provider", result.UsedProvider),
		zap.String("provider_status", string(result.ProviderStatus)))
	return result, nil
}

// summarizeProviders folds per-paragraph provider tags into one result.
// The first paragraph names the used provider; any fallback, degraded paragraph
// or mix of providers marks the whole batch degraded.
func summarizeProviders(result *NarrationResult, results []*voice.ProviderResult) {
	result.UsedProvider = results[0].UsedProvider
	for _, r := range results {
		if result.PreferredProvider == "" && r.IsFallback() {
			result.PreferredProvider = r.PreferredProvider
		}
		if r.IsDegraded() || r.UsedProvider != result.UsedProvider {
			result.ProviderStatus = voice.ProviderStatusDegraded
		}
	}
}

func (s *NarrationService) audioKey(storyID uuid.UUID, voiceID string, index int, audio *voice.Audio) string {
	ext := "mp3"
	if audio != nil && strings.Contains(audio.ContentType, "wav") {
		ext = "wav"
	}
	return fmt.Sprintf("%s/%s/%s/%03d.%s", s.config.KeyPrefix, storyID, sanitizeKey(voiceID), index, ext)
}

func sanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

func nonEmptyParagraphs(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
