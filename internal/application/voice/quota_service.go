package voice

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/voice"
	"go.uber.org/zap"
)

// VoiceQuotaService is the entry point the API layer uses for quota and voice access
type VoiceQuotaService struct {
	ledger      *UsageLedger
	policy      *TierPolicy
	resolver    *VoiceIdentityResolver
	preferences voice.PreferenceRepository
	metrics     Metrics
	logger      *zap.Logger
}

// NewVoiceQuotaService creates a new VoiceQuotaService. preferences and metrics may be nil.
func NewVoiceQuotaService(
	ledger *UsageLedger,
	policy *TierPolicy,
	resolver *VoiceIdentityResolver,
	preferences voice.PreferenceRepository,
	metrics Metrics,
	logger *zap.Logger,
) *VoiceQuotaService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &VoiceQuotaService{
		ledger:      ledger,
		policy:      policy,
		resolver:    resolver,
		preferences: preferences,
		metrics:     metrics,
		logger:      logger,
	}
}

// CheckUsage reports whether the account has synthesis quota left this period.
// It rolls the ledger over but never increments.
func (s *VoiceQuotaService) CheckUsage(ctx context.Context, accountID uuid.UUID) (bool, error) {
	limit, err := s.synthesisLimit(ctx, accountID)
	if err != nil {
		return false, err
	}
	record, err := s.ledger.GetOrInitPeriod(ctx, accountID)
	if err != nil {
		return false, err
	}

	allowed := record.CanIncrement(voice.ResourceSynthesis, limit)
	if !allowed {
		s.metrics.RecordQuotaDenied(ctx, voice.ResourceSynthesis)
	}
	s.logger.Debug("Checked synthesis quota",
		zap.String("account_id", accountID.String()),
		zap.Int64("count", record.SynthesisCount),
		zap.Int64("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}

// QuotaRemaining returns the synthesis calls left this period
func (s *VoiceQuotaService) QuotaRemaining(ctx context.Context, accountID uuid.UUID) (int64, error) {
	limit, err := s.synthesisLimit(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return s.ledger.QuotaRemaining(ctx, accountID, limit)
}

// IncrementUsage records one successful synthesis
func (s *VoiceQuotaService) IncrementUsage(ctx context.Context, accountID uuid.UUID) (*voice.UsageRecord, error) {
	return s.ledger.IncrementSynthesis(ctx, accountID)
}

// TryReserve consumes one synthesis unit only if the account is under its limit.
// Unlike CheckUsage followed by IncrementUsage it cannot over-count under concurrency.
func (s *VoiceQuotaService) TryReserve(ctx context.Context, accountID uuid.UUID) (bool, error) {
	limit, err := s.synthesisLimit(ctx, accountID)
	if err != nil {
		return false, err
	}
	_, reserved, err := s.ledger.TryReserve(ctx, accountID, voice.ResourceSynthesis, limit)
	if err != nil {
		return false, err
	}
	if !reserved {
		s.metrics.RecordQuotaDenied(ctx, voice.ResourceSynthesis)
	}
	return reserved, nil
}

// CanUseVoice resolves voiceID to its canonical form and applies the tier rules,
// locking the voice for free accounts on first use.
func (s *VoiceQuotaService) CanUseVoice(ctx context.Context, accountID uuid.UUID, voiceID string) (bool, error) {
	decision, _, err := s.CheckVoiceAccess(ctx, accountID, voiceID)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// CheckVoiceAccess is CanUseVoice returning the decision and the canonical voice id
func (s *VoiceQuotaService) CheckVoiceAccess(ctx context.Context, accountID uuid.UUID, voiceID string) (voice.AccessDecision, string, error) {
	canonical, err := s.resolver.ResolveCanonical(ctx, voiceID)
	if err != nil {
		return voice.Deny(voice.ReasonNotAccessible), "", err
	}
	decision, err := s.policy.CanUseVoice(ctx, accountID, canonical)
	if err != nil {
		return decision, canonical, err
	}
	if !decision.Allowed {
		s.logger.Info("Voice access denied",
			zap.String("account_id", accountID.String()),
			zap.String("voice_id", canonical),
			zap.String("reason", string(decision.Reason)))
	}
	return decision, canonical, nil
}

// GetVoiceAccess returns the account's voice access summary
func (s *VoiceQuotaService) GetVoiceAccess(ctx context.Context, accountID uuid.UUID) (*voice.VoiceAccessSummary, error) {
	return s.policy.AccessSummary(ctx, accountID)
}

// SetPreferredVoice checks access to voiceID and stores it, canonicalized, as the
// account's preferred voice. Free accounts that already locked another voice are rejected.
func (s *VoiceQuotaService) SetPreferredVoice(ctx context.Context, accountID uuid.UUID, voiceID string) (string, error) {
	decision, canonical, err := s.CheckVoiceAccess(ctx, accountID, voiceID)
	if err != nil {
		return "", err
	}
	if err := decision.Err(); err != nil {
		return "", err
	}
	if s.preferences == nil {
		return canonical, nil
	}
	if err := s.preferences.SetPreferredVoice(ctx, accountID, canonical); err != nil {
		s.logger.Error("Failed to store preferred voice",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return "", fmt.Errorf("failed to store preferred voice: %w", err)
	}
	return canonical, nil
}

// TrackGeminiStory records one generative story call
func (s *VoiceQuotaService) TrackGeminiStory(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.ledger.IncrementStoryGen(ctx, accountID)
	return err
}

// TrackGeminiImage records one generative image call
func (s *VoiceQuotaService) TrackGeminiImage(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.ledger.IncrementImageGen(ctx, accountID)
	return err
}

func (s *VoiceQuotaService) synthesisLimit(ctx context.Context, accountID uuid.UUID) (int64, error) {
	premium, err := s.policy.IsPremium(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return s.policy.LimitFor(premium), nil
}
