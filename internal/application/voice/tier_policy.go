package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"go.uber.org/zap"
)

// TierPolicyConfig contains configuration for TierPolicy
type TierPolicyConfig struct {
	FreeMonthlyLimit    int64
	PremiumMonthlyLimit int64
	// LockableSlots is the number of voices a free account may lock besides the default.
	// Only 0 and 1 are supported.
	LockableSlots int
}

// DefaultTierPolicyConfig returns default configuration
func DefaultTierPolicyConfig() TierPolicyConfig {
	return TierPolicyConfig{
		FreeMonthlyLimit:    2,
		PremiumMonthlyLimit: 20,
		LockableSlots:       1,
	}
}

// TierPolicy translates subscription state into quota limits and voice reachability
type TierPolicy struct {
	accounts voice.AccountReader
	ledger   *UsageLedger
	resolver *VoiceIdentityResolver
	logger   *zap.Logger
	config   TierPolicyConfig
	now      Clock
}

// NewTierPolicy creates a new TierPolicy
func NewTierPolicy(
	accounts voice.AccountReader,
	ledger *UsageLedger,
	resolver *VoiceIdentityResolver,
	logger *zap.Logger,
	config TierPolicyConfig,
) *TierPolicy {
	return &TierPolicy{
		accounts: accounts,
		ledger:   ledger,
		resolver: resolver,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for subscription expiry
func (p *TierPolicy) WithClock(clock Clock) *TierPolicy {
	p.now = clock
	return p
}

// IsPremium reports whether the account has an active, non-expired subscription.
// Unknown accounts are free.
func (p *TierPolicy) IsPremium(ctx context.Context, accountID uuid.UUID) (bool, error) {
	account, err := p.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		p.logger.Error("Failed to load account",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return false, fmt.Errorf("%w: load account: %v", voice.ErrStorageUnavailable, err)
	}
	return account.IsPremiumAt(p.now()), nil
}

// LimitFor returns the monthly synthesis ceiling for the tier
func (p *TierPolicy) LimitFor(isPremium bool) int64 {
	if isPremium {
		return p.config.PremiumMonthlyLimit
	}
	return p.config.FreeMonthlyLimit
}

// MaxVoices returns how many voices the tier can reach, -1 for unlimited
func (p *TierPolicy) MaxVoices(isPremium bool) int {
	if isPremium {
		return -1
	}
	return 1 + p.config.LockableSlots
}

// CanUseVoice decides whether the account may use the canonical voice.
// A free account with no locked voice atomically locks the requested one.
func (p *TierPolicy) CanUseVoice(ctx context.Context, accountID uuid.UUID, canonical string) (voice.AccessDecision, error) {
	premium, err := p.IsPremium(ctx, accountID)
	if err != nil {
		return voice.Deny(voice.ReasonNotAccessible), err
	}
	if premium {
		return voice.Allow(voice.ReasonPremium), nil
	}

	defaultVoice, err := p.resolver.DefaultFreeVoice(ctx)
	if err != nil {
		return voice.Deny(voice.ReasonNotAccessible), err
	}
	if canonical == defaultVoice {
		return voice.Allow(voice.ReasonDefaultVoice), nil
	}

	record, err := p.ledger.GetOrInitPeriod(ctx, accountID)
	if err != nil {
		return voice.Deny(voice.ReasonNotAccessible), err
	}
	if record.HasLockedVoice() {
		if *record.LockedVoiceID == canonical {
			return voice.Allow(voice.ReasonLockedVoice), nil
		}
		return voice.Deny(voice.ReasonVoiceLocked), nil
	}
	if p.config.LockableSlots < 1 {
		return voice.Deny(voice.ReasonNotAccessible), nil
	}

	record, err = p.ledger.LockVoice(ctx, accountID, canonical)
	if err != nil {
		return voice.Deny(voice.ReasonNotAccessible), err
	}
	// A concurrent request may have locked a different voice first
	if !record.HasLockedVoice() || *record.LockedVoiceID != canonical {
		p.logger.Info("Voice lock lost to concurrent request",
			zap.String("account_id", accountID.String()),
			zap.String("requested_voice", canonical))
		return voice.Deny(voice.ReasonVoiceLocked), nil
	}

	p.logger.Info("Locked second voice for free account",
		zap.String("account_id", accountID.String()),
		zap.String("voice_id", canonical))
	return voice.Allow(voice.ReasonLockedNow), nil
}

// AccessSummary reports which voices the account can reach
func (p *TierPolicy) AccessSummary(ctx context.Context, accountID uuid.UUID) (*voice.VoiceAccessSummary, error) {
	premium, err := p.IsPremium(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defaultVoice, err := p.resolver.DefaultFreeVoice(ctx)
	if err != nil {
		return nil, err
	}
	record, err := p.ledger.GetOrInitPeriod(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &voice.VoiceAccessSummary{
		IsPremium:      premium,
		Unlimited:      premium,
		DefaultVoiceID: defaultVoice,
		LockedVoiceID:  record.LockedVoiceID,
		MaxVoices:      p.MaxVoices(premium),
		ResetsAt:       voice.NextPeriodStart(p.now()),
	}, nil
}
