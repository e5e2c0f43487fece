package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"go.uber.org/zap"
)

// VoiceIdentityResolver maps any of the three voice identifier shapes
// (mnemonic key, catalog UUID, vendor-native id) to the canonical vendor-native id.
// Every comparison between two voice identifiers must go through it.
type VoiceIdentityResolver struct {
	catalog      voice.VoiceCatalog
	keys         map[string]string
	defaultVoice string
	logger       *zap.Logger
}

// ResolverConfig contains configuration for VoiceIdentityResolver
type ResolverConfig struct {
	// Keys maps mnemonic keys to vendor-native ids. Keys are matched case-insensitively
	// and take precedence over catalog keys.
	Keys map[string]string
	// DefaultFreeVoice is the default free voice in any identifier shape.
	// When empty the catalog's default free entry is used.
	DefaultFreeVoice string
}

// NewVoiceIdentityResolver creates a new VoiceIdentityResolver
func NewVoiceIdentityResolver(catalog voice.VoiceCatalog, logger *zap.Logger, config ResolverConfig) *VoiceIdentityResolver {
	keys := make(map[string]string, len(config.Keys))
	for k, v := range config.Keys {
		keys[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &VoiceIdentityResolver{
		catalog:      catalog,
		keys:         keys,
		defaultVoice: strings.TrimSpace(config.DefaultFreeVoice),
		logger:       logger,
	}
}

// ResolveCanonical returns the vendor-native id for anyForm.
// Lookup order: mnemonic key, catalog UUID, then anyForm itself.
func (r *VoiceIdentityResolver) ResolveCanonical(ctx context.Context, anyForm string) (string, error) {
	form := strings.TrimSpace(anyForm)
	if form == "" {
		return "", shared.NewDomainError("INVALID_VOICE", "Voice ID cannot be empty")
	}

	key := strings.ToLower(form)
	if canonical, ok := r.keys[key]; ok {
		return canonical, nil
	}
	if r.catalog != nil {
		entry, err := r.catalog.FindByKey(ctx, key)
		if err == nil {
			return entry.CanonicalID, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return "", fmt.Errorf("failed to look up voice key: %w", err)
		}

		if id, parseErr := uuid.Parse(form); parseErr == nil {
			entry, err := r.catalog.FindByID(ctx, id)
			if err == nil {
				return entry.CanonicalID, nil
			}
			if !errors.Is(err, shared.ErrNotFound) {
				return "", fmt.Errorf("failed to look up voice id: %w", err)
			}
		}
	}

	r.logger.Info("Voice identifier not found in catalog, treating it as vendor-native",
		zap.String("voice_id", form))
	return form, nil
}

// DefaultFreeVoice returns the canonical id of the default free voice
func (r *VoiceIdentityResolver) DefaultFreeVoice(ctx context.Context) (string, error) {
	if r.defaultVoice != "" {
		return r.ResolveCanonical(ctx, r.defaultVoice)
	}
	if r.catalog == nil {
		return "", shared.NewDomainError("DEFAULT_VOICE_MISSING", "No default free voice is configured")
	}
	entry, err := r.catalog.FindDefaultFree(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", shared.NewDomainError("DEFAULT_VOICE_MISSING", "No default free voice is configured")
		}
		return "", fmt.Errorf("failed to look up default free voice: %w", err)
	}
	return entry.CanonicalID, nil
}
