package speech

import (
	"fmt"

	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewProviders builds one HTTPProvider per configured vendor. Vendors
// without a base URL are skipped so local setups can run with a subset.
func NewProviders(cfgs []config.ProviderConfig, logger *zap.Logger, opts ...Option) ([]voice.SpeechProvider, error) {
	providers := make([]voice.SpeechProvider, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.BaseURL == "" {
			logger.Warn("Speech provider has no base_url, skipping", zap.String("provider", cfg.Name))
			continue
		}
		providers = append(providers, NewHTTPProvider(cfg, logger, opts...))
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no speech provider is configured with a base_url")
	}
	return providers, nil
}

// Names returns provider names in order
func Names(providers []voice.SpeechProvider) []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return names
}
