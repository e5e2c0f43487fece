package storage

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// AudioReader serves stored audio back through the API for backends
// whose objects have no public URL
type AudioReader interface {
	GetAudio(ctx context.Context, key string) (*voice.Audio, error)
}

// NewAudioStore builds the configured store. audioRoute is the API base
// used in URLs for backends that are served through the API; nc is only
// needed by the nats backend. The returned reader is nil for s3.
func NewAudioStore(
	ctx context.Context,
	cfg *config.StorageConfig,
	nc *nats.Conn,
	audioRoute string,
	logger *zap.Logger,
) (voice.AudioStore, AudioReader, error) {
	if !cfg.Enabled {
		logger.Warn("Audio storage disabled, keeping narration audio in memory")
		store := NewMemoryAudioStore(audioRoute)
		return store, store, nil
	}

	baseURL := cfg.PublicURL
	if baseURL == "" {
		baseURL = audioRoute
	}

	switch cfg.Backend {
	case "nats":
		if nc == nil {
			return nil, nil, fmt.Errorf("storage.backend nats requires nats.enabled")
		}
		js, err := nc.JetStream()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open JetStream: %w", err)
		}
		store, err := NewNATSAudioStore(js, cfg.Bucket, baseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		store, err := NewS3AudioStore(ctx, cfg, WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}
