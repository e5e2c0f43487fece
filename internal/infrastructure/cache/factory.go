package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewCatalogCache builds the tiered catalog cache for source. When Redis is
// disabled or unreachable the cache runs with L1 only; the returned client is
// nil in that case and must otherwise be closed by the caller.
func NewCatalogCache(
	ctx context.Context,
	source voice.VoiceCatalog,
	redisCfg config.RedisConfig,
	voiceCfg config.VoiceConfig,
	logger *zap.Logger,
) (*CachedVoiceCatalog, *redis.Client) {
	if !redisCfg.Enabled {
		logger.Info("Redis disabled, voice catalog cache is process-local")
		return NewCachedVoiceCatalog(source, nil, voiceCfg.CatalogCacheTTL, logger), nil
	}

	client, err := NewRedisClient(ctx, redisCfg)
	if err != nil {
		logger.Warn("Redis unavailable, voice catalog cache is process-local. "+
			"Instances will not share catalog lookups.",
			zap.String("addr", redisCfg.Addr()),
			zap.Error(err))
		return NewCachedVoiceCatalog(source, nil, voiceCfg.CatalogCacheTTL, logger), nil
	}

	logger.Info("Using tiered voice catalog cache", zap.String("addr", redisCfg.Addr()))
	l2 := NewRedisCatalogStore(client, redisCfg.CacheTTL)
	return NewCachedVoiceCatalog(source, l2, voiceCfg.CatalogCacheTTL, logger), client
}
