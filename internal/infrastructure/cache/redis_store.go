package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/infrastructure/config"
)

const catalogKeyPrefix = "voice:catalog:"

// NewRedisClient connects to Redis and pings it
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisCatalogStore is the shared L2 tier for catalog entries, stored as JSON
type RedisCatalogStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCatalogStore creates an L2 store on an existing client
func NewRedisCatalogStore(client *redis.Client, ttl time.Duration) *RedisCatalogStore {
	return &RedisCatalogStore{client: client, ttl: ttl}
}

type catalogRecord struct {
	ID                 string `json:"id"`
	Key                string `json:"key"`
	CanonicalID        string `json:"canonical_id"`
	DisplayName        string `json:"display_name"`
	Language           string `json:"language"`
	IsDefaultFreeVoice bool   `json:"is_default_free_voice"`
}

// Get returns the entry under key, or nil on a miss
func (s *RedisCatalogStore) Get(ctx context.Context, key string) (*voice.VoiceCatalogEntry, error) {
	data, err := s.client.Get(ctx, catalogKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var rec catalogRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode catalog entry %s: %w", key, err)
	}
	return rec.toEntry()
}

// Set stores entry under key for the store TTL
func (s *RedisCatalogStore) Set(ctx context.Context, key string, e *voice.VoiceCatalogEntry) error {
	data, err := json.Marshal(catalogRecord{
		ID:                 e.ID.String(),
		Key:                e.Key,
		CanonicalID:        e.CanonicalID,
		DisplayName:        e.DisplayName,
		Language:           e.Language,
		IsDefaultFreeVoice: e.IsDefaultFreeVoice,
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, catalogKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Purge deletes every catalog key. Used after catalog reseeding.
func (s *RedisCatalogStore) Purge(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, catalogKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
