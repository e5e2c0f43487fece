package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"go.uber.org/zap"
)

// CatalogStore is the shared L2 tier. Get returns nil, nil on a miss.
type CatalogStore interface {
	Get(ctx context.Context, key string) (*voice.VoiceCatalogEntry, error)
	Set(ctx context.Context, key string, entry *voice.VoiceCatalogEntry) error
}

// CachedVoiceCatalog is a read-through voice.VoiceCatalog.
// L1 is process memory and also remembers misses, since the identity resolver
// probes the catalog with raw vendor IDs on every request. L2 is optional and
// holds only hits. L2 failures are logged and fall through to the source.
type CachedVoiceCatalog struct {
	source voice.VoiceCatalog
	l1     *MemoryCache[voice.VoiceCatalogEntry]
	list   *MemoryCache[[]voice.VoiceCatalogEntry]
	l2     CatalogStore
	logger *zap.Logger
}

// NewCachedVoiceCatalog wraps source. l2 may be nil.
func NewCachedVoiceCatalog(source voice.VoiceCatalog, l2 CatalogStore, ttl time.Duration, logger *zap.Logger) *CachedVoiceCatalog {
	return &CachedVoiceCatalog{
		source: source,
		l1:     NewMemoryCache[voice.VoiceCatalogEntry](ttl),
		list:   NewMemoryCache[[]voice.VoiceCatalogEntry](ttl),
		l2:     l2,
		logger: logger,
	}
}

// FindByKey implements voice.VoiceCatalog
func (c *CachedVoiceCatalog) FindByKey(ctx context.Context, key string) (*voice.VoiceCatalogEntry, error) {
	return c.lookup(ctx, "key:"+strings.ToLower(key), func() (*voice.VoiceCatalogEntry, error) {
		return c.source.FindByKey(ctx, key)
	})
}

// FindByID implements voice.VoiceCatalog
func (c *CachedVoiceCatalog) FindByID(ctx context.Context, id uuid.UUID) (*voice.VoiceCatalogEntry, error) {
	return c.lookup(ctx, "id:"+id.String(), func() (*voice.VoiceCatalogEntry, error) {
		return c.source.FindByID(ctx, id)
	})
}

// FindDefaultFree implements voice.VoiceCatalog
func (c *CachedVoiceCatalog) FindDefaultFree(ctx context.Context) (*voice.VoiceCatalogEntry, error) {
	return c.lookup(ctx, "default", func() (*voice.VoiceCatalogEntry, error) {
		return c.source.FindDefaultFree(ctx)
	})
}

// List implements voice.VoiceCatalog. Only L1 caches the full list.
func (c *CachedVoiceCatalog) List(ctx context.Context) ([]voice.VoiceCatalogEntry, error) {
	if cached, ok := c.list.Get("all"); ok && cached != nil {
		return append([]voice.VoiceCatalogEntry(nil), (*cached)...), nil
	}
	entries, err := c.source.List(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := append([]voice.VoiceCatalogEntry(nil), entries...)
	c.list.Set("all", &snapshot)
	return entries, nil
}

// Invalidate drops every L1 entry
func (c *CachedVoiceCatalog) Invalidate() {
	c.l1.Clear()
	c.list.Clear()
}

// Stats returns L1 hits and misses
func (c *CachedVoiceCatalog) Stats() (hits, misses int64) {
	return c.l1.Stats()
}

// Close stops the L1 sweepers
func (c *CachedVoiceCatalog) Close() {
	c.l1.Stop()
	c.list.Stop()
}

func (c *CachedVoiceCatalog) lookup(ctx context.Context, key string, load func() (*voice.VoiceCatalogEntry, error)) (*voice.VoiceCatalogEntry, error) {
	if cached, ok := c.l1.Get(key); ok {
		if cached == nil {
			return nil, shared.ErrNotFound
		}
		return copyEntry(cached), nil
	}

	if c.l2 != nil {
		found, err := c.l2.Get(ctx, key)
		if err != nil {
			c.logger.Warn("L2 catalog cache read failed", zap.String("key", key), zap.Error(err))
		} else if found != nil {
			c.l1.Set(key, found)
			return copyEntry(found), nil
		}
	}

	found, err := load()
	if errors.Is(err, shared.ErrNotFound) {
		c.l1.Set(key, nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	c.l1.Set(key, copyEntry(found))
	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, found); err != nil {
			c.logger.Warn("L2 catalog cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return found, nil
}

func copyEntry(e *voice.VoiceCatalogEntry) *voice.VoiceCatalogEntry {
	cp := *e
	return &cp
}

func (r catalogRecord) toEntry() (*voice.VoiceCatalogEntry, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	return &voice.VoiceCatalogEntry{
		ID:                 id,
		Key:                r.Key,
		CanonicalID:        r.CanonicalID,
		DisplayName:        r.DisplayName,
		Language:           r.Language,
		IsDefaultFreeVoice: r.IsDefaultFreeVoice,
	}, nil
}

var _ voice.VoiceCatalog = (*CachedVoiceCatalog)(nil)
