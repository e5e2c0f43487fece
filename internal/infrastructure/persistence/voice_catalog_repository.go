package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"gorm.io/gorm"
)

// VoiceCatalogModel is the GORM model for the voice catalog
type VoiceCatalogModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Key                string    `gorm:"column:voice_key;type:varchar(64);not null;uniqueIndex"`
	CanonicalID        string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	DisplayName        string    `gorm:"type:varchar(100);not null"`
	Language           string    `gorm:"type:varchar(16);not null;default:'en'"`
	IsDefaultFreeVoice bool      `gorm:"not null;default:false"`
	CreatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for the model
func (VoiceCatalogModel) TableName() string {
	return "voice_catalog"
}

// ToEntity converts the model to a domain catalog entry
func (m *VoiceCatalogModel) ToEntity() voice.VoiceCatalogEntry {
	return voice.VoiceCatalogEntry{
		ID:                 m.ID,
		Key:                m.Key,
		CanonicalID:        m.CanonicalID,
		DisplayName:        m.DisplayName,
		Language:           m.Language,
		IsDefaultFreeVoice: m.IsDefaultFreeVoice,
	}
}

// GormVoiceCatalog implements voice.VoiceCatalog
type GormVoiceCatalog struct {
	db *gorm.DB
}

// NewGormVoiceCatalog creates a new catalog repository
func NewGormVoiceCatalog(db *gorm.DB) *GormVoiceCatalog {
	return &GormVoiceCatalog{db: db}
}

// FindByKey looks a voice up by its mnemonic key, case-insensitively
func (c *GormVoiceCatalog) FindByKey(ctx context.Context, key string) (*voice.VoiceCatalogEntry, error) {
	return c.findOne(ctx, "LOWER(voice_key) = ?", strings.ToLower(key))
}

// FindByID looks a voice up by its catalog UUID
func (c *GormVoiceCatalog) FindByID(ctx context.Context, id uuid.UUID) (*voice.VoiceCatalogEntry, error) {
	return c.findOne(ctx, "id = ?", id)
}

// FindDefaultFree returns the voice flagged as the free tier default
func (c *GormVoiceCatalog) FindDefaultFree(ctx context.Context) (*voice.VoiceCatalogEntry, error) {
	return c.findOne(ctx, "is_default_free_voice = ?", true)
}

// List returns every catalog entry ordered by key
func (c *GormVoiceCatalog) List(ctx context.Context) ([]voice.VoiceCatalogEntry, error) {
	var models []VoiceCatalogModel
	if err := c.db.WithContext(ctx).Order("voice_key").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list voice catalog: %w", err)
	}
	entries := make([]voice.VoiceCatalogEntry, len(models))
	for i := range models {
		entries[i] = models[i].ToEntity()
	}
	return entries, nil
}

func (c *GormVoiceCatalog) findOne(ctx context.Context, query string, args ...any) (*voice.VoiceCatalogEntry, error) {
	var model VoiceCatalogModel
	if err := c.db.WithContext(ctx).Where(query, args...).Order("voice_key").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find voice: %w", err)
	}
	entry := model.ToEntity()
	return &entry, nil
}

var _ voice.VoiceCatalog = (*GormVoiceCatalog)(nil)
