package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"gorm.io/gorm"
)

// StoryModel is the GORM model for stories. Paragraphs are stored as a JSON array.
type StoryModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Title      string    `gorm:"type:varchar(255);not null"`
	Language   string    `gorm:"type:varchar(16);not null;default:'en'"`
	Paragraphs []string  `gorm:"type:jsonb;serializer:json;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for the model
func (StoryModel) TableName() string {
	return "stories"
}

// GormStoryRepository implements voice.StoryRepository
type GormStoryRepository struct {
	db *gorm.DB
}

// NewGormStoryRepository creates a new story repository
func NewGormStoryRepository(db *gorm.DB) *GormStoryRepository {
	return &GormStoryRepository{db: db}
}

// FindByID implements voice.StoryRepository
func (r *GormStoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*voice.Story, error) {
	var model StoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("Story not found")
		}
		return nil, fmt.Errorf("find story: %w", err)
	}
	return &voice.Story{
		ID:         model.ID,
		Title:      model.Title,
		Language:   model.Language,
		Paragraphs: model.Paragraphs,
	}, nil
}

var _ voice.StoryRepository = (*GormStoryRepository)(nil)
