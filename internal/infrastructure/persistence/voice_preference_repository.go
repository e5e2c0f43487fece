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
	"gorm.io/gorm/clause"
)

// VoicePreferenceModel is the GORM model for an account's preferred voice
type VoicePreferenceModel struct {
	AccountID uuid.UUID `gorm:"type:uuid;primaryKey"`
	VoiceID   string    `gorm:"type:varchar(128);not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the model
func (VoicePreferenceModel) TableName() string {
	return "voice_preferences"
}

// GormPreferenceRepository implements voice.PreferenceRepository
type GormPreferenceRepository struct {
	db *gorm.DB
}

// NewGormPreferenceRepository creates a new preference repository
func NewGormPreferenceRepository(db *gorm.DB) *GormPreferenceRepository {
	return &GormPreferenceRepository{db: db}
}

// SetPreferredVoice upserts the account's preferred voice
func (r *GormPreferenceRepository) SetPreferredVoice(ctx context.Context, accountID uuid.UUID, voiceID string) error {
	model := VoicePreferenceModel{AccountID: accountID, VoiceID: voiceID, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"voice_id", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("save preferred voice: %w", err)
	}
	return nil
}

// GetPreferredVoice returns the stored preference or shared.ErrNotFound
func (r *GormPreferenceRepository) GetPreferredVoice(ctx context.Context, accountID uuid.UUID) (string, error) {
	var model VoicePreferenceModel
	if err := r.db.WithContext(ctx).First(&model, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("get preferred voice: %w", err)
	}
	return model.VoiceID, nil
}

var _ voice.PreferenceRepository = (*GormPreferenceRepository)(nil)
