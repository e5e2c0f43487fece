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

// AccountModel is the GORM model for accounts
type AccountModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the model
func (AccountModel) TableName() string {
	return "accounts"
}

// SubscriptionModel is the GORM model for billing subscriptions.
// Billing owns these rows; this service only reads them.
type SubscriptionModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AccountID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Plan      string     `gorm:"type:varchar(50);not null"`
	Status    string     `gorm:"type:varchar(20);not null"`
	EndsAt    *time.Time `gorm:"index"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`
}

// TableName returns the table name for the model
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToDomain converts the model to the domain subscription signal
func (m *SubscriptionModel) ToDomain() *voice.Subscription {
	return &voice.Subscription{
		Status: voice.SubscriptionStatus(m.Status),
		EndsAt: m.EndsAt,
	}
}

// GormAccountRepository implements voice.AccountReader
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new account repository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByID returns the account with its most relevant subscription: an
// ACTIVE one when present, otherwise the most recent.
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*voice.Account, error) {
	db := r.db.WithContext(ctx)

	var account AccountModel
	if err := db.First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	result := &voice.Account{ID: account.ID}

	var sub SubscriptionModel
	err := db.Where("account_id = ?", id).
		Order(fmt.Sprintf("CASE WHEN status = '%s' THEN 0 ELSE 1 END", voice.SubscriptionActive)).
		Order("created_at DESC").
		First(&sub).Error
	switch {
	case err == nil:
		result.Subscription = sub.ToDomain()
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return result, nil
}

var _ voice.AccountReader = (*GormAccountRepository)(nil)
