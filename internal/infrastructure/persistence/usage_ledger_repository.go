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

// UsageRecordModel is the GORM model for per-account usage counters
type UsageRecordModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	PeriodKey      string    `gorm:"type:varchar(7);not null"`
	SynthesisCount int64     `gorm:"not null;default:0"`
	StoryGenCount  int64     `gorm:"not null;default:0"`
	ImageGenCount  int64     `gorm:"not null;default:0"`
	LockedVoiceID  *string   `gorm:"type:varchar(128)"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for the model
func (UsageRecordModel) TableName() string {
	return "usage_records"
}

// ToEntity converts the model to a domain entity
func (m *UsageRecordModel) ToEntity() *voice.UsageRecord {
	return &voice.UsageRecord{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		AccountID:      m.AccountID,
		PeriodKey:      m.PeriodKey,
		SynthesisCount: m.SynthesisCount,
		StoryGenCount:  m.StoryGenCount,
		ImageGenCount:  m.ImageGenCount,
		LockedVoiceID:  m.LockedVoiceID,
	}
}

var counterColumns = map[voice.ResourceType]string{
	voice.ResourceSynthesis: "synthesis_count",
	voice.ResourceStoryGen:  "story_gen_count",
	voice.ResourceImageGen:  "image_gen_count",
}

// GormUsageLedgerRepository implements voice.UsageLedgerRepository.
//
// Each operation runs in one transaction: insert-if-absent, roll the period
// forward, then a single conditional UPDATE. The conditional UPDATE is what
// makes check-and-increment atomic; the row lock it takes serializes
// concurrent callers for the same account on PostgreSQL.
type GormUsageLedgerRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormUsageLedgerRepository creates a new usage ledger repository
func NewGormUsageLedgerRepository(db *gorm.DB) *GormUsageLedgerRepository {
	return &GormUsageLedgerRepository{db: db, now: time.Now}
}

// EnsurePeriod implements voice.UsageLedgerRepository
func (r *GormUsageLedgerRepository) EnsurePeriod(ctx context.Context, accountID uuid.UUID, periodKey string) (*voice.UsageRecord, error) {
	var record *voice.UsageRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensurePeriod(tx, accountID, periodKey); err != nil {
			return err
		}
		var err error
		record, err = r.load(tx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Increment implements voice.UsageLedgerRepository
func (r *GormUsageLedgerRepository) Increment(
	ctx context.Context,
	accountID uuid.UUID,
	periodKey string,
	resource voice.ResourceType,
	limit int64,
) (*voice.UsageRecord, bool, error) {
	column, ok := counterColumns[resource]
	if !ok {
		return nil, false, shared.NewDomainError("INVALID_RESOURCE_TYPE", "Invalid resource type")
	}

	var (
		record  *voice.UsageRecord
		applied bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensurePeriod(tx, accountID, periodKey); err != nil {
			return err
		}

		q := tx.Model(&UsageRecordModel{}).Where("account_id = ?", accountID)
		if limit != voice.Unlimited {
			q = q.Where(column+" < ?", limit)
		}
		res := q.Updates(map[string]any{
			column:       gorm.Expr(column + " + 1"),
			"updated_at": r.now(),
		})
		if res.Error != nil {
			return fmt.Errorf("increment %s: %w", column, res.Error)
		}
		applied = res.RowsAffected == 1

		var err error
		record, err = r.load(tx, accountID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return record, applied, nil
}

// LockVoice implements voice.UsageLedgerRepository
func (r *GormUsageLedgerRepository) LockVoice(ctx context.Context, accountID uuid.UUID, periodKey, voiceID string) (*voice.UsageRecord, error) {
	var record *voice.UsageRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensurePeriod(tx, accountID, periodKey); err != nil {
			return err
		}

		err := tx.Model(&UsageRecordModel{}).
			Where("account_id = ? AND (locked_voice_id IS NULL OR locked_voice_id = '')", accountID).
			Updates(map[string]any{
				"locked_voice_id": voiceID,
				"updated_at":      r.now(),
			}).Error
		if err != nil {
			return fmt.Errorf("lock voice: %w", err)
		}

		record, err = r.load(tx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ensurePeriod creates the account's row when missing and resets its counters
// when it belongs to an earlier period. Period keys sort lexically, so a caller
// holding an older key never rolls a newer row backwards.
func (r *GormUsageLedgerRepository) ensurePeriod(tx *gorm.DB, accountID uuid.UUID, periodKey string) error {
	now := r.now()
	fresh := &UsageRecordModel{
		ID:        uuid.New(),
		AccountID: accountID,
		PeriodKey: periodKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(fresh).Error
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	err = tx.Model(&UsageRecordModel{}).
		Where("account_id = ? AND period_key < ?", accountID, periodKey).
		Updates(map[string]any{
			"period_key":      periodKey,
			"synthesis_count": 0,
			"story_gen_count": 0,
			"image_gen_count": 0,
			"updated_at":      now,
		}).Error
	if err != nil {
		return fmt.Errorf("roll over usage record: %w", err)
	}
	return nil
}

func (r *GormUsageLedgerRepository) load(tx *gorm.DB, accountID uuid.UUID) (*voice.UsageRecord, error) {
	var model UsageRecordModel
	if err := tx.Where("account_id = ?", accountID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("load usage record: %w", err)
	}
	return model.ToEntity(), nil
}

var _ voice.UsageLedgerRepository = (*GormUsageLedgerRepository)(nil)
