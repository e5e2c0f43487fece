package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and audit timestamps shared by persisted entities
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity returns an entity with a fresh ID, stamped in UTC
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch moves UpdatedAt forward to now. Earlier times are ignored.
func (e *BaseEntity) Touch(now time.Time) {
	if now.After(e.UpdatedAt) {
		e.UpdatedAt = now
	}
}
