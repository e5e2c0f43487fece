package voice

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the billing state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
	SubscriptionExpired  SubscriptionStatus = "EXPIRED"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
)

// Subscription is the read-only subscription signal owned by billing
type Subscription struct {
	Status SubscriptionStatus
	// EndsAt is nil for subscriptions without a fixed end
	EndsAt *time.Time
}

// IsActiveAt reports whether the subscription is ACTIVE and not expired at now.
// This is the only place the premium rule is defined.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	if s == nil || s.Status != SubscriptionActive {
		return false
	}
	return s.EndsAt == nil || s.EndsAt.After(now)
}

// Account is the subset of an account this context reads
type Account struct {
	ID           uuid.UUID
	Subscription *Subscription
}

// IsPremiumAt reports whether the account has a premium subscription at now
func (a *Account) IsPremiumAt(now time.Time) bool {
	if a == nil {
		return false
	}
	return a.Subscription.IsActiveAt(now)
}
