package voice

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAccount_IsPremiumAt(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name         string
		subscription *Subscription
		want         bool
	}{
		{"no subscription", nil, false},
		{"active without end", &Subscription{Status: SubscriptionActive}, true},
		{"active ending later", &Subscription{Status: SubscriptionActive, EndsAt: &future}, true},
		{"active but expired", &Subscription{Status: SubscriptionActive, EndsAt: &past}, false},
		{"active ending exactly now", &Subscription{Status: SubscriptionActive, EndsAt: &now}, false},
		{"canceled", &Subscription{Status: SubscriptionCanceled, EndsAt: &future}, false},
		{"past due", &Subscription{Status: SubscriptionPastDue}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := &Account{ID: uuid.New(), Subscription: tt.subscription}
			assert.Equal(t, tt.want, account.IsPremiumAt(now))
		})
	}

	t.Run("nil account is not premium", func(t *testing.T) {
		var account *Account
		assert.False(t, account.IsPremiumAt(now))
	})
}

func TestPeriodKeyAt(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)

	assert.Equal(t, "2026-01", PeriodKeyAt(time.Date(2026, time.January, 31, 23, 59, 0, 0, time.UTC)))
	// 2026-02-01 05:00 in UTC+9 is still January in UTC
	assert.Equal(t, "2026-01", PeriodKeyAt(time.Date(2026, time.February, 1, 5, 0, 0, 0, loc)))
	assert.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC),
		NextPeriodStart(time.Date(2026, time.December, 15, 0, 0, 0, 0, time.UTC)))
}

func TestAccessDecision_Err(t *testing.T) {
	assert.NoError(t, Allow(ReasonPremium).Err())
	assert.ErrorIs(t, Deny(ReasonVoiceLocked).Err(), ErrVoiceLockConflict)
	assert.ErrorIs(t, Deny(ReasonNotAccessible).Err(), ErrVoiceNotAccessible)
}
