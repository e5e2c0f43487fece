package voice

import "time"

// AccessReason explains an AccessDecision
type AccessReason string

const (
	ReasonPremium       AccessReason = "premium"
	ReasonDefaultVoice  AccessReason = "default_voice"
	ReasonLockedVoice   AccessReason = "locked_voice"
	ReasonLockedNow     AccessReason = "locked_on_first_use"
	ReasonVoiceLocked   AccessReason = "voice_locked"
	ReasonNotAccessible AccessReason = "voice_not_accessible"
)

// AccessDecision is the result of a voice reachability check
type AccessDecision struct {
	Allowed bool         `json:"allowed"`
	Reason  AccessReason `json:"reason"`
}

// Allow creates an allowing decision
func Allow(reason AccessReason) AccessDecision {
	return AccessDecision{Allowed: true, Reason: reason}
}

// Deny creates a denying decision
func Deny(reason AccessReason) AccessDecision {
	return AccessDecision{Allowed: false, Reason: reason}
}

// Err maps a denial to its domain error, or nil when allowed
func (d AccessDecision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonVoiceLocked {
		return ErrVoiceLockConflict
	}
	return ErrVoiceNotAccessible
}

// VoiceAccessSummary describes which voices an account can reach
type VoiceAccessSummary struct {
	IsPremium      bool
	Unlimited      bool
	DefaultVoiceID string
	LockedVoiceID  *string
	// MaxVoices is -1 for unlimited
	MaxVoices int
	// ResetsAt is when the current accounting period ends
	ResetsAt time.Time
}
