package voice

import "github.com/storyvoice/backend/internal/domain/shared"

// Error codes exposed to API clients. They are stable and safe for client-side messaging.
const (
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeVoiceNotAccessible = "VOICE_NOT_ACCESSIBLE"
	CodeVoiceLocked        = "VOICE_LOCKED"
	CodeProviderExhausted  = "PROVIDER_EXHAUSTED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeAudioUnavailable   = "AUDIO_UNAVAILABLE"
)

var (
	// ErrQuotaExceeded is returned when the account used its monthly allotment
	ErrQuotaExceeded = shared.NewDomainError(CodeQuotaExceeded,
		"Monthly narration limit reached. Upgrade to premium or wait for next month")

	// ErrVoiceNotAccessible is returned when a free account requests a voice outside its reachable set
	ErrVoiceNotAccessible = shared.NewDomainError(CodeVoiceNotAccessible,
		"This voice requires a premium subscription")

	// ErrVoiceLockConflict is returned when a free account tries to replace its locked voice
	ErrVoiceLockConflict = shared.NewDomainError(CodeVoiceLocked,
		"Voice locked. Upgrade to premium to use more voices, or keep your selected voice")

	// ErrProviderExhausted is returned when every speech provider failed or was unavailable
	ErrProviderExhausted = shared.NewDomainError(CodeProviderExhausted,
		"Narration is temporarily unavailable. Please try again later")

	// ErrStorageUnavailable is returned when the usage ledger cannot be read or written
	ErrStorageUnavailable = shared.NewDomainError(CodeStorageUnavailable,
		"Usage ledger is temporarily unavailable")

	// ErrAudioUnavailable is returned when synthesized audio cannot be uploaded
	ErrAudioUnavailable = shared.NewDomainError(CodeAudioUnavailable,
		"Narration audio could not be saved. Please try again later")
)
