package dto

import (
	"time"

	"github.com/storyvoice/backend/internal/domain/voice"
)

// SetPreferredVoiceRequest selects the account's narration voice.
// VoiceID may be a catalog key, a catalog UUID or a vendor voice id.
type SetPreferredVoiceRequest struct {
	VoiceID string `json:"voiceId" binding:"required,voiceid"`
}

// NarrateStoryRequest asks for one batch of paragraph audio
type NarrateStoryRequest struct {
	StoryID string `json:"storyId" binding:"required,uuid"`
	VoiceID string `json:"voiceId" binding:"required,voiceid"`
}

// VoiceAccessResponse describes which voices the account can reach
type VoiceAccessResponse struct {
	IsPremium      bool    `json:"isPremium"`
	Unlimited      bool    `json:"unlimited"`
	DefaultVoiceID string  `json:"defaultVoiceId"`
	LockedVoiceID  *string `json:"lockedVoiceId"`
	// MaxVoices is -1 for unlimited
	MaxVoices int `json:"maxVoices"`
	// QuotaRemaining is -1 for unlimited
	QuotaRemaining int64 `json:"quotaRemaining"`
	// ResetsAt is when the monthly quota starts over
	ResetsAt time.Time `json:"resetsAt"`
}

// NewVoiceAccessResponse converts a summary and remaining quota into the API shape
func NewVoiceAccessResponse(summary *voice.VoiceAccessSummary, remaining int64) VoiceAccessResponse {
	return VoiceAccessResponse{
		IsPremium:      summary.IsPremium,
		Unlimited:      summary.Unlimited,
		DefaultVoiceID: summary.DefaultVoiceID,
		LockedVoiceID:  summary.LockedVoiceID,
		MaxVoices:      summary.MaxVoices,
		QuotaRemaining: remaining,
		ResetsAt:       summary.ResetsAt,
	}
}

// PreferredVoiceResponse echoes the stored canonical voice
type PreferredVoiceResponse struct {
	VoiceID string `json:"voiceId"`
}

// NarratedParagraphResponse is one paragraph of a narration batch
type NarratedParagraphResponse struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	AudioURL string `json:"audioUrl"`
}

// NarrationResponse is the result of a narration batch.
// PreferredProvider and ProviderStatus are present only when a fallback or
// degraded provider chain served the batch.
type NarrationResponse struct {
	Paragraphs        []NarratedParagraphResponse `json:"paragraphs"`
	TotalParagraphs   int                         `json:"totalParagraphs"`
	WasTruncated      bool                        `json:"wasTruncated"`
	VoiceID           string                      `json:"voiceId"`
	UsedProvider      string                      `json:"usedProvider"`
	PreferredProvider string                      `json:"preferredProvider,omitempty"`
	ProviderStatus    string                      `json:"providerStatus,omitempty"`
}

// NewNarrationResponse converts narrated paragraphs and provider tags into the API shape
func NewNarrationResponse(
	paragraphs []voice.NarratedParagraph,
	total int,
	truncated bool,
	voiceID, usedProvider, preferredProvider string,
	status voice.ProviderStatus,
) NarrationResponse {
	items := make([]NarratedParagraphResponse, 0, len(paragraphs))
	for _, p := range paragraphs {
		items = append(items, NarratedParagraphResponse{
			Index:    p.Index,
			Text:     p.Text,
			AudioURL: p.AudioURL,
		})
	}
	return NarrationResponse{
		Paragraphs:        items,
		TotalParagraphs:   total,
		WasTruncated:      truncated,
		VoiceID:           voiceID,
		UsedProvider:      usedProvider,
		PreferredProvider: preferredProvider,
		ProviderStatus:    string(status),
	}
}
