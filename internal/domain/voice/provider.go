package voice

import "context"

// ProviderNone is reported when no vendor was called
const ProviderNone = "none"

// ProviderStatus is a soft health hint attached to a successful synthesis
type ProviderStatus string

// ProviderStatusDegraded marks a result served by a fallback or unhealthy chain.
// A healthy result carries an empty status.
const ProviderStatusDegraded ProviderStatus = "degraded"

// SynthesisRequest is the vendor-neutral input to a speech provider
type SynthesisRequest struct {
	Text string
	// VoiceID is always a canonical vendor-native id
	VoiceID  string
	Language string
}

// Audio is synthesized speech
type Audio struct {
	Data        []byte
	ContentType string
}

// SpeechProvider turns text into audio using one vendor
type SpeechProvider interface {
	// Name returns the stable provider name used in configuration and results
	Name() string
	// Synthesize returns audio for the request or an error
	Synthesize(ctx context.Context, req SynthesisRequest) (*Audio, error)
}

// ProviderResult describes the outcome of one synthesis after failover
type ProviderResult struct {
	Audio        *Audio
	UsedProvider string
	// PreferredProvider is set only when a fallback provider served the request
	PreferredProvider string
	// ProviderStatus is empty when the preferred provider served a healthy chain
	ProviderStatus ProviderStatus
	// Attempted lists the providers actually called, in order
	Attempted []string
}

// IsFallback reports whether a provider other than the preferred one served the request
func (r *ProviderResult) IsFallback() bool {
	return r.PreferredProvider != ""
}

// IsDegraded reports whether the result carries the degraded hint
func (r *ProviderResult) IsDegraded() bool {
	return r.ProviderStatus == ProviderStatusDegraded
}
