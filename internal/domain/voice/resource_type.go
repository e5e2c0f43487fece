package voice

// ResourceType represents a metered resource tracked by the usage ledger
type ResourceType string

const (
	// ResourceSynthesis counts text-to-speech narration requests
	ResourceSynthesis ResourceType = "SYNTHESIS"

	// ResourceStoryGen counts generative story requests
	ResourceStoryGen ResourceType = "STORY_GEN"

	// ResourceImageGen counts generative illustration requests
	ResourceImageGen ResourceType = "IMAGE_GEN"
)

// String returns the string representation of ResourceType
func (r ResourceType) String() string {
	return string(r)
}

// IsValid returns true if the resource type is known
func (r ResourceType) IsValid() bool {
	switch r {
	case ResourceSynthesis, ResourceStoryGen, ResourceImageGen:
		return true
	}
	return false
}

// DisplayName returns a human-readable name
func (r ResourceType) DisplayName() string {
	switch r {
	case ResourceSynthesis:
		return "Narration"
	case ResourceStoryGen:
		return "Story Generation"
	case ResourceImageGen:
		return "Image Generation"
	default:
		return string(r)
	}
}

// AllResourceTypes returns every metered resource
func AllResourceTypes() []ResourceType {
	return []ResourceType{ResourceSynthesis, ResourceStoryGen, ResourceImageGen}
}
