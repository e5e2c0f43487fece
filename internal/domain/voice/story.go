package voice

import (
	"context"

	"github.com/google/uuid"
)

// Story is the read-only view of a story needed for narration
type Story struct {
	ID         uuid.UUID
	Title      string
	Language   string
	Paragraphs []string
}

// NarratedParagraph is one synthesized paragraph of a batch
type NarratedParagraph struct {
	Index    int
	Text     string
	AudioURL string
	// AudioKey is the object key in the audio store
	AudioKey string
}

// AudioStore persists synthesized audio and returns a URL clients can fetch
type AudioStore interface {
	PutAudio(ctx context.Context, key string, audio *Audio) (string, error)
}
