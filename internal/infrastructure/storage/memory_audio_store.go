package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
)

// MemoryAudioStore keeps audio in process memory.
// Use it for development when no object storage is configured; contents are lost on restart.
type MemoryAudioStore struct {
	mu      sync.RWMutex
	objects map[string]voice.Audio
	baseURL string
}

// NewMemoryAudioStore creates an empty store whose URLs start with baseURL
func NewMemoryAudioStore(baseURL string) *MemoryAudioStore {
	return &MemoryAudioStore{
		objects: make(map[string]voice.Audio),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// PutAudio implements voice.AudioStore
func (m *MemoryAudioStore) PutAudio(_ context.Context, key string, audio *voice.Audio) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	if audio == nil || len(audio.Data) == 0 {
		return "", errors.New("audio is empty")
	}

	data := make([]byte, len(audio.Data))
	copy(data, audio.Data)

	m.mu.Lock()
	m.objects[key] = voice.Audio{Data: data, ContentType: audio.ContentType}
	m.mu.Unlock()

	return m.baseURL + "/" + key, nil
}

// GetAudio returns the stored audio for key, or shared.ErrNotFound
func (m *MemoryAudioStore) GetAudio(_ context.Context, key string) (*voice.Audio, error) {
	m.mu.RLock()
	audio, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, shared.ErrNotFound.WithMessage("Audio not found")
	}
	return &audio, nil
}

// Len returns the number of stored objects
func (m *MemoryAudioStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
