package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/storyvoice/backend/internal/domain/shared"
)

// Serializer encodes domain events as JSON and decodes them back into the
// concrete type registered for their event type.
type Serializer struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewSerializer creates a serializer with no registered types
func NewSerializer() *Serializer {
	return &Serializer{types: make(map[string]reflect.Type)}
}

// Register associates eventType with the concrete type of prototype
func (s *Serializer) Register(eventType string, prototype shared.DomainEvent) {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s.mu.Lock()
	s.types[eventType] = t
	s.mu.Unlock()
}

// Encode marshals ev
func (s *Serializer) Encode(ev shared.DomainEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode unmarshals data into a new value of the type registered for eventType
func (s *Serializer) Decode(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.types[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
	}
	ev, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return ev, nil
}
