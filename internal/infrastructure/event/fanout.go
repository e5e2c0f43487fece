package event

import (
	"context"
	"errors"

	"github.com/storyvoice/backend/internal/domain/shared"
)

// FanOutPublisher publishes every event to all of its publishers. A failing
// publisher does not stop the rest; the joined error is returned.
type FanOutPublisher struct {
	publishers []shared.EventPublisher
}

// NewFanOutPublisher creates a publisher over publishers, skipping nils
func NewFanOutPublisher(publishers ...shared.EventPublisher) *FanOutPublisher {
	f := &FanOutPublisher{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Publish implements shared.EventPublisher
func (f *FanOutPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
