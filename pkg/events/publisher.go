package events

import "context"

// EventPublisher publishes storage change events.
type EventPublisher interface {
	PublishChanged(ctx context.Context, event *StorageChangedEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing.
type NoOpPublisher struct{}

// PublishChanged is a no-op.
func (p *NoOpPublisher) PublishChanged(_ context.Context, _ *StorageChangedEvent) error {
	return nil
}

// CallbackPublisher hands every event to a callback.
type CallbackPublisher struct {
	callback func(ctx context.Context, event *StorageChangedEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *StorageChangedEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishChanged calls the callback.
func (p *CallbackPublisher) PublishChanged(ctx context.Context, event *StorageChangedEvent) error {
	return p.callback(ctx, event)
}
