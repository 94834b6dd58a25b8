package ports

import "context"

// EventPublisher emits the daemon's lifecycle events: session starts and
// ends, subscription sweeps, media cache clears. The payload is an already
// marshalled envelope; partitionKey keeps one identity's events in order on
// whatever broker backs the port.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
