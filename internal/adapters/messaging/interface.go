package messaging

import "context"

// Producer publishes fire-and-forget messages to the async pipeline.
type Producer interface {
	Produce(ctx context.Context, payload []byte) error
	Close() error
}
