package sources

import (
	"context"

	"github.com/cascadeio/cascade/stream"
)

// Source supplies micro-batches of events to a pipeline.
type Source interface {
	// Open connects the source.
	Open(ctx context.Context) error
	// Poll returns the next micro-batch, up to max events. An empty batch
	// means no data is currently available.
	Poll(ctx context.Context, max int) ([]stream.Event, error)
	// Close closes the source.
	Close() error
}
