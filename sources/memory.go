package sources

import (
	"context"
	"sync"

	"github.com/cascadeio/cascade/stream"
)

// MemorySource serves events pushed into it from memory. Useful for local
// runs and tests.
type MemorySource struct {
	mu      sync.Mutex
	pending []stream.Event
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// Push queues events for the next Poll.
func (s *MemorySource) Push(events ...stream.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, events...)
}

// Open connects the source. No-op for memory.
func (s *MemorySource) Open(ctx context.Context) error {
	return nil
}

// Poll drains up to max queued events.
func (s *MemorySource) Poll(ctx context.Context, max int) ([]stream.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.pending)
	if n == 0 {
		return nil, nil
	}
	if max > 0 && n > max {
		n = max
	}
	batch := s.pending[:n]
	s.pending = s.pending[n:]
	return batch, nil
}

// Close closes the source.
func (s *MemorySource) Close() error {
	return nil
}
