package stream

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cascadeio/cascade/internal/logger"
)

// Sink receives the events emitted by the last operator of a pipeline.
type Sink interface {
	// Write delivers one batch worth of emitted events.
	Write(ctx context.Context, events []Event) error
	// Close closes the sink.
	Close() error
}

// LogSink is a sink that logs emitted events. Useful for local runs and
// tests.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink() *LogSink {
	return &LogSink{logger: logger.GetLogger("sink")}
}

// Write logs each event.
func (s *LogSink) Write(ctx context.Context, events []Event) error {
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.logger.Info().
			Str("stream", event.Stream).
			Bytes("key", event.Key).
			Bytes("value", event.Value).
			Msg("emitted event")
	}
	return nil
}

// Close closes the sink.
func (s *LogSink) Close() error {
	return nil
}

// CollectSink buffers emitted events in memory. Test helper sink.
type CollectSink struct {
	mu     sync.Mutex
	events []Event
}

// NewCollectSink creates a new CollectSink.
func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

// Write appends the events to the buffer.
func (s *CollectSink) Write(ctx context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a snapshot of the buffered events.
func (s *CollectSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Close closes the sink.
func (s *CollectSink) Close() error {
	return nil
}
