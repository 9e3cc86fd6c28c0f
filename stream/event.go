package stream

import "time"

// Event is one keyed record flowing through the pipeline.
type Event struct {
	// Stream is the logical input stream the event arrived on. Operators
	// that consume more than one stream (joins) route on it.
	Stream string
	Key    []byte
	Value  []byte
	Time   time.Time
}

// Batch is one micro-batch of events handed to the operators.
type Batch struct {
	ID     int64
	Events []Event
}
