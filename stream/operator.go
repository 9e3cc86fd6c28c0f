package stream

import (
	"context"

	"github.com/cascadeio/cascade/checkpoint"
)

// Operator is a stateful pipeline stage. An operator owns one or more
// persistent state stores whose topology is fixed at construction and
// persisted as metadata at every batch commit.
type Operator interface {
	// OperatorID returns the operator's id, stable across restarts.
	OperatorID() int64
	// Name returns the operator kind, e.g. "stateStoreSave".
	Name() string
	// StateMetadata returns the metadata value describing the operator's
	// store topology.
	StateMetadata() checkpoint.OperatorStateMetadata
	// ProcessBatch runs one micro-batch through the operator and returns
	// the emitted events.
	ProcessBatch(ctx context.Context, batch Batch) ([]Event, error)
	// Commit flushes the operator's state stores at the end of a batch.
	Commit() error
	Close() error
}

// OperatorConfig carries the runtime parameters every operator builds its
// stores with.
type OperatorConfig struct {
	// NumPartitions is the shuffle partition count for all of the
	// operator's stores.
	NumPartitions int
	// Backend selects the embedded state engine: "badgerdb" or "boltdb".
	Backend string
	// DataDir is the directory root state store engines live under.
	DataDir string
}
