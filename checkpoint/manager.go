package checkpoint

import (
	"github.com/rs/zerolog"

	"github.com/cascadeio/cascade/internal/logger"
)

// StatefulOperator is the slice of an operator the metadata subsystem needs:
// a stable id and the metadata value describing its current store topology.
type StatefulOperator interface {
	// OperatorID returns the operator's id, unique within the checkpoint
	// root and stable across restarts of the same query.
	OperatorID() int64
	// StateMetadata returns the metadata value describing the operator's
	// state store topology.
	StateMetadata() OperatorStateMetadata
}

// Manager persists and recovers operator state metadata for all stateful
// operators of one pipeline under one checkpoint root. Writers are created
// lazily per operator id; reads during a recovery pass are cached, which is
// safe because a committed record is immutable until the next commit of the
// same pipeline.
type Manager struct {
	checkpointRoot string
	writers        map[int64]*MetadataWriter
	recovered      map[int64]OperatorStateMetadata
	logger         zerolog.Logger
}

// NewManager creates a metadata manager for a checkpoint root.
func NewManager(checkpointRoot string) *Manager {
	return &Manager{
		checkpointRoot: checkpointRoot,
		writers:        make(map[int64]*MetadataWriter),
		recovered:      make(map[int64]OperatorStateMetadata),
		logger:         logger.GetLogger("checkpoint"),
	}
}

// Commit persists the current state metadata of every operator. Each
// operator owns a disjoint subtree of the checkpoint root, so a failure for
// one operator leaves the records of the others untouched; the first error
// aborts the commit.
func (m *Manager) Commit(operators []StatefulOperator) error {
	for _, op := range operators {
		writer, ok := m.writers[op.OperatorID()]
		if !ok {
			writer = NewMetadataWriter(m.checkpointRoot, op.OperatorID())
			m.writers[op.OperatorID()] = writer
		}
		if err := writer.Write(op.StateMetadata()); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the committed metadata for an operator id, reading it from
// the checkpoint root on first use and from the recovery cache afterwards.
// The boolean reports whether a record exists.
func (m *Manager) Lookup(operatorID int64) (OperatorStateMetadata, bool, error) {
	if md, ok := m.recovered[operatorID]; ok {
		return md, true, nil
	}

	md, found, err := NewMetadataReader(m.checkpointRoot, operatorID).Read()
	if err != nil {
		return OperatorStateMetadata{}, false, err
	}
	if !found {
		return OperatorStateMetadata{}, false, nil
	}

	m.recovered[operatorID] = md
	return md, true, nil
}
