package stream

import (
	"context"
	"errors"

	"github.com/cascadeio/cascade/state"
)

// OperatorNameStatefulMap is the operator kind for arbitrary-state
// processing.
const OperatorNameStatefulMap = "flatMapGroupsWithState"

// StateFunc is the user-supplied transition function of a StatefulMapOperator.
// It receives the events of one key within a batch and the key's prior state
// (nil on first sight), and returns the new state and any output events.
// Returning a nil new state removes the key's state.
type StateFunc func(key []byte, events []Event, prior []byte) (next []byte, output []Event, err error)

// StatefulMapOperator runs an arbitrary user state machine per key, backed
// by a single store named "default".
type StatefulMapOperator struct {
	*BaseOperator
	fn StateFunc
}

// NewStatefulMapOperator creates an arbitrary-state operator around the
// given transition function.
func NewStatefulMapOperator(id int64, cfg OperatorConfig, fn StateFunc) (*StatefulMapOperator, error) {
	if fn == nil {
		return nil, errors.New("nil state function")
	}
	op := &StatefulMapOperator{
		BaseOperator: newBaseOperator(id, OperatorNameStatefulMap, cfg),
		fn:           fn,
	}
	if err := op.addStore("default", 0); err != nil {
		return nil, err
	}
	return op, nil
}

// ProcessBatch groups the batch by key and runs the transition function once
// per key, preserving the batch's key encounter order.
func (o *StatefulMapOperator) ProcessBatch(ctx context.Context, batch Batch) ([]Event, error) {
	groups := make(map[string][]Event)
	var keyOrder [][]byte
	for _, event := range batch.Events {
		if _, ok := groups[string(event.Key)]; !ok {
			keyOrder = append(keyOrder, event.Key)
		}
		groups[string(event.Key)] = append(groups[string(event.Key)], event)
	}

	store := o.store("default")
	var out []Event
	for _, key := range keyOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prior, err := store.Get([][]byte{key})
		if errors.Is(err, state.ErrNotFound) {
			prior = nil
		} else if err != nil {
			return nil, err
		}

		next, output, err := o.fn(key, groups[string(key)], prior)
		if err != nil {
			return nil, err
		}

		if next == nil {
			if err := store.Delete([][]byte{key}); err != nil {
				return nil, err
			}
		} else if err := store.Put([][]byte{key}, next); err != nil {
			return nil, err
		}
		out = append(out, output...)
	}

	o.logger.Debug().Int64("batch_id", batch.ID).Int("keys", len(keyOrder)).Msg("processed stateful map batch")
	return out, nil
}
