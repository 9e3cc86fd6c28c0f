package stream

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/cascadeio/cascade/state"
)

// OperatorNameAggregate is the operator kind for streaming aggregation.
const OperatorNameAggregate = "stateStoreSave"

// AggregateOperator maintains a running count per key in a single store
// named "default". Every processed event emits the key's updated count.
type AggregateOperator struct {
	*BaseOperator
}

// NewAggregateOperator creates a streaming aggregation operator.
func NewAggregateOperator(id int64, cfg OperatorConfig) (*AggregateOperator, error) {
	op := &AggregateOperator{
		BaseOperator: newBaseOperator(id, OperatorNameAggregate, cfg),
	}
	if err := op.addStore("default", 0); err != nil {
		return nil, err
	}
	return op, nil
}

// ProcessBatch folds the batch into the per-key counts.
func (o *AggregateOperator) ProcessBatch(ctx context.Context, batch Batch) ([]Event, error) {
	store := o.store("default")
	out := make([]Event, 0, len(batch.Events))

	for _, event := range batch.Events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := [][]byte{event.Key}
		count, err := readCount(store, key)
		if err != nil {
			return nil, err
		}
		count++

		if err := store.Put(key, encodeCount(count)); err != nil {
			return nil, err
		}
		out = append(out, Event{
			Stream: event.Stream,
			Key:    event.Key,
			Value:  encodeCount(count),
			Time:   event.Time,
		})
	}

	o.logger.Debug().Int64("batch_id", batch.ID).Int("events", len(batch.Events)).Msg("aggregated batch")
	return out, nil
}

func readCount(store *state.Store, key [][]byte) (uint64, error) {
	val, err := store.Get(key)
	if errors.Is(err, state.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, errors.New("invalid count value in aggregate store")
	}
	return binary.BigEndian.Uint64(val), nil
}

func encodeCount(count uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count)
	return buf
}
