package stream

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cascadeio/cascade/state"
)

// OperatorNameJoin is the operator kind for stream-stream joins.
const OperatorNameJoin = "symmetricHashJoin"

// Per-side store names. Each side buffers its input rows keyed by join key
// and arrival index so late rows from the other side can still match.
const (
	storeLeftKeyToNumValues       = "left-keyToNumValues"
	storeLeftKeyWithIndexToValue  = "left-keyWithIndexToValue"
	storeRightKeyToNumValues      = "right-keyToNumValues"
	storeRightKeyWithIndexToValue = "right-keyWithIndexToValue"
)

// JoinOperator is an equi-join between two input streams. It owns four
// stores: per side, the number of buffered rows per key and the rows
// themselves keyed by (key, index).
type JoinOperator struct {
	*BaseOperator
	leftStream  string
	rightStream string
}

// NewJoinOperator creates a stream-stream join operator joining the two
// named input streams on event key.
func NewJoinOperator(id int64, cfg OperatorConfig, leftStream, rightStream string) (*JoinOperator, error) {
	op := &JoinOperator{
		BaseOperator: newBaseOperator(id, OperatorNameJoin, cfg),
		leftStream:   leftStream,
		rightStream:  rightStream,
	}
	for _, storeName := range []string{storeLeftKeyToNumValues, storeLeftKeyWithIndexToValue,
		storeRightKeyToNumValues, storeRightKeyWithIndexToValue} {
		prefixCols := 0
		if storeName == storeLeftKeyWithIndexToValue || storeName == storeRightKeyWithIndexToValue {
			prefixCols = 1
		}
		if err := op.addStore(storeName, prefixCols); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// ProcessBatch buffers each event on its own side and emits one joined event
// per match against the rows buffered on the opposite side.
func (o *JoinOperator) ProcessBatch(ctx context.Context, batch Batch) ([]Event, error) {
	var out []Event

	for _, event := range batch.Events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var ownNum, ownRows, otherRows *state.Store
		switch event.Stream {
		case o.leftStream:
			ownNum, ownRows = o.store(storeLeftKeyToNumValues), o.store(storeLeftKeyWithIndexToValue)
			otherRows = o.store(storeRightKeyWithIndexToValue)
		case o.rightStream:
			ownNum, ownRows = o.store(storeRightKeyToNumValues), o.store(storeRightKeyWithIndexToValue)
			otherRows = o.store(storeLeftKeyWithIndexToValue)
		default:
			return nil, fmt.Errorf("event from unknown stream %q", event.Stream)
		}

		if err := o.buffer(ownNum, ownRows, event); err != nil {
			return nil, err
		}

		matches, err := o.matches(otherRows, event)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}

	o.logger.Debug().Int64("batch_id", batch.ID).Int("events", len(batch.Events)).Int("joined", len(out)).Msg("joined batch")
	return out, nil
}

func (o *JoinOperator) buffer(numStore, rowStore *state.Store, event Event) error {
	key := [][]byte{event.Key}
	n, err := readCount(numStore, key)
	if err != nil {
		return err
	}

	index := make([]byte, 8)
	binary.BigEndian.PutUint64(index, n)
	if err := rowStore.Put([][]byte{event.Key, index}, event.Value); err != nil {
		return err
	}
	return numStore.Put(key, encodeCount(n+1))
}

func (o *JoinOperator) matches(rowStore *state.Store, event Event) ([]Event, error) {
	var out []Event
	err := rowStore.PrefixScan([][]byte{event.Key}, func(cols [][]byte, val []byte) error {
		joined := make([]byte, 0, len(event.Value)+len(val)+1)
		joined = append(joined, event.Value...)
		joined = append(joined, '|')
		joined = append(joined, val...)
		out = append(out, Event{
			Stream: o.leftStream,
			Key:    event.Key,
			Value:  joined,
			Time:   event.Time,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
