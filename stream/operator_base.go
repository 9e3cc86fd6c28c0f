package stream

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cascadeio/cascade/checkpoint"
	"github.com/cascadeio/cascade/internal/logger"
	"github.com/cascadeio/cascade/state"
)

// BaseOperator carries the id, the state stores, and the metadata plumbing
// shared by all operator kinds. Store order is insertion order and is
// preserved in the persisted metadata.
type BaseOperator struct {
	id     int64
	name   string
	cfg    OperatorConfig
	stores map[string]*state.Store
	order  []string
	logger zerolog.Logger
}

func newBaseOperator(id int64, name string, cfg OperatorConfig) *BaseOperator {
	return &BaseOperator{
		id:     id,
		name:   name,
		cfg:    cfg,
		stores: make(map[string]*state.Store),
		logger: logger.GetLogger("stream").With().Int64("operator_id", id).Str("operator", name).Logger(),
	}
}

// addStore opens a state store owned by this operator.
func (o *BaseOperator) addStore(storeName string, numColsPrefixKey int) error {
	if _, ok := o.stores[storeName]; ok {
		return fmt.Errorf("duplicate store name %q", storeName)
	}
	store, err := state.NewStore(state.Config{
		OperatorID:       o.id,
		StoreName:        storeName,
		NumPartitions:    o.cfg.NumPartitions,
		NumColsPrefixKey: numColsPrefixKey,
		Backend:          o.cfg.Backend,
		Dir:              o.cfg.DataDir,
	})
	if err != nil {
		return err
	}
	o.stores[storeName] = store
	o.order = append(o.order, storeName)
	return nil
}

func (o *BaseOperator) store(storeName string) *state.Store {
	return o.stores[storeName]
}

// OperatorID returns the operator's stable id.
func (o *BaseOperator) OperatorID() int64 {
	return o.id
}

// Name returns the operator kind.
func (o *BaseOperator) Name() string {
	return o.name
}

// StateMetadata builds the metadata value describing the operator's current
// store topology, stores in insertion order.
func (o *BaseOperator) StateMetadata() checkpoint.OperatorStateMetadata {
	infos := make([]checkpoint.StateStoreInfo, 0, len(o.order))
	for _, storeName := range o.order {
		infos = append(infos, o.stores[storeName].Info())
	}
	return checkpoint.NewOperatorStateMetadata(
		checkpoint.OperatorInfo{OperatorID: o.id, OperatorName: o.name},
		infos,
	)
}

// Commit flushes every store owned by the operator.
func (o *BaseOperator) Commit() error {
	for _, storeName := range o.order {
		if err := o.stores[storeName].Commit(); err != nil {
			return fmt.Errorf("failed to commit store %q: %w", storeName, err)
		}
	}
	return nil
}

// Close closes every store owned by the operator.
func (o *BaseOperator) Close() error {
	var firstErr error
	for _, storeName := range o.order {
		if err := o.stores[storeName].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
