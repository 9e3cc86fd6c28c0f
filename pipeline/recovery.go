package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrPartitionMismatch is returned when recovered metadata records a
	// partition count different from the configured shuffle partitions.
	// Running anyway would merge or split state across the wrong workers.
	ErrPartitionMismatch = errors.New("state store partition count does not match configured shuffle partitions")

	// ErrTopologyMismatch is returned when recovered metadata disagrees
	// with the operator's current store topology.
	ErrTopologyMismatch = errors.New("recovered state metadata does not match operator topology")
)

// Recover reads the persisted state metadata of every operator and validates
// it against the operator's runtime expectations. An operator with no
// persisted metadata is a first run and passes; any mismatch is a hard
// startup error, never silently papered over, because running against a
// reshaped store layout corrupts recovered state.
func (p *Pipeline) Recover() error {
	for _, op := range p.operators {
		recovered, found, err := p.manager.Lookup(op.OperatorID())
		if err != nil {
			return fmt.Errorf("failed to recover metadata for operator %d: %w", op.OperatorID(), err)
		}
		if !found {
			p.logger.Info().Int64("operator_id", op.OperatorID()).Str("operator", op.Name()).
				Msg("no persisted state metadata, first run")
			continue
		}

		if recovered.OperatorInfo.OperatorName != op.Name() {
			return fmt.Errorf("%w: operator %d persisted as %q, running as %q",
				ErrTopologyMismatch, op.OperatorID(), recovered.OperatorInfo.OperatorName, op.Name())
		}

		expected := op.StateMetadata()
		if len(recovered.StateStores) != len(expected.StateStores) {
			return fmt.Errorf("%w: operator %d persisted %d stores, expects %d",
				ErrTopologyMismatch, op.OperatorID(), len(recovered.StateStores), len(expected.StateStores))
		}

		for i, store := range recovered.StateStores {
			want := expected.StateStores[i]
			if store.StoreName != want.StoreName {
				return fmt.Errorf("%w: operator %d store %d persisted as %q, expects %q",
					ErrTopologyMismatch, op.OperatorID(), i, store.StoreName, want.StoreName)
			}
			if store.NumColsPrefixKey != want.NumColsPrefixKey {
				return fmt.Errorf("%w: operator %d store %q persisted with %d prefix key columns, expects %d",
					ErrTopologyMismatch, op.OperatorID(), store.StoreName, store.NumColsPrefixKey, want.NumColsPrefixKey)
			}
			if int(store.NumPartitions) != p.cfg.ShufflePartitions {
				return fmt.Errorf("%w: operator %d store %q created with %d partitions, configured with %d",
					ErrPartitionMismatch, op.OperatorID(), store.StoreName, store.NumPartitions, p.cfg.ShufflePartitions)
			}
		}

		p.logger.Info().Int64("operator_id", op.OperatorID()).Str("operator", op.Name()).
			Int("stores", len(recovered.StateStores)).Msg("recovered operator state metadata")
	}
	return nil
}
