package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cascadeio/cascade/checkpoint"
	"github.com/cascadeio/cascade/internal/logger"
	"github.com/cascadeio/cascade/sources"
	"github.com/cascadeio/cascade/stream"
)

// Pipeline drives stateful operators over repeated micro-batches. At the end
// of every batch it commits the operators' state stores and persists each
// operator's state metadata; on startup it recovers that metadata and
// refuses to run against a store layout that no longer matches.
type Pipeline struct {
	cfg       Config
	source    sources.Source
	sink      stream.Sink
	operators []stream.Operator
	manager   *checkpoint.Manager
	nextBatch int64
	logger    zerolog.Logger
}

// New assembles a pipeline from a source, a chain of operators, and a sink.
func New(cfg Config, source sources.Source, sink stream.Sink, operators ...stream.Operator) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(operators) == 0 {
		return nil, fmt.Errorf("pipeline needs at least one operator")
	}

	seen := make(map[int64]struct{}, len(operators))
	for _, op := range operators {
		if _, ok := seen[op.OperatorID()]; ok {
			return nil, fmt.Errorf("duplicate operator id %d", op.OperatorID())
		}
		seen[op.OperatorID()] = struct{}{}
	}

	return &Pipeline{
		cfg:       cfg,
		source:    source,
		sink:      sink,
		operators: operators,
		manager:   checkpoint.NewManager(cfg.CheckpointDir),
		logger:    logger.GetLogger("pipeline"),
	}, nil
}

// Run recovers operator state metadata, then loops: poll a micro-batch from
// the source, run it through the operator chain, deliver emitted events to
// the sink, and commit state and metadata. Returns when the context is
// cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Recover(); err != nil {
		return err
	}
	if err := p.source.Open(ctx); err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	p.logger.Info().Int("operators", len(p.operators)).Msg("pipeline running")
	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info().Msg("pipeline stopping")
			return nil
		}

		events, err := p.source.Poll(ctx, p.cfg.MaxBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to poll source: %w", err)
		}
		if len(events) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.cfg.BatchInterval):
			}
			continue
		}

		if err := p.RunBatch(ctx, events); err != nil {
			return err
		}
	}
}

// RunBatch runs one micro-batch through the operator chain and commits it.
func (p *Pipeline) RunBatch(ctx context.Context, events []stream.Event) error {
	batch := stream.Batch{ID: p.nextBatch, Events: events}

	current := events
	for _, op := range p.operators {
		out, err := op.ProcessBatch(ctx, stream.Batch{ID: batch.ID, Events: current})
		if err != nil {
			return fmt.Errorf("operator %d (%s) failed on batch %d: %w", op.OperatorID(), op.Name(), batch.ID, err)
		}
		current = out
	}

	if p.sink != nil {
		if err := p.sink.Write(ctx, current); err != nil {
			return fmt.Errorf("sink failed on batch %d: %w", batch.ID, err)
		}
	}

	if err := p.commit(batch.ID); err != nil {
		return err
	}

	p.nextBatch++
	p.logger.Debug().Int64("batch_id", batch.ID).Int("in", len(events)).Int("out", len(current)).Msg("committed batch")
	return nil
}

// commit flushes operator state and persists every operator's state
// metadata. A metadata write failure fails the batch: proceeding without
// durable metadata would make the operator unrecoverable after a restart.
func (p *Pipeline) commit(batchID int64) error {
	stateful := make([]checkpoint.StatefulOperator, 0, len(p.operators))
	for _, op := range p.operators {
		if err := op.Commit(); err != nil {
			return fmt.Errorf("operator %d failed to commit state for batch %d: %w", op.OperatorID(), batchID, err)
		}
		stateful = append(stateful, op)
	}
	return p.manager.Commit(stateful)
}

// Close closes the operators, the source, and the sink.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, op := range p.operators {
		if err := op.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := p.source.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if p.sink != nil {
		if err := p.sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
