package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/require"

	"github.com/cascadeio/cascade/sources"
	"github.com/cascadeio/cascade/stream"
)

// newTestConfig helper
func newTestConfig(t *testing.T) Config {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "pipetest-"+t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	cfg := DefaultConfig()
	cfg.CheckpointDir = filepath.Join(tmpDir, "checkpoint")
	cfg.DataDir = filepath.Join(tmpDir, "data")
	cfg.ShufflePartitions = 4
	cfg.BatchInterval = 10 * time.Millisecond
	return cfg
}

func newAggregatePipeline(t *testing.T, cfg Config, source sources.Source, sink stream.Sink) *Pipeline {
	t.Helper()
	op, err := stream.NewAggregateOperator(0, cfg.OperatorConfig())
	require.NoError(t, err)

	p, err := New(cfg, source, sink, op)
	require.NoError(t, err)
	return p
}

func Test_ConfigValidate(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.ShufflePartitions = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Backend = "rocksdb"
	require.Error(t, bad.Validate())

	bad = cfg
	bad.CheckpointDir = ""
	require.Error(t, bad.Validate())
}

func Test_LoadConfigFromFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cfgtest")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	cfgPath := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		"pipeline": {
			"checkpoint_dir": "/var/lib/cascade/checkpoint",
			"data_dir": "/var/lib/cascade/data",
			"shuffle_partitions": 32,
			"backend": "boltdb"
		}
	}`), 0644))

	ko := koanf.New(".")
	require.NoError(t, ko.Load(file.Provider(cfgPath), json.Parser()))

	cfg, err := LoadConfig(ko)
	require.NoError(t, err)
	require.Equal(t, 32, cfg.ShufflePartitions)
	require.Equal(t, "boltdb", cfg.Backend)
	require.Equal(t, DefaultConfig().BatchInterval, cfg.BatchInterval)
}

func Test_PipelineBatchCommitAndRecover(t *testing.T) {
	cfg := newTestConfig(t)

	source := sources.NewMemorySource()
	sink := stream.NewCollectSink()
	p := newAggregatePipeline(t, cfg, source, sink)

	require.NoError(t, p.Recover())
	require.NoError(t, p.RunBatch(context.Background(), []stream.Event{
		{Stream: "clicks", Key: []byte("user-1"), Value: []byte("a"), Time: time.Now()},
		{Stream: "clicks", Key: []byte("user-1"), Value: []byte("b"), Time: time.Now()},
	}))
	require.Len(t, sink.Events(), 2)
	require.NoError(t, p.Close())

	// Same layout: recovery succeeds after a full stop/start cycle.
	restarted := newAggregatePipeline(t, cfg, sources.NewMemorySource(), stream.NewCollectSink())
	require.NoError(t, restarted.Recover())
	require.NoError(t, restarted.Close())
}

func Test_RecoverRejectsPartitionChange(t *testing.T) {
	cfg := newTestConfig(t)

	p := newAggregatePipeline(t, cfg, sources.NewMemorySource(), stream.NewCollectSink())
	require.NoError(t, p.Recover())
	require.NoError(t, p.RunBatch(context.Background(), []stream.Event{
		{Stream: "clicks", Key: []byte("user-1"), Time: time.Now()},
	}))
	require.NoError(t, p.Close())

	reshaped := cfg
	reshaped.ShufflePartitions = 8
	restarted := newAggregatePipeline(t, reshaped, sources.NewMemorySource(), stream.NewCollectSink())
	defer restarted.Close()

	err := restarted.Recover()
	require.ErrorIs(t, err, ErrPartitionMismatch)
}

func Test_RecoverRejectsOperatorKindChange(t *testing.T) {
	cfg := newTestConfig(t)

	p := newAggregatePipeline(t, cfg, sources.NewMemorySource(), stream.NewCollectSink())
	require.NoError(t, p.Recover())
	require.NoError(t, p.RunBatch(context.Background(), []stream.Event{
		{Stream: "clicks", Key: []byte("user-1"), Time: time.Now()},
	}))
	require.NoError(t, p.Close())

	// Same operator id, different kind: the persisted topology no longer
	// describes the running operator.
	join, err := stream.NewJoinOperator(0, cfg.OperatorConfig(), "impressions", "clicks")
	require.NoError(t, err)
	restarted, err := New(cfg, sources.NewMemorySource(), stream.NewCollectSink(), join)
	require.NoError(t, err)
	defer restarted.Close()

	err = restarted.Recover()
	require.ErrorIs(t, err, ErrTopologyMismatch)
}

func Test_RunDrainsSourceAndStops(t *testing.T) {
	cfg := newTestConfig(t)

	source := sources.NewMemorySource()
	source.Push(
		stream.Event{Stream: "clicks", Key: []byte("user-1"), Time: time.Now()},
		stream.Event{Stream: "clicks", Key: []byte("user-2"), Time: time.Now()},
	)
	sink := stream.NewCollectSink()
	p := newAggregatePipeline(t, cfg, source, sink)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.Events()) == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func Test_NewRejectsDuplicateOperatorIDs(t *testing.T) {
	cfg := newTestConfig(t)

	first, err := stream.NewAggregateOperator(0, cfg.OperatorConfig())
	require.NoError(t, err)
	defer first.Close()
	altCfg := cfg
	altCfg.DataDir = cfg.DataDir + "-alt"
	second, err := stream.NewStatefulMapOperator(0, altCfg.OperatorConfig(),
		func(key []byte, events []stream.Event, prior []byte) ([]byte, []stream.Event, error) {
			return prior, nil, nil
		})
	require.NoError(t, err)
	defer second.Close()

	_, err = New(cfg, sources.NewMemorySource(), stream.NewCollectSink(), first, second)
	require.Error(t, err)
}
