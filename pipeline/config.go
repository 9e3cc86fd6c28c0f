package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/cascadeio/cascade/stream"
)

// Config holds the runtime parameters of one pipeline.
type Config struct {
	// CheckpointDir is the durable root all recovery metadata lives under.
	CheckpointDir string `koanf:"checkpoint_dir"`
	// DataDir is the directory root for the operators' state store engines.
	DataDir string `koanf:"data_dir"`
	// ShufflePartitions is the parallelism state stores are partitioned
	// with. Must stay identical across restarts; recovery enforces this.
	ShufflePartitions int `koanf:"shuffle_partitions"`
	// Backend selects the embedded state engine: "badgerdb" or "boltdb".
	Backend string `koanf:"backend"`
	// BatchInterval is the pause between source polls when no data is
	// available.
	BatchInterval time.Duration `koanf:"batch_interval"`
	// MaxBatchSize caps the number of events per micro-batch.
	MaxBatchSize int `koanf:"max_batch_size"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ShufflePartitions: 200,
		Backend:           "badgerdb",
		BatchInterval:     time.Second,
		MaxBatchSize:      10000,
	}
}

// LoadConfig reads the "pipeline" section of the loaded config over the
// defaults.
func LoadConfig(ko *koanf.Koanf) (Config, error) {
	cfg := DefaultConfig()
	if err := ko.Unmarshal("pipeline", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal pipeline config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.CheckpointDir == "" {
		return errors.New("checkpoint directory is required")
	}
	if c.DataDir == "" {
		return errors.New("data directory is required")
	}
	if c.ShufflePartitions <= 0 {
		return fmt.Errorf("invalid shuffle partition count: %d", c.ShufflePartitions)
	}
	if c.Backend != "badgerdb" && c.Backend != "boltdb" {
		return fmt.Errorf("unsupported state backend %q", c.Backend)
	}
	if c.BatchInterval <= 0 {
		return errors.New("batch interval must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return errors.New("max batch size must be positive")
	}
	return nil
}

// OperatorConfig derives the runtime parameters operators build their state
// stores with.
func (c *Config) OperatorConfig() stream.OperatorConfig {
	return stream.OperatorConfig{
		NumPartitions: c.ShufflePartitions,
		Backend:       c.Backend,
		DataDir:       c.DataDir,
	}
}
