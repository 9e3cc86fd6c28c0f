package state

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/cascadeio/cascade/checkpoint"
	"github.com/cascadeio/cascade/internal/db"
	"github.com/cascadeio/cascade/internal/logger"
	"github.com/cascadeio/cascade/internal/partitioner"
)

var (
	// ErrNotFound is returned when a key has no value in the store.
	ErrNotFound = errors.New("state key not found")
)

// Config describes one physical state store owned by an operator.
type Config struct {
	OperatorID int64
	StoreName  string
	// NumPartitions is the shuffle partition count keys are spread over.
	// It must stay identical across restarts; recovery enforces this.
	NumPartitions int
	// NumColsPrefixKey is the number of leading key columns prefix scans
	// run over. 0 disables prefix scans for the store.
	NumColsPrefixKey int
	// Backend selects the embedded engine: "badgerdb" or "boltdb".
	Backend string
	// Dir is the data directory root the store's engine lives under.
	Dir string
}

// Store is a partitioned key-value state store. Keys are column tuples; the
// first column routes the key to a partition, so every key sharing a first
// column lands in the same partition and a prefix scan stays local to it.
type Store struct {
	cfg    Config
	db     db.DbStore
	logger zerolog.Logger
}

// NewStore opens the store's embedded engine under
// <dir>/<operatorId>/<storeName>.
func NewStore(cfg Config) (*Store, error) {
	if cfg.StoreName == "" {
		return nil, errors.New("empty store name")
	}
	if cfg.NumPartitions <= 0 {
		return nil, fmt.Errorf("invalid partition count: %d", cfg.NumPartitions)
	}
	if cfg.NumColsPrefixKey < 0 {
		return nil, fmt.Errorf("invalid prefix key column count: %d", cfg.NumColsPrefixKey)
	}

	dir := filepath.Join(cfg.Dir, strconv.FormatInt(cfg.OperatorID, 10), cfg.StoreName)
	engine, err := db.New(cfg.Backend, &db.Config{Dir: dir})
	if err != nil {
		return nil, err
	}
	if err := engine.Open(); err != nil {
		return nil, fmt.Errorf("failed to open state store %q: %w", cfg.StoreName, err)
	}

	return &Store{
		cfg: cfg,
		db:  engine,
		logger: logger.GetLogger("state").With().
			Int64("operator_id", cfg.OperatorID).
			Str("store", cfg.StoreName).Logger(),
	}, nil
}

// Info returns the store's topology description for metadata persistence.
func (s *Store) Info() checkpoint.StateStoreInfo {
	return checkpoint.StateStoreInfo{
		StoreName:        s.cfg.StoreName,
		NumColsPrefixKey: int32(s.cfg.NumColsPrefixKey),
		NumPartitions:    int32(s.cfg.NumPartitions),
	}
}

// Put stores a value under a column-tuple key.
func (s *Store) Put(cols [][]byte, value []byte) error {
	key, err := s.physicalKey(cols)
	if err != nil {
		return err
	}
	return s.db.Set(key, value)
}

// Get returns the value under a column-tuple key, or ErrNotFound.
func (s *Store) Get(cols [][]byte) ([]byte, error) {
	key, err := s.physicalKey(cols)
	if err != nil {
		return nil, err
	}
	val, err := s.db.Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

// Delete removes the value under a column-tuple key. Deleting an absent key
// is a no-op.
func (s *Store) Delete(cols [][]byte) error {
	key, err := s.physicalKey(cols)
	if err != nil {
		return err
	}
	return s.db.Delete(key)
}

// PrefixScan visits every key whose leading columns equal prefixCols. The
// store must have been configured with a matching prefix key column count.
func (s *Store) PrefixScan(prefixCols [][]byte, fn func(cols [][]byte, value []byte) error) error {
	if s.cfg.NumColsPrefixKey == 0 {
		return fmt.Errorf("store %q does not support prefix scans", s.cfg.StoreName)
	}
	if len(prefixCols) != s.cfg.NumColsPrefixKey {
		return fmt.Errorf("store %q expects %d prefix key columns, got %d",
			s.cfg.StoreName, s.cfg.NumColsPrefixKey, len(prefixCols))
	}

	partition, err := partitioner.PartitionFor(prefixCols[0], s.cfg.NumPartitions)
	if err != nil {
		return err
	}
	prefix := encodeKey(partition, prefixCols)

	return s.db.PrefixScan(prefix, func(key, val []byte) error {
		cols, err := decodeKey(key)
		if err != nil {
			return err
		}
		return fn(cols, val)
	})
}

// Commit flushes buffered writes to durable storage.
func (s *Store) Commit() error {
	return s.db.Sync()
}

// Close closes the underlying engine.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) physicalKey(cols [][]byte) ([]byte, error) {
	if len(cols) == 0 {
		return nil, errors.New("empty key")
	}
	partition, err := partitioner.PartitionFor(cols[0], s.cfg.NumPartitions)
	if err != nil {
		return nil, err
	}
	return encodeKey(partition, cols), nil
}
