package db

import (
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/cascadeio/cascade/internal/logger"
)

type badgerStore struct {
	open atomic.Bool

	dbPath string
	logger zerolog.Logger

	db *badger.DB
	mu sync.RWMutex
}

func newBadgerStore(c *Config) *badgerStore {
	return &badgerStore{
		dbPath: c.Dir,
		logger: logger.GetLogger("baddb"),
	}
}

// Open opens the database at the configured path, or in memory when no path
// is configured.
func (s *badgerStore) Open() error {
	opts := badger.DefaultOptions(s.dbPath).WithLogger(nil)
	if s.dbPath == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return err
	}
	s.db = db
	s.open.Store(true)
	s.logger.Debug().Str("path", s.dbPath).Msg("opened badger database")
	return nil
}

func (s *badgerStore) Set(key, val []byte) error {
	if !s.open.Load() {
		return ErrDBNotOpen
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		s.logger.Err(err).Msg("failed to set key")
		return err
	}
	return nil
}

func (s *badgerStore) Get(key []byte) ([]byte, error) {
	if !s.open.Load() {
		return nil, ErrDBNotOpen
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		s.logger.Err(err).Msg("failed to get key")
		return nil, err
	}
	return val, nil
}

func (s *badgerStore) Delete(key []byte) error {
	if !s.open.Load() {
		return ErrDBNotOpen
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *badgerStore) PrefixScan(prefix []byte, fn func(key, val []byte) error) error {
	if !s.open.Load() {
		return ErrDBNotOpen
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *badgerStore) Sync() error {
	if !s.open.Load() {
		return ErrDBNotOpen
	}
	if s.dbPath == "" {
		// In-memory instances have nothing to sync to.
		return nil
	}
	return s.db.Sync()
}

func (s *badgerStore) Close() error {
	if !s.open.Load() {
		return nil
	}
	s.open.Store(false)
	return s.db.Close()
}
