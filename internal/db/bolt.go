package db

import (
	"bytes"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/cascadeio/cascade/internal/logger"
)

var stateBucket = []byte("state")

type boltStore struct {
	open atomic.Bool

	dbPath string
	logger zerolog.Logger

	db *bolt.DB
}

func newBoltStore(c *Config) *boltStore {
	return &boltStore{
		dbPath: c.Dir,
		logger: logger.GetLogger("boltdb"),
	}
}

func (s *boltStore) Open() error {
	if s.dbPath == "" {
		return ErrDBNotOpen
	}
	if err := os.MkdirAll(s.dbPath, 0755); err != nil {
		return err
	}

	db, err := bolt.Open(filepath.Join(s.dbPath, "state.db"), 0644, nil)
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.open.Store(true)
	s.logger.Debug().Str("path", s.dbPath).Msg("opened bolt database")
	return nil
}

func (s *boltStore) Set(key, val []byte) error {
	if !s.open.Load() {
		return ErrDBNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put(key, val)
	})
}

func (s *boltStore) Get(key []byte) ([]byte, error) {
	if !s.open.Load() {
		return nil, ErrDBNotOpen
	}

	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(stateBucket).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		val = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *boltStore) Delete(key []byte) error {
	if !s.open.Load() {
		return ErrDBNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Delete(key)
	})
}

func (s *boltStore) PrefixScan(prefix []byte, fn func(key, val []byte) error) error {
	if !s.open.Load() {
		return ErrDBNotOpen
	}
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(stateBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			key := append([]byte(nil), k...)
			val := append([]byte(nil), v...)
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) Sync() error {
	if !s.open.Load() {
		return ErrDBNotOpen
	}
	return s.db.Sync()
}

func (s *boltStore) Close() error {
	if !s.open.Load() {
		return nil
	}
	s.open.Store(false)
	return s.db.Close()
}
