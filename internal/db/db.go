package db

import (
	"errors"
	"fmt"
)

var (
	// ErrDBNotOpen is returned when an operation is attempted before Open.
	ErrDBNotOpen = errors.New("database is not open")

	// ErrKeyNotFound is returned when a key has no value.
	ErrKeyNotFound = errors.New("key not found")
)

// Config holds the location of an embedded database. An empty Dir opens an
// in-memory instance where the engine supports it.
type Config struct {
	Dir string
}

// DbStore is the embedded key-value engine behind an operator state store.
type DbStore interface {
	Open() error

	Get(key []byte) ([]byte, error)

	Set(key, val []byte) error

	Delete(key []byte) error

	// PrefixScan visits every key with the given prefix in ascending key
	// order. Returning an error from fn aborts the scan.
	PrefixScan(prefix []byte, fn func(key, val []byte) error) error

	// Sync flushes buffered writes to durable storage.
	Sync() error

	Close() error
}

// New creates a store of the requested engine type. Supported types are
// "badgerdb" and "boltdb".
func New(dbType string, config *Config) (DbStore, error) {
	switch dbType {
	case "badgerdb":
		return newBadgerStore(config), nil
	case "boltdb":
		return newBoltStore(config), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}
