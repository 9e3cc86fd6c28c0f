package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedVersion is returned when a persisted metadata record
	// carries a format version this build does not understand.
	ErrUnsupportedVersion = errors.New("unsupported metadata format version")

	// ErrCorruptMetadata is returned when a persisted metadata record is
	// structurally invalid or fails post-decode validation.
	ErrCorruptMetadata = errors.New("corrupt operator state metadata")

	// ErrPersistence is returned when writing a metadata record to durable
	// storage fails. The previously committed record, if any, is untouched.
	ErrPersistence = errors.New("failed to persist operator state metadata")
)

const (
	// FormatVersion1 is the only metadata format version currently defined.
	FormatVersion1 = int32(1)

	// CurrentFormatVersion is the version new metadata records are written with.
	CurrentFormatVersion = FormatVersion1
)

// OperatorInfo identifies one stateful operator instance. The id is stable
// across restarts of the same query; the name identifies the operator kind,
// e.g. "stateStoreSave" or "symmetricHashJoin".
type OperatorInfo struct {
	OperatorID   int64
	OperatorName string
}

// StateStoreInfo describes one physical state store owned by an operator.
type StateStoreInfo struct {
	// StoreName is unique within the operator's store set.
	StoreName string
	// NumColsPrefixKey is the number of leading key columns used for
	// store-level prefix scans. 0 if prefix scans are unused.
	NumColsPrefixKey int32
	// NumPartitions must equal the shuffle partition count the store was
	// created with.
	NumPartitions int32
}

// OperatorStateMetadata is the durable record of an operator's state store
// topology: which stores exist and how they are shaped. It is written once
// per batch commit and read back on restart so the operator reconnects to
// the same physical layout. Values are immutable once written; a new write
// fully replaces the prior record.
type OperatorStateMetadata struct {
	Version      int32
	OperatorInfo OperatorInfo
	StateStores  []StateStoreInfo
}

// NewOperatorStateMetadata builds a current-version metadata value for the
// given operator and its store set. Store order is preserved as given.
func NewOperatorStateMetadata(info OperatorInfo, stores []StateStoreInfo) OperatorStateMetadata {
	return OperatorStateMetadata{
		Version:      CurrentFormatVersion,
		OperatorInfo: info,
		StateStores:  stores,
	}
}

// Validate checks the structural invariants of the metadata value. It does
// not check the version tag; the codec rejects unknown versions before the
// payload is ever interpreted.
func (m OperatorStateMetadata) Validate() error {
	if m.OperatorInfo.OperatorID < 0 {
		return fmt.Errorf("negative operator id %d", m.OperatorInfo.OperatorID)
	}
	if m.OperatorInfo.OperatorName == "" {
		return errors.New("empty operator name")
	}
	if len(m.StateStores) == 0 {
		return errors.New("operator owns no state stores")
	}
	seen := make(map[string]struct{}, len(m.StateStores))
	for _, store := range m.StateStores {
		if store.StoreName == "" {
			return errors.New("empty store name")
		}
		if _, ok := seen[store.StoreName]; ok {
			return fmt.Errorf("duplicate store name %q", store.StoreName)
		}
		seen[store.StoreName] = struct{}{}
		if store.NumColsPrefixKey < 0 {
			return fmt.Errorf("store %q: negative prefix key column count %d", store.StoreName, store.NumColsPrefixKey)
		}
		if store.NumPartitions <= 0 {
			return fmt.Errorf("store %q: non-positive partition count %d", store.StoreName, store.NumPartitions)
		}
	}
	return nil
}

// Equal reports whether two metadata values are field-for-field identical,
// including store order.
func (m OperatorStateMetadata) Equal(other OperatorStateMetadata) bool {
	if m.Version != other.Version || m.OperatorInfo != other.OperatorInfo {
		return false
	}
	if len(m.StateStores) != len(other.StateStores) {
		return false
	}
	for i, store := range m.StateStores {
		if store != other.StateStores[i] {
			return false
		}
	}
	return true
}
