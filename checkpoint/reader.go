package checkpoint

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/cascadeio/cascade/internal/logger"
)

// MetadataReader recovers the last-committed state-store metadata of one
// operator. Absence of a record is not an error: a first run, or a legacy
// checkpoint predating metadata persistence, has nothing on disk yet. Any
// record that exists but cannot be decoded and validated is surfaced as a
// hard error, never substituted with a default, because recovering with the
// wrong store topology silently corrupts query results.
type MetadataReader struct {
	checkpointRoot string
	operatorID     int64
	logger         zerolog.Logger
}

// NewMetadataReader creates a reader bound to one operator id.
func NewMetadataReader(checkpointRoot string, operatorID int64) *MetadataReader {
	return &MetadataReader{
		checkpointRoot: checkpointRoot,
		operatorID:     operatorID,
		logger:         logger.GetLogger("checkpoint").With().Int64("operator_id", operatorID).Logger(),
	}
}

// Read returns the current metadata record for this reader's operator id.
// The second return value reports whether a record exists; when false, the
// error is nil and the metadata value is the zero value.
func (r *MetadataReader) Read() (OperatorStateMetadata, bool, error) {
	path := MetadataFilePath(r.checkpointRoot, r.operatorID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Debug().Str("path", path).Msg("no operator state metadata found")
			return OperatorStateMetadata{}, false, nil
		}
		return OperatorStateMetadata{}, false, fmt.Errorf("%w: failed to read metadata file: %v", ErrCorruptMetadata, err)
	}

	m, err := decodeMetadata(data)
	if err != nil {
		return OperatorStateMetadata{}, false, err
	}

	// Do not trust codec output blindly: the payload must describe this
	// operator and satisfy the structural invariants.
	if m.OperatorInfo.OperatorID != r.operatorID {
		return OperatorStateMetadata{}, false, fmt.Errorf("%w: metadata describes operator %d, expected %d",
			ErrCorruptMetadata, m.OperatorInfo.OperatorID, r.operatorID)
	}
	if err := m.Validate(); err != nil {
		return OperatorStateMetadata{}, false, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}

	r.logger.Debug().
		Str("operator_name", m.OperatorInfo.OperatorName).
		Int("stores", len(m.StateStores)).
		Msg("recovered operator state metadata")
	return m, true, nil
}

// ListOperators returns the operator ids that have a state subtree under the
// checkpoint root, in ascending order. Directories that are not numeric
// operator ids are ignored.
func ListOperators(checkpointRoot string) ([]int64, error) {
	entries, err := os.ReadDir(StateDir(checkpointRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list operator state directories: %w", err)
	}

	var ids []int64
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil || id < 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
