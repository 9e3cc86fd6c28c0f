package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cascadeio/cascade/internal/logger"
)

// MetadataWriter durably persists the state-store metadata of one operator
// under a checkpoint root. A write stages the encoded record to a temporary
// file and commits it with a single atomic rename, so a crash mid-write
// leaves the previously committed record intact and a concurrent reader
// never observes a partial file.
type MetadataWriter struct {
	checkpointRoot string
	operatorID     int64
	logger         zerolog.Logger
}

// NewMetadataWriter creates a writer bound to one operator id.
func NewMetadataWriter(checkpointRoot string, operatorID int64) *MetadataWriter {
	return &MetadataWriter{
		checkpointRoot: checkpointRoot,
		operatorID:     operatorID,
		logger:         logger.GetLogger("checkpoint").With().Int64("operator_id", operatorID).Logger(),
	}
}

// Write persists the metadata value as the current record for this writer's
// operator id, fully replacing any prior record. On failure the prior record
// is left untouched and the error wraps ErrPersistence; the caller must fail
// the batch commit, since proceeding without durable metadata makes the
// operator unrecoverable after a restart.
func (w *MetadataWriter) Write(m OperatorStateMetadata) error {
	if m.OperatorInfo.OperatorID != w.operatorID {
		// Path and content would disagree about which operator this record
		// belongs to. That is a caller bug, not a runtime condition.
		panic(fmt.Sprintf("metadata writer bound to operator %d given metadata for operator %d",
			w.operatorID, m.OperatorInfo.OperatorID))
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: invalid metadata: %v", ErrPersistence, err)
	}

	data, err := encodeMetadata(m)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	dir := MetadataDir(w.checkpointRoot, w.operatorID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create metadata directory: %v", ErrPersistence, err)
	}

	w.sweepStagingFiles()

	stagingPath := stagingFilePath(w.checkpointRoot, w.operatorID, uuid.New().String())
	if err := w.stage(stagingPath, data); err != nil {
		return err
	}

	finalPath := MetadataFilePath(w.checkpointRoot, w.operatorID)
	if err := os.Rename(stagingPath, finalPath); err != nil {
		os.Remove(stagingPath)
		return fmt.Errorf("%w: failed to commit metadata file: %v", ErrPersistence, err)
	}

	w.logger.Debug().
		Str("path", finalPath).
		Int("stores", len(m.StateStores)).
		Msg("committed operator state metadata")
	return nil
}

// stage writes and syncs the encoded record to the staging path.
func (w *MetadataWriter) stage(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("%w: failed to create staging file: %v", ErrPersistence, err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("%w: failed to write staging file: %v", ErrPersistence, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("%w: failed to sync staging file: %v", ErrPersistence, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: failed to close staging file: %v", ErrPersistence, err)
	}
	return nil
}

// sweepStagingFiles removes staging files abandoned by crashed writes. Best
// effort; the committed record never lives at a staging path.
func (w *MetadataWriter) sweepStagingFiles() {
	stale, err := filepath.Glob(stagingFileGlob(w.checkpointRoot, w.operatorID))
	if err != nil {
		return
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("failed to remove stale staging file")
		} else {
			w.logger.Debug().Str("path", path).Msg("removed stale staging file")
		}
	}
}
