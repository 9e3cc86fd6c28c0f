package checkpoint

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Canonical checkpoint layout:
//
//	<root>/state/<operatorId>/_metadata/metadata
//
// The writer and the reader both derive paths through these functions; the
// filesystem is the only coordination between them, so the mapping must stay
// deterministic and side-effect free.

const (
	stateDirName     = "state"
	metadataDirName  = "_metadata"
	metadataFileName = "metadata"
)

// StateDir returns the root of all operator state under a checkpoint location.
func StateDir(checkpointRoot string) string {
	return filepath.Join(checkpointRoot, stateDirName)
}

// OperatorStateDir returns the state subtree owned by one operator.
func OperatorStateDir(checkpointRoot string, operatorID int64) string {
	return filepath.Join(StateDir(checkpointRoot), strconv.FormatInt(operatorID, 10))
}

// MetadataDir returns the directory holding an operator's metadata file.
func MetadataDir(checkpointRoot string, operatorID int64) string {
	return filepath.Join(OperatorStateDir(checkpointRoot, operatorID), metadataDirName)
}

// MetadataFilePath returns the canonical path of an operator's current
// metadata record.
func MetadataFilePath(checkpointRoot string, operatorID int64) string {
	return filepath.Join(MetadataDir(checkpointRoot, operatorID), metadataFileName)
}

// stagingFilePath returns a staging path inside the metadata directory for a
// write in progress. The leading dot keeps stray staging files visually apart
// from the committed record; the suffix keeps concurrent attempts distinct.
func stagingFilePath(checkpointRoot string, operatorID int64, suffix string) string {
	name := fmt.Sprintf(".%s.%s.tmp", metadataFileName, suffix)
	return filepath.Join(MetadataDir(checkpointRoot, operatorID), name)
}

// stagingFileGlob matches staging files left behind by crashed writes.
func stagingFileGlob(checkpointRoot string, operatorID int64) string {
	return filepath.Join(MetadataDir(checkpointRoot, operatorID), "."+metadataFileName+".*.tmp")
}
