package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Wire format, version 1 (all integers big-endian):
//
//	int32  version marker
//	int64  operator id
//	string operator name
//	int32  store count
//	per store: string name, int32 prefix key cols, int32 partitions
//
// Strings are int32 length-prefixed UTF-8. The version marker is always the
// first field decoded; an unknown marker aborts the decode before any payload
// byte is interpreted.

// maxStringLen bounds decoded string lengths. Operator and store names are
// short identifiers; anything larger is a corrupt record.
const maxStringLen = 1 << 20

// encodeMetadata serializes a metadata value. Encoding is deterministic:
// the same value always yields byte-identical output.
func encodeMetadata(m OperatorStateMetadata) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.BigEndian, m.Version); err != nil {
		return nil, fmt.Errorf("failed to write version marker: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, m.OperatorInfo.OperatorID); err != nil {
		return nil, fmt.Errorf("failed to write operator id: %w", err)
	}
	if err := writeString(buf, m.OperatorInfo.OperatorName); err != nil {
		return nil, fmt.Errorf("failed to write operator name: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, int32(len(m.StateStores))); err != nil {
		return nil, fmt.Errorf("failed to write store count: %w", err)
	}
	for _, store := range m.StateStores {
		if err := writeString(buf, store.StoreName); err != nil {
			return nil, fmt.Errorf("failed to write store name: %w", err)
		}
		if err := binary.Write(buf, binary.BigEndian, store.NumColsPrefixKey); err != nil {
			return nil, fmt.Errorf("failed to write prefix key column count: %w", err)
		}
		if err := binary.Write(buf, binary.BigEndian, store.NumPartitions); err != nil {
			return nil, fmt.Errorf("failed to write partition count: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// decodeMetadata deserializes a metadata record. The version marker is
// inspected first; an unrecognized marker fails with ErrUnsupportedVersion
// without touching the remaining bytes. Any structural defect (truncation,
// invalid lengths, trailing garbage) fails with ErrCorruptMetadata.
func decodeMetadata(data []byte) (OperatorStateMetadata, error) {
	buf := bytes.NewReader(data)
	var m OperatorStateMetadata

	if err := binary.Read(buf, binary.BigEndian, &m.Version); err != nil {
		return OperatorStateMetadata{}, fmt.Errorf("%w: failed to read version marker: %v", ErrCorruptMetadata, err)
	}
	if m.Version != FormatVersion1 {
		return OperatorStateMetadata{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}

	if err := binary.Read(buf, binary.BigEndian, &m.OperatorInfo.OperatorID); err != nil {
		return OperatorStateMetadata{}, fmt.Errorf("%w: failed to read operator id: %v", ErrCorruptMetadata, err)
	}
	name, err := readString(buf)
	if err != nil {
		return OperatorStateMetadata{}, fmt.Errorf("%w: failed to read operator name: %v", ErrCorruptMetadata, err)
	}
	m.OperatorInfo.OperatorName = name

	var storeCount int32
	if err := binary.Read(buf, binary.BigEndian, &storeCount); err != nil {
		return OperatorStateMetadata{}, fmt.Errorf("%w: failed to read store count: %v", ErrCorruptMetadata, err)
	}
	// Each store entry occupies at least 12 bytes (empty name prefix plus two
	// int32 fields), so a count the remaining payload cannot hold is corrupt.
	// Checking before the allocation keeps a hostile count from sizing it.
	if storeCount < 0 || storeCount > int32(buf.Len()/12) {
		return OperatorStateMetadata{}, fmt.Errorf("%w: invalid store count %d", ErrCorruptMetadata, storeCount)
	}

	m.StateStores = make([]StateStoreInfo, 0, storeCount)
	for i := int32(0); i < storeCount; i++ {
		var store StateStoreInfo
		store.StoreName, err = readString(buf)
		if err != nil {
			return OperatorStateMetadata{}, fmt.Errorf("%w: failed to read store name: %v", ErrCorruptMetadata, err)
		}
		if err := binary.Read(buf, binary.BigEndian, &store.NumColsPrefixKey); err != nil {
			return OperatorStateMetadata{}, fmt.Errorf("%w: failed to read prefix key column count: %v", ErrCorruptMetadata, err)
		}
		if err := binary.Read(buf, binary.BigEndian, &store.NumPartitions); err != nil {
			return OperatorStateMetadata{}, fmt.Errorf("%w: failed to read partition count: %v", ErrCorruptMetadata, err)
		}
		m.StateStores = append(m.StateStores, store)
	}

	if buf.Len() != 0 {
		return OperatorStateMetadata{}, fmt.Errorf("%w: %d trailing bytes after payload", ErrCorruptMetadata, buf.Len())
	}

	return m, nil
}

// writeString writes a string with an int32 length prefix.
func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// readString reads a string with an int32 length prefix.
func readString(r io.Reader) (string, error) {
	var length int32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}

	if length < 0 || length > maxStringLen {
		return "", fmt.Errorf("invalid string length: %d", length)
	}

	if length == 0 {
		return "", nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", err
	}

	return string(data), nil
}
