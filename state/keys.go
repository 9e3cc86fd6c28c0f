package state

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Physical key layout: a big-endian uint32 partition id followed by each key
// column as an int32 length prefix and its bytes. Length-prefixed columns
// keep the encoding unambiguous, and encoding a column prefix yields a byte
// prefix of the full key, which is what makes engine-level prefix scans line
// up with column-level prefix scans.

func encodeKey(partition int, cols [][]byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(partition))
	for _, col := range cols {
		binary.Write(buf, binary.BigEndian, int32(len(col)))
		buf.Write(col)
	}
	return buf.Bytes()
}

func decodeKey(key []byte) ([][]byte, error) {
	buf := bytes.NewReader(key)

	var partition uint32
	if err := binary.Read(buf, binary.BigEndian, &partition); err != nil {
		return nil, fmt.Errorf("failed to read partition id: %w", err)
	}

	var cols [][]byte
	for buf.Len() > 0 {
		var length int32
		if err := binary.Read(buf, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("failed to read column length: %w", err)
		}
		if length < 0 || int(length) > buf.Len() {
			return nil, fmt.Errorf("invalid column length: %d", length)
		}
		col := make([]byte, length)
		if _, err := io.ReadFull(buf, col); err != nil {
			return nil, fmt.Errorf("failed to read column: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, nil
}
