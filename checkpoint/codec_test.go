package checkpoint

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMetadata() OperatorStateMetadata {
	return NewOperatorStateMetadata(
		OperatorInfo{OperatorID: 1, OperatorName: "Join"},
		[]StateStoreInfo{
			{StoreName: "store1", NumColsPrefixKey: 1, NumPartitions: 200},
			{StoreName: "store2", NumColsPrefixKey: 1, NumPartitions: 200},
			{StoreName: "store3", NumColsPrefixKey: 1, NumPartitions: 200},
			{StoreName: "store4", NumColsPrefixKey: 1, NumPartitions: 200},
		},
	)
}

func Test_CodecRoundTrip(t *testing.T) {
	m := testMetadata()

	data, err := encodeMetadata(m)
	require.NoError(t, err)

	decoded, err := decodeMetadata(data)
	require.NoError(t, err)
	require.True(t, m.Equal(decoded))
	require.Equal(t, m.OperatorInfo, decoded.OperatorInfo)
	require.Equal(t, m.StateStores, decoded.StateStores)
}

func Test_CodecDeterministic(t *testing.T) {
	m := testMetadata()

	first, err := encodeMetadata(m)
	require.NoError(t, err)
	second, err := encodeMetadata(m)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func Test_CodecVersionMarkerLeads(t *testing.T) {
	data, err := encodeMetadata(testMetadata())
	require.NoError(t, err)
	require.Equal(t, FormatVersion1, int32(binary.BigEndian.Uint32(data[:4])))
}

func Test_CodecRejectsUnknownVersion(t *testing.T) {
	data, err := encodeMetadata(testMetadata())
	require.NoError(t, err)

	// Stamp a future version over the marker. The rest of the payload is
	// valid version-1 bytes, which must never be interpreted as such.
	binary.BigEndian.PutUint32(data[:4], 2)
	_, err = decodeMetadata(data)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
	require.NotErrorIs(t, err, ErrCorruptMetadata)

	binary.BigEndian.PutUint32(data[:4], uint32(0xFFFFFFFF))
	_, err = decodeMetadata(data)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func Test_CodecRejectsTruncation(t *testing.T) {
	data, err := encodeMetadata(testMetadata())
	require.NoError(t, err)

	for _, cut := range []int{1, 4, 8, len(data) / 2, len(data) - 1} {
		_, err := decodeMetadata(data[:cut])
		require.ErrorIs(t, err, ErrCorruptMetadata, "truncated at %d bytes", cut)
	}
}

func Test_CodecRejectsTrailingGarbage(t *testing.T) {
	data, err := encodeMetadata(testMetadata())
	require.NoError(t, err)

	_, err = decodeMetadata(append(data, 0xDE, 0xAD))
	require.ErrorIs(t, err, ErrCorruptMetadata)
}

func Test_CodecRejectsEmptyInput(t *testing.T) {
	_, err := decodeMetadata(nil)
	require.ErrorIs(t, err, ErrCorruptMetadata)
}

func Test_CodecRejectsInvalidStringLength(t *testing.T) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, FormatVersion1)
	binary.Write(buf, binary.BigEndian, int64(0))
	binary.Write(buf, binary.BigEndian, int32(-5)) // operator name length

	_, err := decodeMetadata(buf.Bytes())
	require.ErrorIs(t, err, ErrCorruptMetadata)
}

func Test_CodecRejectsOversizedStoreCount(t *testing.T) {
	// A count the remaining bytes cannot possibly hold must fail before any
	// allocation is sized from it.
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, FormatVersion1)
	binary.Write(buf, binary.BigEndian, int64(0))
	binary.Write(buf, binary.BigEndian, int32(1)) // operator name length
	buf.WriteByte('a')
	binary.Write(buf, binary.BigEndian, int32(0x7FFFFFFF)) // store count

	_, err := decodeMetadata(buf.Bytes())
	require.ErrorIs(t, err, ErrCorruptMetadata)
}

func Test_CodecPreservesStoreOrder(t *testing.T) {
	m := testMetadata()
	data, err := encodeMetadata(m)
	require.NoError(t, err)

	decoded, err := decodeMetadata(data)
	require.NoError(t, err)
	for i, store := range m.StateStores {
		require.Equal(t, store.StoreName, decoded.StateStores[i].StoreName)
	}
}

func Test_ValidateCatchesBadValues(t *testing.T) {
	require.NoError(t, testMetadata().Validate())

	m := testMetadata()
	m.OperatorInfo.OperatorID = -1
	require.Error(t, m.Validate())

	m = testMetadata()
	m.OperatorInfo.OperatorName = ""
	require.Error(t, m.Validate())

	m = testMetadata()
	m.StateStores = nil
	require.Error(t, m.Validate())

	m = testMetadata()
	m.StateStores[1].StoreName = "store1"
	require.Error(t, m.Validate())

	m = testMetadata()
	m.StateStores[0].NumPartitions = 0
	require.Error(t, m.Validate())

	m = testMetadata()
	m.StateStores[0].NumColsPrefixKey = -1
	require.Error(t, m.Validate())
}

func Test_MetadataEqual(t *testing.T) {
	require.True(t, testMetadata().Equal(testMetadata()))

	other := testMetadata()
	other.StateStores[3].NumPartitions = 100
	require.False(t, testMetadata().Equal(other))

	// Order matters for equality even though it carries no semantics.
	reordered := testMetadata()
	reordered.StateStores[0], reordered.StateStores[1] = reordered.StateStores[1], reordered.StateStores[0]
	require.False(t, testMetadata().Equal(reordered))
}
