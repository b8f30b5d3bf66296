package recordcodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	cases := []Record{
		Put([]byte("alpha"), []byte("1")),
		Put([]byte("k"), []byte("")),
		Tomb([]byte("alpha")),
	}

	for _, rec := range cases {
		buf, err := Serialize(nil, rec)
		require.NoError(t, err)
		require.Len(t, buf, rec.Len())

		got, n, err := Deserialize(bytes.NewReader(buf))
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, rec.Key, got.Key)
		assert.Equal(t, rec.Tombstone, got.Tombstone)
		if !rec.Tombstone {
			assert.Equal(t, rec.Value, got.Value)
		}
	}
}

func TestSerializeEmptyKeyRejected(t *testing.T) {
	_, err := Serialize(nil, Put(nil, []byte("v")))
	require.ErrorIs(t, err, ErrEmptyKey)
}

func TestDeserializeCRCTamper(t *testing.T) {
	buf, err := Serialize(nil, Put([]byte("alpha"), []byte("1")))
	require.NoError(t, err)

	buf[len(buf)-1] ^= 0xFF

	_, _, err = Deserialize(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDeserializeTruncated(t *testing.T) {
	buf, err := Serialize(nil, Put([]byte("alpha"), []byte("1")))
	require.NoError(t, err)

	_, _, err = Deserialize(bytes.NewReader(buf[:len(buf)-2]))
	require.ErrorIs(t, err, ErrUnexpectedEnd)
}

func TestDeserializeAllMultipleRecords(t *testing.T) {
	var buf []byte
	var err error
	buf, err = Serialize(buf, Put([]byte("a"), []byte("1")))
	require.NoError(t, err)
	buf, err = Serialize(buf, Put([]byte("b"), []byte("2")))
	require.NoError(t, err)
	buf, err = Serialize(buf, Tomb([]byte("a")))
	require.NoError(t, err)

	recs, consumed, err := DeserializeAll(buf)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, "a", string(recs[0].Key))
	assert.False(t, recs[0].Tombstone)
	assert.Equal(t, "b", string(recs[1].Key))
	assert.True(t, recs[2].Tombstone)
}

func TestDeserializeAllPartialTailIsFatal(t *testing.T) {
	buf, err := Serialize(nil, Put([]byte("a"), []byte("1")))
	require.NoError(t, err)
	buf2, err := Serialize(buf, Put([]byte("b"), []byte("2")))
	require.NoError(t, err)

	recs, consumed, err := DeserializeAll(buf2[:len(buf)+3])
	require.ErrorIs(t, err, ErrMalformedRecord)
	require.Len(t, recs, 1)
	assert.Equal(t, len(buf), consumed)
}

func TestDeleteSentinelValue(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFF), uint32(DeleteSentinel))
}
