package journalfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderBytesRoundTrip(t *testing.T) {
	hdr := NewHeader("gob")
	buf := hdr.Bytes()

	assert.Equal(t, []byte(Magic), buf[:len(Magic)])

	got, err := ReadHeader(bytes.NewReader(buf), "gob")
	require.NoError(t, err)
	assert.Equal(t, hdr, got)
	assert.Equal(t, len(buf), hdr.Len())
}

func TestReadHeaderWrongMagic(t *testing.T) {
	buf := append([]byte("NOTMAGIC"), NewHeader("gob").Bytes()[len(Magic):]...)
	_, err := ReadHeader(bytes.NewReader(buf), "gob")
	require.ErrorIs(t, err, ErrWrongMagic)
}

func TestReadHeaderWrongFormat(t *testing.T) {
	buf := NewHeader("gob").Bytes()
	_, err := ReadHeader(bytes.NewReader(buf), "json")
	require.ErrorIs(t, err, ErrWrongFormat)
}
