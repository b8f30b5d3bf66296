package journalfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleinmatic/daybreak/internal/recordcodec"
)

func TestOpenWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")

	j, err := Open(path, "gob")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j2, err := Open(path, "gob")
	require.NoError(t, err)
	defer j2.Close()

	assert.Equal(t, NewHeader("gob").Len(), j2.HeaderLen())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(NewHeader("gob").Len()), info.Size())
}

func TestEnqueueFlushUpdateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	j, err := Open(path, "gob")
	require.NoError(t, err)
	defer j.Close()

	// The writer's back-read optimization credits j's own appends to j's
	// read position, so the round trip is observed through a second
	// handle on the same file.
	r, err := Open(path, "gob")
	require.NoError(t, err)
	defer r.Close()

	j.Enqueue(recordcodec.Put([]byte("alpha"), []byte("1")))
	require.NoError(t, j.Flush())

	got := map[string]string{}
	err = r.Update(func(rec recordcodec.Record) {
		if rec.Tombstone {
			delete(got, string(rec.Key))
			return
		}
		got[string(rec.Key)] = string(rec.Value)
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alpha": "1"}, got)
}

func TestDeletePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	j, err := Open(path, "gob")
	require.NoError(t, err)
	defer j.Close()

	r, err := Open(path, "gob")
	require.NoError(t, err)
	defer r.Close()

	j.Enqueue(recordcodec.Put([]byte("k"), []byte("v")))
	j.Enqueue(recordcodec.Tomb([]byte("k")))
	require.NoError(t, j.Flush())

	got := map[string]string{}
	seen := 0
	err = r.Update(func(rec recordcodec.Record) {
		seen++
		if rec.Tombstone {
			delete(got, string(rec.Key))
			return
		}
		got[string(rec.Key)] = string(rec.Value)
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.Empty(t, got)
}

func TestReopenReplaysJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	j, err := Open(path, "gob")
	require.NoError(t, err)

	j.Enqueue(recordcodec.Put([]byte("a"), []byte("1")))
	j.Enqueue(recordcodec.Put([]byte("b"), []byte("2")))
	require.NoError(t, j.Flush())
	require.NoError(t, j.Close())

	j2, err := Open(path, "gob")
	require.NoError(t, err)
	defer j2.Close()

	got := map[string]string{}
	err = j2.Update(func(rec recordcodec.Record) {
		got[string(rec.Key)] = string(rec.Value)
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	j, err := Open(path, "gob")
	require.NoError(t, err)

	require.NoError(t, j.Close())
	require.NoError(t, j.Close())
}

func TestWrongFormatNameRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	j, err := Open(path, "gob")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = Open(path, "json")
	require.ErrorIs(t, err, ErrWrongFormat)
}
