package compactor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleinmatic/daybreak/internal/journalfile"
	"github.com/kleinmatic/daybreak/internal/recordcodec"
)

func TestRunShrinksFileToLiveEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	j, err := journalfile.Open(path, "gob")
	require.NoError(t, err)
	defer j.Close()

	j.Enqueue(recordcodec.Put([]byte("a"), []byte("1")))
	j.Enqueue(recordcodec.Put([]byte("a"), []byte("2")))
	j.Enqueue(recordcodec.Put([]byte("b"), []byte("3")))
	j.Enqueue(recordcodec.Tomb([]byte("b")))
	require.NoError(t, j.Flush())

	dump, err := BuildDump([]recordcodec.Record{recordcodec.Put([]byte("a"), []byte("2"))})
	require.NoError(t, err)

	require.NoError(t, Run(j, "gob", dump, j.Flush))

	got := map[string]string{}
	require.NoError(t, j.Update(func(rec recordcodec.Record) {
		if rec.Tombstone {
			delete(got, string(rec.Key))
			return
		}
		got[string(rec.Key)] = string(rec.Value)
	}, nil))
	assert.Equal(t, map[string]string{"a": "2"}, got)
}

func TestRunPreservesConcurrentTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	j, err := journalfile.Open(path, "gob")
	require.NoError(t, err)
	defer j.Close()

	j.Enqueue(recordcodec.Put([]byte("a"), []byte("1")))
	require.NoError(t, j.Flush())

	dump, err := BuildDump([]recordcodec.Record{recordcodec.Put([]byte("a"), []byte("1"))})
	require.NoError(t, err)

	// A second handle on the same file stands in for another process
	// appending after the dump was built. j's own writer credits its
	// appends to j's read position, so they never form a tail to copy.
	other, err := journalfile.Open(path, "gob")
	require.NoError(t, err)
	defer other.Close()

	flushThenAppend := func() error {
		if err := j.Flush(); err != nil {
			return err
		}
		other.Enqueue(recordcodec.Put([]byte("c"), []byte("9")))
		return other.Flush()
	}

	require.NoError(t, Run(j, "gob", dump, flushThenAppend))

	got := map[string]string{}
	require.NoError(t, j.Update(func(rec recordcodec.Record) {
		got[string(rec.Key)] = string(rec.Value)
	}, nil))
	assert.Equal(t, map[string]string{"a": "1", "c": "9"}, got)
}

func TestClearDiscardsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	j, err := journalfile.Open(path, "gob")
	require.NoError(t, err)
	defer j.Close()

	j.Enqueue(recordcodec.Put([]byte("a"), []byte("1")))
	require.NoError(t, j.Flush())

	require.NoError(t, Clear(j, "gob"))

	got := map[string]string{}
	require.NoError(t, j.Update(func(rec recordcodec.Record) {
		got[string(rec.Key)] = string(rec.Value)
	}, nil))
	assert.Empty(t, got)
}
