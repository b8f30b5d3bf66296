package daybreak

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gob.Register("")
	gob.Register(0)
	os.Exit(m.Run())
}

func TestBasicPutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SetSync("alpha", "1"))

	db2, err := Open(path, withoutRegistry())
	require.NoError(t, err)
	defer db2.Close()

	v, err := db2.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestDeletePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry())
	require.NoError(t, err)

	require.NoError(t, db.SetSync("k", "v"))
	require.NoError(t, db.DeleteSync("k"))
	require.NoError(t, db.Close())

	db2, err := Open(path, withoutRegistry())
	require.NoError(t, err)
	defer db2.Close()

	has, err := db2.Has("k")
	require.NoError(t, err)
	assert.False(t, has)

	size, err := db2.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestReplayOrderMovesReassignedKeyToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry())
	require.NoError(t, err)

	require.NoError(t, db.Set("a", 1))
	require.NoError(t, db.Set("b", 2))
	require.NoError(t, db.SetSync("a", 3))
	require.NoError(t, db.Close())

	db2, err := Open(path, withoutRegistry())
	require.NoError(t, err)
	defer db2.Close()

	type pair struct {
		Key   string
		Value any
	}
	var got []pair
	require.NoError(t, db2.Iterate(func(key string, value any) bool {
		got = append(got, pair{key, value})
		return true
	}))
	want := []pair{{"b", 2}, {"a", 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("iteration order mismatch (-want +got):\n%s", diff)
	}
}

func TestCompactionShrinksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry())
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, db.SetSync("k", i))
	}
	require.NoError(t, db.Compact())
	require.NoError(t, db.Sync())

	v, err := db.Get("k")
	require.NoError(t, err)
	assert.Equal(t, 99, v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(2000))
}

func TestDefaultPolicyInstallsConstant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry(), WithDefault(ConstantDefault("fallback")))
	require.NoError(t, err)
	defer db.Close()

	v, err := db.Get("missing")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	has, err := db.Has("missing")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestDefaultPolicyFactoryVariesByKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry(), WithDefault(FactoryDefault(func(key any) any {
		return key.(string) + "-default"
	})))
	require.NoError(t, err)
	defer db.Close()

	v, err := db.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "x-default", v)
}

func TestClearEmptiesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SetSync("a", "1"))
	require.NoError(t, db.Clear())

	size, err := db.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry())
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
}

func TestOpsAfterCloseReturnClosedError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Get("k")
	assert.ErrorIs(t, err, ErrClosedDatabase)
	assert.ErrorIs(t, db.Set("k", "v"), ErrClosedDatabase)
}

func TestLockRunsUnderExclusiveSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Set("a", "1"))

	ran := false
	require.NoError(t, db.Lock(func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	v, err := db.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := Open(path, withoutRegistry())
	require.NoError(t, err)
	defer db.Close()

	id, ch := db.Subscribe(4)
	defer db.Unsubscribe(id)

	require.NoError(t, db.Set("a", "1"))

	got := <-ch
	assert.Equal(t, "a", string(got.Key))
}
