package state

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestStoreConfig helper
func newTestStoreConfig(t *testing.T, backend string) Config {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "statetest-"+backend)
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	return Config{
		OperatorID:       0,
		StoreName:        "default",
		NumPartitions:    4,
		NumColsPrefixKey: 1,
		Backend:          backend,
		Dir:              tmpDir,
	}
}

func Test_StorePutGetDelete(t *testing.T) {
	for _, backend := range []string{"badgerdb", "boltdb"} {
		t.Run(backend, func(t *testing.T) {
			store, err := NewStore(newTestStoreConfig(t, backend))
			require.NoError(t, err)
			defer store.Close()

			key := [][]byte{[]byte("user-1"), []byte("window-10")}
			require.NoError(t, store.Put(key, []byte("3")))

			val, err := store.Get(key)
			require.NoError(t, err)
			require.Equal(t, []byte("3"), val)

			_, err = store.Get([][]byte{[]byte("user-2"), []byte("window-10")})
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Delete(key))
			_, err = store.Get(key)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Commit())
		})
	}
}

func Test_StorePrefixScan(t *testing.T) {
	store, err := NewStore(newTestStoreConfig(t, "badgerdb"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put([][]byte{[]byte("user-1"), []byte("w1")}, []byte("a")))
	require.NoError(t, store.Put([][]byte{[]byte("user-1"), []byte("w2")}, []byte("b")))
	require.NoError(t, store.Put([][]byte{[]byte("user-2"), []byte("w1")}, []byte("c")))

	var windows []string
	err = store.PrefixScan([][]byte{[]byte("user-1")}, func(cols [][]byte, val []byte) error {
		require.Len(t, cols, 2)
		require.Equal(t, []byte("user-1"), cols[0])
		windows = append(windows, string(cols[1]))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"w1", "w2"}, windows)
}

func Test_StorePrefixScanArity(t *testing.T) {
	cfg := newTestStoreConfig(t, "badgerdb")
	cfg.NumColsPrefixKey = 0
	store, err := NewStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	err = store.PrefixScan([][]byte{[]byte("user-1")}, func([][]byte, []byte) error { return nil })
	require.Error(t, err)
}

func Test_StoreInfoMatchesConfig(t *testing.T) {
	cfg := newTestStoreConfig(t, "badgerdb")
	cfg.NumPartitions = 200
	store, err := NewStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	info := store.Info()
	require.Equal(t, "default", info.StoreName)
	require.Equal(t, int32(1), info.NumColsPrefixKey)
	require.Equal(t, int32(200), info.NumPartitions)
}

func Test_StoreStateSurvivesReopen(t *testing.T) {
	cfg := newTestStoreConfig(t, "boltdb")
	store, err := NewStore(cfg)
	require.NoError(t, err)

	key := [][]byte{[]byte("user-1"), []byte("w1")}
	require.NoError(t, store.Put(key, []byte("42")))
	require.NoError(t, store.Commit())
	require.NoError(t, store.Close())

	reopened, err := NewStore(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	val, err := reopened.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("42"), val)
}
