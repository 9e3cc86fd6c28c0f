package checkpoint

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeOperator struct {
	id int64
	md OperatorStateMetadata
}

func (f fakeOperator) OperatorID() int64                    { return f.id }
func (f fakeOperator) StateMetadata() OperatorStateMetadata { return f.md }

func Test_ManagerCommitAndLookup(t *testing.T) {
	root := newCheckpointRoot(t)
	manager := NewManager(root)

	agg := fakeOperator{id: 0, md: NewOperatorStateMetadata(
		OperatorInfo{OperatorID: 0, OperatorName: "stateStoreSave"},
		storeSet([]string{"default"}, 0, 200),
	)}
	join := fakeOperator{id: 1, md: NewOperatorStateMetadata(
		OperatorInfo{OperatorID: 1, OperatorName: "symmetricHashJoin"},
		storeSet([]string{
			"left-keyToNumValues",
			"left-keyWithIndexToValue",
			"right-keyToNumValues",
			"right-keyWithIndexToValue",
		}, 1, 200),
	)}
	require.NoError(t, manager.Commit([]StatefulOperator{agg, join}))

	// A fresh manager models the restarted process.
	recovery := NewManager(root)
	got, found, err := recovery.Lookup(0)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, agg.md.Equal(got))

	got, found, err = recovery.Lookup(1)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, join.md.Equal(got))

	_, found, err = recovery.Lookup(2)
	require.NoError(t, err)
	require.False(t, found)
}

func Test_ManagerLookupCachesWithinRecoveryPass(t *testing.T) {
	root := newCheckpointRoot(t)
	manager := NewManager(root)

	op := fakeOperator{id: 0, md: NewOperatorStateMetadata(
		OperatorInfo{OperatorID: 0, OperatorName: "stateStoreSave"},
		storeSet([]string{"default"}, 0, 200),
	)}
	require.NoError(t, manager.Commit([]StatefulOperator{op}))

	recovery := NewManager(root)
	first, found, err := recovery.Lookup(0)
	require.NoError(t, err)
	require.True(t, found)

	// The record is immutable within a recovery pass; removing the file
	// must not affect a cached lookup.
	require.NoError(t, os.Remove(MetadataFilePath(root, 0)))
	second, found, err := recovery.Lookup(0)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, first.Equal(second))
}

func Test_ManagerCommitIsReplacement(t *testing.T) {
	root := newCheckpointRoot(t)
	manager := NewManager(root)

	op := fakeOperator{id: 0, md: NewOperatorStateMetadata(
		OperatorInfo{OperatorID: 0, OperatorName: "stateStoreSave"},
		storeSet([]string{"default", "secondary"}, 0, 200),
	)}
	require.NoError(t, manager.Commit([]StatefulOperator{op}))

	op.md = NewOperatorStateMetadata(
		OperatorInfo{OperatorID: 0, OperatorName: "stateStoreSave"},
		storeSet([]string{"default"}, 0, 200),
	)
	require.NoError(t, manager.Commit([]StatefulOperator{op}))

	got, found, err := NewManager(root).Lookup(0)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got.StateStores, 1)
	require.Equal(t, "default", got.StateStores[0].StoreName)
}
