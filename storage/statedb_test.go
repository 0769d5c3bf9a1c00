package storage_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/internal/testutil"
	"github.com/tolelom/tolstake/storage"
)

func position(stake int64, last uint64) *core.StakingPosition {
	return &core.StakingPosition{StakeAmount: big.NewInt(stake), LastActionBlock: last}
}

func TestAccountDefaultsToZero(t *testing.T) {
	s := testutil.NewStateDB()
	acc, err := s.GetAccount("ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", acc.Address)
	assert.Zero(t, acc.Balance.Sign())
	assert.Zero(t, acc.Nonce)
}

func TestPositionLifecycle(t *testing.T) {
	s := testutil.NewStateDB()
	_, err := s.GetPosition("alice")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.SetPosition("alice", position(10, 3)))
	got, err := s.GetPosition("alice")
	require.NoError(t, err)
	assert.Equal(t, "10", got.StakeAmount.String())
	assert.Equal(t, uint64(3), got.LastActionBlock)

	require.NoError(t, s.DeletePosition("alice"))
	_, err = s.GetPosition("alice")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestActiveSetMergesBufferAndDB(t *testing.T) {
	db := testutil.NewMemDB()
	s := storage.NewStateDB(db)
	require.NoError(t, s.AddActive("carol"))
	require.NoError(t, s.AddActive("alice"))
	require.NoError(t, s.Commit())

	require.NoError(t, s.AddActive("bob"))
	require.NoError(t, s.RemoveActive("carol"))

	addrs, err := s.ActiveAddresses()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, addrs)

	// a fresh view over the same DB sees committed state only
	committed, err := storage.NewStateDB(db).ActiveAddresses()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, committed)
}

func TestSnapshotRevert(t *testing.T) {
	s := testutil.NewStateDB()
	require.NoError(t, s.SetGlobal("k", []byte("v1")))
	snap, err := s.Snapshot()
	require.NoError(t, err)
	root := s.ComputeRoot()

	require.NoError(t, s.SetGlobal("k", []byte("v2")))
	require.NoError(t, s.AddActive("alice"))
	assert.NotEqual(t, root, s.ComputeRoot())

	require.NoError(t, s.RevertToSnapshot(snap))
	v, err := s.GetGlobal("k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))
	active, err := s.IsActive("alice")
	require.NoError(t, err)
	assert.False(t, active)
	assert.Equal(t, root, s.ComputeRoot())

	assert.Error(t, s.RevertToSnapshot(snap), "snapshot is consumed")
}

func TestNestedSnapshots(t *testing.T) {
	s := testutil.NewStateDB()
	outer, err := s.Snapshot()
	require.NoError(t, err)
	require.NoError(t, s.SetGlobal("a", []byte("1")))
	inner, err := s.Snapshot()
	require.NoError(t, err)
	require.NoError(t, s.SetGlobal("b", []byte("2")))

	require.NoError(t, s.RevertToSnapshot(inner))
	_, err = s.GetGlobal("b")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetGlobal("a")
	require.NoError(t, err)

	require.NoError(t, s.RevertToSnapshot(outer))
	_, err = s.GetGlobal("a")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRootIndependentOfCommit(t *testing.T) {
	db := testutil.NewMemDB()
	s := storage.NewStateDB(db)
	acc := core.NewAccount("alice")
	acc.Balance.SetInt64(99)
	require.NoError(t, s.SetAccount(acc))
	require.NoError(t, s.SetPosition("alice", position(5, 1)))

	before := s.ComputeRoot()
	require.NoError(t, s.Commit())
	assert.Equal(t, before, s.ComputeRoot())
	assert.Equal(t, before, storage.NewStateDB(db).ComputeRoot())

	// deleting a committed key changes the root before and after commit alike
	require.NoError(t, s.DeletePosition("alice"))
	pending := s.ComputeRoot()
	assert.NotEqual(t, before, pending)
	require.NoError(t, s.Commit())
	assert.Equal(t, pending, storage.NewStateDB(db).ComputeRoot())
}
