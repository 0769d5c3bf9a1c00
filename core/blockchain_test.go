package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/internal/testutil"
	"github.com/tolelom/tolstake/storage"
)

func link(prev *core.Block, epochLength uint64) *core.Block {
	b := core.NewBlock(prev.Header.Height+1, epochLength, prev.Hash, "p", nil)
	b.Hash = b.ComputeHash()
	return b
}

func TestBlockchainLinkage(t *testing.T) {
	db := testutil.NewMemDB()
	bc := core.NewBlockchain(storage.NewBlockStore(db))
	require.NoError(t, bc.Init())
	assert.Nil(t, bc.Tip())

	genesis := core.NewBlock(0, 2, "", "p", nil)
	genesis.Hash = genesis.ComputeHash()
	require.NoError(t, bc.AddBlock(genesis))

	b1 := link(genesis, 2)
	require.NoError(t, bc.AddBlock(b1))
	assert.Equal(t, int64(1), bc.Height())

	gap := core.NewBlock(3, 2, b1.Hash, "p", nil)
	gap.Hash = gap.ComputeHash()
	assert.Error(t, bc.AddBlock(gap))

	fork := link(genesis, 2)
	fork.Header.Height = 2
	fork.Hash = fork.ComputeHash()
	assert.Error(t, bc.AddBlock(fork), "prev hash must be the tip")

	b2 := link(b1, 2)
	require.NoError(t, bc.AddBlock(b2))
	rewind := link(b2, 2)
	rewind.Header.Epoch = 0
	rewind.Hash = rewind.ComputeHash()
	assert.Error(t, bc.AddBlock(rewind), "epoch cannot go backwards")

	// a reopened chain resumes from the persisted tip
	reopened := core.NewBlockchain(storage.NewBlockStore(db))
	require.NoError(t, reopened.Init())
	assert.Equal(t, int64(2), reopened.Height())
	assert.Equal(t, b2.Hash, reopened.Tip().Hash)
}

func TestBlockchainWalk(t *testing.T) {
	bc := core.NewBlockchain(storage.NewBlockStore(testutil.NewMemDB()))
	require.NoError(t, bc.Init())
	require.NoError(t, bc.Walk(0, func(*core.Block) error {
		t.Fatal("empty chain has no blocks")
		return nil
	}))

	prev := core.NewBlock(0, 0, "", "p", nil)
	prev.Hash = prev.ComputeHash()
	require.NoError(t, bc.AddBlock(prev))
	for i := 0; i < 4; i++ {
		prev = link(prev, 0)
		require.NoError(t, bc.AddBlock(prev))
	}

	var heights []int64
	require.NoError(t, bc.Walk(2, func(b *core.Block) error {
		heights = append(heights, b.Header.Height)
		if b.Header.Height == 3 {
			return core.StopWalk
		}
		return nil
	}))
	assert.Equal(t, []int64{2, 3}, heights)
}
