package staking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolstake/internal/testutil"
)

func TestPreviewDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.stake(t, alice, testutil.Int(userBalance)))

	before := f.state.ComputeRoot()
	reward, err := f.ledger.PreviewRewards(alice, 50)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).SetUint64(RewardsPerBlock*50).String(), reward.String())
	assert.Equal(t, before, f.state.ComputeRoot())

	pos, err := f.ledger.Position(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pos.LastActionBlock)
}

func TestPreviewUnknownIdentity(t *testing.T) {
	f := newFixture(t)
	reward, err := f.ledger.PreviewRewards("nobody", 1000)
	require.NoError(t, err)
	assert.Zero(t, reward.Sign())

	// reading must not create anything
	_, err = f.ledger.Position("nobody")
	assert.ErrorIs(t, err, ErrNotStaked)
}

func TestPositionIsACopy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.stake(t, alice, big.NewInt(77)))

	pos, err := f.ledger.Position(alice)
	require.NoError(t, err)
	pos.StakeAmount.SetInt64(1)

	amount, err := f.ledger.StakeAmount(alice)
	require.NoError(t, err)
	assert.Equal(t, "77", amount.String())
}

func TestInitOnce(t *testing.T) {
	state := testutil.NewStateDB()
	require.NoError(t, Init(state, 1000, 7))
	assert.ErrorIs(t, Init(state, 2000, 8), ErrAlreadyInitialized)

	l := New(state)
	ts, err := l.CreationTimestamp()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), ts)

	epoch, err := l.CreationBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), epoch)

	cached, err := l.CachedTotalRewards()
	require.NoError(t, err)
	assert.Zero(t, cached.Sign())
}

func TestViewsBeforeInit(t *testing.T) {
	l := New(testutil.NewStateDB())

	_, err := l.CreationTimestamp()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = l.ReportedTotalRewards(&testutil.Host{Timestamp: 10})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestReportedTotalRewards(t *testing.T) {
	state := testutil.NewStateDB()
	require.NoError(t, Init(state, 1000, 0))
	l := New(state)

	total, err := l.ReportedTotalRewards(&testutil.Host{Timestamp: 1010})
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).SetUint64(RewardsPerBlock*10).String(), total.String())

	// a clock behind creation reports zero instead of wrapping
	total, err = l.ReportedTotalRewards(&testutil.Host{Timestamp: 999})
	require.NoError(t, err)
	assert.Zero(t, total.Sign())

	// recomputing never touches the stored counter
	cached, err := l.CachedTotalRewards()
	require.NoError(t, err)
	assert.Zero(t, cached.Sign())
}

func TestLedgerBalanceTracksCustody(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.stake(t, alice, big.NewInt(300)))
	require.NoError(t, f.stake(t, bob, big.NewInt(200)))

	pool, err := f.ledger.LedgerBalance()
	require.NoError(t, err)
	assert.Equal(t, "500", pool.String())

	// anything sent to custody joins the pool
	require.NoError(t, f.ledger.Custody().Receive(bob, big.NewInt(50)))
	pool, err = f.ledger.LedgerBalance()
	require.NoError(t, err)
	assert.Equal(t, "550", pool.String())
}
