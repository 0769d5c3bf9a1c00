package vm_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/events"
	"github.com/tolelom/tolstake/internal/testutil"
	"github.com/tolelom/tolstake/staking"
	"github.com/tolelom/tolstake/storage"
	"github.com/tolelom/tolstake/vm"
	"github.com/tolelom/tolstake/wallet"

	_ "github.com/tolelom/tolstake/vm/modules/economy"
	_ "github.com/tolelom/tolstake/vm/modules/stake"
)

const chainID = "vm-test"

type harness struct {
	state   *storage.StateDB
	exec    *vm.Executor
	emitter *events.Emitter
	seen    []events.Event
	alice   *wallet.Wallet
	bob     *wallet.Wallet
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{state: testutil.NewStateDB(), emitter: events.NewEmitter()}
	for _, typ := range []events.EventType{
		events.EventTxExecuted, events.EventTokenTransfer,
		events.EventStake, events.EventUnstake, events.EventRewardPaid,
	} {
		h.emitter.Subscribe(typ, func(ev events.Event) { h.seen = append(h.seen, ev) })
	}
	h.exec = vm.NewExecutor(h.state, h.emitter, chainID)

	var err error
	h.alice, err = wallet.Generate()
	require.NoError(t, err)
	h.bob, err = wallet.Generate()
	require.NoError(t, err)

	require.NoError(t, staking.Init(h.state, 1_700_000_000, 0))
	require.NoError(t, testutil.Fund(h.state, h.alice.PubKey(), testutil.Int("1000000000000000000")))
	require.NoError(t, testutil.Fund(h.state, h.bob.PubKey(), big.NewInt(1000)))
	return h
}

func block(height int64) *core.Block {
	b := core.NewBlock(height, 10, "prev", "proposer", nil)
	b.Header.Timestamp = 1_700_000_000 + height
	return b
}

func (h *harness) balance(addr string) string {
	return testutil.Balance(h.state, addr).String()
}

func TestStakeThroughExecutor(t *testing.T) {
	h := newHarness(t)
	tx, err := h.alice.Stake(chainID, testutil.Int("400000000000000000"), 0, 5)
	require.NoError(t, err)

	require.NoError(t, h.exec.ExecuteTx(block(25), tx))

	assert.Equal(t, "599999999999999995", h.balance(h.alice.PubKey()))
	assert.Equal(t, "400000000000000000", h.balance(staking.Address))

	pos, err := staking.New(h.state).Position(h.alice.PubKey())
	require.NoError(t, err)
	// settled at the executing block's height
	assert.Equal(t, uint64(25), pos.LastActionBlock)

	require.Len(t, h.seen, 2)
	assert.Equal(t, events.EventStake, h.seen[0].Type)
	assert.Equal(t, tx.ID, h.seen[0].TxID)
	assert.Equal(t, int64(25), h.seen[0].BlockHeight)
	assert.Equal(t, events.EventTxExecuted, h.seen[1].Type)
}

func TestClaimAndUnstakeThroughExecutor(t *testing.T) {
	h := newHarness(t)
	alice := h.alice.PubKey()
	stake, err := h.alice.Stake(chainID, testutil.Int("1000000000000000000"), 0, 0)
	require.NoError(t, err)
	require.NoError(t, h.exec.ExecuteTx(block(1), stake))

	claim, err := h.alice.ClaimRewards(chainID, 1, 0)
	require.NoError(t, err)
	require.NoError(t, h.exec.ExecuteTx(block(11), claim))
	// sole staker: 10 blocks × 3e9
	assert.Equal(t, "30000000000", h.balance(alice))

	// the payout came out of principal, so a full withdrawal no longer fits
	all, err := h.alice.Unstake(chainID, nil, 2, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, h.exec.ExecuteTx(block(11), all), staking.ErrInsufficientCustody)

	half, err := h.alice.Unstake(chainID, testutil.Int("500000000000000000"), 2, 0)
	require.NoError(t, err)
	require.NoError(t, h.exec.ExecuteTx(block(11), half))
	assert.Equal(t, "500000030000000000", h.balance(alice))
	assert.Equal(t, "499999970000000000", h.balance(staking.Address))

	amount, err := staking.New(h.state).StakeAmount(alice)
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", amount.String())
}

func TestFailedTxRevertsEverything(t *testing.T) {
	h := newHarness(t)
	before := h.state.ComputeRoot()

	// bob has never staked
	tx, err := h.bob.Unstake(chainID, big.NewInt(1), 0, 10)
	require.NoError(t, err)
	err = h.exec.ExecuteTx(block(3), tx)
	assert.ErrorIs(t, err, staking.ErrNotStaked)

	// fee and nonce bump are rolled back too
	assert.Equal(t, before, h.state.ComputeRoot())
	assert.Empty(t, h.seen)
}

func TestStakeMoreThanBalance(t *testing.T) {
	h := newHarness(t)
	tx, err := h.bob.Stake(chainID, big.NewInt(5000), 0, 0)
	require.NoError(t, err)

	err = h.exec.ExecuteTx(block(1), tx)
	assert.ErrorIs(t, err, staking.ErrInsufficientFunds)
	assert.Equal(t, "1000", h.balance(h.bob.PubKey()))
}

func TestZeroStakeRejected(t *testing.T) {
	h := newHarness(t)
	tx, err := h.bob.Stake(chainID, nil, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, h.exec.ExecuteTx(block(1), tx), staking.ErrInvalidPayment)
}

func TestValueOnNonPayableRejected(t *testing.T) {
	h := newHarness(t)
	tx, err := h.alice.NewTx(chainID, core.TxClaimRewards, 0, 0, big.NewInt(1), core.ClaimRewardsPayload{})
	require.NoError(t, err)
	assert.ErrorIs(t, h.exec.ExecuteTx(block(1), tx), vm.ErrNotPayable)
}

func TestChainIDAndNonceChecked(t *testing.T) {
	h := newHarness(t)

	other, err := h.bob.Transfer("other-chain", h.alice.PubKey(), big.NewInt(1), 0, 0)
	require.NoError(t, err)
	assert.Error(t, h.exec.ExecuteTx(block(1), other))

	stale, err := h.bob.Transfer(chainID, h.alice.PubKey(), big.NewInt(1), 7, 0)
	require.NoError(t, err)
	assert.Error(t, h.exec.ExecuteTx(block(1), stale))
}

func TestTransfer(t *testing.T) {
	h := newHarness(t)
	tx, err := h.bob.Transfer(chainID, h.alice.PubKey(), big.NewInt(300), 0, 1)
	require.NoError(t, err)
	require.NoError(t, h.exec.ExecuteTx(block(1), tx))
	assert.Equal(t, "699", h.balance(h.bob.PubKey()))
	assert.Equal(t, "1000000000000000300", h.balance(h.alice.PubKey()))

	again, err := h.bob.Transfer(chainID, h.alice.PubKey(), big.NewInt(700), 1, 0)
	require.NoError(t, err)
	assert.Error(t, h.exec.ExecuteTx(block(2), again))
	assert.Equal(t, "699", h.balance(h.bob.PubKey()))
}

func TestExecuteBlockRejectsOnFailure(t *testing.T) {
	h := newHarness(t)
	ok, err := h.bob.Transfer(chainID, h.alice.PubKey(), big.NewInt(1), 0, 0)
	require.NoError(t, err)
	bad, err := h.bob.ClaimRewards(chainID, 1, 0)
	require.NoError(t, err)

	b := block(1)
	b.Transactions = []*core.Transaction{ok, bad}
	assert.Error(t, h.exec.ExecuteBlock(b))
}

func TestApplyTxReturnsEventsUnpublished(t *testing.T) {
	h := newHarness(t)
	tx, err := h.alice.Stake(chainID, big.NewInt(1000), 0, 0)
	require.NoError(t, err)

	evs, err := h.exec.ApplyTx(block(3), tx)
	require.NoError(t, err)
	assert.Empty(t, h.seen)

	require.Len(t, evs, 2)
	assert.Equal(t, events.EventStake, evs[0].Type)
	assert.Equal(t, tx.ID, evs[0].TxID)
	assert.Equal(t, int64(3), evs[0].BlockHeight)
	assert.Equal(t, events.EventTxExecuted, evs[1].Type)
}
