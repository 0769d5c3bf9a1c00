package core

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolstake/crypto"
)

func signedTx(t *testing.T, priv crypto.PrivateKey, nonce uint64) *Transaction {
	t.Helper()
	tx, err := NewTransaction("test", TxClaimRewards, priv.Public().Hex(), nonce, 0, nil, ClaimRewardsPayload{})
	require.NoError(t, err)
	tx.Sign(priv)
	return tx
}

func TestMempoolOrderAndRemove(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	m := NewMempool()

	var ids []string
	for i := uint64(0); i < 4; i++ {
		tx := signedTx(t, priv, i)
		require.NoError(t, m.Add(tx))
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, 4, m.Size())

	first, _ := m.Get(ids[0])
	assert.ErrorIs(t, m.Add(first), ErrDuplicateTx)

	m.Remove([]string{ids[1], ids[2]})
	pending := m.Pending(2)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, ids[3], pending[1].ID)

	_, ok := m.Get(ids[1])
	assert.False(t, ok)
}

func TestMempoolTimestampWindow(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx := signedTx(t, priv, 0)

	stale := NewMempool()
	stale.now = func() time.Time { return time.Unix(0, tx.Timestamp).Add(2 * time.Hour) }
	assert.ErrorIs(t, stale.Add(tx), ErrTxExpired)

	early := NewMempool()
	early.now = func() time.Time { return time.Unix(0, tx.Timestamp).Add(-10 * time.Minute) }
	assert.ErrorIs(t, early.Add(tx), ErrTxFromFuture)
}

func TestMempoolRejectsBadSignature(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx := signedTx(t, priv, 0)
	tx.Nonce = 9
	assert.Error(t, NewMempool().Add(tx))
}

func TestTransactionValueIsSigned(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := NewTransaction("test", TxStake, priv.Public().Hex(), 0, 0, big.NewInt(50), StakePayload{})
	require.NoError(t, err)
	tx.Sign(priv)
	require.NoError(t, tx.Verify())
	assert.Equal(t, "50", tx.PaymentValue().String())

	tx.Value = big.NewInt(-50)
	assert.Error(t, tx.Verify())

	// a nil value hashes the same as zero
	a, err := NewTransaction("test", TxClaimRewards, priv.Public().Hex(), 1, 0, nil, nil)
	require.NoError(t, err)
	b := *a
	b.Value = new(big.Int)
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestEpochAt(t *testing.T) {
	assert.Equal(t, uint64(0), EpochAt(0, 10))
	assert.Equal(t, uint64(0), EpochAt(9, 10))
	assert.Equal(t, uint64(1), EpochAt(10, 10))
	assert.Equal(t, uint64(0), EpochAt(500, 0))
	assert.Equal(t, uint64(0), EpochAt(-3, 10))
}

func TestMempoolPruneAndSenderCount(t *testing.T) {
	alice, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	bob, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	m := NewMempool()
	old := signedTx(t, alice, 0)
	require.NoError(t, m.Add(old))
	fresh := signedTx(t, bob, 0)
	require.NoError(t, m.Add(fresh))
	require.NoError(t, m.Add(signedTx(t, alice, 1)))
	assert.Equal(t, 2, m.PendingFrom(alice.Public().Hex()))
	assert.Equal(t, 1, m.PendingFrom(bob.Public().Hex()))

	// nothing has aged out yet
	assert.Empty(t, m.Prune())

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	pruned := m.Prune()
	assert.Len(t, pruned, 3)
	assert.Contains(t, pruned, old.ID)
	assert.Zero(t, m.Size())
	assert.Zero(t, m.PendingFrom(alice.Public().Hex()))
}
