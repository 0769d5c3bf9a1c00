package wallet

import (
	"math/big"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" address).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// NewTx creates a signed transaction. chainID must match the target network
// and nonce the account's current nonce. value is nil for non-payable types.
func (w *Wallet) NewTx(chainID string, typ core.TxType, nonce, fee uint64, value *big.Int, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(chainID, typ, w.pub.Hex(), nonce, fee, value, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Transfer creates a signed transfer transaction.
func (w *Wallet) Transfer(chainID, to string, amount *big.Int, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransfer, nonce, fee, nil, core.TransferPayload{
		To:     to,
		Amount: amount,
	})
}

// Stake creates a signed stake transaction carrying amount as its payment.
func (w *Wallet) Stake(chainID string, amount *big.Int, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxStake, nonce, fee, amount, core.StakePayload{})
}

// Unstake creates a signed unstake transaction. A nil amount withdraws the
// whole position.
func (w *Wallet) Unstake(chainID string, amount *big.Int, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxUnstake, nonce, fee, nil, core.UnstakePayload{Amount: amount})
}

// ClaimRewards creates a signed claim transaction.
func (w *Wallet) ClaimRewards(chainID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxClaimRewards, nonce, fee, nil, core.ClaimRewardsPayload{})
}
