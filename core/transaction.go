package core

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer     TxType = "transfer"
	TxStake        TxType = "stake"
	TxUnstake      TxType = "unstake"
	TxClaimRewards TxType = "claim_rewards"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// Value is the native-asset payment attached to the call; only payable
// transaction types accept a non-zero Value.
// Signature covers all fields except ID and Signature.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Value     *big.Int        `json:"value,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Value     string          `json:"value"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// PaymentValue returns the attached payment, treating nil as zero.
func (tx *Transaction) PaymentValue() *big.Int {
	if tx.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(tx.Value)
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Value:     tx.PaymentValue().String(),
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	if tx.Value != nil && tx.Value.Sign() < 0 {
		return errors.New("negative value")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return errors.Wrap(err, "invalid from (must be ed25519 pubkey hex)")
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
// value may be nil for non-payable calls.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, value *big.Int, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	tx := &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}
	if value != nil {
		tx.Value = new(big.Int).Set(value)
	}
	return tx, nil
}

// ---- Payload types ----

// TransferPayload transfers native tokens.
type TransferPayload struct {
	To     string   `json:"to"`
	Amount *big.Int `json:"amount"`
}

// StakePayload is empty: the deposit travels in Transaction.Value.
type StakePayload struct{}

// UnstakePayload withdraws principal. A nil Amount withdraws everything.
type UnstakePayload struct {
	Amount *big.Int `json:"amount,omitempty"`
}

// ClaimRewardsPayload is empty: the caller claims for themself.
type ClaimRewardsPayload struct{}
