package core

import "math/big"

// Account holds a participant's native-asset balance and replay-protection nonce.
// Address is the hex-encoded ed25519 public key, or a reserved custody address.
type Account struct {
	Address string   `json:"address"`
	Balance *big.Int `json:"balance"`
	Nonce   uint64   `json:"nonce"`
}

// NewAccount returns a zero-balance account for address.
func NewAccount(address string) *Account {
	return &Account{Address: address, Balance: new(big.Int)}
}

// StakingPosition is one participant's open stake.
// StakeAmount excludes any pending reward; LastActionBlock is the block
// counter recorded at the last settlement.
type StakingPosition struct {
	StakeAmount     *big.Int `json:"stake_amount"`
	LastActionBlock uint64   `json:"last_action_block"`
}

// Copy returns a deep copy of p.
func (p *StakingPosition) Copy() *StakingPosition {
	return &StakingPosition{
		StakeAmount:     new(big.Int).Set(p.StakeAmount),
		LastActionBlock: p.LastActionBlock,
	}
}

// State is the full ledger state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Positions. GetPosition returns ErrNotFound for an absent identity.
	GetPosition(address string) (*StakingPosition, error)
	SetPosition(address string, pos *StakingPosition) error
	DeletePosition(address string) error

	// Active set
	IsActive(address string) (bool, error)
	AddActive(address string) error
	RemoveActive(address string) error
	ActiveAddresses() ([]string, error)

	// Globals. GetGlobal returns ErrNotFound for an unset key.
	GetGlobal(key string) ([]byte, error)
	SetGlobal(key string, value []byte) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}
