package staking

import "github.com/pkg/errors"

// Precondition failures. Each aborts the whole operation with no writes and
// no transfers.
var (
	ErrInvalidPayment       = errors.New("must pay more than 0")
	ErrNotStaked            = errors.New("must stake first")
	ErrInvalidUnstakeAmount = errors.New("invalid unstake amount")
)

// Host-level failures.
var (
	ErrEmptyPool           = errors.New("pool balance is zero")
	ErrInsufficientCustody = errors.New("insufficient custody balance")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrAlreadyInitialized  = errors.New("ledger already initialized")
	ErrNotInitialized      = errors.New("ledger not initialized")
)
