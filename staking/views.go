package staking

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
)

// ---- read-only views ----
//
// Views never write state or move funds.

// PreviewRewards returns the reward addr would receive if it settled at
// currentBlock. An identity without a position has nothing pending.
func (l *Ledger) PreviewRewards(addr string, currentBlock uint64) (*big.Int, error) {
	pos, ok, err := l.positions.Get(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	pool, err := l.custody.Balance()
	if err != nil {
		return nil, err
	}
	return Accrue(pos, currentBlock, pool)
}

// LedgerBalance returns the live pooled balance.
func (l *Ledger) LedgerBalance() (*big.Int, error) {
	return l.custody.Balance()
}

// StakeAmount returns addr's principal, or ErrNotStaked.
func (l *Ledger) StakeAmount(addr string) (*big.Int, error) {
	pos, err := l.Position(addr)
	if err != nil {
		return nil, err
	}
	return pos.StakeAmount, nil
}

// Position returns a copy of addr's stored position, or ErrNotStaked.
func (l *Ledger) Position(addr string) (*core.StakingPosition, error) {
	pos, ok, err := l.positions.Get(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(ErrNotStaked, addr)
	}
	return pos.Copy(), nil
}

// StakedAddresses lists the active set.
func (l *Ledger) StakedAddresses() ([]string, error) {
	return l.active.Members()
}

// ReportedTotalRewards recomputes the informational reward counter at the
// clock's block timestamp. Nothing is stored.
func (l *Ledger) ReportedTotalRewards(clock Clock) (*big.Int, error) {
	creation, err := l.CreationTimestamp()
	if err != nil {
		return nil, err
	}
	return TotalRewardsAt(creation, clock.BlockTimestamp()), nil
}

// CachedTotalRewards returns the stored reward counter.
func (l *Ledger) CachedTotalRewards() (*big.Int, error) {
	raw, err := l.state.GetGlobal(KeyTotalRewards)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, errors.Errorf("decode global %s: %q", KeyTotalRewards, raw)
	}
	return v, nil
}

// CreationTimestamp returns the wall-clock time captured at Init.
func (l *Ledger) CreationTimestamp() (uint64, error) {
	return getUint(l.state, KeyCreationTimestamp)
}

// CreationBlock returns the epoch captured at Init.
func (l *Ledger) CreationBlock() (uint64, error) {
	return getUint(l.state, KeyCreationEpoch)
}
