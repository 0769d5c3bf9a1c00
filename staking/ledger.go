// Package staking implements the staking ledger: participants deposit the
// native asset, accrue rewards pro rata to the live pool, and withdraw
// principal and rewards independently.
//
// Every mutating operation follows the same settlement discipline: pending
// reward is computed on the pre-mutation principal and paid out, the accrual
// clock is reset, and only then is principal changed. Each operation is
// all-or-nothing; a failed precondition or transfer leaves no writes behind.
package staking

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/events"
	"github.com/tolelom/tolstake/internal/logging"
)

var logger = logging.Logger("staking")

// Clock supplies the block timestamp in unix seconds.
type Clock interface {
	BlockTimestamp() uint64
}

// Host is the execution environment an operation runs in. It names the
// caller and supplies three distinct clocks: the block nonce drives accrual,
// the epoch seeds a new position's accrual clock, and the block timestamp
// only feeds the informational reward counter.
type Host interface {
	Clock
	Caller() string
	BlockNonce() uint64
	BlockEpoch() uint64
	// Emit publishes an event once the operation has succeeded.
	Emit(ev events.Event)
}

// Ledger is the explicit ledger state every operation runs against.
type Ledger struct {
	state     core.State
	positions *PositionStore
	active    *ActiveSet
	custody   *Custody
}

// New returns a Ledger over state using the default custody Address.
func New(state core.State) *Ledger {
	return NewWithCustody(state, Address)
}

// NewWithCustody returns a Ledger whose pool is the account at custodyAddr.
func NewWithCustody(state core.State, custodyAddr string) *Ledger {
	return &Ledger{
		state:     state,
		positions: NewPositionStore(state),
		active:    NewActiveSet(state),
		custody:   NewCustody(state, custodyAddr),
	}
}

// Custody returns the ledger's custody account handle.
func (l *Ledger) Custody() *Custody { return l.custody }

// Stake adds amount to the caller's principal. The payment must already be
// credited to custody (payable call semantics), so it counts towards the pool
// during settlement.
func (l *Ledger) Stake(host Host, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidPayment
	}
	caller := host.Caller()
	return l.atomically(host, func(out *[]events.Event) error {
		first, err := l.active.Insert(caller)
		if err != nil {
			return err
		}
		var pos *core.StakingPosition
		if first {
			pos = &core.StakingPosition{
				StakeAmount:     new(big.Int),
				LastActionBlock: host.BlockEpoch(),
			}
		} else {
			var ok bool
			pos, ok, err = l.positions.Get(caller)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Errorf("active identity %s has no position", caller)
			}
		}

		if err := l.settle(host, caller, pos, out); err != nil {
			return err
		}
		pos.StakeAmount.Add(pos.StakeAmount, amount)
		if err := l.positions.Set(caller, pos); err != nil {
			return err
		}

		*out = append(*out, ledgerEvent(events.EventStake, caller, amount, pos))
		logger.Debug().Str("addr", caller).Str("amount", amount.String()).Bool("first", first).Msg("staked")
		return nil
	})
}

// Unstake withdraws amount of principal, or all of it when amount is nil.
// A position that reaches zero is deleted and leaves the active set.
func (l *Ledger) Unstake(host Host, amount *big.Int) error {
	caller := host.Caller()
	return l.atomically(host, func(out *[]events.Event) error {
		pos, err := l.requireStaked(caller)
		if err != nil {
			return err
		}
		target := pos.StakeAmount
		if amount != nil {
			target = amount
		}
		target = new(big.Int).Set(target)
		if target.Sign() <= 0 || target.Cmp(pos.StakeAmount) > 0 {
			return ErrInvalidUnstakeAmount
		}

		if err := l.settle(host, caller, pos, out); err != nil {
			return err
		}
		pos.StakeAmount.Sub(pos.StakeAmount, target)

		if pos.StakeAmount.Sign() > 0 {
			if err := l.positions.Set(caller, pos); err != nil {
				return err
			}
		} else {
			if err := l.positions.Remove(caller); err != nil {
				return err
			}
			if err := l.active.Remove(caller); err != nil {
				return err
			}
		}

		if err := l.custody.TransferOut(caller, target); err != nil {
			return errors.Wrap(err, "pay out principal")
		}
		*out = append(*out, ledgerEvent(events.EventUnstake, caller, target, pos))
		logger.Debug().Str("addr", caller).Str("amount", target.String()).Msg("unstaked")
		return nil
	})
}

// ClaimRewards settles the caller's pending reward without touching principal.
func (l *Ledger) ClaimRewards(host Host) error {
	caller := host.Caller()
	return l.atomically(host, func(out *[]events.Event) error {
		pos, err := l.requireStaked(caller)
		if err != nil {
			return err
		}
		if err := l.settle(host, caller, pos, out); err != nil {
			return err
		}
		return l.positions.Set(caller, pos)
	})
}

// settle pays the reward accrued on pos's current principal and moves its
// accrual clock to the current block nonce, even when the reward is zero.
func (l *Ledger) settle(host Host, caller string, pos *core.StakingPosition, out *[]events.Event) error {
	pool, err := l.custody.Balance()
	if err != nil {
		return err
	}
	current := host.BlockNonce()
	reward, err := Accrue(pos, current, pool)
	if err != nil {
		return errors.Wrapf(err, "accrue rewards for %s", caller)
	}
	pos.LastActionBlock = current

	if reward.Sign() > 0 {
		if err := l.custody.TransferOut(caller, reward); err != nil {
			return errors.Wrap(err, "pay out reward")
		}
		*out = append(*out, events.Event{
			Type: events.EventRewardPaid,
			Data: map[string]any{
				"address": caller,
				"amount":  reward.String(),
				"block":   current,
			},
		})
	}
	return nil
}

func (l *Ledger) requireStaked(caller string) (*core.StakingPosition, error) {
	staked, err := l.active.Contains(caller)
	if err != nil {
		return nil, err
	}
	if !staked {
		return nil, ErrNotStaked
	}
	pos, ok, err := l.positions.Get(caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("active identity %s has no position", caller)
	}
	return pos, nil
}

// atomically runs fn inside a state snapshot. On error the snapshot is
// reverted and the collected events are dropped; on success they are handed
// to the host.
func (l *Ledger) atomically(host Host, fn func(out *[]events.Event) error) error {
	snap, err := l.state.Snapshot()
	if err != nil {
		return errors.Wrap(err, "snapshot")
	}
	var pending []events.Event
	if err := fn(&pending); err != nil {
		if revertErr := l.state.RevertToSnapshot(snap); revertErr != nil {
			return errors.Wrapf(err, "revert failed (%v)", revertErr)
		}
		return err
	}
	for _, ev := range pending {
		host.Emit(ev)
	}
	return nil
}

func ledgerEvent(typ events.EventType, addr string, amount *big.Int, pos *core.StakingPosition) events.Event {
	return events.Event{
		Type: typ,
		Data: map[string]any{
			"address":      addr,
			"amount":       amount.String(),
			"stake_amount": pos.StakeAmount.String(),
		},
	}
}
