// Package economy registers native-asset transfers.
package economy

import (
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/events"
	"github.com/tolelom/tolstake/vm"
)

// ErrInsufficientBalance is returned when the sender cannot cover a transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

func init() {
	vm.Register(core.TxTransfer, handleTransfer)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.Wrap(err, "decode transfer payload")
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return errors.New("transfer amount must be > 0")
	}
	if p.To == "" {
		return errors.New("transfer to address required")
	}
	if err := Transfer(ctx.State, ctx.Tx.From, p.To, p.Amount); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventTokenTransfer,
		Data: map[string]any{
			"from":   ctx.Tx.From,
			"to":     p.To,
			"amount": p.Amount.String(),
		},
	})
	return nil
}

// Transfer moves amount from one account to another. Callers are expected to
// run it inside a snapshot; a failed debit writes nothing.
func Transfer(state core.State, from, to string, amount *big.Int) error {
	sender, err := state.GetAccount(from)
	if err != nil {
		return err
	}
	if sender.Balance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "have %s, need %s", sender.Balance, amount)
	}
	sender.Balance.Sub(sender.Balance, amount)
	if err := state.SetAccount(sender); err != nil {
		return err
	}

	recipient, err := state.GetAccount(to)
	if err != nil {
		return err
	}
	recipient.Balance.Add(recipient.Balance, amount)
	return state.SetAccount(recipient)
}
