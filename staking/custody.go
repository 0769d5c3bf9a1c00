package staking

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/crypto"
)

// Address is the custody account holding the pooled native asset. No private
// key exists for it.
var Address = crypto.ReservedAddress("staking-ledger")

// Custody moves native asset in and out of the ledger's account.
type Custody struct {
	state   core.State
	address string
}

// NewCustody returns a Custody for the account at address.
func NewCustody(state core.State, address string) *Custody {
	return &Custody{state: state, address: address}
}

// Address returns the custody account address.
func (c *Custody) Address() string { return c.address }

// Balance returns the live custody balance.
func (c *Custody) Balance() (*big.Int, error) {
	acc, err := c.state.GetAccount(c.address)
	if err != nil {
		return nil, errors.Wrap(err, "get custody account")
	}
	return new(big.Int).Set(acc.Balance), nil
}

// Receive moves amount from the account at from into custody.
func (c *Custody) Receive(from string, amount *big.Int) error {
	return move(c.state, from, c.address, amount, ErrInsufficientFunds)
}

// TransferOut pays amount from custody to the account at to.
func (c *Custody) TransferOut(to string, amount *big.Int) error {
	return move(c.state, c.address, to, amount, ErrInsufficientCustody)
}

func move(state core.State, from, to string, amount *big.Int, short error) error {
	if amount.Sign() < 0 {
		return errors.Errorf("negative transfer amount %s", amount)
	}
	src, err := state.GetAccount(from)
	if err != nil {
		return err
	}
	if src.Balance.Cmp(amount) < 0 {
		return errors.Wrapf(short, "have %s, need %s", src.Balance, amount)
	}
	src.Balance.Sub(src.Balance, amount)
	if err := state.SetAccount(src); err != nil {
		return err
	}
	dst, err := state.GetAccount(to)
	if err != nil {
		return err
	}
	dst.Balance.Add(dst.Balance, amount)
	return state.SetAccount(dst)
}
