package testutil

import (
	"math/big"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/events"
)

// Host is a settable execution environment for driving ledger operations
// directly in tests.
type Host struct {
	Addr      string
	Nonce     uint64
	Epoch     uint64
	Timestamp uint64
	Events    []events.Event
}

func (h *Host) Caller() string         { return h.Addr }
func (h *Host) BlockNonce() uint64     { return h.Nonce }
func (h *Host) BlockEpoch() uint64     { return h.Epoch }
func (h *Host) BlockTimestamp() uint64 { return h.Timestamp }
func (h *Host) Emit(ev events.Event)   { h.Events = append(h.Events, ev) }

// As returns a copy of h acting for addr with no recorded events.
func (h *Host) As(addr string) *Host {
	return &Host{Addr: addr, Nonce: h.Nonce, Epoch: h.Epoch, Timestamp: h.Timestamp}
}

// EventsOf returns the recorded events of type typ.
func (h *Host) EventsOf(typ events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range h.Events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Fund sets the balance of addr in state.
func Fund(state core.State, addr string, balance *big.Int) error {
	acc, err := state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Set(balance)
	return state.SetAccount(acc)
}

// Balance returns the balance of addr in state, or nil on error.
func Balance(state core.State, addr string) *big.Int {
	acc, err := state.GetAccount(addr)
	if err != nil {
		return nil
	}
	return acc.Balance
}

// Int parses a decimal string; it panics on malformed input.
func Int(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("testutil: bad integer " + s)
	}
	return v
}
