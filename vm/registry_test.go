package vm

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/events"
)

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	var got json.RawMessage
	r.Register("ping", func(ctx *Context, payload json.RawMessage) error {
		got = payload
		return nil
	})

	ctx := &Context{Tx: &core.Transaction{}, Block: &core.Block{}}
	require.NoError(t, r.Execute("ping", ctx, json.RawMessage(`{"x":1}`)))
	assert.JSONEq(t, `{"x":1}`, string(got))

	assert.ErrorIs(t, r.Execute("pong", ctx, nil), ErrUnknownTxType)
}

func TestRegistryPayable(t *testing.T) {
	r := NewRegistry()
	noop := func(*Context, json.RawMessage) error { return nil }
	r.Register("plain", noop)
	r.RegisterPayable("paid", noop)

	assert.False(t, r.Payable("plain"))
	assert.True(t, r.Payable("paid"))
	assert.False(t, r.Payable("missing"))

	ctx := &Context{Tx: &core.Transaction{Value: big.NewInt(3)}, Block: &core.Block{}}
	assert.ErrorIs(t, r.Execute("plain", ctx, nil), ErrNotPayable)
	assert.NoError(t, r.Execute("paid", ctx, nil))
	assert.ElementsMatch(t, []core.TxType{"plain", "paid"}, r.Types())
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	noop := func(*Context, json.RawMessage) error { return nil }
	r.Register("dup", noop)
	assert.Panics(t, func() { r.RegisterPayable("dup", noop) })
}

func TestContextHost(t *testing.T) {
	b := core.NewBlock(42, 10, "prev", "p", nil)
	b.Header.Timestamp = 1_700_000_123
	tx := &core.Transaction{ID: "tx1", From: "alice"}
	ctx := NewContext(nil, b, tx)

	assert.Equal(t, "alice", ctx.Caller())
	assert.Equal(t, uint64(42), ctx.BlockNonce())
	assert.Equal(t, uint64(4), ctx.BlockEpoch())
	assert.Equal(t, uint64(1_700_000_123), ctx.BlockTimestamp())
	assert.Zero(t, ctx.Payment().Sign())

	ctx.Emit(events.Event{Type: events.EventStake})
	require.Len(t, ctx.Events(), 1)
	assert.Equal(t, "tx1", ctx.Events()[0].TxID)
	assert.Equal(t, int64(42), ctx.Events()[0].BlockHeight)
}
