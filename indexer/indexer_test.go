package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolstake/events"
	"github.com/tolelom/tolstake/internal/testutil"
)

func paid(addr, amount string, height int64) events.Event {
	return events.Event{
		Type:        events.EventRewardPaid,
		TxID:        "tx-" + amount,
		BlockHeight: height,
		Data:        map[string]any{"address": addr, "amount": amount, "block": uint64(height)},
	}
}

func TestRewardHistoryAccumulates(t *testing.T) {
	em := events.NewEmitter()
	idx := New(testutil.NewMemDB(), em)

	em.Emit(paid("alice", "100", 3))
	em.Emit(paid("alice", "250", 7))
	em.Emit(paid("bob", "5", 7))

	h, err := idx.RewardHistory("alice")
	require.NoError(t, err)
	assert.Equal(t, "350", h.TotalPaid)
	require.Len(t, h.Payouts, 2)
	assert.Equal(t, Entry{Kind: events.EventRewardPaid, Amount: "250", TxID: "tx-250", BlockHeight: 7}, h.Payouts[1])

	total, err := idx.TotalRewardsPaid()
	require.NoError(t, err)
	assert.Equal(t, "355", total.String())
}

func TestRewardHistoryUnknown(t *testing.T) {
	idx := New(testutil.NewMemDB(), events.NewEmitter())

	h, err := idx.RewardHistory("nobody")
	require.NoError(t, err)
	assert.Equal(t, "0", h.TotalPaid)
	assert.Empty(t, h.Payouts)

	total, err := idx.TotalRewardsPaid()
	require.NoError(t, err)
	assert.Zero(t, total.Sign())
}

func TestMalformedEventsIgnored(t *testing.T) {
	em := events.NewEmitter()
	db := testutil.NewMemDB()
	New(db, em)

	em.Emit(events.Event{Type: events.EventRewardPaid, Data: map[string]any{"address": "alice"}})
	em.Emit(events.Event{Type: events.EventRewardPaid, Data: map[string]any{"amount": "10"}})
	em.Emit(paid("alice", "-4", 1))
	assert.Zero(t, db.Len())
}

func TestActionsRecorded(t *testing.T) {
	em := events.NewEmitter()
	idx := New(testutil.NewMemDB(), em)

	em.Emit(events.Event{Type: events.EventStake, BlockHeight: 1, Data: map[string]any{"address": "alice", "amount": "40"}})
	em.Emit(events.Event{Type: events.EventUnstake, BlockHeight: 4, Data: map[string]any{"address": "alice", "amount": "15"}})

	list, err := idx.Actions("alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, events.EventStake, list[0].Kind)
	assert.Equal(t, "15", list[1].Amount)
	assert.Equal(t, int64(4), list[1].BlockHeight)
}

func TestHistoryBounded(t *testing.T) {
	em := events.NewEmitter()
	idx := New(testutil.NewMemDB(), em)

	for i := 0; i < maxEntries+10; i++ {
		em.Emit(paid("alice", "1", int64(i)))
	}
	h, err := idx.RewardHistory("alice")
	require.NoError(t, err)
	assert.Len(t, h.Payouts, maxEntries)
	assert.Equal(t, int64(10), h.Payouts[0].BlockHeight)
	// the running total still counts dropped entries
	assert.Equal(t, "266", h.TotalPaid)
}
