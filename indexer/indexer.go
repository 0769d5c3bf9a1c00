// Package indexer maintains secondary indexes over committed ledger events so
// clients can query reward and stake history per identity without replaying
// blocks. The indexes are informational; the ledger never reads them.
package indexer

import (
	"encoding/json"
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/events"
	"github.com/tolelom/tolstake/internal/logging"
	"github.com/tolelom/tolstake/storage"
)

const (
	prefixRewards = "idx:rewards:"
	keyTotal      = "idx:total_rewards"
	prefixActions = "idx:actions:"

	// maxEntries bounds each per-identity list; older entries are dropped.
	maxEntries = 256
)

var logger = logging.Logger("indexer")

// Entry is one indexed ledger effect.
type Entry struct {
	Kind        events.EventType `json:"kind"`
	Amount      string           `json:"amount"`
	TxID        string           `json:"tx_id"`
	BlockHeight int64            `json:"block_height"`
}

// RewardHistory is the cumulative reward record of one identity.
type RewardHistory struct {
	Address   string  `json:"address"`
	TotalPaid string  `json:"total_paid"`
	Payouts   []Entry `json:"payouts"`
}

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	mu sync.Mutex
	db storage.DB
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db}
	emitter.Subscribe(events.EventRewardPaid, idx.onRewardPaid)
	emitter.Subscribe(events.EventStake, idx.onAction)
	emitter.Subscribe(events.EventUnstake, idx.onAction)
	return idx
}

// RewardHistory returns the reward record of addr. An identity that was never
// paid has a zero total and no payouts.
func (idx *Indexer) RewardHistory(addr string) (*RewardHistory, error) {
	h := &RewardHistory{Address: addr, TotalPaid: "0"}
	found, err := idx.getJSON(prefixRewards+addr, h)
	if err != nil {
		return nil, err
	}
	if !found {
		h.Payouts = []Entry{}
	}
	return h, nil
}

// TotalRewardsPaid returns the sum of every indexed payout.
func (idx *Indexer) TotalRewardsPaid() (*big.Int, error) {
	var s string
	found, err := idx.getJSON(keyTotal, &s)
	if err != nil || !found {
		return new(big.Int), err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("indexer: corrupt total %q", s)
	}
	return v, nil
}

// Actions returns the stake and unstake history of addr, oldest first.
func (idx *Indexer) Actions(addr string) ([]Entry, error) {
	var list []Entry
	if _, err := idx.getJSON(prefixActions+addr, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ---- event handlers ----

func (idx *Indexer) onRewardPaid(ev events.Event) {
	addr, _ := ev.Data["address"].(string)
	amount, ok := parseAmount(ev)
	if addr == "" || !ok {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	h := &RewardHistory{Address: addr, TotalPaid: "0"}
	if _, err := idx.getJSON(prefixRewards+addr, h); err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("load reward history")
		return
	}
	total, _ := new(big.Int).SetString(h.TotalPaid, 10)
	if total == nil {
		total = new(big.Int)
	}
	h.TotalPaid = total.Add(total, amount).String()
	h.Payouts = appendBounded(h.Payouts, entryOf(ev, amount))

	var grand string
	if _, err := idx.getJSON(keyTotal, &grand); err != nil {
		logger.Error().Err(err).Msg("load reward total")
		return
	}
	sum, ok := new(big.Int).SetString(grand, 10)
	if !ok {
		sum = new(big.Int)
	}
	sum.Add(sum, amount)

	batch := idx.db.NewBatch()
	if err := putJSON(batch, prefixRewards+addr, h); err != nil {
		logger.Error().Err(err).Msg("encode reward history")
		return
	}
	if err := putJSON(batch, keyTotal, sum.String()); err != nil {
		logger.Error().Err(err).Msg("encode reward total")
		return
	}
	if err := batch.Write(); err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("write reward index")
	}
}

func (idx *Indexer) onAction(ev events.Event) {
	addr, _ := ev.Data["address"].(string)
	amount, ok := parseAmount(ev)
	if addr == "" || !ok {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var list []Entry
	if _, err := idx.getJSON(prefixActions+addr, &list); err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("load actions")
		return
	}
	list = appendBounded(list, entryOf(ev, amount))
	batch := idx.db.NewBatch()
	if err := putJSON(batch, prefixActions+addr, list); err != nil {
		return
	}
	if err := batch.Write(); err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("write actions")
	}
}

// ---- helpers ----

func parseAmount(ev events.Event) (*big.Int, bool) {
	s, _ := ev.Data["amount"].(string)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

func entryOf(ev events.Event, amount *big.Int) Entry {
	return Entry{Kind: ev.Type, Amount: amount.String(), TxID: ev.TxID, BlockHeight: ev.BlockHeight}
}

func appendBounded(list []Entry, e Entry) []Entry {
	list = append(list, e)
	if len(list) > maxEntries {
		list = list[len(list)-maxEntries:]
	}
	return list
}

func (idx *Indexer) getJSON(key string, out any) (bool, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, errors.Wrap(err, "indexer unmarshal")
	}
	return true, nil
}

func putJSON(batch storage.Batch, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	batch.Set([]byte(key), data)
	return nil
}
