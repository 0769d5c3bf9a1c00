package core

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	maxMempoolSize = 10_000
	maxTxAge       = time.Hour
	maxTxFuture    = 5 * time.Minute
)

var (
	ErrMempoolFull  = errors.New("mempool full")
	ErrDuplicateTx  = errors.New("tx already in pool")
	ErrTxExpired    = errors.New("transaction expired")
	ErrTxFromFuture = errors.New("transaction timestamp too far in the future")
)

// Mempool holds signed transactions waiting for the next block. Iteration
// order is arrival order so block contents are reproducible.
type Mempool struct {
	mu       sync.RWMutex
	txs      map[string]*Transaction
	ord      []string
	bySender map[string]int
	now      func() time.Time
}

// NewMempool creates an empty mempool.
func NewMempool() *Mempool {
	return &Mempool{
		txs:      make(map[string]*Transaction),
		bySender: make(map[string]int),
		now:      time.Now,
	}
}

// checkAge rejects timestamps outside [now-1h, now+5m].
func checkAge(tx *Transaction, now time.Time) error {
	ts := time.Unix(0, tx.Timestamp)
	if now.Sub(ts) > maxTxAge {
		return ErrTxExpired
	}
	if ts.Sub(now) > maxTxFuture {
		return ErrTxFromFuture
	}
	return nil
}

// Add verifies the signature and timestamp window and queues tx.
func (m *Mempool) Add(tx *Transaction) error {
	if err := tx.Verify(); err != nil {
		return errors.Wrap(err, "invalid tx signature")
	}
	if err := checkAge(tx, m.now()); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.txs) >= maxMempoolSize {
		return ErrMempoolFull
	}
	if _, ok := m.txs[tx.ID]; ok {
		return ErrDuplicateTx
	}
	m.txs[tx.ID] = tx
	m.ord = append(m.ord, tx.ID)
	m.bySender[tx.From]++
	return nil
}

// Get returns a transaction by ID.
func (m *Mempool) Get(id string) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[id]
	return tx, ok
}

// Pending returns up to n queued transactions in arrival order.
func (m *Mempool) Pending(n int) []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Transaction, 0, min(n, len(m.ord)))
	for _, id := range m.ord {
		if len(out) >= n {
			break
		}
		out = append(out, m.txs[id])
	}
	return out
}

// PendingFrom reports how many queued transactions were sent by addr.
func (m *Mempool) PendingFrom(addr string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bySender[addr]
}

// Remove drops the given IDs. Unknown IDs are ignored.
func (m *Mempool) Remove(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(func(tx *Transaction) bool { return drop[tx.ID] })
}

// Prune drops transactions that have aged out of the acceptance window
// while queued and returns their IDs.
func (m *Mempool) Prune() []string {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var pruned []string
	m.removeLocked(func(tx *Transaction) bool {
		if checkAge(tx, now) == ErrTxExpired {
			pruned = append(pruned, tx.ID)
			return true
		}
		return false
	})
	return pruned
}

func (m *Mempool) removeLocked(drop func(*Transaction) bool) {
	kept := m.ord[:0]
	for _, id := range m.ord {
		tx := m.txs[id]
		if !drop(tx) {
			kept = append(kept, id)
			continue
		}
		delete(m.txs, id)
		if m.bySender[tx.From]--; m.bySender[tx.From] <= 0 {
			delete(m.bySender, tx.From)
		}
	}
	m.ord = kept
}

// Size returns the number of queued transactions.
func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}
