// Package consensus implements single-authority block production.
// One validator proposes every block. Each block is signed by the proposer;
// VerifyChain checks the signatures and linkage of a stored chain.
package consensus

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/config"
	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/crypto"
	"github.com/tolelom/tolstake/events"
	"github.com/tolelom/tolstake/internal/logging"
	"github.com/tolelom/tolstake/staking"
	"github.com/tolelom/tolstake/storage"
	"github.com/tolelom/tolstake/vm"
)

var logger = logging.Logger("consensus")

const defaultMaxBlockTxs = 500

// Producer is the block production engine. Block execution and commit hold
// an exclusive lock; View holds a shared one and only sees committed state.
type Producer struct {
	mu sync.RWMutex

	cfg     *config.Config
	bc      *core.Blockchain
	db      storage.DB
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey

	now func() time.Time
}

// New creates a Producer for the local validator identified by privKey.
// state must be the write-buffered StateDB over db that exec applies to.
func New(
	cfg *config.Config,
	bc *core.Blockchain,
	db storage.DB,
	state core.State,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
) *Producer {
	return &Producer{
		cfg:     cfg,
		bc:      bc,
		db:      db,
		state:   state,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		privKey: privKey,
		pubKey:  privKey.Public(),
		now:     time.Now,
	}
}

// IsProposer reports whether this node is the configured validator.
func (p *Producer) IsProposer() bool {
	return p.cfg.Validator != "" && p.cfg.Validator == p.pubKey.Hex()
}

// View runs fn against committed state. The state handed to fn has an empty
// write buffer; anything fn writes is discarded.
func (p *Producer) View(fn func(state core.State) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fn(storage.NewStateDB(p.db))
}

// ProduceBlock builds, executes, signs and commits the next block. Pending
// transactions that fail are reverted, reported as EventTxFailed and dropped
// from the mempool; they do not invalidate the block.
func (p *Producer) ProduceBlock() (*core.Block, error) {
	if !p.IsProposer() {
		return nil, errors.New("not the configured validator")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	limit := p.cfg.MaxBlockTxs
	if limit <= 0 {
		limit = defaultMaxBlockTxs
	}
	if pruned := p.mempool.Prune(); len(pruned) > 0 {
		logger.Info().Int("count", len(pruned)).Msg("pruned expired txs")
	}
	pending := p.mempool.Pending(limit)

	tip := p.bc.Tip()
	if tip == nil {
		return nil, errors.New("chain has no genesis block")
	}
	nextHeight := tip.Header.Height + 1

	block := core.NewBlock(nextHeight, p.cfg.EpochLength, tip.Hash, p.pubKey.Hex(), nil)
	block.Header.Timestamp = p.now().Unix()

	snap, err := p.state.Snapshot()
	if err != nil {
		return nil, errors.Wrap(err, "snapshot")
	}

	// events are held back until the block and its state are both persisted
	var (
		included, dropped []*core.Transaction
		held              []events.Event
	)
	for _, tx := range pending {
		evs, err := p.exec.ApplyTx(block, tx)
		if err != nil {
			dropped = append(dropped, tx)
			logger.Info().Str("tx", tx.ID).Str("type", string(tx.Type)).Err(err).Msg("tx dropped")
			held = append(held, events.Event{
				Type:        events.EventTxFailed,
				TxID:        tx.ID,
				BlockHeight: nextHeight,
				Data:        map[string]any{"type": string(tx.Type), "from": tx.From, "error": err.Error()},
			})
			continue
		}
		included = append(included, tx)
		held = append(held, evs...)
	}
	block.Transactions = included
	block.Header.TxRoot = core.ComputeTxRoot(included)

	// Compute root from the write buffer BEFORE flushing so that if AddBlock
	// fails the state has not yet been persisted and the node stays consistent.
	block.Header.StateRoot = p.state.ComputeRoot()
	block.Sign(p.privKey)

	if err := p.bc.AddBlock(block); err != nil {
		if revertErr := p.state.RevertToSnapshot(snap); revertErr != nil {
			logger.Error().Err(revertErr).Msg("revert after failed block store")
		}
		return nil, errors.Wrap(err, "add block")
	}

	// Flush state only after the block is safely stored.
	if err := p.state.Commit(); err != nil {
		logger.Fatal().Err(err).Int64("height", block.Header.Height).Msg("block stored but state commit failed")
	}

	for _, ev := range held {
		p.emitter.Emit(ev)
	}
	p.emitter.Emit(events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: block.Header.Height,
		Data:        p.commitData(block, len(dropped)),
	})

	ids := make([]string, 0, len(pending))
	for _, tx := range pending {
		ids = append(ids, tx.ID)
	}
	p.mempool.Remove(ids)

	logger.Debug().Int64("height", block.Header.Height).Uint64("epoch", block.Header.Epoch).
		Int("txs", len(included)).Int("dropped", len(dropped)).Msg("block committed")
	return block, nil
}

// commitData summarises a committed block together with the ledger's pool
// and active-set size.
func (p *Producer) commitData(block *core.Block, dropped int) map[string]any {
	data := map[string]any{
		"hash":    block.Hash,
		"epoch":   block.Header.Epoch,
		"txs":     len(block.Transactions),
		"dropped": dropped,
	}
	ledger := staking.New(p.state)
	if pool, err := ledger.LedgerBalance(); err == nil {
		data["pool_balance"] = pool.String()
	}
	if members, err := ledger.StakedAddresses(); err == nil {
		data["active_positions"] = len(members)
	}
	return data
}

// Run starts the block-production loop with the given interval. Empty blocks
// are produced too, since the block height is the reward clock. It blocks
// until ctx is cancelled.
func (p *Producer) Run(ctx context.Context, interval time.Duration) error {
	if !p.IsProposer() {
		logger.Warn().Str("pubkey", p.pubKey.Hex()).Msg("not the configured validator; producing nothing")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !p.IsProposer() {
				continue
			}
			if _, err := p.ProduceBlock(); err != nil {
				logger.Error().Err(err).Msg("produce block")
			}
		}
	}
}

// ValidateBlock checks that block was signed by validator and follows prev.
// prev is nil for the genesis block, whose TxRoot carries the chain id.
func ValidateBlock(block, prev *core.Block, validator string) error {
	if block.Header.Proposer != validator {
		return errors.Errorf("wrong proposer: got %s want %s", block.Header.Proposer, validator)
	}

	pub, err := crypto.PubKeyFromHex(block.Header.Proposer)
	if err != nil {
		return errors.Wrap(err, "invalid proposer pubkey")
	}
	if block.ComputeHash() != block.Hash {
		return errors.New("block hash does not match header")
	}
	if err := block.Verify(pub); err != nil {
		return errors.Wrap(err, "block signature invalid")
	}

	if prev == nil {
		if block.Header.Height != 0 || !config.IsGenesisHash(block.Header.PrevHash) {
			return errors.New("genesis must be height 0 with the canonical prev-hash")
		}
		return nil
	}
	if block.Header.TxRoot != core.ComputeTxRoot(block.Transactions) {
		return errors.New("tx root mismatch")
	}
	if block.Header.PrevHash != prev.Hash {
		return errors.Errorf("prev_hash mismatch: got %s want %s", block.Header.PrevHash, prev.Hash)
	}
	if block.Header.Height != prev.Header.Height+1 {
		return errors.Errorf("height mismatch: got %d want %d", block.Header.Height, prev.Header.Height+1)
	}
	if block.Header.Epoch < prev.Header.Epoch {
		return errors.Errorf("epoch went backwards: %d after %d", block.Header.Epoch, prev.Header.Epoch)
	}
	return nil
}

// VerifyChain walks bc from genesis to the tip and validates every block.
// It returns the number of blocks checked.
func VerifyChain(bc *core.Blockchain, validator string) (int64, error) {
	var prev *core.Block
	var checked int64
	err := bc.Walk(0, func(block *core.Block) error {
		if err := ValidateBlock(block, prev, validator); err != nil {
			return errors.Wrapf(err, "block %d", block.Header.Height)
		}
		prev = block
		checked++
		return nil
	})
	return checked, err
}
