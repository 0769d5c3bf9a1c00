package vm

import (
	"math"
	"math/big"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/events"
	"github.com/tolelom/tolstake/internal/logging"
)

var logger = logging.Logger("vm")

// Context is passed to every Handler and provides access to the chain state,
// the current block and the triggering transaction. It also serves as the
// staking host: the block height is the accrual nonce, the header carries the
// epoch and the wall-clock timestamp.
type Context struct {
	State core.State
	Block *core.Block
	Tx    *core.Transaction

	pending []events.Event
}

// NewContext builds a handler context for tx inside block.
func NewContext(state core.State, block *core.Block, tx *core.Transaction) *Context {
	return &Context{State: state, Block: block, Tx: tx}
}

func (c *Context) Caller() string         { return c.Tx.From }
func (c *Context) BlockNonce() uint64     { return uint64(c.Block.Header.Height) }
func (c *Context) BlockEpoch() uint64     { return c.Block.Header.Epoch }
func (c *Context) BlockTimestamp() uint64 { return uint64(c.Block.Header.Timestamp) }

// Payment returns the value attached to the transaction (zero when absent).
func (c *Context) Payment() *big.Int { return c.Tx.PaymentValue() }

// Emit queues ev. Queued events reach subscribers only if the transaction
// commits.
func (c *Context) Emit(ev events.Event) {
	ev.TxID = c.Tx.ID
	ev.BlockHeight = c.Block.Header.Height
	c.pending = append(c.pending, ev)
}

// Events returns the events queued so far.
func (c *Context) Events() []events.Event { return c.pending }

// Executor applies transactions to the state using a Handler registry.
type Executor struct {
	state    core.State
	emitter  *events.Emitter
	chainID  string
	registry *Registry
}

// NewExecutor creates an Executor over the global registry.
func NewExecutor(state core.State, emitter *events.Emitter, chainID string) *Executor {
	return NewExecutorWithRegistry(state, emitter, chainID, globalRegistry)
}

// NewExecutorWithRegistry creates an Executor dispatching through reg.
func NewExecutorWithRegistry(state core.State, emitter *events.Emitter, chainID string, reg *Registry) *Executor {
	return &Executor{state: state, emitter: emitter, chainID: chainID, registry: reg}
}

// ExecuteBlock applies all transactions in block sequentially.
// A failing transaction causes the whole block to be rejected; this is the
// path for replaying a block that was already produced.
// EventBlockCommit is emitted by the caller (consensus) after signing so
// the event carries the correct block hash.
func (e *Executor) ExecuteBlock(block *core.Block) error {
	for _, tx := range block.Transactions {
		if err := e.ExecuteTx(block, tx); err != nil {
			return errors.Wrapf(err, "tx %s failed", tx.ID)
		}
	}
	return nil
}

// ExecuteTx applies tx and, on success, publishes its events.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	evs, err := e.ApplyTx(block, tx)
	if err != nil {
		return err
	}
	if e.emitter != nil {
		for _, ev := range evs {
			e.emitter.Emit(ev)
		}
	}
	return nil
}

// ApplyTx verifies and executes a single transaction with snapshot/rollback
// and returns the events it produced, ending with EventTxExecuted. Nothing
// is published; the caller decides when the events become visible.
// On failure every write made by the transaction, fee included, is undone.
func (e *Executor) ApplyTx(block *core.Block, tx *core.Transaction) ([]events.Event, error) {
	if err := tx.Verify(); err != nil {
		return nil, errors.Wrap(err, "signature")
	}
	if tx.ChainID != e.chainID {
		return nil, errors.Errorf("chain id mismatch: got %q want %q", tx.ChainID, e.chainID)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, errors.Wrap(err, "snapshot")
	}

	ctx := NewContext(e.state, block, tx)
	if err := e.applyTx(ctx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, errors.Wrapf(err, "revert snapshot after tx failure (revert: %v)", revertErr)
		}
		logger.Debug().Str("tx", tx.ID).Str("type", string(tx.Type)).Err(err).Msg("tx reverted")
		return nil, err
	}

	return append(ctx.pending, events.Event{
		Type:        events.EventTxExecuted,
		TxID:        tx.ID,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
	}), nil
}

// applyTx deducts the fee, increments the nonce, then dispatches to the handler.
func (e *Executor) applyTx(ctx *Context) error {
	tx := ctx.Tx
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return errors.Wrap(err, "get account")
	}
	if acc.Nonce != tx.Nonce {
		return errors.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	fee := new(big.Int).SetUint64(tx.Fee)
	if acc.Balance.Cmp(fee) < 0 {
		return errors.Errorf("insufficient balance for fee: have %s need %s", acc.Balance, fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return errors.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance.Sub(acc.Balance, fee)
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}
	return e.registry.Execute(tx.Type, ctx, tx.Payload)
}
