package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/indexer"
	"github.com/tolelom/tolstake/staking"
)

// Viewer runs read-only functions against committed state.
type Viewer interface {
	View(fn func(state core.State) error) error
}

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	viewer  Viewer
	indexer *indexer.Indexer
	chainID string // expected chain_id; used to reject cross-chain replay transactions
}

// NewHandler creates an RPC Handler.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, viewer Viewer, idx *indexer.Indexer, chainID string) *Handler {
	return &Handler{bc: bc, mempool: mempool, viewer: viewer, indexer: idx, chainID: chainID}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return okResponse(req.ID, h.bc.Height())

	case "getBlock":
		return h.getBlock(req)

	case "getBalance":
		return h.getBalance(req)

	case "sendTx":
		return h.sendTx(req)

	case "getMempoolSize":
		return okResponse(req.ID, h.mempool.Size())

	case "calculateRewardsForUser":
		return h.calculateRewards(req)

	case "getContractBalance":
		return h.ledgerAmount(req, func(l *staking.Ledger) (*big.Int, error) { return l.LedgerBalance() })

	case "getStakeAmount":
		return h.getStakeAmount(req)

	case "getStakingPosition":
		return h.getStakingPosition(req)

	case "getStakedAddresses":
		return h.getStakedAddresses(req)

	case "contractCreationBlock":
		return h.ledgerUint(req, (*staking.Ledger).CreationBlock)

	case "contractCreationTimestamp":
		return h.ledgerUint(req, (*staking.Ledger).CreationTimestamp)

	case "getUpdatedTotalRewards":
		return h.ledgerAmount(req, func(l *staking.Ledger) (*big.Int, error) {
			tip, err := h.tip()
			if err != nil {
				return nil, err
			}
			return l.ReportedTotalRewards(tip)
		})

	case "getRewardHistory":
		return h.getRewardHistory(req)

	case "getStakingActions":
		return h.getStakingActions(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

type addressParams struct {
	Address string `json:"address"`
}

// decodeParams unmarshals req.Params into out; absent params leave out as is.
func decodeParams(req Request, out any) error {
	if len(req.Params) == 0 || string(req.Params) == "null" {
		return nil
	}
	return json.Unmarshal(req.Params, out)
}

func (h *Handler) requireAddress(req Request) (string, *Response) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, err.Error())
		return "", &resp
	}
	if params.Address == "" {
		resp := errResponse(req.ID, CodeInvalidParams, "address is required")
		return "", &resp
	}
	return params.Address, nil
}

// ledgerErr maps ledger errors to response codes.
func ledgerErr(id any, err error) Response {
	switch {
	case errors.Is(err, staking.ErrNotStaked):
		return errResponse(id, CodeNotStaked, err.Error())
	case errors.Is(err, staking.ErrNotInitialized), errors.Is(err, core.ErrNotFound):
		return errResponse(id, CodeNotFound, err.Error())
	default:
		return errResponse(id, CodeInternalError, err.Error())
	}
}

// tipClock reads the block timestamp from a committed header.
type tipClock struct{ header core.BlockHeader }

func (c tipClock) BlockTimestamp() uint64 {
	if c.header.Timestamp < 0 {
		return 0
	}
	return uint64(c.header.Timestamp)
}

// tip returns the committed tip as a clock. Call it inside view so the
// header matches the state being read.
func (h *Handler) tip() (tipClock, error) {
	tip := h.bc.Tip()
	if tip == nil {
		return tipClock{}, errors.Wrap(core.ErrNotFound, "no blocks")
	}
	return tipClock{header: tip.Header}, nil
}

// view runs fn with a ledger over committed state.
func (h *Handler) view(fn func(l *staking.Ledger) error) error {
	return h.viewer.View(func(state core.State) error {
		return fn(staking.New(state))
	})
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if err := decodeParams(req, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}

	var block *core.Block
	var err error
	if params.Hash != "" {
		block, err = h.bc.GetBlock(params.Hash)
	} else if params.Height != nil {
		block, err = h.bc.GetBlockByHeight(*params.Height)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return ledgerErr(req.ID, err)
	}
	if block == nil {
		return errResponse(req.ID, CodeNotFound, "no block found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getBalance(req Request) Response {
	addr, bad := h.requireAddress(req)
	if bad != nil {
		return *bad
	}
	var result BalanceResult
	err := h.viewer.View(func(state core.State) error {
		acc, err := state.GetAccount(addr)
		if err != nil {
			return err
		}
		result = BalanceResult{
			Address:   addr,
			Balance:   acc.Balance.String(),
			Nonce:     acc.Nonce,
			NextNonce: acc.Nonce + uint64(h.mempool.PendingFrom(addr)),
		}
		return nil
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, result)
}

func (h *Handler) calculateRewards(req Request) Response {
	var params struct {
		Address string  `json:"address"`
		Block   *uint64 `json:"block"`
	}
	if err := decodeParams(req, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	var block uint64
	var reward *big.Int
	err := h.view(func(l *staking.Ledger) error {
		block = uint64(h.bc.Height())
		if params.Block != nil {
			block = *params.Block
		}
		var err error
		reward, err = l.PreviewRewards(params.Address, block)
		return err
	})
	if err != nil {
		return ledgerErr(req.ID, err)
	}
	return okResponse(req.ID, RewardPreviewResult{Address: params.Address, Block: block, Reward: reward.String()})
}

func (h *Handler) getStakeAmount(req Request) Response {
	addr, bad := h.requireAddress(req)
	if bad != nil {
		return *bad
	}
	return h.ledgerAmount(req, func(l *staking.Ledger) (*big.Int, error) { return l.StakeAmount(addr) })
}

func (h *Handler) getStakingPosition(req Request) Response {
	addr, bad := h.requireAddress(req)
	if bad != nil {
		return *bad
	}
	var pos *core.StakingPosition
	err := h.view(func(l *staking.Ledger) error {
		var err error
		pos, err = l.Position(addr)
		return err
	})
	if err != nil {
		return ledgerErr(req.ID, err)
	}
	return okResponse(req.ID, PositionResult{
		Address:         addr,
		StakeAmount:     pos.StakeAmount.String(),
		LastActionBlock: pos.LastActionBlock,
	})
}

func (h *Handler) getStakedAddresses(req Request) Response {
	var addrs []string
	err := h.view(func(l *staking.Ledger) error {
		var err error
		addrs, err = l.StakedAddresses()
		return err
	})
	if err != nil {
		return ledgerErr(req.ID, err)
	}
	if addrs == nil {
		addrs = []string{}
	}
	return okResponse(req.ID, addrs)
}

func (h *Handler) getRewardHistory(req Request) Response {
	if h.indexer == nil {
		return errResponse(req.ID, CodeInternalError, "indexer disabled")
	}
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		total, err := h.indexer.TotalRewardsPaid()
		if err != nil {
			return errResponse(req.ID, CodeInternalError, err.Error())
		}
		return okResponse(req.ID, AmountResult{Amount: total.String()})
	}
	hist, err := h.indexer.RewardHistory(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, hist)
}

func (h *Handler) getStakingActions(req Request) Response {
	if h.indexer == nil {
		return errResponse(req.ID, CodeInternalError, "indexer disabled")
	}
	addr, bad := h.requireAddress(req)
	if bad != nil {
		return *bad
	}
	list, err := h.indexer.Actions(addr)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if list == nil {
		list = []indexer.Entry{}
	}
	return okResponse(req.ID, list)
}

func (h *Handler) ledgerAmount(req Request, fn func(l *staking.Ledger) (*big.Int, error)) Response {
	var v *big.Int
	err := h.view(func(l *staking.Ledger) error {
		var err error
		v, err = fn(l)
		return err
	})
	if err != nil {
		return ledgerErr(req.ID, err)
	}
	return okResponse(req.ID, AmountResult{Amount: v.String()})
}

func (h *Handler) ledgerUint(req Request, fn func(l *staking.Ledger) (uint64, error)) Response {
	var v uint64
	err := h.view(func(l *staking.Ledger) error {
		var err error
		v, err = fn(l)
		return err
	})
	if err != nil {
		return ledgerErr(req.ID, err)
	}
	return okResponse(req.ID, v)
}

func (h *Handler) sendTx(req Request) Response {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Reject transactions destined for a different network to prevent
	// cross-chain replay attacks.
	if tx.ChainID != h.chainID {
		return errResponse(req.ID, CodeInvalidParams,
			fmt.Sprintf("chain ID mismatch: got %q want %q", tx.ChainID, h.chainID))
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	if err := h.mempool.Add(&tx); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}
