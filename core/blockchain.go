package core

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// StopWalk is returned from a Walk callback to end iteration without error.
var StopWalk = errors.New("stop walk")

// BlockStore persists blocks. Implementations live in the storage package.
type BlockStore interface {
	GetBlock(hash string) (*Block, error)
	GetBlockByHeight(height int64) (*Block, error)
	// GetTip returns the current tip hash, or ("", nil) for a fresh chain.
	GetTip() (string, error)
	// CommitBlock writes the block, its height index entry and the tip
	// pointer in one batch.
	CommitBlock(block *Block) error
}

// Blockchain is the canonical chain of a single producer. The genesis block
// sits at height 0 and every later block links to its parent by hash.
type Blockchain struct {
	mu    sync.RWMutex
	store BlockStore
	tip   *Block
}

// NewBlockchain returns a Blockchain backed by store. Init must be called
// before use.
func NewBlockchain(store BlockStore) *Blockchain {
	return &Blockchain{store: store}
}

// Init loads the persisted tip, leaving a fresh chain empty.
func (bc *Blockchain) Init() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	hash, err := bc.store.GetTip()
	if err != nil {
		return errors.Wrap(err, "get tip")
	}
	if hash == "" {
		return nil
	}
	tip, err := bc.store.GetBlock(hash)
	if err != nil {
		return errors.Wrap(err, "load tip block")
	}
	bc.tip = tip
	return nil
}

// follows reports why block cannot extend the current tip, if it cannot.
func (bc *Blockchain) follows(block *Block) error {
	if bc.tip == nil {
		return nil
	}
	h := block.Header
	switch {
	case h.Height != bc.tip.Header.Height+1:
		return errors.Errorf("block height %d does not follow tip %d", h.Height, bc.tip.Header.Height)
	case h.PrevHash != bc.tip.Hash:
		return errors.Errorf("prev_hash mismatch: got %s want %s", h.PrevHash, bc.tip.Hash)
	case h.Epoch < bc.tip.Header.Epoch:
		return errors.Errorf("epoch %d precedes tip epoch %d", h.Epoch, bc.tip.Header.Epoch)
	}
	return nil
}

// AddBlock persists block as the new tip if it links to the current one.
func (bc *Blockchain) AddBlock(block *Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if err := bc.follows(block); err != nil {
		return err
	}
	if err := bc.store.CommitBlock(block); err != nil {
		return errors.Wrap(err, "commit block")
	}
	bc.tip = block
	return nil
}

func (bc *Blockchain) GetBlock(hash string) (*Block, error) {
	return bc.store.GetBlock(hash)
}

func (bc *Blockchain) GetBlockByHeight(height int64) (*Block, error) {
	return bc.store.GetBlockByHeight(height)
}

// Walk calls fn for every stored block from height from up to the tip as it
// was when Walk started. Returning StopWalk from fn ends the walk cleanly.
func (bc *Blockchain) Walk(from int64, fn func(*Block) error) error {
	top := bc.Height()
	if bc.Tip() == nil {
		return nil
	}
	for h := max(from, 0); h <= top; h++ {
		block, err := bc.store.GetBlockByHeight(h)
		if err != nil {
			return errors.Wrapf(err, "load block %d", h)
		}
		if err := fn(block); err != nil {
			if errors.Is(err, StopWalk) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Tip returns the current chain tip, or nil for a fresh chain.
func (bc *Blockchain) Tip() *Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tip
}

// Height returns the height of the current tip (0 for a fresh chain).
func (bc *Blockchain) Height() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.tip == nil {
		return 0
	}
	return bc.tip.Header.Height
}
