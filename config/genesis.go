package config

import (
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/crypto"
	"github.com/tolelom/tolstake/staking"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// CreateGenesisBlock builds and signs block #0. It credits the Alloc balances,
// initialises the staking ledger at the genesis time and epoch, and commits.
// Running it against an already initialised state fails with
// staking.ErrAlreadyInitialized and leaves the state untouched.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	proposerPub := proposerPriv.Public()

	balances, err := cfg.Genesis.Balances()
	if err != nil {
		return nil, err
	}

	block := core.NewBlock(0, cfg.EpochLength, GenesisHash, proposerPub.Hex(), nil)
	created := cfg.Genesis.CreationTimestamp
	if created == 0 {
		created = uint64(time.Now().Unix())
	}
	block.Header.Timestamp = int64(created)

	snap, err := state.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := applyGenesis(state, balances, created, block.Header.Epoch); err != nil {
		if revertErr := state.RevertToSnapshot(snap); revertErr != nil {
			return nil, errors.Wrapf(err, "revert genesis (revert: %v)", revertErr)
		}
		return nil, err
	}

	block.Header.StateRoot = state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	// Embed chain ID via TxRoot for identification
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

func applyGenesis(state core.State, balances map[string]*big.Int, created, epoch uint64) error {
	if err := staking.Init(state, created, epoch); err != nil {
		return err
	}
	for addr, balance := range balances {
		acc := core.NewAccount(addr)
		acc.Balance.Set(balance)
		if err := state.SetAccount(acc); err != nil {
			return err
		}
	}
	return nil
}

// IsGenesisHash returns true if the hash is the canonical genesis prev-hash.
func IsGenesisHash(h string) bool {
	return strings.Count(h, "0") == len(h) && len(h) == 64
}
