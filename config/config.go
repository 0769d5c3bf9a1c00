// Package config holds node configuration and genesis construction.
package config

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tolelom/tolstake/storage"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string `json:"chain_id" yaml:"chain_id"`
	// Alloc maps pubkey hex to an initial balance in decimal.
	Alloc map[string]string `json:"alloc" yaml:"alloc"`
	// CreationTimestamp overrides the ledger creation time (unix seconds).
	// Zero means the genesis wall clock.
	CreationTimestamp uint64 `json:"creation_timestamp,omitempty" yaml:"creation_timestamp,omitempty"`
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // trace|debug|info|warn|error
	Format string `json:"format" yaml:"format"` // console|json
}

// Config holds all node configuration.
type Config struct {
	NodeID          string        `json:"node_id" yaml:"node_id"`
	DataDir         string        `json:"data_dir" yaml:"data_dir"`
	DBBackend       string        `json:"db_backend" yaml:"db_backend"` // leveldb|badger
	RPCPort         int           `json:"rpc_port" yaml:"rpc_port"`
	RPCAuthToken    string        `json:"rpc_auth_token,omitempty" yaml:"rpc_auth_token,omitempty"`
	BlockIntervalMS int           `json:"block_interval_ms" yaml:"block_interval_ms"`
	MaxBlockTxs     int           `json:"max_block_txs" yaml:"max_block_txs"` // max transactions per block; 0 → 500
	EpochLength     uint64        `json:"epoch_length" yaml:"epoch_length"`   // blocks per epoch; 0 keeps everything in epoch 0
	Validator       string        `json:"validator" yaml:"validator"`         // authorised proposer pubkey hex
	Metrics         bool          `json:"metrics" yaml:"metrics"`
	Log             LogConfig     `json:"log" yaml:"log"`
	Genesis         GenesisConfig `json:"genesis" yaml:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:          "node0",
		DataDir:         "./data",
		DBBackend:       storage.BackendLevelDB,
		RPCPort:         8545,
		BlockIntervalMS: 1000,
		MaxBlockTxs:     500,
		EpochLength:     100,
		Metrics:         true,
		Log:             LogConfig{Level: "info", Format: "console"},
		Genesis: GenesisConfig{
			ChainID: "tolstake-dev",
			Alloc:   map[string]string{},
		},
	}
}

// BlockInterval returns the block production period.
func (c *Config) BlockInterval() time.Duration {
	return time.Duration(c.BlockIntervalMS) * time.Millisecond
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.DBBackend {
	case storage.BackendLevelDB, storage.BackendBadger:
	default:
		return errors.Errorf("unknown db_backend %q", c.DBBackend)
	}
	if c.BlockIntervalMS <= 0 {
		return errors.New("block_interval_ms must be positive")
	}
	if c.Genesis.ChainID == "" {
		return errors.New("genesis.chain_id required")
	}
	if _, err := c.Genesis.Balances(); err != nil {
		return err
	}
	return nil
}

// Balances parses Alloc into integers.
func (g GenesisConfig) Balances() (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(g.Alloc))
	for addr, s := range g.Alloc {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 {
			return nil, errors.Errorf("genesis alloc %s: bad balance %q", addr, s)
		}
		out[addr] = v
	}
	return out, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads a config file from path. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

// Save writes the config to path, as YAML or formatted JSON by extension.
func Save(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
