// Package node assembles storage, execution, block production and the RPC
// surface into one running instance.
package node

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tolelom/tolstake/config"
	"github.com/tolelom/tolstake/consensus"
	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/crypto"
	"github.com/tolelom/tolstake/events"
	"github.com/tolelom/tolstake/indexer"
	"github.com/tolelom/tolstake/internal/logging"
	"github.com/tolelom/tolstake/metrics"
	"github.com/tolelom/tolstake/rpc"
	"github.com/tolelom/tolstake/storage"
	"github.com/tolelom/tolstake/vm"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/tolstake/vm/modules/economy"
	_ "github.com/tolelom/tolstake/vm/modules/stake"
)

var logger = logging.Logger("node")

// Node is one wired instance. Fields are exported for tests and tooling.
type Node struct {
	Config   *config.Config
	DB       storage.DB
	State    *storage.StateDB
	Chain    *core.Blockchain
	Mempool  *core.Mempool
	Emitter  *events.Emitter
	Indexer  *indexer.Indexer
	Metrics  *metrics.Metrics
	Executor *vm.Executor
	Producer *consensus.Producer
	Handler  *rpc.Handler
}

// Open opens the configured database under cfg.DataDir and wires a Node.
func Open(cfg *config.Config, priv crypto.PrivateKey) (*Node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "mkdir data dir")
	}
	db, err := storage.Open(cfg.DBBackend, filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	n, err := New(cfg, db, priv)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return n, nil
}

// New wires a Node over db, writing the genesis block if the chain is fresh.
func New(cfg *config.Config, db storage.DB, priv crypto.PrivateKey) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	n := &Node{
		Config:  cfg,
		DB:      db,
		State:   storage.NewStateDB(db),
		Chain:   core.NewBlockchain(storage.NewBlockStore(db)),
		Mempool: core.NewMempool(),
		Emitter: events.NewEmitter(),
	}
	if err := n.Chain.Init(); err != nil {
		return nil, errors.Wrap(err, "blockchain init")
	}
	if n.Chain.Tip() == nil {
		genesis, err := config.CreateGenesisBlock(cfg, n.State, priv)
		if err != nil {
			return nil, errors.Wrap(err, "genesis")
		}
		if err := n.Chain.AddBlock(genesis); err != nil {
			return nil, errors.Wrap(err, "add genesis")
		}
		logger.Info().Str("hash", genesis.Hash).Str("chain", cfg.Genesis.ChainID).Msg("genesis block committed")
	}

	n.Indexer = indexer.New(db, n.Emitter)
	if cfg.Metrics {
		n.Metrics = metrics.New()
		n.Metrics.Subscribe(n.Emitter)
	}
	n.Executor = vm.NewExecutor(n.State, n.Emitter, cfg.Genesis.ChainID)
	n.Producer = consensus.New(cfg, n.Chain, db, n.State, n.Mempool, n.Executor, n.Emitter, priv)
	n.Handler = rpc.NewHandler(n.Chain, n.Mempool, n.Producer, n.Indexer, cfg.Genesis.ChainID)
	return n, nil
}

// Run serves RPC and produces blocks until ctx is cancelled, then shuts
// both down and closes the database.
func (n *Node) Run(ctx context.Context) error {
	defer func() {
		if err := n.DB.Close(); err != nil {
			logger.Error().Err(err).Msg("close db")
		}
	}()

	metricsHandler := n.metricsHandler()
	server := rpc.NewServer(fmt.Sprintf(":%d", n.Config.RPCPort), n.Handler, n.Config.RPCAuthToken, metricsHandler)
	if err := server.Start(); err != nil {
		return errors.Wrap(err, "rpc start")
	}
	logger.Info().Int("port", n.Config.RPCPort).Bool("auth", n.Config.RPCAuthToken != "").
		Bool("metrics", metricsHandler != nil).Msg("rpc listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.Producer.Run(ctx, n.Config.BlockInterval())
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Stop()
	})
	err := g.Wait()
	logger.Info().Int64("height", n.Chain.Height()).Msg("shutdown complete")
	return err
}

func (n *Node) metricsHandler() http.Handler {
	if n.Metrics == nil {
		return nil
	}
	return n.Metrics.Handler()
}
