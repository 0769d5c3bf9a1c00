package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolstake/config"
	"github.com/tolelom/tolstake/node"
	"github.com/tolelom/tolstake/wallet"
)

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run the node: produce blocks and serve JSON-RPC",
	Args:  cobra.NoArgs,
	RunE:  runNode,
}

func init() {
	cmdMain.AddCommand(cmdRun)
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagMain.Config)
	if err != nil {
		return errors.Wrap(err, "config")
	}
	priv, err := wallet.LoadKey(flagMain.Key, password())
	if err != nil {
		return errors.Wrap(err, "load key")
	}

	n, err := node.Open(cfg, priv)
	if err != nil {
		return err
	}
	if !n.Producer.IsProposer() {
		log.Warn().Str("validator", cfg.Validator).Msg("key does not match the configured validator, no blocks will be produced")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info().Str("node", cfg.NodeID).Str("chain", cfg.Genesis.ChainID).Int64("height", n.Chain.Height()).Msg("node started")
	return n.Run(ctx)
}
