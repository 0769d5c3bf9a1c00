package main

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolstake/config"
	"github.com/tolelom/tolstake/consensus"
	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/storage"
)

var cmdVerify = &cobra.Command{
	Use:   "verify",
	Short: "Check signatures and linkage of every stored block",
	Args:  cobra.NoArgs,
	RunE:  verifyChain,
}

func init() {
	cmdMain.AddCommand(cmdVerify)
}

func verifyChain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagMain.Config)
	if err != nil {
		return errors.Wrap(err, "config")
	}
	db, err := storage.Open(cfg.DBBackend, filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return errors.Wrap(err, "open db")
	}
	defer db.Close()

	bc := core.NewBlockchain(storage.NewBlockStore(db))
	if err := bc.Init(); err != nil {
		return err
	}
	n, err := consensus.VerifyChain(bc, cfg.Validator)
	if err != nil {
		return err
	}
	log.Info().Int64("blocks", n).Int64("height", bc.Height()).Msg("chain verified")
	return nil
}
