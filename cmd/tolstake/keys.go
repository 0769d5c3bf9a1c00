package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolstake/config"
	"github.com/tolelom/tolstake/wallet"
)

var cmdGenKey = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a validator key into the keystore path",
	Args:  cobra.NoArgs,
	RunE:  genKey,
}

var cmdInit = &cobra.Command{
	Use:   "init",
	Short: "Write a default config naming the keystore's key as validator",
	Args:  cobra.NoArgs,
	RunE:  initConfig,
}

var flagInit struct {
	ChainID string
	DataDir string
	Alloc   []string
}

func init() {
	cmdMain.AddCommand(cmdGenKey, cmdInit)

	cmdInit.Flags().StringVar(&flagInit.ChainID, "chain-id", "", "Chain identifier (default from built-in config)")
	cmdInit.Flags().StringVar(&flagInit.DataDir, "data-dir", "", "Data directory (default from built-in config)")
	cmdInit.Flags().StringSliceVar(&flagInit.Alloc, "alloc", nil, "Genesis allocation as address=amount, repeatable")
}

func genKey(cmd *cobra.Command, args []string) error {
	w, err := wallet.Generate()
	if err != nil {
		return err
	}
	if err := wallet.SaveKey(flagMain.Key, password(), w.PrivKey()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "public key: %s\nsaved to:   %s\n", w.PubKey(), flagMain.Key)
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	priv, err := wallet.LoadKey(flagMain.Key, password())
	if err != nil {
		return errors.Wrap(err, "load key")
	}

	cfg := config.DefaultConfig()
	cfg.Validator = priv.Public().Hex()
	if flagInit.ChainID != "" {
		cfg.Genesis.ChainID = flagInit.ChainID
	}
	if flagInit.DataDir != "" {
		cfg.DataDir = flagInit.DataDir
	}
	for _, a := range flagInit.Alloc {
		addr, amount, ok := strings.Cut(a, "=")
		if !ok {
			return errors.Errorf("alloc %q: want address=amount", a)
		}
		cfg.Genesis.Alloc[addr] = amount
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, flagMain.Config); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (validator %s)\n", flagMain.Config, cfg.Validator)
	return nil
}
