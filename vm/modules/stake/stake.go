// Package stake registers the staking ledger's transaction types.
package stake

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/staking"
	"github.com/tolelom/tolstake/vm"
)

func init() {
	vm.RegisterPayable(core.TxStake, handleStake)
	vm.Register(core.TxUnstake, handleUnstake)
	vm.Register(core.TxClaimRewards, handleClaimRewards)
}

// handleStake credits the attached value to custody before the ledger sees
// it, so the deposit is part of the pool the caller settles against.
func handleStake(ctx *vm.Context, payload json.RawMessage) error {
	if len(payload) > 0 {
		var p core.StakePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return errors.Wrap(err, "decode stake payload")
		}
	}
	ledger := staking.New(ctx.State)
	value := ctx.Payment()
	if value.Sign() > 0 {
		if err := ledger.Custody().Receive(ctx.Caller(), value); err != nil {
			return errors.Wrap(err, "pay stake")
		}
	}
	return ledger.Stake(ctx, value)
}

func handleUnstake(ctx *vm.Context, payload json.RawMessage) error {
	var p core.UnstakePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return errors.Wrap(err, "decode unstake payload")
		}
	}
	return staking.New(ctx.State).Unstake(ctx, p.Amount)
}

func handleClaimRewards(ctx *vm.Context, _ json.RawMessage) error {
	return staking.New(ctx.State).ClaimRewards(ctx)
}
