package staking

import (
	"math/big"
	"strconv"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
)

// Global storage keys.
const (
	KeyCreationTimestamp = "creationTimestamp"
	KeyCreationEpoch     = "creationEpoch"
	KeyTotalRewards      = "totalRewards"
)

// Init records the ledger's creation timestamp and epoch and zeroes the
// reported reward counter. It runs once per ledger.
func Init(state core.State, timestamp, epoch uint64) error {
	_, err := state.GetGlobal(KeyCreationTimestamp)
	if err == nil {
		return ErrAlreadyInitialized
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if err := state.SetGlobal(KeyTotalRewards, []byte("0")); err != nil {
		return err
	}
	if err := setUint(state, KeyCreationTimestamp, timestamp); err != nil {
		return err
	}
	if err := setUint(state, KeyCreationEpoch, epoch); err != nil {
		return err
	}
	logger.Info().Uint64("timestamp", timestamp).Uint64("epoch", epoch).Msg("ledger initialized")
	return nil
}

// TotalRewardsAt is the informational counter
// (now - creation) * RewardsPerBlock, clamped at zero when now precedes
// creation. It is not backed by payouts.
func TotalRewardsAt(creation, now uint64) *big.Int {
	if now <= creation {
		return new(big.Int)
	}
	elapsed := new(big.Int).SetUint64(now - creation)
	return elapsed.Mul(elapsed, rewardsPerBlock)
}

func getUint(state core.State, key string) (uint64, error) {
	raw, err := state.GetGlobal(key)
	if errors.Is(err, core.ErrNotFound) {
		return 0, ErrNotInitialized
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "decode global %s", key)
	}
	return v, nil
}

func setUint(state core.State, key string, v uint64) error {
	return state.SetGlobal(key, []byte(strconv.FormatUint(v, 10)))
}
