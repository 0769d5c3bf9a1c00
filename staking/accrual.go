package staking

import (
	"math/big"

	"github.com/tolelom/tolstake/core"
)

// RewardsPerBlock is the fixed reward scalar applied per elapsed block.
const RewardsPerBlock uint64 = 3_000_000_000

var rewardsPerBlock = new(big.Int).SetUint64(RewardsPerBlock)

// Accrue returns the reward pos has earned by currentBlock:
//
//	stake_amount * RewardsPerBlock * (currentBlock - last_action_block) / pool
//
// rounded down. pool is the ledger's whole held balance at the moment of the
// call, so the rate of every participant moves with the live pool. With a
// single participant pool == stake_amount and the result is
// RewardsPerBlock * block_diff whatever the stake size.
//
// A block counter that has not advanced past last_action_block yields zero.
// A zero pool cannot be divided by and returns ErrEmptyPool.
func Accrue(pos *core.StakingPosition, currentBlock uint64, pool *big.Int) (*big.Int, error) {
	if currentBlock <= pos.LastActionBlock {
		return new(big.Int), nil
	}
	if pool == nil || pool.Sign() <= 0 {
		return nil, ErrEmptyPool
	}
	diff := new(big.Int).SetUint64(currentBlock - pos.LastActionBlock)
	reward := new(big.Int).Mul(pos.StakeAmount, rewardsPerBlock)
	reward.Mul(reward, diff)
	// operands are non-negative so Quo (truncating) equals floor division
	return reward.Quo(reward, pool), nil
}
