package staking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolstake/core"
)

func position(stake int64, last uint64) *core.StakingPosition {
	return &core.StakingPosition{StakeAmount: big.NewInt(stake), LastActionBlock: last}
}

func TestAccrueNoBlocksPassed(t *testing.T) {
	pos := position(1000, 10)

	for _, current := range []uint64{0, 9, 10} {
		reward, err := Accrue(pos, current, big.NewInt(1000))
		require.NoError(t, err)
		assert.Zero(t, reward.Sign(), "block %d", current)
	}
}

func TestAccrueSoleParticipant(t *testing.T) {
	// pool == stake: the stake size cancels out
	for _, stake := range []int64{1, 7, 1_000_000, 1 << 40} {
		reward, err := Accrue(position(stake, 0), 100, big.NewInt(stake))
		require.NoError(t, err)
		assert.Equal(t, new(big.Int).SetUint64(RewardsPerBlock*100), reward, "stake %d", stake)
	}
}

func TestAccrueProRata(t *testing.T) {
	// a quarter of the pool earns a quarter of the per-block reward
	reward, err := Accrue(position(250, 4), 6, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).SetUint64(RewardsPerBlock*2/4), reward)
}

func TestAccrueFloorDivision(t *testing.T) {
	// 1 * 3e9 * 1 / 7 = 428571428.57...
	reward, err := Accrue(position(1, 0), 1, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(428571428), reward)
}

func TestAccrueLivePool(t *testing.T) {
	pos := position(500, 0)

	small, err := Accrue(pos, 10, big.NewInt(1000))
	require.NoError(t, err)
	large, err := Accrue(pos, 10, big.NewInt(2000))
	require.NoError(t, err)

	// doubling the pool halves the accrual of the same position
	assert.Equal(t, small, new(big.Int).Mul(large, big.NewInt(2)))
}

func TestAccrueArbitraryPrecision(t *testing.T) {
	stake, _ := new(big.Int).SetString("1000000000000000000000000", 10) // 1e24
	pool, _ := new(big.Int).SetString("3000000000000000000000000", 10)
	reward, err := Accrue(&core.StakingPosition{StakeAmount: stake}, 1_000_000_000, pool)
	require.NoError(t, err)

	// 3e9 * 1e9 / 3 = 1e18
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	assert.Equal(t, want, reward)
}

func TestAccrueEmptyPool(t *testing.T) {
	_, err := Accrue(position(1000, 0), 1, new(big.Int))
	assert.ErrorIs(t, err, ErrEmptyPool)

	// no elapsed blocks short-circuits before the division
	reward, err := Accrue(position(1000, 5), 5, new(big.Int))
	require.NoError(t, err)
	assert.Zero(t, reward.Sign())
}

func TestAccrueDoesNotMutate(t *testing.T) {
	pos := position(1000, 3)
	_, err := Accrue(pos, 50, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, position(1000, 3), pos)
}
