package bank_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clm/internal/bank"
	"github.com/elys-network/clm/internal/types"
)

const alice = types.Address("alice")

func TestPullPushCustody(t *testing.T) {
	b := bank.NewMemoryBank()
	require.NoError(t, b.RegisterToken("uusdc", 6))
	require.NoError(t, b.Mint(alice, "uusdc", sdkmath.NewInt(1_000)))

	require.NoError(t, b.Pull(alice, "uusdc", sdkmath.NewInt(400)))
	require.Equal(t, sdkmath.NewInt(600), b.BalanceOf(alice, "uusdc"))
	require.Equal(t, sdkmath.NewInt(400), b.BalanceOf(bank.PoolAccount, "uusdc"))

	require.NoError(t, b.Push(alice, "uusdc", sdkmath.NewInt(400)))
	require.Equal(t, sdkmath.NewInt(1_000), b.BalanceOf(alice, "uusdc"))
	require.True(t, b.BalanceOf(bank.PoolAccount, "uusdc").IsZero())
}

func TestTransferFailuresMoveNothing(t *testing.T) {
	b := bank.NewMemoryBank()
	require.NoError(t, b.RegisterToken("uusdc", 6))
	require.NoError(t, b.Mint(alice, "uusdc", sdkmath.NewInt(100)))

	require.ErrorIs(t, b.Pull(alice, "uusdc", sdkmath.NewInt(101)), bank.ErrInsufficientFunds)
	require.ErrorIs(t, b.Pull(alice, "uusdc", sdkmath.ZeroInt()), bank.ErrBadAmount)
	require.ErrorIs(t, b.Pull(alice, "udoge", sdkmath.OneInt()), bank.ErrUnknownDenom)

	require.Equal(t, sdkmath.NewInt(100), b.BalanceOf(alice, "uusdc"))
	require.True(t, b.BalanceOf(bank.PoolAccount, "uusdc").IsZero())
}

func TestMetadata(t *testing.T) {
	b := bank.NewMemoryBank()
	require.NoError(t, b.RegisterToken("uweth", 18))

	decimals, err := b.Metadata("uweth")
	require.NoError(t, err)
	require.Equal(t, uint8(18), decimals)

	decimals, err = b.Decimals("uweth")
	require.NoError(t, err)
	require.Equal(t, uint8(18), decimals)

	_, err = b.Metadata("udoge")
	require.ErrorIs(t, err, bank.ErrUnknownDenom)

	require.Error(t, b.RegisterToken("uusdc", 19))
	require.Error(t, b.RegisterToken("", 6))
}
