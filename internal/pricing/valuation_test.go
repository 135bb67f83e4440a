package pricing_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clm/internal/access"
	"github.com/elys-network/clm/internal/bank"
	"github.com/elys-network/clm/internal/oracle"
	"github.com/elys-network/clm/internal/pricing"
	"github.com/elys-network/clm/internal/registry"
	"github.com/elys-network/clm/internal/types"
)

const admin = types.Address("admin")

func mustInt(t *testing.T, s string) sdkmath.Int {
	t.Helper()
	v, ok := sdkmath.NewIntFromString(s)
	require.True(t, ok, "bad integer literal %q", s)
	return v
}

func newValuation(t *testing.T) (*pricing.Engine, *oracle.StaticFeed, *bank.MemoryBank) {
	t.Helper()

	memBank := bank.NewMemoryBank()
	feed := oracle.NewStaticFeed(time.Hour)

	accessCtl, err := access.NewController(admin)
	require.NoError(t, err)
	reg, err := registry.New(accessCtl, memBank, nil)
	require.NoError(t, err)

	// USDC at $1.00, quoted with 8 price decimals.
	require.NoError(t, memBank.RegisterToken("uusdc", 6))
	feed.SetPrice("uusdc", sdkmath.NewInt(100_000_000), 8)
	require.NoError(t, reg.ListAsset(admin, "uusdc", 9000))

	// WETH at $2000.00, quoted with 8 price decimals.
	require.NoError(t, memBank.RegisterToken("uweth", 18))
	feed.SetPrice("uweth", sdkmath.NewInt(200_000_000_000), 8)
	require.NoError(t, reg.ListAsset(admin, "uweth", 8000))

	engine, err := pricing.NewEngine(reg, feed)
	require.NoError(t, err)
	return engine, feed, memBank
}

func TestPriceNormalizationTo1e18(t *testing.T) {
	engine, feed, _ := newValuation(t)
	ctx := context.Background()

	price, err := engine.PriceUSD1e18(ctx, "uusdc")
	require.NoError(t, err)
	require.Equal(t, mustInt(t, "1000000000000000000"), price)

	price, err = engine.PriceUSD1e18(ctx, "uweth")
	require.NoError(t, err)
	require.Equal(t, mustInt(t, "2000000000000000000000"), price)

	// A quote already on the 1e18 scale passes through unchanged.
	feed.SetPrice("uusdc", mustInt(t, "1000000000000000000"), 18)
	price, err = engine.PriceUSD1e18(ctx, "uusdc")
	require.NoError(t, err)
	require.Equal(t, mustInt(t, "1000000000000000000"), price)
}

func TestValueUSD(t *testing.T) {
	engine, _, _ := newValuation(t)
	ctx := context.Background()

	// 13,000 USDC at 6 decimals is worth 13000e18.
	value, err := engine.ValueUSD(ctx, sdkmath.NewInt(13_000_000_000), "uusdc")
	require.NoError(t, err)
	require.Equal(t, mustInt(t, "13000000000000000000000"), value)

	// 10 WETH at 18 decimals and $2000 is worth 20000e18.
	value, err = engine.ValueUSD(ctx, mustInt(t, "10000000000000000000"), "uweth")
	require.NoError(t, err)
	require.Equal(t, mustInt(t, "20000000000000000000000"), value)
}

func TestValueUSDFloorsTowardZero(t *testing.T) {
	engine, feed, _ := newValuation(t)
	ctx := context.Background()

	// $1 and one third per token: 3 tokens are worth $4 minus dust, floored.
	feed.SetPrice("uusdc", mustInt(t, "1333333333333333333"), 18)
	value, err := engine.ValueUSD(ctx, sdkmath.NewInt(3_000_000), "uusdc")
	require.NoError(t, err)
	require.Equal(t, mustInt(t, "3999999999999999999"), value)
}

func TestAmountFromUSDInverts(t *testing.T) {
	engine, _, _ := newValuation(t)
	ctx := context.Background()

	amount, err := engine.AmountFromUSD(ctx, mustInt(t, "20000000000000000000000"), "uweth")
	require.NoError(t, err)
	require.Equal(t, mustInt(t, "10000000000000000000"), amount)

	amount, err = engine.AmountFromUSD(ctx, mustInt(t, "500000000000000000000"), "uusdc")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(500_000_000), amount)
}

func TestUnpricedAssetIsAnError(t *testing.T) {
	engine, _, memBank := newValuation(t)
	ctx := context.Background()

	_, err := engine.ValueUSD(ctx, sdkmath.NewInt(1), "uatom")
	require.Error(t, err)

	// Listed but never priced: still an error, never a zero value.
	require.NoError(t, memBank.RegisterToken("uatom", 6))
	_, err = engine.PriceUSD1e18(ctx, "uatom")
	require.ErrorIs(t, err, oracle.ErrNoPrice)
}

func TestNegativeAmountRejected(t *testing.T) {
	engine, _, _ := newValuation(t)
	ctx := context.Background()

	_, err := engine.ValueUSD(ctx, sdkmath.NewInt(-1), "uusdc")
	require.ErrorIs(t, err, pricing.ErrAmountInvalid)
	_, err = engine.AmountFromUSD(ctx, sdkmath.NewInt(-1), "uusdc")
	require.ErrorIs(t, err, pricing.ErrAmountInvalid)
}

func TestApplyFactorBps(t *testing.T) {
	value := mustInt(t, "20000000000000000000000")
	require.Equal(t, mustInt(t, "16000000000000000000000"), pricing.ApplyFactorBps(value, 8000))
	require.Equal(t, value, pricing.ApplyFactorBps(value, 10_000))
	// Floors: 1 at 33.33% is 0.
	require.True(t, pricing.ApplyFactorBps(sdkmath.OneInt(), 3333).IsZero())
}
