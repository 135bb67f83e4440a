package engine_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clm/internal/access"
	"github.com/elys-network/clm/internal/bank"
	"github.com/elys-network/clm/internal/engine"
	"github.com/elys-network/clm/internal/ledger"
	"github.com/elys-network/clm/internal/oracle"
	"github.com/elys-network/clm/internal/pricing"
	"github.com/elys-network/clm/internal/registry"
	"github.com/elys-network/clm/internal/types"
)

const (
	admin      = types.Address("admin")
	safetyFund = types.Address("safety-fund")
	alice      = types.Address("alice")
	bob        = types.Address("bob")
	whale      = types.Address("whale")
)

type fixture struct {
	bank   *bank.MemoryBank
	feed   *oracle.StaticFeed
	reg    *registry.Registry
	ledger *ledger.Ledger
	engine *engine.Engine
}

func mustInt(t *testing.T, s string) sdkmath.Int {
	t.Helper()
	v, ok := sdkmath.NewIntFromString(s)
	require.True(t, ok, "bad integer literal %q", s)
	return v
}

// newFixture builds a complete pool over an in-memory bank and a static feed,
// with USDC ($1.00, factor 90%) and WETH ($2000.00, factor 80%) listed.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	memBank := bank.NewMemoryBank()
	feed := oracle.NewStaticFeed(time.Hour)

	accessCtl, err := access.NewController(admin)
	require.NoError(t, err)
	reg, err := registry.New(accessCtl, memBank, nil)
	require.NoError(t, err)
	led := ledger.New()
	valuation, err := pricing.NewEngine(reg, feed)
	require.NoError(t, err)

	fees := types.FeeParameters{LiquidatorIncentiveBps: 1000, SafetyFundBps: 500}
	eng, err := engine.New(accessCtl, reg, led, valuation, memBank, nil, fees, safetyFund)
	require.NoError(t, err)

	f := &fixture{bank: memBank, feed: feed, reg: reg, ledger: led, engine: eng}

	require.NoError(t, memBank.RegisterToken("uusdc", 6))
	feed.SetPrice("uusdc", sdkmath.NewInt(100_000_000), 8)
	require.NoError(t, reg.ListAsset(admin, "uusdc", 9000))

	require.NoError(t, memBank.RegisterToken("uweth", 18))
	feed.SetPrice("uweth", sdkmath.NewInt(200_000_000_000), 8)
	require.NoError(t, reg.ListAsset(admin, "uweth", 8000))

	return f
}

func (f *fixture) conservationOK(t *testing.T) {
	t.Helper()
	require.NoError(t, f.ledger.CheckConservation(f.reg.ListedDenoms()))
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bank.Mint(alice, "uusdc", sdkmath.NewInt(1_000_000)))

	require.NoError(t, f.engine.Deposit(ctx, alice, "uusdc", sdkmath.NewInt(1_000_000)))
	require.True(t, f.bank.BalanceOf(alice, "uusdc").IsZero())
	require.Equal(t, sdkmath.NewInt(1_000_000), f.bank.BalanceOf(bank.PoolAccount, "uusdc"))
	require.Equal(t, sdkmath.NewInt(1_000_000), f.ledger.Deposit(alice, "uusdc"))
	f.conservationOK(t)

	require.NoError(t, f.engine.Withdraw(ctx, alice, "uusdc", sdkmath.NewInt(1_000_000)))
	require.Equal(t, sdkmath.NewInt(1_000_000), f.bank.BalanceOf(alice, "uusdc"))
	require.True(t, f.ledger.Deposit(alice, "uusdc").IsZero())
	require.True(t, f.ledger.TotalDeposits("uusdc").IsZero())
	f.conservationOK(t)
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.engine.Deposit(ctx, alice, "uusdc", sdkmath.ZeroInt()), engine.ErrBadParam)
	require.ErrorIs(t, f.engine.Deposit(ctx, alice, "uusdc", sdkmath.NewInt(-5)), engine.ErrBadParam)
	require.ErrorIs(t, f.engine.Deposit(ctx, types.ZeroAddress, "uusdc", sdkmath.OneInt()), engine.ErrBadParam)
	require.ErrorIs(t, f.engine.Deposit(ctx, alice, "udoge", sdkmath.OneInt()), engine.ErrNotSupported)

	// Pull failure (no funds) leaves the ledger untouched.
	require.Error(t, f.engine.Deposit(ctx, alice, "uusdc", sdkmath.OneInt()))
	require.True(t, f.ledger.Deposit(alice, "uusdc").IsZero())
	f.conservationOK(t)
}

func TestOverWithdrawRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bank.Mint(alice, "uusdc", sdkmath.NewInt(100)))
	require.NoError(t, f.engine.Deposit(ctx, alice, "uusdc", sdkmath.NewInt(100)))

	require.ErrorIs(t, f.engine.Withdraw(ctx, alice, "uusdc", sdkmath.NewInt(101)), engine.ErrOverWithdraw)
	require.Equal(t, sdkmath.NewInt(100), f.ledger.Deposit(alice, "uusdc"))
	f.conservationOK(t)
}

func TestBorrowAgainstCollateral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Whale supplies the USDC liquidity alice will borrow.
	require.NoError(t, f.bank.Mint(whale, "uusdc", sdkmath.NewInt(50_000_000_000)))
	require.NoError(t, f.engine.Deposit(ctx, whale, "uusdc", sdkmath.NewInt(50_000_000_000)))

	// Alice posts 10 WETH: 20000 USD weighted to 16000 USD of capacity.
	require.NoError(t, f.bank.Mint(alice, "uweth", mustInt(t, "10000000000000000000")))
	require.NoError(t, f.engine.Deposit(ctx, alice, "uweth", mustInt(t, "10000000000000000000")))

	require.NoError(t, f.engine.Borrow(ctx, alice, "uusdc", sdkmath.NewInt(13_000_000_000)))
	require.Equal(t, sdkmath.NewInt(13_000_000_000), f.ledger.Borrow(alice, "uusdc"))
	require.Equal(t, sdkmath.NewInt(13_000_000_000), f.bank.BalanceOf(alice, "uusdc"))
	f.conservationOK(t)

	values, err := f.engine.AccountValues(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, mustInt(t, "16000000000000000000000"), values.CollateralUSD)
	require.Equal(t, mustInt(t, "13000000000000000000000"), values.BorrowUSD)
	require.True(t, values.IsHealthy())
}

func TestBorrowBeyondCapacityLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bank.Mint(whale, "uusdc", sdkmath.NewInt(50_000_000_000)))
	require.NoError(t, f.engine.Deposit(ctx, whale, "uusdc", sdkmath.NewInt(50_000_000_000)))

	require.NoError(t, f.bank.Mint(alice, "uweth", mustInt(t, "10000000000000000000")))
	require.NoError(t, f.engine.Deposit(ctx, alice, "uweth", mustInt(t, "10000000000000000000")))

	// Capacity is 16000 USD; 16001 must fail.
	err := f.engine.Borrow(ctx, alice, "uusdc", sdkmath.NewInt(16_001_000_000))
	require.ErrorIs(t, err, engine.ErrUnhealthy)

	// The rejected loan is invisible: no debt, no token movement.
	require.True(t, f.ledger.Borrow(alice, "uusdc").IsZero())
	require.True(t, f.ledger.TotalBorrows("uusdc").IsZero())
	require.True(t, f.bank.BalanceOf(alice, "uusdc").IsZero())
	f.conservationOK(t)

	// Borrowing exactly at capacity succeeds.
	require.NoError(t, f.engine.Borrow(ctx, alice, "uusdc", sdkmath.NewInt(16_000_000_000)))
}

func TestWithdrawBlockedWhileBorrowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bank.Mint(whale, "uusdc", sdkmath.NewInt(50_000_000_000)))
	require.NoError(t, f.engine.Deposit(ctx, whale, "uusdc", sdkmath.NewInt(50_000_000_000)))
	require.NoError(t, f.bank.Mint(alice, "uweth", mustInt(t, "10000000000000000000")))
	require.NoError(t, f.engine.Deposit(ctx, alice, "uweth", mustInt(t, "10000000000000000000")))
	require.NoError(t, f.engine.Borrow(ctx, alice, "uusdc", sdkmath.NewInt(13_000_000_000)))

	// Withdrawing 2 WETH would drop capacity to 12800 < 13000 debt.
	err := f.engine.Withdraw(ctx, alice, "uweth", mustInt(t, "2000000000000000000"))
	require.ErrorIs(t, err, engine.ErrUnhealthy)
	require.Equal(t, mustInt(t, "10000000000000000000"), f.ledger.Deposit(alice, "uweth"))

	// Withdrawing 1 WETH keeps capacity at 14400 >= 13000.
	require.NoError(t, f.engine.Withdraw(ctx, alice, "uweth", mustInt(t, "1000000000000000000")))
	f.conservationOK(t)
}

func TestRepayClampsToDebt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bank.Mint(whale, "uusdc", sdkmath.NewInt(50_000_000_000)))
	require.NoError(t, f.engine.Deposit(ctx, whale, "uusdc", sdkmath.NewInt(50_000_000_000)))
	require.NoError(t, f.bank.Mint(alice, "uweth", mustInt(t, "10000000000000000000")))
	require.NoError(t, f.engine.Deposit(ctx, alice, "uweth", mustInt(t, "10000000000000000000")))
	require.NoError(t, f.engine.Borrow(ctx, alice, "uusdc", sdkmath.NewInt(1_000_000_000)))

	// Alice holds 1000 borrowed plus 500 minted, then offers 1500 against a
	// 1000 debt: only 1000 moves.
	require.NoError(t, f.bank.Mint(alice, "uusdc", sdkmath.NewInt(500_000_000)))
	require.NoError(t, f.engine.Repay(ctx, alice, "uusdc", sdkmath.NewInt(1_500_000_000)))

	require.True(t, f.ledger.Borrow(alice, "uusdc").IsZero())
	require.Equal(t, sdkmath.NewInt(500_000_000), f.bank.BalanceOf(alice, "uusdc"))
	f.conservationOK(t)
}

func TestRepayWithoutDebt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bank.Mint(alice, "uusdc", sdkmath.NewInt(1_000_000)))
	require.ErrorIs(t, f.engine.Repay(ctx, alice, "uusdc", sdkmath.NewInt(1_000_000)), engine.ErrNoDebt)
}

func TestSetFeeParameters(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.SetFeeParameters(admin, types.FeeParameters{
		LiquidatorIncentiveBps: 800,
		SafetyFundBps:          200,
	}))
	require.Equal(t, uint32(800), f.engine.FeeParameters().LiquidatorIncentiveBps)
	require.Equal(t, uint64(11_000), f.engine.FeeParameters().MultiplierBps())

	// Combined fees above 30% are rejected.
	err := f.engine.SetFeeParameters(admin, types.FeeParameters{
		LiquidatorIncentiveBps: 2000,
		SafetyFundBps:          1500,
	})
	require.ErrorIs(t, err, engine.ErrBadParam)

	// Fee values whose uint32 sum wraps past zero must not slip under the cap.
	err = f.engine.SetFeeParameters(admin, types.FeeParameters{
		LiquidatorIncentiveBps: 4_294_966_296,
		SafetyFundBps:          2_000,
	})
	require.ErrorIs(t, err, engine.ErrBadParam)
	require.Equal(t, uint32(800), f.engine.FeeParameters().LiquidatorIncentiveBps)
	require.Equal(t, uint64(4_294_978_296), types.FeeParameters{
		LiquidatorIncentiveBps: 4_294_966_296,
		SafetyFundBps:          2_000,
	}.MultiplierBps())

	// Non-admin callers are rejected.
	err = f.engine.SetFeeParameters(alice, types.FeeParameters{LiquidatorIncentiveBps: 100})
	require.ErrorIs(t, err, access.ErrUnauthorized)
}

// reentrantBank wraps the memory bank and fires a callback into the engine
// from inside a transfer, imitating a token hook.
type reentrantBank struct {
	*bank.MemoryBank
	attack    func() error
	attackErr error
	fired     bool
}

func (b *reentrantBank) Pull(from types.Address, denom string, amount sdkmath.Int) error {
	if !b.fired && b.attack != nil {
		b.fired = true
		b.attackErr = b.attack()
	}
	return b.MemoryBank.Pull(from, denom, amount)
}

func TestReentrantCallRejected(t *testing.T) {
	memBank := bank.NewMemoryBank()
	hostile := &reentrantBank{MemoryBank: memBank}
	feed := oracle.NewStaticFeed(time.Hour)

	accessCtl, err := access.NewController(admin)
	require.NoError(t, err)
	reg, err := registry.New(accessCtl, memBank, nil)
	require.NoError(t, err)
	led := ledger.New()
	valuation, err := pricing.NewEngine(reg, feed)
	require.NoError(t, err)

	eng, err := engine.New(accessCtl, reg, led, valuation, hostile, nil,
		types.FeeParameters{LiquidatorIncentiveBps: 1000, SafetyFundBps: 500}, safetyFund)
	require.NoError(t, err)

	require.NoError(t, memBank.RegisterToken("uusdc", 6))
	feed.SetPrice("uusdc", sdkmath.NewInt(100_000_000), 8)
	require.NoError(t, reg.ListAsset(admin, "uusdc", 9000))
	require.NoError(t, memBank.Mint(alice, "uusdc", sdkmath.NewInt(2_000_000)))

	ctx := context.Background()
	hostile.attack = func() error {
		return eng.Deposit(ctx, alice, "uusdc", sdkmath.NewInt(1_000_000))
	}

	// The outer deposit succeeds; the nested one fails immediately.
	require.NoError(t, eng.Deposit(ctx, alice, "uusdc", sdkmath.NewInt(1_000_000)))
	require.True(t, hostile.fired)
	require.ErrorIs(t, hostile.attackErr, engine.ErrReentrantCall)

	// Only the outer deposit was recorded.
	require.Equal(t, sdkmath.NewInt(1_000_000), led.Deposit(alice, "uusdc"))
	require.NoError(t, led.CheckConservation(reg.ListedDenoms()))
}
