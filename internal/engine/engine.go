/*

Lending engine: the single entry point for every state-mutating operation
against the pool. Each operation validates its inputs, checks the resulting
account health on candidate balances, and only then commits the ledger update
and the token movement together. A reentrancy guard serializes all mutating
calls and rejects nested ones outright.

*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clm/internal/access"
	"github.com/elys-network/clm/internal/bank"
	"github.com/elys-network/clm/internal/ledger"
	"github.com/elys-network/clm/internal/logger"
	"github.com/elys-network/clm/internal/pricing"
	"github.com/elys-network/clm/internal/registry"
	"github.com/elys-network/clm/internal/types"
)

var engineLogger = logger.GetForComponent("lending_engine")

// maxRecentLiquidations bounds the in-memory liquidation history served over
// the web API. The recorder keeps the full trail.
const maxRecentLiquidations = 256

// Engine wires the registry, ledger, valuation, and token bank into the
// operation set of the pool.
type Engine struct {
	guard guard

	accessCtl *access.Controller
	registry  *registry.Registry
	ledger    *ledger.Ledger
	valuation *pricing.Engine
	bank      bank.TokenBank
	recorder  types.Recorder

	fees       types.FeeParameters
	safetyFund types.Address

	liquidations []types.LiquidationEvent
}

// New creates an engine. The recorder may be nil.
func New(
	accessCtl *access.Controller,
	reg *registry.Registry,
	led *ledger.Ledger,
	valuation *pricing.Engine,
	tokenBank bank.TokenBank,
	recorder types.Recorder,
	fees types.FeeParameters,
	safetyFund types.Address,
) (*Engine, error) {
	if accessCtl == nil || reg == nil || led == nil || valuation == nil || tokenBank == nil {
		return nil, errors.New("engine dependencies cannot be nil")
	}
	if err := validateFees(fees); err != nil {
		return nil, err
	}
	if safetyFund == types.ZeroAddress {
		return nil, errors.Join(ErrBadParam, errors.New("safety fund address cannot be empty"))
	}

	return &Engine{
		accessCtl:  accessCtl,
		registry:   reg,
		ledger:     led,
		valuation:  valuation,
		bank:       tokenBank,
		recorder:   recorder,
		fees:       fees,
		safetyFund: safetyFund,
	}, nil
}

// Deposit pulls amount of denom from the caller into pool custody and credits
// the caller's collateral balance. Depositing can never hurt account health,
// so no solvency check is run.
func (e *Engine) Deposit(ctx context.Context, caller types.Address, denom string, amount sdkmath.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	if err := validateOperation(caller, amount); err != nil {
		return err
	}
	if !e.registry.IsSupported(denom) {
		return errors.Join(ErrNotSupported, fmt.Errorf("asset %s", denom))
	}

	if err := e.bank.Pull(caller, denom, amount); err != nil {
		return err
	}
	if err := e.ledger.AddDeposit(caller, denom, amount); err != nil {
		return err
	}

	engineLogger.Info().
		Str("account", string(caller)).
		Str("denom", denom).
		Str("amount", amount.String()).
		Msg("Deposit executed")

	e.record(types.OpDeposit, caller, denom, amount, "")
	return nil
}

// Withdraw debits amount of denom from the caller's collateral balance and
// pushes the tokens back to the caller. The withdrawal is validated against
// the caller's candidate balance first: an account with outstanding debt may
// only withdraw down to the point where its weighted collateral still covers
// that debt.
func (e *Engine) Withdraw(ctx context.Context, caller types.Address, denom string, amount sdkmath.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	if err := validateOperation(caller, amount); err != nil {
		return err
	}
	if !e.registry.IsSupported(denom) {
		return errors.Join(ErrNotSupported, fmt.Errorf("asset %s", denom))
	}

	deposited := e.ledger.Deposit(caller, denom)
	if deposited.LT(amount) {
		return errors.Join(ErrOverWithdraw,
			fmt.Errorf("account %s has %s %s deposited, requested %s", caller, deposited, denom, amount))
	}

	candidate, err := e.accountValues(ctx, caller,
		map[string]sdkmath.Int{denom: deposited.Sub(amount)}, nil)
	if err != nil {
		return err
	}
	if !candidate.IsHealthy() {
		return errors.Join(ErrUnhealthy,
			fmt.Errorf("withdrawal leaves collateral %s USD against debt %s USD", candidate.CollateralUSD, candidate.BorrowUSD))
	}

	if err := e.ledger.SubDeposit(caller, denom, amount); err != nil {
		return err
	}
	if err := e.bank.Push(caller, denom, amount); err != nil {
		// Transfer-out failed after the debit; restore the balance so the
		// operation is a no-op.
		if restoreErr := e.ledger.AddDeposit(caller, denom, amount); restoreErr != nil {
			engineLogger.Error().Err(restoreErr).Msg("CRITICAL: failed to restore deposit after push failure")
		}
		return err
	}

	engineLogger.Info().
		Str("account", string(caller)).
		Str("denom", denom).
		Str("amount", amount.String()).
		Msg("Withdrawal executed")

	e.record(types.OpWithdraw, caller, denom, amount, "")
	return nil
}

// Borrow credits amount of denom to the caller's debt balance and pushes the
// tokens out of pool custody. The loan is validated on candidate balances:
// the caller's weighted collateral must cover the enlarged debt.
func (e *Engine) Borrow(ctx context.Context, caller types.Address, denom string, amount sdkmath.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	if err := validateOperation(caller, amount); err != nil {
		return err
	}
	if !e.registry.IsSupported(denom) {
		return errors.Join(ErrNotSupported, fmt.Errorf("asset %s", denom))
	}

	candidate, err := e.accountValues(ctx, caller, nil,
		map[string]sdkmath.Int{denom: e.ledger.Borrow(caller, denom).Add(amount)})
	if err != nil {
		return err
	}
	if !candidate.IsHealthy() {
		return errors.Join(ErrUnhealthy,
			fmt.Errorf("loan would put debt at %s USD against collateral %s USD", candidate.BorrowUSD, candidate.CollateralUSD))
	}

	if err := e.ledger.AddBorrow(caller, denom, amount); err != nil {
		return err
	}
	if err := e.bank.Push(caller, denom, amount); err != nil {
		if restoreErr := e.ledger.SubBorrow(caller, denom, amount); restoreErr != nil {
			engineLogger.Error().Err(restoreErr).Msg("CRITICAL: failed to reverse borrow after push failure")
		}
		return err
	}

	engineLogger.Info().
		Str("account", string(caller)).
		Str("denom", denom).
		Str("amount", amount.String()).
		Msg("Borrow executed")

	e.record(types.OpBorrow, caller, denom, amount, "")
	return nil
}

// Repay pulls tokens from the caller and reduces the caller's debt in denom.
// A repayment larger than the outstanding debt is clamped to the debt; only
// the clamped amount is pulled.
func (e *Engine) Repay(ctx context.Context, caller types.Address, denom string, amount sdkmath.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	if err := validateOperation(caller, amount); err != nil {
		return err
	}
	if !e.registry.IsSupported(denom) {
		return errors.Join(ErrNotSupported, fmt.Errorf("asset %s", denom))
	}

	debt := e.ledger.Borrow(caller, denom)
	if debt.IsZero() {
		return errors.Join(ErrNoDebt, fmt.Errorf("account %s has no %s debt", caller, denom))
	}

	pay := sdkmath.MinInt(amount, debt)

	if err := e.bank.Pull(caller, denom, pay); err != nil {
		return err
	}
	if err := e.ledger.SubBorrow(caller, denom, pay); err != nil {
		return err
	}

	engineLogger.Info().
		Str("account", string(caller)).
		Str("denom", denom).
		Str("requested", amount.String()).
		Str("paid", pay.String()).
		Msg("Repayment executed")

	detail := ""
	if pay.LT(amount) {
		detail = fmt.Sprintf("requested=%s clamped_to_debt=%s", amount, pay)
	}
	e.record(types.OpRepay, caller, denom, pay, detail)
	return nil
}

// SetFeeParameters replaces the global liquidation fee parameters. The new
// parameters apply to the next liquidation; in-flight calculations are
// impossible because the guard serializes all mutations.
func (e *Engine) SetFeeParameters(caller types.Address, fees types.FeeParameters) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	if err := e.accessCtl.RequireRole(access.RoleAdmin, caller); err != nil {
		return err
	}
	if err := validateFees(fees); err != nil {
		return err
	}

	old := e.fees
	e.fees = fees

	engineLogger.Info().
		Uint32("oldIncentiveBps", old.LiquidatorIncentiveBps).
		Uint32("oldSafetyFundBps", old.SafetyFundBps).
		Uint32("newIncentiveBps", fees.LiquidatorIncentiveBps).
		Uint32("newSafetyFundBps", fees.SafetyFundBps).
		Str("changedBy", string(caller)).
		Msg("Fee parameters updated")

	e.record(types.OpSetFeeParameters, caller, "",
		sdkmath.ZeroInt(),
		fmt.Sprintf("incentive_bps=%d safety_fund_bps=%d", fees.LiquidatorIncentiveBps, fees.SafetyFundBps))
	return nil
}

// FeeParameters returns the current liquidation fee parameters.
func (e *Engine) FeeParameters() types.FeeParameters {
	return e.fees
}

// SafetyFund returns the configured safety fund address.
func (e *Engine) SafetyFund() types.Address {
	return e.safetyFund
}

// Ledger exposes the underlying ledger for read-only consumers.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Registry exposes the asset registry for read-only consumers.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// RecentLiquidations returns the in-memory liquidation history, newest last.
func (e *Engine) RecentLiquidations() []types.LiquidationEvent {
	out := make([]types.LiquidationEvent, len(e.liquidations))
	copy(out, e.liquidations)
	return out
}

func (e *Engine) record(operation string, account types.Address, denom string, amount sdkmath.Int, detail string) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordOperation(types.OperationReceipt{
		Timestamp: time.Now(),
		Operation: operation,
		Account:   account,
		Denom:     denom,
		Amount:    amount,
		Detail:    detail,
	})
}

func validateOperation(caller types.Address, amount sdkmath.Int) error {
	if caller == types.ZeroAddress {
		return errors.Join(ErrBadParam, errors.New("caller address cannot be empty"))
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errors.Join(ErrBadParam, fmt.Errorf("amount must be positive, got %v", amount))
	}
	return nil
}

func validateFees(fees types.FeeParameters) error {
	// Sum in uint64 so values near the uint32 limit cannot wrap below the cap.
	if uint64(fees.LiquidatorIncentiveBps)+uint64(fees.SafetyFundBps) > types.MaxTotalFeeBps {
		return errors.Join(ErrBadParam,
			fmt.Errorf("incentive %d bps + safety fund %d bps exceeds cap of %d bps",
				fees.LiquidatorIncentiveBps, fees.SafetyFundBps, types.MaxTotalFeeBps))
	}
	return nil
}
