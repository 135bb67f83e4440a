/*

Liquidation of undercollateralized accounts. A liquidator repays part of a
borrower's debt and seizes collateral worth the repaid value plus the
liquidator incentive plus the safety fund cut. The seized amount is split
pro-rata by those basis-point shares; integer flooring leaves a small
remainder in pool custody, tracked in the ledger reserve for the collateral
asset.

*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clm/internal/types"
)

// Liquidate repays up to repayAmount of the borrower's debt in repayDenom and
// seizes collateral in collateralDenom. The borrower must be unhealthy at the
// current prices. The seized amount is clamped to the borrower's collateral
// balance when the computed seizure exceeds it.
func (e *Engine) Liquidate(
	ctx context.Context,
	liquidator, borrower types.Address,
	repayDenom, collateralDenom string,
	repayAmount sdkmath.Int,
) (types.LiquidationEvent, error) {
	if err := e.guard.enter(); err != nil {
		return types.LiquidationEvent{}, err
	}
	defer e.guard.exit()

	if err := validateOperation(liquidator, repayAmount); err != nil {
		return types.LiquidationEvent{}, err
	}
	if borrower == types.ZeroAddress {
		return types.LiquidationEvent{}, errors.Join(ErrBadParam, errors.New("borrower address cannot be empty"))
	}
	if !e.registry.IsSupported(repayDenom) {
		return types.LiquidationEvent{}, errors.Join(ErrNotSupported, fmt.Errorf("repay asset %s", repayDenom))
	}
	if !e.registry.IsSupported(collateralDenom) {
		return types.LiquidationEvent{}, errors.Join(ErrNotSupported, fmt.Errorf("collateral asset %s", collateralDenom))
	}

	debt := e.ledger.Borrow(borrower, repayDenom)
	if debt.IsZero() {
		return types.LiquidationEvent{}, errors.Join(ErrNoDebt,
			fmt.Errorf("borrower %s has no %s debt", borrower, repayDenom))
	}

	liquidatable, err := e.CanBeLiquidated(ctx, borrower)
	if err != nil {
		return types.LiquidationEvent{}, err
	}
	if !liquidatable {
		return types.LiquidationEvent{}, errors.Join(ErrNotLiquidatable,
			fmt.Errorf("borrower %s is solvent", borrower))
	}

	collateralBalance := e.ledger.Deposit(borrower, collateralDenom)
	if collateralBalance.IsZero() {
		return types.LiquidationEvent{}, errors.Join(ErrInsufficientCollateral,
			fmt.Errorf("borrower %s holds no %s", borrower, collateralDenom))
	}

	pay := sdkmath.MinInt(repayAmount, debt)

	repayValueUsd, err := e.valuation.ValueUSD(ctx, pay, repayDenom)
	if err != nil {
		return types.LiquidationEvent{}, err
	}

	fees := e.fees
	multiplierBps := sdkmath.NewInt(int64(fees.MultiplierBps()))
	seizeValueUsd := repayValueUsd.Mul(multiplierBps).Quo(sdkmath.NewInt(types.BpsDenominator))

	seizeAmount, err := e.valuation.AmountFromUSD(ctx, seizeValueUsd, collateralDenom)
	if err != nil {
		return types.LiquidationEvent{}, err
	}
	// When the borrower holds less than the entitled seizure, the liquidator
	// absorbs the shortfall. Repaid debt is not scaled back.
	if seizeAmount.GT(collateralBalance) {
		seizeAmount = collateralBalance
	}

	return e.settleLiquidation(liquidator, borrower, repayDenom, collateralDenom,
		pay, seizeAmount, fees, multiplierBps)
}

// settleLiquidation commits the ledger updates and token movements of a
// validated liquidation and records the event.
func (e *Engine) settleLiquidation(
	liquidator, borrower types.Address,
	repayDenom, collateralDenom string,
	pay, seizeAmount sdkmath.Int,
	fees types.FeeParameters,
	multiplierBps sdkmath.Int,
) (types.LiquidationEvent, error) {
	toLiquidator := seizeAmount.Mul(sdkmath.NewInt(int64(fees.LiquidatorIncentiveBps))).Quo(multiplierBps)
	toSafetyFund := seizeAmount.Mul(sdkmath.NewInt(int64(fees.SafetyFundBps))).Quo(multiplierBps)
	remainder := seizeAmount.Sub(toLiquidator).Sub(toSafetyFund)

	if err := e.bank.Pull(liquidator, repayDenom, pay); err != nil {
		return types.LiquidationEvent{}, err
	}
	refundPull := func() {
		if refundErr := e.bank.Push(liquidator, repayDenom, pay); refundErr != nil {
			engineLogger.Error().Err(refundErr).Msg("CRITICAL: failed to refund liquidator after liquidation failure")
		}
	}

	if toLiquidator.IsPositive() {
		if err := e.bank.Push(liquidator, collateralDenom, toLiquidator); err != nil {
			refundPull()
			return types.LiquidationEvent{}, err
		}
	}
	if toSafetyFund.IsPositive() {
		if err := e.bank.Push(e.safetyFund, collateralDenom, toSafetyFund); err != nil {
			// Claw back the liquidator payout so the repay-asset refund is
			// the only remaining reversal.
			if toLiquidator.IsPositive() {
				if clawErr := e.bank.Pull(liquidator, collateralDenom, toLiquidator); clawErr != nil {
					engineLogger.Error().Err(clawErr).Msg("CRITICAL: failed to claw back liquidator payout after payout failure")
				}
			}
			refundPull()
			return types.LiquidationEvent{}, err
		}
	}

	// Both token movements are settled. The ledger writes below cannot fail:
	// pay is clamped to the outstanding debt and seizeAmount to the borrower's
	// collateral balance before this function is called. A failure here is
	// corruption, so it is unwound all the same.
	if err := e.ledger.SubBorrow(borrower, repayDenom, pay); err != nil {
		e.unwindLiquidationPayouts(liquidator, repayDenom, collateralDenom, pay, toLiquidator, toSafetyFund)
		return types.LiquidationEvent{}, err
	}
	if err := e.ledger.SubDeposit(borrower, collateralDenom, seizeAmount); err != nil {
		if restoreErr := e.ledger.AddBorrow(borrower, repayDenom, pay); restoreErr != nil {
			engineLogger.Error().Err(restoreErr).Msg("CRITICAL: failed to restore borrow after liquidation failure")
		}
		e.unwindLiquidationPayouts(liquidator, repayDenom, collateralDenom, pay, toLiquidator, toSafetyFund)
		return types.LiquidationEvent{}, err
	}
	if err := e.ledger.AddReserve(collateralDenom, remainder); err != nil {
		if restoreErr := e.ledger.AddBorrow(borrower, repayDenom, pay); restoreErr != nil {
			engineLogger.Error().Err(restoreErr).Msg("CRITICAL: failed to restore borrow after liquidation failure")
		}
		if restoreErr := e.ledger.AddDeposit(borrower, collateralDenom, seizeAmount); restoreErr != nil {
			engineLogger.Error().Err(restoreErr).Msg("CRITICAL: failed to restore collateral after liquidation failure")
		}
		e.unwindLiquidationPayouts(liquidator, repayDenom, collateralDenom, pay, toLiquidator, toSafetyFund)
		return types.LiquidationEvent{}, err
	}

	event := types.LiquidationEvent{
		Timestamp:       time.Now(),
		Liquidator:      liquidator,
		Borrower:        borrower,
		RepayDenom:      repayDenom,
		CollateralDenom: collateralDenom,
		DebtRepaid:      pay,
		SeizedAmount:    seizeAmount,
		ToLiquidator:    toLiquidator,
		ToSafetyFund:    toSafetyFund,
		PoolRemainder:   remainder,
	}

	engineLogger.Info().
		Str("liquidator", string(liquidator)).
		Str("borrower", string(borrower)).
		Str("repayDenom", repayDenom).
		Str("collateralDenom", collateralDenom).
		Str("debtRepaid", pay.String()).
		Str("seizedAmount", seizeAmount.String()).
		Str("toLiquidator", toLiquidator.String()).
		Str("toSafetyFund", toSafetyFund.String()).
		Str("poolRemainder", remainder.String()).
		Msg("Liquidation executed")

	e.liquidations = append(e.liquidations, event)
	if len(e.liquidations) > maxRecentLiquidations {
		e.liquidations = e.liquidations[len(e.liquidations)-maxRecentLiquidations:]
	}

	if e.recorder != nil {
		e.recorder.RecordLiquidation(event)
		e.recorder.RecordOperation(types.OperationReceipt{
			Timestamp: event.Timestamp,
			Operation: types.OpLiquidate,
			Account:   liquidator,
			Denom:     repayDenom,
			Amount:    pay,
			Detail: fmt.Sprintf("borrower=%s collateral=%s seized=%s",
				borrower, collateralDenom, seizeAmount),
		})
	}

	return event, nil
}

// unwindLiquidationPayouts reverses the token movements of a liquidation whose
// ledger commit failed, pulling the collateral payouts back into pool custody
// and refunding the liquidator's repay transfer. Reversal failures are logged,
// there is nothing further to fall back to.
func (e *Engine) unwindLiquidationPayouts(
	liquidator types.Address,
	repayDenom, collateralDenom string,
	pay, toLiquidator, toSafetyFund sdkmath.Int,
) {
	if toLiquidator.IsPositive() {
		if err := e.bank.Pull(liquidator, collateralDenom, toLiquidator); err != nil {
			engineLogger.Error().Err(err).Msg("CRITICAL: failed to claw back liquidator payout after liquidation failure")
		}
	}
	if toSafetyFund.IsPositive() {
		if err := e.bank.Pull(e.safetyFund, collateralDenom, toSafetyFund); err != nil {
			engineLogger.Error().Err(err).Msg("CRITICAL: failed to claw back safety fund payout after liquidation failure")
		}
	}
	if err := e.bank.Push(liquidator, repayDenom, pay); err != nil {
		engineLogger.Error().Err(err).Msg("CRITICAL: failed to refund liquidator after liquidation failure")
	}
}
