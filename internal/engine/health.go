package engine

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clm/internal/pricing"
	"github.com/elys-network/clm/internal/types"
)

// accountValues computes the USD valuation of an account across every listed
// asset. Collateral is weighted by each asset's collateral factor; debt is
// valued raw. The override maps substitute candidate balances for specific
// denoms so that solvency of a pending mutation can be checked before any of
// it is committed.
func (e *Engine) accountValues(ctx context.Context, account types.Address, depositOv, borrowOv map[string]sdkmath.Int) (types.AccountValues, error) {
	values := types.AccountValues{
		CollateralUSD: sdkmath.ZeroInt(),
		BorrowUSD:     sdkmath.ZeroInt(),
	}

	for _, denom := range e.registry.ListedDenoms() {
		cfg, err := e.registry.Get(denom)
		if err != nil {
			return types.AccountValues{}, err
		}

		deposit := e.ledger.Deposit(account, denom)
		if ov, ok := depositOv[denom]; ok {
			deposit = ov
		}
		if deposit.IsPositive() {
			value, err := e.valuation.ValueUSD(ctx, deposit, denom)
			if err != nil {
				return types.AccountValues{}, err
			}
			values.CollateralUSD = values.CollateralUSD.Add(pricing.ApplyFactorBps(value, cfg.CollateralFactorBps))
		}

		borrow := e.ledger.Borrow(account, denom)
		if ov, ok := borrowOv[denom]; ok {
			borrow = ov
		}
		if borrow.IsPositive() {
			value, err := e.valuation.ValueUSD(ctx, borrow, denom)
			if err != nil {
				return types.AccountValues{}, err
			}
			values.BorrowUSD = values.BorrowUSD.Add(value)
		}
	}

	return values, nil
}

// AccountValues returns the committed weighted valuation of an account.
func (e *Engine) AccountValues(ctx context.Context, account types.Address) (types.AccountValues, error) {
	return e.accountValues(ctx, account, nil, nil)
}

// AccountTotalsUSD returns the unweighted collateral value alongside the debt
// value. Informational only; solvency decisions always use AccountValues.
func (e *Engine) AccountTotalsUSD(ctx context.Context, account types.Address) (collateralUsd, borrowUsd sdkmath.Int, err error) {
	collateralUsd = sdkmath.ZeroInt()
	borrowUsd = sdkmath.ZeroInt()

	for _, denom := range e.registry.ListedDenoms() {
		deposit := e.ledger.Deposit(account, denom)
		if deposit.IsPositive() {
			value, verr := e.valuation.ValueUSD(ctx, deposit, denom)
			if verr != nil {
				return sdkmath.Int{}, sdkmath.Int{}, verr
			}
			collateralUsd = collateralUsd.Add(value)
		}

		borrow := e.ledger.Borrow(account, denom)
		if borrow.IsPositive() {
			value, verr := e.valuation.ValueUSD(ctx, borrow, denom)
			if verr != nil {
				return sdkmath.Int{}, sdkmath.Int{}, verr
			}
			borrowUsd = borrowUsd.Add(value)
		}
	}

	return collateralUsd, borrowUsd, nil
}

// IsAccountHealthy reports the committed solvency condition of an account.
func (e *Engine) IsAccountHealthy(ctx context.Context, account types.Address) (bool, error) {
	values, err := e.accountValues(ctx, account, nil, nil)
	if err != nil {
		return false, err
	}
	return values.IsHealthy(), nil
}

// CanBeLiquidated reports whether an account's weighted collateral no longer
// covers its debt.
func (e *Engine) CanBeLiquidated(ctx context.Context, account types.Address) (bool, error) {
	healthy, err := e.IsAccountHealthy(ctx, account)
	if err != nil {
		return false, err
	}
	return !healthy, nil
}
