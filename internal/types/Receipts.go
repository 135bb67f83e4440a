/*

Receipt types recorded after successful ledger mutations. These are an audit
trail only; the in-memory ledger remains the authoritative state.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Operation kinds recorded in receipts.
const (
	OpDeposit             = "deposit"
	OpWithdraw            = "withdraw"
	OpBorrow              = "borrow"
	OpRepay               = "repay"
	OpLiquidate           = "liquidate"
	OpListAsset           = "list_asset"
	OpSetCollateralFactor = "set_collateral_factor"
	OpSetFeeParameters    = "set_fee_parameters"
)

// OperationReceipt records one successful user or administrative operation.
type OperationReceipt struct {
	Timestamp time.Time   `json:"timestamp"`
	Operation string      `json:"operation"`
	Account   Address     `json:"account"`
	Denom     string      `json:"denom"`
	Amount    sdkmath.Int `json:"amount"`
	Detail    string      `json:"detail,omitempty"` // e.g., old/new collateral factor
}

// Recorder receives receipts after successful operations. Implementations are
// best-effort sinks; recording failures must never affect ledger state.
type Recorder interface {
	RecordOperation(receipt OperationReceipt)
	RecordLiquidation(event LiquidationEvent)
}

// LiquidationEvent records one executed liquidation with the full fee split.
type LiquidationEvent struct {
	Timestamp       time.Time   `json:"timestamp"`
	Liquidator      Address     `json:"liquidator"`
	Borrower        Address     `json:"borrower"`
	RepayDenom      string      `json:"repay_denom"`
	CollateralDenom string      `json:"collateral_denom"`
	DebtRepaid      sdkmath.Int `json:"debt_repaid"`
	SeizedAmount    sdkmath.Int `json:"seized_amount"`
	ToLiquidator    sdkmath.Int `json:"to_liquidator"`
	ToSafetyFund    sdkmath.Int `json:"to_safety_fund"`
	PoolRemainder   sdkmath.Int `json:"pool_remainder"` // seized - paid out, kept in pool custody
}
