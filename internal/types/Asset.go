/*

Core data types for the collateralized lending module: listed-asset configuration,
fee parameters, and derived account valuations.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// Address identifies an account (user, liquidator, safety fund) on the ledger.
type Address string

// ZeroAddress is the invalid empty address.
const ZeroAddress Address = ""

// BpsDenominator is the basis-point denominator (10000 = 100%).
const BpsDenominator = 10_000

// MaxTotalFeeBps caps liquidator incentive + safety fund cut at 30%.
const MaxTotalFeeBps = 3_000

// AssetConfig holds the frozen listing-time configuration of one asset.
type AssetConfig struct {
	Denom               string `json:"denom"`                 // e.g., "uusdc"
	Supported           bool   `json:"supported"`             // true once listed; assets are never delisted
	CollateralFactorBps uint32 `json:"collateral_factor_bps"` // [1,10000], weight applied to deposit value
	Decimals            uint8  `json:"decimals"`              // native token precision, frozen at listing time
}

// FeeParameters are the global liquidation payout parameters.
// LiquidatorIncentiveBps + SafetyFundBps must stay at or below MaxTotalFeeBps.
type FeeParameters struct {
	LiquidatorIncentiveBps uint32 `json:"liquidator_incentive_bps"`
	SafetyFundBps          uint32 `json:"safety_fund_bps"`
}

// MultiplierBps is the liquidation seize multiplier denominator:
// 10000 + incentive + safety fund cut. The sum is widened to uint64 so
// unvalidated fee values near the uint32 limit cannot wrap.
func (f FeeParameters) MultiplierBps() uint64 {
	return BpsDenominator + uint64(f.LiquidatorIncentiveBps) + uint64(f.SafetyFundBps)
}

// AccountValues is the derived USD valuation for a single account.
// Both values are on the internal 1e18 fixed-point USD scale.
type AccountValues struct {
	CollateralUSD sdkmath.Int `json:"collateral_usd"` // collateral-factor weighted
	BorrowUSD     sdkmath.Int `json:"borrow_usd"`     // unweighted debt value
}

// IsHealthy reports the solvency condition: weighted collateral covers raw debt.
func (v AccountValues) IsHealthy() bool {
	return v.CollateralUSD.GTE(v.BorrowUSD)
}
