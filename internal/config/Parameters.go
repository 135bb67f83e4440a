/*

Default lending parameters and genesis asset listings.

The fee defaults follow the parameterization the liquidation formula was tuned
with: a 10% liquidator incentive and a 5% safety-fund cut (multiplier 11500 bps).

*/

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clm/internal/types"
)

// DefaultFeeParameters is the baseline fee configuration, used when the
// CLM_LIQUIDATOR_INCENTIVE_BPS / CLM_SAFETY_FUND_BPS variables are absent
// (test and simulation contexts).
var DefaultFeeParameters = types.FeeParameters{
	// 10% of seized collateral value is the liquidator's compensation.
	// Below ~5% liquidation stops being profitable after gas and slippage.
	LiquidatorIncentiveBps: 1000,

	// 5% of seized collateral value accrues to the safety fund to absorb
	// residual bad debt left by clamped liquidations.
	SafetyFundBps: 500,
}

// GenesisListing is one asset to list at startup. Decimals and PriceUsd1e18
// are only consulted in simulation mode; in live mode both come from the
// chain.
type GenesisListing struct {
	Denom               string
	CollateralFactorBps uint32
	Decimals            uint8
	PriceUsd1e18        string
}

// defaultSimPrice is 1 USD on the 1e18 fixed-point scale.
const defaultSimPrice = "1000000000000000000"

// GenesisListings parses CLM_GENESIS_ASSETS, a comma-separated list of
// denom:cfBps[:decimals[:priceUsd1e18]] entries, e.g.
// "uusdc:9000,uatom:7000:6:4500000000000000000".
func GenesisListings() ([]GenesisListing, error) {
	raw, exists := os.LookupEnv("CLM_GENESIS_ASSETS")
	if !exists || strings.TrimSpace(raw) == "" {
		return nil, errors.New("environment variable CLM_GENESIS_ASSETS is required but not set")
	}

	entries := strings.Split(raw, ",")
	listings := make([]GenesisListing, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 4 || parts[0] == "" {
			return nil, fmt.Errorf("invalid genesis asset entry %q (want denom:cfBps[:decimals[:priceUsd1e18]])", entry)
		}
		cf, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil || cf == 0 || cf > 10_000 {
			return nil, fmt.Errorf("invalid collateral factor in genesis asset entry %q", entry)
		}

		listing := GenesisListing{
			Denom:               parts[0],
			CollateralFactorBps: uint32(cf),
			Decimals:            6,
			PriceUsd1e18:        defaultSimPrice,
		}
		if len(parts) >= 3 {
			decimals, err := strconv.ParseUint(parts[2], 10, 8)
			if err != nil || decimals > 18 {
				return nil, fmt.Errorf("invalid decimals in genesis asset entry %q", entry)
			}
			listing.Decimals = uint8(decimals)
		}
		if len(parts) == 4 {
			price, ok := sdkmath.NewIntFromString(parts[3])
			if !ok || !price.IsPositive() {
				return nil, fmt.Errorf("invalid price in genesis asset entry %q", entry)
			}
			listing.PriceUsd1e18 = parts[3]
		}
		listings = append(listings, listing)
	}
	return listings, nil
}
