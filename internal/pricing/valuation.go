/*

Valuation engine: converts raw token amounts to USD values on the internal
1e18 fixed-point scale and back. All division is integer floor division, so a
converted value can be slightly below but never above the exact quotient.

*/

package pricing

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clm/internal/oracle"
	"github.com/elys-network/clm/internal/registry"
	"github.com/elys-network/clm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountInvalid = errors.New("amount is invalid")
	ErrZeroPrice     = errors.New("normalized price is zero")
)

// usdScale is the number of decimals of the internal fixed-point USD scale.
const usdScale = 18

// Engine values token amounts through a price feed and the asset registry.
type Engine struct {
	registry *registry.Registry
	feed     oracle.PriceFeed
}

// NewEngine creates a valuation engine.
func NewEngine(reg *registry.Registry, feed oracle.PriceFeed) (*Engine, error) {
	if reg == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if feed == nil {
		return nil, errors.New("price feed cannot be nil")
	}
	return &Engine{registry: reg, feed: feed}, nil
}

// pow10 returns 10^exp as an Int. exp is bounded by token/price decimals,
// which are validated to at most 18 everywhere they enter the system.
func pow10(exp uint8) sdkmath.Int {
	result := sdkmath.OneInt()
	ten := sdkmath.NewInt(10)
	for i := uint8(0); i < exp; i++ {
		result = result.Mul(ten)
	}
	return result
}

// PriceUSD1e18 returns the asset's USD price normalized to the 1e18 scale.
// A feed reading that is non-positive, stale, or that normalizes to zero is
// an error, never a zero value.
func (e *Engine) PriceUSD1e18(ctx context.Context, denom string) (sdkmath.Int, error) {
	quote, err := e.feed.GetPriceUSD(ctx, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if quote.Price.IsNil() || !quote.Price.IsPositive() {
		return sdkmath.Int{}, errors.Join(oracle.ErrNoPrice, fmt.Errorf("feed returned non-positive price for %s", denom))
	}

	var normalized sdkmath.Int
	switch {
	case quote.Decimals < usdScale:
		normalized = quote.Price.Mul(pow10(usdScale - quote.Decimals))
	case quote.Decimals > usdScale:
		normalized = quote.Price.Quo(pow10(quote.Decimals - usdScale))
	default:
		normalized = quote.Price
	}

	if normalized.IsZero() {
		return sdkmath.Int{}, errors.Join(ErrZeroPrice, fmt.Errorf("price for %s truncated to zero at 1e18 scale", denom))
	}
	return normalized, nil
}

// ValueUSD returns the 1e18-scale USD value of amount of the given asset:
// amount * priceUsd1e18 / 10^assetDecimals, floored.
func (e *Engine) ValueUSD(ctx context.Context, amount sdkmath.Int, denom string) (sdkmath.Int, error) {
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.Int{}, errors.Join(ErrAmountInvalid, fmt.Errorf("amount %v of %s", amount, denom))
	}

	cfg, err := e.registry.Get(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}

	price, err := e.PriceUSD1e18(ctx, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}

	return amount.Mul(price).Quo(pow10(cfg.Decimals)), nil
}

// AmountFromUSD is the inverse of ValueUSD: the token amount whose value is
// at most valueUsd, i.e. valueUsd * 10^assetDecimals / priceUsd1e18, floored.
func (e *Engine) AmountFromUSD(ctx context.Context, valueUsd sdkmath.Int, denom string) (sdkmath.Int, error) {
	if valueUsd.IsNil() || valueUsd.IsNegative() {
		return sdkmath.Int{}, errors.Join(ErrAmountInvalid, fmt.Errorf("usd value %v", valueUsd))
	}

	cfg, err := e.registry.Get(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}

	price, err := e.PriceUSD1e18(ctx, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}

	return valueUsd.Mul(pow10(cfg.Decimals)).Quo(price), nil
}

// ApplyFactorBps scales a value by a basis-point factor, floored.
func ApplyFactorBps(value sdkmath.Int, bps uint32) sdkmath.Int {
	return value.Mul(sdkmath.NewInt(int64(bps))).Quo(sdkmath.NewInt(types.BpsDenominator))
}
