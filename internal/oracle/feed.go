/*

Price feed contract consumed by the valuation engine. A feed answers with a raw
integer price and the decimal scale of that price; the scale is independent of
the asset's own token decimals. Non-positive or stale prices are reported as
errors, never as zero value.

*/

package oracle

import (
	"context"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNoPrice      = errors.New("no usable price for asset")
	ErrStalePrice   = errors.New("price feed reading is stale")
	ErrFeedFailure  = errors.New("price feed query failed")
	ErrBadPriceData = errors.New("price feed returned invalid data")
)

// PriceQuote is one feed reading.
type PriceQuote struct {
	// Price is the raw integer price, strictly positive.
	Price sdkmath.Int
	// Decimals is the scale of Price (Price / 10^Decimals == USD units).
	Decimals uint8
	// Timestamp is when the reading was taken at the source.
	Timestamp time.Time
}

// PriceFeed answers current USD prices for asset denoms.
type PriceFeed interface {
	// GetPriceUSD returns the current price quote for denom. Implementations
	// must fail with ErrNoPrice when the source has no strictly positive
	// price, and with ErrStalePrice when the reading is older than the
	// configured staleness window.
	GetPriceUSD(ctx context.Context, denom string) (PriceQuote, error)
}

// MetadataSource answers listing-time token metadata queries.
type MetadataSource interface {
	// Decimals returns the native decimal precision of denom.
	Decimals(denom string) (uint8, error)
}
