package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// StaticFeed is a deterministic in-memory price feed for tests and simulation
// mode. Prices are set explicitly and never go stale unless a clock is
// injected and the staleness window is exceeded.
type StaticFeed struct {
	prices     map[string]PriceQuote
	staleAfter time.Duration
	clock      func() time.Time
}

// NewStaticFeed creates an empty feed. A zero staleAfter disables staleness
// checking.
func NewStaticFeed(staleAfter time.Duration) *StaticFeed {
	return &StaticFeed{
		prices:     make(map[string]PriceQuote),
		staleAfter: staleAfter,
		clock:      time.Now,
	}
}

// WithClock overrides the feed clock for deterministic tests.
func (f *StaticFeed) WithClock(clock func() time.Time) *StaticFeed {
	if clock != nil {
		f.clock = clock
	}
	return f
}

// SetPrice records a price for denom at the feed's current time.
func (f *StaticFeed) SetPrice(denom string, price sdkmath.Int, decimals uint8) {
	f.prices[denom] = PriceQuote{
		Price:     price,
		Decimals:  decimals,
		Timestamp: f.clock(),
	}
}

// GetPriceUSD implements PriceFeed.
func (f *StaticFeed) GetPriceUSD(_ context.Context, denom string) (PriceQuote, error) {
	quote, ok := f.prices[denom]
	if !ok {
		return PriceQuote{}, errors.Join(ErrNoPrice, fmt.Errorf("no price set for %s", denom))
	}
	if quote.Price.IsNil() || !quote.Price.IsPositive() {
		return PriceQuote{}, errors.Join(ErrNoPrice, fmt.Errorf("non-positive price for %s", denom))
	}
	if f.staleAfter > 0 && f.clock().Sub(quote.Timestamp) > f.staleAfter {
		return PriceQuote{}, errors.Join(ErrStalePrice, fmt.Errorf("price for %s is older than %s", denom, f.staleAfter))
	}
	return quote, nil
}
