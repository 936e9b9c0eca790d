// Package oracle provides PriceOracle implementations: a deterministic
// pseudo-price stub for development and tests, and a Binance-backed
// adapter for production deployments.
package oracle

import (
	"context"
	"hash/fnv"
)

// PseudoOracle derives a deterministic pseudo-price from the market
// identifier. It is the placeholder price source the venue ships with:
// stable per market, always non-zero, no external calls.
type PseudoOracle struct {
	// MinPrice and Spread bound the derived price: price is in
	// [MinPrice, MinPrice+Spread).
	MinPrice uint64
	Spread   uint64
}

// NewPseudoOracle returns a pseudo oracle with prices in [100, 10100).
func NewPseudoOracle() *PseudoOracle {
	return &PseudoOracle{MinPrice: 100, Spread: 10000}
}

// GetPrice returns the hash-derived price for the market.
func (o *PseudoOracle) GetPrice(ctx context.Context, market string) (uint64, error) {
	h := fnv.New64a()
	h.Write([]byte(market))
	spread := o.Spread
	if spread == 0 {
		spread = 1
	}
	return o.MinPrice + h.Sum64()%spread, nil
}
