package ports

import "context"

// PriceOracle supplies the reference price for a country market.
// A returned price of 0 means the price is unavailable; core components
// treat it as ErrInvalidPrice and refuse to mutate state.
type PriceOracle interface {
	// GetPrice returns the current price for the given market identifier
	// in integer price units.
	GetPrice(ctx context.Context, market string) (uint64, error)
}
