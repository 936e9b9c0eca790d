package ports

import (
	"context"

	"geoVenue/internal/domain"
)

// SettlementMedium is the opaque value-transfer capability supplied by the
// hosting environment (native currency or a fungible token). Transfers are
// synchronous and atomic with the calling operation; a failure is
// observable immediately and the caller must roll back any staged state.
type SettlementMedium interface {
	// Pay transfers amount from the venue to the given account.
	Pay(ctx context.Context, to domain.Account, amount uint64) error
	// Collect transfers amount from the given account to the venue.
	Collect(ctx context.Context, from domain.Account, amount uint64) error
}
