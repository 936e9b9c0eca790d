package ports

import (
	"context"

	"geoVenue/internal/domain"
)

// EventSink receives notifications about completed state transitions in
// the trading core. Implementations (journal, metrics) must never fail the
// calling operation: errors are handled internally.
type EventSink interface {
	// PositionOpened is emitted after a position is stored and indexed.
	PositionOpened(ctx context.Context, pos *domain.Position)
	// PositionClosed is emitted after a close settled, voluntary or forced.
	PositionClosed(ctx context.Context, report domain.CloseReport)
	// OrderCreated is emitted after a limit order is escrowed and indexed.
	OrderCreated(ctx context.Context, order *domain.LimitOrder)
	// OrderExecuted is emitted after a pending order converted to a position.
	OrderExecuted(ctx context.Context, order *domain.LimitOrder, positionID int64, executor domain.Account)
	// OrderCancelled is emitted after a pending order was refunded.
	OrderCancelled(ctx context.Context, order *domain.LimitOrder)
	// PositionLiquidated is emitted after a successful forced close.
	PositionLiquidated(ctx context.Context, record *domain.LiquidationRecord, reward uint64)
	// RewardsClaimed is emitted after a liquidator withdrew accrued rewards.
	RewardsClaimed(ctx context.Context, liquidator domain.Account, amount uint64)
}
