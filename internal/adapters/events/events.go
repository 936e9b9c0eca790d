// Package events provides EventSink composition helpers.
package events

import (
	"context"

	"geoVenue/internal/domain"
	"geoVenue/internal/ports"
)

// Multi fans every event out to all wrapped sinks in order.
type Multi []ports.EventSink

// NewMulti combines sinks into one. Nil entries are dropped.
func NewMulti(sinks ...ports.EventSink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m Multi) PositionOpened(ctx context.Context, pos *domain.Position) {
	for _, s := range m {
		s.PositionOpened(ctx, pos)
	}
}

func (m Multi) PositionClosed(ctx context.Context, report domain.CloseReport) {
	for _, s := range m {
		s.PositionClosed(ctx, report)
	}
}

func (m Multi) OrderCreated(ctx context.Context, order *domain.LimitOrder) {
	for _, s := range m {
		s.OrderCreated(ctx, order)
	}
}

func (m Multi) OrderExecuted(ctx context.Context, order *domain.LimitOrder, positionID int64, executor domain.Account) {
	for _, s := range m {
		s.OrderExecuted(ctx, order, positionID, executor)
	}
}

func (m Multi) OrderCancelled(ctx context.Context, order *domain.LimitOrder) {
	for _, s := range m {
		s.OrderCancelled(ctx, order)
	}
}

func (m Multi) PositionLiquidated(ctx context.Context, record *domain.LiquidationRecord, reward uint64) {
	for _, s := range m {
		s.PositionLiquidated(ctx, record, reward)
	}
}

func (m Multi) RewardsClaimed(ctx context.Context, liquidator domain.Account, amount uint64) {
	for _, s := range m {
		s.RewardsClaimed(ctx, liquidator, amount)
	}
}
