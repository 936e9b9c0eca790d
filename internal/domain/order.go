package domain

import "time"

// LimitOrder represents a conditional order that converts into a position
// when its trigger price is reached. The escrowed Size plus Fee belongs to
// the order until it reaches a terminal status: forwarded on execution,
// refunded on cancellation.
type LimitOrder struct {
	ID           int64       // Monotonically assigned, unique
	Trader       Account     // Order owner
	Market       string      // Country market identifier
	Direction    Direction   // LONG or SHORT
	Size         uint64      // Escrowed collateral, post-fee
	Leverage     int         // Integer multiplier, 1..MaxLeverage
	TriggerPrice uint64      // Price at which the order becomes executable
	Fee          uint64      // Escrowed execution bounty for the triggering caller
	CreatedAt    time.Time   // Creation timestamp
	ExpiresAt    time.Time   // CreatedAt + fixed TTL
	Status       OrderStatus // pending until executed/cancelled/expired
}

// IsPending checks if the order can still be executed or cancelled.
func (o *LimitOrder) IsPending() bool {
	return o.Status == OrderStatusPending
}

// TriggerMet reports whether the current price satisfies the trigger
// condition: LONG orders fill when the price has dropped to the trigger or
// below, SHORT orders when it has risen to the trigger or above.
func (o *LimitOrder) TriggerMet(price uint64) bool {
	if o.Direction == Long {
		return price <= o.TriggerPrice
	}
	return price >= o.TriggerPrice
}
