package domain

import "time"

// Position represents a leveraged directional position on a country market.
// Positions are created and mutated exclusively by the PositionRegistry;
// every other component references them by ID.
type Position struct {
	ID         int64          // Monotonically assigned, unique
	Market     string         // Country market identifier (e.g., "US", "BR")
	Trader     Account        // Owning trader
	Direction  Direction      // LONG or SHORT
	Size       uint64         // Collateral in settlement units, post-fee
	Leverage   int            // Integer multiplier, 1..MaxLeverage
	EntryPrice uint64         // Oracle price at open, always > 0
	OpenedAt   time.Time      // Timestamp when the position was opened
	Status     PositionStatus // open or closed; closed is terminal
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// CloseReport describes a completed position close, voluntary or forced.
// PnL is the realized profit (positive) or loss (negative) in settlement
// units; when Degraded is set the pool could not cover the profit payout,
// the trader received principal only and PnL was zeroed to make the
// degrade observable.
type CloseReport struct {
	PositionID int64
	Market     string
	Trader     Account
	Direction  Direction
	Size       uint64
	Leverage   int
	EntryPrice uint64
	ExitPrice  uint64
	PnL        int64
	Payout     uint64
	Degraded   bool
	Forced     bool
	ClosedAt   time.Time
}
