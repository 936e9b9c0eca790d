package domain

import "time"

// LiquidationStatus represents the outcome recorded for a liquidation.
type LiquidationStatus string

const (
	LiquidationCompleted LiquidationStatus = "completed"
)

// LiquidationRecord captures a successful forced close. At most one record
// exists per position id; a later liquidation of the same id overwrites it.
type LiquidationRecord struct {
	PositionID   int64             // Liquidated position
	Liquidator   Account           // Caller that triggered the forced close
	Price        uint64            // Oracle price at liquidation time
	LiquidatedAt time.Time         // Timestamp of the forced close
	Status       LiquidationStatus // Outcome status
}
