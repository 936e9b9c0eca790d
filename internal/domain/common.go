package domain

// Account identifies an actor on the venue: a trader, a liquidator, or one
// of the core components when it calls a privileged entry point.
type Account string

// Direction represents the direction of a position or a pending order.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// PositionStatus represents the status of a position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// OrderStatus represents the status of a limit order.
// Transitions are one-way: PENDING -> EXECUTED | CANCELLED | EXPIRED.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusExecuted  OrderStatus = "executed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// Terminal reports whether the status ends the order's lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusExecuted || s == OrderStatusCancelled || s == OrderStatusExpired
}

// BasisPointsDivisor is the fixed-point scale for percentages: 10000 bps = 100%.
const BasisPointsDivisor = 10000
