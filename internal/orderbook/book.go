// Package orderbook implements the LimitOrderBook: escrow and bookkeeping
// for conditional orders that convert into positions when their trigger
// price is reached.
//
// There is no autonomous expiry sweep: an order past its TTL simply
// refuses to execute and stays pending; OrderStatusExpired is reserved for
// a surrounding system that chooses to add such a sweep.
package orderbook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"geoVenue/internal/domain"
	"geoVenue/internal/ports"
	"geoVenue/internal/reentry"
)

const guardScope = "limit-order-book"

// PositionRegistry is the slice of the registry the book needs: opening
// positions for triggered orders and pre-checking the trader's cap.
type PositionRegistry interface {
	Open(ctx context.Context, caller, trader domain.Account, market string, direction domain.Direction, size uint64, leverage int, entryPrice uint64) (int64, error)
	OpenCount(trader domain.Account) int
}

// Config holds construction parameters for the limit order book.
type Config struct {
	// Identity is the account the book presents to the registry; it must
	// be on the registry's allow-list.
	Identity domain.Account
	// Router is the only caller allowed to invoke Create. TryExecute is
	// deliberately open to anyone: triggering pays a bounty.
	Router      domain.Account
	MaxLeverage int
	FeeBps      uint64
	// TTL is the fixed lifetime of a pending order.
	TTL                   time.Duration
	MaxPositionsPerTrader int
	Registry              PositionRegistry
	Oracle                ports.PriceOracle
	Settlement            ports.SettlementMedium
	Events                ports.EventSink
	Logger                ports.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// LimitOrderBook holds pending conditional orders indexed by market and by
// trader. Indices are append-only; terminal orders are soft-deleted via
// their status and never pruned, so ids stay valid forever.
type LimitOrderBook struct {
	mu       sync.Mutex
	orders   map[int64]*domain.LimitOrder
	byMarket map[string][]int64
	byTrader map[domain.Account][]int64
	nextID   int64

	identity     domain.Account
	router       domain.Account
	maxLeverage  int
	feeBps       uint64
	ttl          time.Duration
	maxPerTrader int
	registry     PositionRegistry
	oracle       ports.PriceOracle
	settlement   ports.SettlementMedium
	events       ports.EventSink
	logger       ports.Logger
	now          func() time.Time
}

// New creates a limit order book.
func New(cfg Config) (*LimitOrderBook, error) {
	if cfg.Identity == "" || cfg.Router == "" {
		return nil, fmt.Errorf("book identity and router identity are required")
	}
	if cfg.Registry == nil || cfg.Oracle == nil || cfg.Settlement == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for limit order book")
	}
	if cfg.MaxLeverage < 1 {
		return nil, fmt.Errorf("MaxLeverage must be at least 1")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("order TTL must be positive")
	}
	if cfg.MaxPositionsPerTrader <= 0 {
		return nil, fmt.Errorf("MaxPositionsPerTrader must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &LimitOrderBook{
		orders:       make(map[int64]*domain.LimitOrder),
		byMarket:     make(map[string][]int64),
		byTrader:     make(map[domain.Account][]int64),
		identity:     cfg.Identity,
		router:       cfg.Router,
		maxLeverage:  cfg.MaxLeverage,
		feeBps:       cfg.FeeBps,
		ttl:          cfg.TTL,
		maxPerTrader: cfg.MaxPositionsPerTrader,
		registry:     cfg.Registry,
		oracle:       cfg.Oracle,
		settlement:   cfg.Settlement,
		events:       cfg.Events,
		logger:       cfg.Logger,
		now:          now,
	}, nil
}

// Create escrows payment and stores a pending order. Caller-restricted to
// the order router. The fee is carried alongside the order as the
// execution bounty rather than taken up front.
func (b *LimitOrderBook) Create(ctx context.Context, caller, trader domain.Account, market string, direction domain.Direction, leverage int, triggerPrice, payment uint64) (int64, error) {
	ctx, err := reentry.Enter(ctx, guardScope)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if caller != b.router {
		return 0, ports.ErrUnauthorized
	}
	if leverage < 1 || leverage > b.maxLeverage {
		return 0, ports.ErrInvalidLeverage
	}
	if triggerPrice == 0 {
		return 0, ports.ErrInvalidTriggerPrice
	}
	if payment == 0 {
		return 0, ports.ErrInvalidAmount
	}

	fee := domain.BpsOf(payment, b.feeBps)
	size := payment - fee
	if size == 0 {
		return 0, ports.ErrInvalidAmount
	}

	if err := b.settlement.Collect(ctx, trader, payment); err != nil {
		return 0, fmt.Errorf("%w: %v", ports.ErrTransferFailed, err)
	}

	createdAt := b.now()
	b.nextID++
	order := &domain.LimitOrder{
		ID:           b.nextID,
		Trader:       trader,
		Market:       market,
		Direction:    direction,
		Size:         size,
		Leverage:     leverage,
		TriggerPrice: triggerPrice,
		Fee:          fee,
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(b.ttl),
		Status:       domain.OrderStatusPending,
	}
	b.orders[order.ID] = order
	b.byMarket[market] = append(b.byMarket[market], order.ID)
	b.byTrader[trader] = append(b.byTrader[trader], order.ID)

	if b.events != nil {
		b.events.OrderCreated(ctx, cloneOrder(order))
	}
	b.logger.Info(ctx, "Limit order created", map[string]interface{}{
		"orderID":      order.ID,
		"trader":       trader,
		"market":       market,
		"direction":    direction,
		"triggerPrice": triggerPrice,
		"size":         size,
		"fee":          fee,
		"expiresAt":    order.ExpiresAt,
	})
	return order.ID, nil
}

// TryExecute attempts to convert a pending order into a position at the
// current oracle price. Open to any caller; whoever triggers a fill is
// paid the order's escrowed fee as a bounty. Expiry is evaluated lazily
// here: a stale order refuses execution but stays pending.
func (b *LimitOrderBook) TryExecute(ctx context.Context, caller domain.Account, orderID int64) (int64, error) {
	ctx, err := reentry.Enter(ctx, guardScope)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[orderID]
	if !ok {
		return 0, ports.ErrOrderNotFound
	}
	if !order.IsPending() {
		return 0, ports.ErrOrderNotPending
	}
	if b.now().After(order.ExpiresAt) {
		return 0, ports.ErrOrderExpired
	}

	price, err := b.oracle.GetPrice(ctx, order.Market)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ports.ErrInvalidPrice, err)
	}
	if price == 0 {
		return 0, ports.ErrInvalidPrice
	}
	if !order.TriggerMet(price) {
		return 0, ports.ErrTriggerNotMet
	}

	// Cheap cap pre-check so a full trader refuses before any state flips.
	if b.registry.OpenCount(order.Trader) >= b.maxPerTrader {
		return 0, ports.ErrTooManyPositions
	}

	order.Status = domain.OrderStatusExecuted
	positionID, err := b.registry.Open(ctx, b.identity, order.Trader, order.Market, order.Direction, order.Size, order.Leverage, price)
	if err != nil {
		order.Status = domain.OrderStatusPending
		return 0, err
	}

	// The bounty moves only once the position exists, so a refused open
	// never leaves funds to recover from the caller. The open itself
	// cannot be unwound, so a failed payment past this point is logged
	// rather than propagated.
	if order.Fee > 0 {
		if err := b.settlement.Pay(ctx, caller, order.Fee); err != nil {
			b.logger.Error(ctx, err, "Failed to pay execution bounty", map[string]interface{}{
				"orderID": orderID,
				"caller":  caller,
				"fee":     order.Fee,
			})
		}
	}

	if b.events != nil {
		b.events.OrderExecuted(ctx, cloneOrder(order), positionID, caller)
	}
	b.logger.Info(ctx, "Limit order executed", map[string]interface{}{
		"orderID":    orderID,
		"positionID": positionID,
		"executor":   caller,
		"price":      price,
		"bounty":     order.Fee,
	})
	return positionID, nil
}

// Cancel refunds a pending order in full (escrowed size plus fee) to its
// trader and marks it cancelled. Only the order's trader may cancel.
func (b *LimitOrderBook) Cancel(ctx context.Context, caller domain.Account, orderID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[orderID]
	if !ok {
		return ports.ErrOrderNotFound
	}
	if caller != order.Trader {
		return ports.ErrUnauthorized
	}
	if !order.IsPending() {
		return ports.ErrOrderNotPending
	}

	refund := order.Size + order.Fee
	order.Status = domain.OrderStatusCancelled
	if err := b.settlement.Pay(ctx, order.Trader, refund); err != nil {
		order.Status = domain.OrderStatusPending
		return fmt.Errorf("%w: %v", ports.ErrTransferFailed, err)
	}

	if b.events != nil {
		b.events.OrderCancelled(ctx, cloneOrder(order))
	}
	b.logger.Info(ctx, "Limit order cancelled", map[string]interface{}{
		"orderID": orderID,
		"trader":  order.Trader,
		"refund":  refund,
	})
	return nil
}

// GetOrder returns a copy of the order with the given id.
func (b *LimitOrderBook) GetOrder(id int64) (*domain.LimitOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[id]
	if !ok {
		return nil, false
	}
	return cloneOrder(order), true
}

// OrdersByTrader returns the trader's order ids in insertion order,
// terminal orders included.
func (b *LimitOrderBook) OrdersByTrader(trader domain.Account) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int64, len(b.byTrader[trader]))
	copy(ids, b.byTrader[trader])
	return ids
}

// OrdersByMarket returns the market's order ids in insertion order,
// terminal orders included.
func (b *LimitOrderBook) OrdersByMarket(market string) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int64, len(b.byMarket[market]))
	copy(ids, b.byMarket[market])
	return ids
}

func cloneOrder(o *domain.LimitOrder) *domain.LimitOrder {
	cp := *o
	return &cp
}
