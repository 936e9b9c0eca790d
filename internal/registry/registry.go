// Package registry implements the PositionRegistry, the sole owner and
// mutator of position state. Every open and close on the venue, voluntary
// or forced, funnels through here; other components reference positions by
// id only.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"geoVenue/internal/domain"
	"geoVenue/internal/ports"
)

// Config holds construction parameters for the registry.
type Config struct {
	// Owner manages the caller allow-list.
	Owner domain.Account
	// MaxPositionsPerTrader caps the number of concurrently open positions
	// per trader. Closed positions stay in the index and do not count.
	MaxPositionsPerTrader int
	Settlement            ports.SettlementMedium
	Events                ports.EventSink
	Logger                ports.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// PositionRegistry is the authoritative store of all positions and the
// pooled settlement balance payouts are drawn from. All state is guarded
// by a single mutex; each operation is atomic and totally ordered relative
// to every other.
type PositionRegistry struct {
	mu          sync.Mutex
	positions   map[int64]*domain.Position
	traderIndex map[domain.Account][]int64 // insertion order, never shrinks
	nextID      int64

	owner             domain.Account
	authorized        map[domain.Account]bool
	liquidationEngine domain.Account

	// balance is the pooled settlement fund every payout is checked
	// against. Mutated only by Open, Fund and the close path.
	balance uint64

	maxPerTrader int
	settlement   ports.SettlementMedium
	events       ports.EventSink
	logger       ports.Logger
	now          func() time.Time
}

// New creates a position registry.
func New(cfg Config) (*PositionRegistry, error) {
	if cfg.Owner == "" {
		return nil, fmt.Errorf("owner account is required for the position registry")
	}
	if cfg.Settlement == nil {
		return nil, fmt.Errorf("settlement medium is required for the position registry")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the position registry")
	}
	if cfg.MaxPositionsPerTrader <= 0 {
		return nil, fmt.Errorf("MaxPositionsPerTrader must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &PositionRegistry{
		positions:    make(map[int64]*domain.Position),
		traderIndex:  make(map[domain.Account][]int64),
		owner:        cfg.Owner,
		authorized:   make(map[domain.Account]bool),
		maxPerTrader: cfg.MaxPositionsPerTrader,
		settlement:   cfg.Settlement,
		events:       cfg.Events,
		logger:       cfg.Logger,
		now:          now,
	}, nil
}

// AuthorizeCaller adds an account to the allow-list of callers permitted
// to invoke the mutating entry points. Owner only.
func (r *PositionRegistry) AuthorizeCaller(caller, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ports.ErrUnauthorized
	}
	r.authorized[account] = true
	return nil
}

// RevokeCaller removes an account from the allow-list. Owner only.
func (r *PositionRegistry) RevokeCaller(caller, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ports.ErrUnauthorized
	}
	delete(r.authorized, account)
	return nil
}

// SetLiquidationEngine designates the single identity permitted to force
// close positions. Owner only.
func (r *PositionRegistry) SetLiquidationEngine(caller, engine domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ports.ErrUnauthorized
	}
	r.liquidationEngine = engine
	return nil
}

// Open stores a new position and returns its id. Only allow-listed callers
// (the market executor and the limit order book) may open positions; the
// collateral size joins the pooled settlement balance.
func (r *PositionRegistry) Open(ctx context.Context, caller, trader domain.Account, market string, direction domain.Direction, size uint64, leverage int, entryPrice uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.authorized[caller] {
		return 0, ports.ErrUnauthorized
	}
	if entryPrice == 0 {
		return 0, ports.ErrInvalidPrice
	}
	if size == 0 {
		return 0, ports.ErrInvalidAmount
	}
	if !direction.Valid() {
		return 0, fmt.Errorf("%w: unknown direction %q", ports.ErrInvalidAmount, direction)
	}
	if r.openCountLocked(trader) >= r.maxPerTrader {
		return 0, ports.ErrTooManyPositions
	}

	r.nextID++
	pos := &domain.Position{
		ID:         r.nextID,
		Market:     market,
		Trader:     trader,
		Direction:  direction,
		Size:       size,
		Leverage:   leverage,
		EntryPrice: entryPrice,
		OpenedAt:   r.now(),
		Status:     domain.StatusOpen,
	}
	r.positions[pos.ID] = pos
	r.traderIndex[trader] = append(r.traderIndex[trader], pos.ID)
	r.balance = domain.SaturatingAdd(r.balance, size)

	if r.events != nil {
		r.events.PositionOpened(ctx, snapshot(pos))
	}
	r.logger.Info(ctx, "Position opened", map[string]interface{}{
		"positionID": pos.ID,
		"trader":     trader,
		"market":     market,
		"direction":  direction,
		"size":       size,
		"leverage":   leverage,
		"entryPrice": entryPrice,
	})
	return pos.ID, nil
}

// Close settles and closes an open position at exitPrice. Forced closes
// are restricted to the designated liquidation engine; voluntary closes to
// the position's owner or an allow-listed router acting on their behalf.
//
// The status flip, the pool debit and the outbound payment are staged
// together: if the settlement transfer fails the position reverts to open
// and the pool is restored, leaving no partial state.
func (r *PositionRegistry) Close(ctx context.Context, caller domain.Account, positionID int64, exitPrice uint64, forced bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.positions[positionID]
	if !ok || !pos.IsOpen() {
		return ports.ErrPositionNotFound
	}
	if exitPrice == 0 {
		return ports.ErrInvalidPrice
	}
	if forced {
		if r.liquidationEngine == "" || caller != r.liquidationEngine {
			return ports.ErrUnauthorized
		}
	} else if caller != pos.Trader && !r.authorized[caller] {
		return ports.ErrUnauthorized
	}

	return r.closeLocked(ctx, pos, exitPrice, forced)
}

// CloseFirstOpenFor scans the trader's index in insertion order and closes
// the first open position found. Kept for single-position callers; new
// integrations should close by explicit id.
func (r *PositionRegistry) CloseFirstOpenFor(ctx context.Context, caller, trader domain.Account, exitPrice uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if exitPrice == 0 {
		return ports.ErrInvalidPrice
	}
	if caller != trader && !r.authorized[caller] {
		return ports.ErrUnauthorized
	}
	for _, id := range r.traderIndex[trader] {
		if pos := r.positions[id]; pos != nil && pos.IsOpen() {
			return r.closeLocked(ctx, pos, exitPrice, false)
		}
	}
	return ports.ErrPositionNotFound
}

func (r *PositionRegistry) closeLocked(ctx context.Context, pos *domain.Position, exitPrice uint64, forced bool) error {
	res := domain.LeveragedPnL(pos.Direction, pos.Size, pos.Leverage, pos.EntryPrice, exitPrice)
	payout, pnl, degraded := domain.SettlePayout(pos.Size, res, r.balance)
	if payout > r.balance {
		// Only reachable when earlier profit payouts drained the pool
		// below outstanding collateral; pay out what remains.
		r.logger.Warn(ctx, "Pool balance below principal payout", map[string]interface{}{
			"positionID": pos.ID,
			"payout":     payout,
			"balance":    r.balance,
		})
		payout = r.balance
	}

	// Stage the flip and the debit, then attempt the transfer. Failure
	// rolls both back so the position cannot end up closed and unpaid.
	pos.Status = domain.StatusClosed
	r.balance -= payout
	if payout > 0 {
		if err := r.settlement.Pay(ctx, pos.Trader, payout); err != nil {
			pos.Status = domain.StatusOpen
			r.balance += payout
			return fmt.Errorf("%w: %v", ports.ErrTransferFailed, err)
		}
	}

	report := domain.CloseReport{
		PositionID: pos.ID,
		Market:     pos.Market,
		Trader:     pos.Trader,
		Direction:  pos.Direction,
		Size:       pos.Size,
		Leverage:   pos.Leverage,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        pnl,
		Payout:     payout,
		Degraded:   degraded,
		Forced:     forced,
		ClosedAt:   r.now(),
	}
	if r.events != nil {
		r.events.PositionClosed(ctx, report)
	}
	r.logger.Info(ctx, "Position closed", map[string]interface{}{
		"positionID": pos.ID,
		"trader":     pos.Trader,
		"exitPrice":  exitPrice,
		"pnl":        pnl,
		"payout":     payout,
		"degraded":   degraded,
		"forced":     forced,
	})
	return nil
}

// Fund provisions the pooled settlement balance. Profit payouts exceed the
// collateral deposited by opens, so the surrounding system tops the pool
// up through this entry point.
func (r *PositionRegistry) Fund(ctx context.Context, from domain.Account, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if amount == 0 {
		return ports.ErrInvalidAmount
	}
	if err := r.settlement.Collect(ctx, from, amount); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrTransferFailed, err)
	}
	r.balance = domain.SaturatingAdd(r.balance, amount)
	r.logger.Info(ctx, "Pool funded", map[string]interface{}{"from": from, "amount": amount, "balance": r.balance})
	return nil
}

// GetPosition returns a copy of the position with the given id.
func (r *PositionRegistry) GetPosition(id int64) (*domain.Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.positions[id]
	if !ok {
		return nil, false
	}
	return snapshot(pos), true
}

// TraderPositionIDs returns the trader's position ids in insertion order,
// closed ids included.
func (r *PositionRegistry) TraderPositionIDs(trader domain.Account) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, len(r.traderIndex[trader]))
	copy(ids, r.traderIndex[trader])
	return ids
}

// TraderPositions returns copies of all the trader's positions in
// insertion order, closed positions included.
func (r *PositionRegistry) TraderPositions(trader domain.Account) []*domain.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Position, 0, len(r.traderIndex[trader]))
	for _, id := range r.traderIndex[trader] {
		if pos := r.positions[id]; pos != nil {
			out = append(out, snapshot(pos))
		}
	}
	return out
}

// OpenCount returns the number of currently open positions for the trader.
func (r *PositionRegistry) OpenCount(trader domain.Account) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openCountLocked(trader)
}

// FirstOpenFor returns the trader's first open position in insertion
// order. Returns (nil, false) when none is open; the read path stays
// side-effect free and never errors.
func (r *PositionRegistry) FirstOpenFor(trader domain.Account) (*domain.Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.traderIndex[trader] {
		if pos := r.positions[id]; pos != nil && pos.IsOpen() {
			return snapshot(pos), true
		}
	}
	return nil, false
}

// Balance returns the current pooled settlement balance.
func (r *PositionRegistry) Balance() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance
}

func (r *PositionRegistry) openCountLocked(trader domain.Account) int {
	n := 0
	for _, id := range r.traderIndex[trader] {
		if pos := r.positions[id]; pos != nil && pos.IsOpen() {
			n++
		}
	}
	return n
}

func snapshot(pos *domain.Position) *domain.Position {
	cp := *pos
	return &cp
}
