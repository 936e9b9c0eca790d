// Package liquidation implements the LiquidationEngine: margin-health
// checks, forced closes when margin is exhausted, and the liquidator
// reward ledger.
package liquidation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"geoVenue/internal/domain"
	"geoVenue/internal/ports"
)

// PositionRegistry is the slice of the registry the engine needs.
type PositionRegistry interface {
	GetPosition(id int64) (*domain.Position, bool)
	Close(ctx context.Context, caller domain.Account, positionID int64, exitPrice uint64, forced bool) error
}

// Config holds construction parameters for the liquidation engine.
type Config struct {
	// Identity is the account the engine presents to the registry for
	// forced closes; the registry must designate it as its liquidation
	// engine.
	Identity domain.Account
	// ThresholdBps is the margin-ratio floor: a position is liquidatable
	// when its margin ratio is at or below this many basis points.
	ThresholdBps uint64
	// BonusBps is the liquidator bonus as basis points of initial margin.
	BonusBps   uint64
	Registry   PositionRegistry
	Oracle     ports.PriceOracle
	Settlement ports.SettlementMedium
	Events     ports.EventSink
	Logger     ports.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// LiquidationEngine computes margin health against the current oracle
// price and force-closes positions under the threshold. The forced close's
// payout still goes to the original trader; the liquidator's reward is a
// separate ledger credit funded by the surrounding system.
type LiquidationEngine struct {
	mu      sync.Mutex
	records map[int64]*domain.LiquidationRecord // latest per position id
	rewards map[domain.Account]uint64           // accrued, unclaimed

	identity     domain.Account
	thresholdBps uint64
	bonusBps     uint64
	registry     PositionRegistry
	oracle       ports.PriceOracle
	settlement   ports.SettlementMedium
	events       ports.EventSink
	logger       ports.Logger
	now          func() time.Time
}

// New creates a liquidation engine.
func New(cfg Config) (*LiquidationEngine, error) {
	if cfg.Identity == "" {
		return nil, fmt.Errorf("engine identity is required")
	}
	if cfg.Registry == nil || cfg.Oracle == nil || cfg.Settlement == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for liquidation engine")
	}
	if cfg.ThresholdBps == 0 || cfg.ThresholdBps >= domain.BasisPointsDivisor {
		return nil, fmt.Errorf("ThresholdBps must be between 1 and 9999")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &LiquidationEngine{
		records:      make(map[int64]*domain.LiquidationRecord),
		rewards:      make(map[domain.Account]uint64),
		identity:     cfg.Identity,
		thresholdBps: cfg.ThresholdBps,
		bonusBps:     cfg.BonusBps,
		registry:     cfg.Registry,
		oracle:       cfg.Oracle,
		settlement:   cfg.Settlement,
		events:       cfg.Events,
		logger:       cfg.Logger,
		now:          now,
	}, nil
}

// CheckHealth returns whether the position is liquidatable and its margin
// ratio in basis points. It never errors: id 0, missing, closed positions
// and unavailable prices all report (false, 0).
func (e *LiquidationEngine) CheckHealth(ctx context.Context, positionID int64) (bool, uint64) {
	if positionID == 0 {
		return false, 0
	}
	pos, ok := e.registry.GetPosition(positionID)
	if !ok || !pos.IsOpen() {
		return false, 0
	}
	price, err := e.oracle.GetPrice(ctx, pos.Market)
	if err != nil || price == 0 {
		return false, 0
	}
	return e.health(pos, price)
}

func (e *LiquidationEngine) health(pos *domain.Position, price uint64) (bool, uint64) {
	res := domain.LeveragedPnL(pos.Direction, pos.Size, pos.Leverage, pos.EntryPrice, price)
	ratio := domain.MarginRatioBps(pos.Size, pos.Leverage, res)
	return ratio <= e.thresholdBps, ratio
}

// Liquidate force-closes an under-margined position at the current oracle
// price, records the liquidation and credits the caller's reward balance.
// Returns the reward amount.
func (e *LiquidationEngine) Liquidate(ctx context.Context, caller domain.Account, positionID int64) (uint64, error) {
	if positionID == 0 {
		return 0, ports.ErrInvalidPosition
	}
	pos, ok := e.registry.GetPosition(positionID)
	if !ok || !pos.IsOpen() {
		return 0, ports.ErrNotLiquidatable
	}
	// Without a price the health is unknowable; refuse the same way
	// CheckHealth reports an oracle outage.
	price, err := e.oracle.GetPrice(ctx, pos.Market)
	if err != nil {
		return 0, fmt.Errorf("%w: price unavailable: %v", ports.ErrNotLiquidatable, err)
	}
	if price == 0 {
		return 0, ports.ErrNotLiquidatable
	}
	eligible, ratio := e.health(pos, price)
	if !eligible {
		return 0, ports.ErrNotLiquidatable
	}

	initialMargin := pos.Size / uint64(pos.Leverage)
	reward := domain.BpsOf(initialMargin, e.bonusBps)

	if err := e.registry.Close(ctx, e.identity, positionID, price, true); err != nil {
		return 0, err
	}

	e.mu.Lock()
	record := &domain.LiquidationRecord{
		PositionID:   positionID,
		Liquidator:   caller,
		Price:        price,
		LiquidatedAt: e.now(),
		Status:       domain.LiquidationCompleted,
	}
	e.records[positionID] = record
	e.rewards[caller] = domain.SaturatingAdd(e.rewards[caller], reward)
	e.mu.Unlock()

	if e.events != nil {
		e.events.PositionLiquidated(ctx, record, reward)
	}
	e.logger.Info(ctx, "Position liquidated", map[string]interface{}{
		"positionID":     positionID,
		"liquidator":     caller,
		"price":          price,
		"marginRatioBps": ratio,
		"reward":         reward,
	})
	return reward, nil
}

// BatchLiquidate attempts to liquidate every id in the batch and returns
// the total reward for the ones that succeeded. Individual failures are
// skipped so one bad id cannot abort the sweep.
func (e *LiquidationEngine) BatchLiquidate(ctx context.Context, caller domain.Account, positionIDs []int64) uint64 {
	var total uint64
	for _, id := range positionIDs {
		reward, err := e.Liquidate(ctx, caller, id)
		if err != nil {
			e.logger.Debug(ctx, "Skipped position in liquidation sweep", map[string]interface{}{
				"positionID": id,
				"reason":     err.Error(),
			})
			continue
		}
		total = domain.SaturatingAdd(total, reward)
	}
	return total
}

// BatchCheckHealth checks every id in the batch and returns parallel
// result slices in input order. Every entry always has a value;
// unresolvable ids report (false, 0).
func (e *LiquidationEngine) BatchCheckHealth(ctx context.Context, positionIDs []int64) ([]bool, []uint64) {
	eligible := make([]bool, len(positionIDs))
	ratios := make([]uint64, len(positionIDs))
	for i, id := range positionIDs {
		eligible[i], ratios[i] = e.CheckHealth(ctx, id)
	}
	return eligible, ratios
}

// ClaimRewards pays the caller their full accrued reward balance and
// zeroes it. Claiming is a withdrawal only the liquidator can initiate.
func (e *LiquidationEngine) ClaimRewards(ctx context.Context, caller domain.Account) (uint64, error) {
	e.mu.Lock()
	amount := e.rewards[caller]
	if amount == 0 {
		e.mu.Unlock()
		return 0, ports.ErrNoRewards
	}
	e.rewards[caller] = 0
	e.mu.Unlock()

	if err := e.settlement.Pay(ctx, caller, amount); err != nil {
		e.mu.Lock()
		e.rewards[caller] += amount
		e.mu.Unlock()
		return 0, fmt.Errorf("%w: %v", ports.ErrTransferFailed, err)
	}

	if e.events != nil {
		e.events.RewardsClaimed(ctx, caller, amount)
	}
	e.logger.Info(ctx, "Liquidator rewards claimed", map[string]interface{}{
		"liquidator": caller,
		"amount":     amount,
	})
	return amount, nil
}

// Rewards returns the caller's accrued, unclaimed reward balance.
func (e *LiquidationEngine) Rewards(account domain.Account) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewards[account]
}

// GetRecord returns the latest liquidation record for a position id.
func (e *LiquidationEngine) GetRecord(positionID int64) (*domain.LiquidationRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[positionID]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}
