// Package executor implements the MarketExecutor, the synchronous
// immediate-fill path: validate, take the fee, fetch the oracle price and
// open the position at it.
package executor

import (
	"context"
	"fmt"
	"sync"

	"geoVenue/internal/domain"
	"geoVenue/internal/ports"
	"geoVenue/internal/reentry"
)

const guardScope = "market-executor"

// PositionOpener is the slice of the PositionRegistry the executor needs.
type PositionOpener interface {
	Open(ctx context.Context, caller, trader domain.Account, market string, direction domain.Direction, size uint64, leverage int, entryPrice uint64) (int64, error)
}

// Config holds construction parameters for the market executor.
type Config struct {
	// Identity is the account the executor presents to the registry; it
	// must be on the registry's allow-list.
	Identity domain.Account
	// Router is the only caller allowed to invoke Execute.
	Router      domain.Account
	MaxLeverage int
	FeeBps      uint64
	Registry    PositionOpener
	Oracle      ports.PriceOracle
	Settlement  ports.SettlementMedium
	Logger      ports.Logger
}

// MarketExecutor validates leverage, computes the fee, fetches the price
// and asks the registry to open a position. At most one execution runs per
// call chain.
type MarketExecutor struct {
	mu          sync.Mutex
	identity    domain.Account
	router      domain.Account
	maxLeverage int
	feeBps      uint64
	registry    PositionOpener
	oracle      ports.PriceOracle
	settlement  ports.SettlementMedium
	logger      ports.Logger

	// accruedFees is the fee amount retained by the executor; the accrual
	// policy beyond holding it is an external concern.
	accruedFees uint64
}

// New creates a market executor.
func New(cfg Config) (*MarketExecutor, error) {
	if cfg.Identity == "" || cfg.Router == "" {
		return nil, fmt.Errorf("executor identity and router identity are required")
	}
	if cfg.Registry == nil || cfg.Oracle == nil || cfg.Settlement == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for market executor")
	}
	if cfg.MaxLeverage < 1 {
		return nil, fmt.Errorf("MaxLeverage must be at least 1")
	}
	return &MarketExecutor{
		identity:    cfg.Identity,
		router:      cfg.Router,
		maxLeverage: cfg.MaxLeverage,
		feeBps:      cfg.FeeBps,
		registry:    cfg.Registry,
		oracle:      cfg.Oracle,
		settlement:  cfg.Settlement,
		logger:      cfg.Logger,
	}, nil
}

// Execute opens a market position for the trader. Caller-restricted to the
// order router. The fee is deducted from the payment up front; the
// remainder becomes the position's collateral. All-or-nothing: if the
// registry refuses the open, the collected payment is refunded.
func (e *MarketExecutor) Execute(ctx context.Context, caller, trader domain.Account, market string, direction domain.Direction, leverage int, payment uint64) (int64, error) {
	ctx, err := reentry.Enter(ctx, guardScope)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.router {
		return 0, ports.ErrUnauthorized
	}
	if leverage < 1 || leverage > e.maxLeverage {
		return 0, ports.ErrInvalidLeverage
	}
	if payment == 0 {
		return 0, ports.ErrInvalidAmount
	}

	price, err := e.oracle.GetPrice(ctx, market)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ports.ErrInvalidPrice, err)
	}
	if price == 0 {
		return 0, ports.ErrInvalidPrice
	}

	fee := domain.BpsOf(payment, e.feeBps)
	size := payment - fee

	if err := e.settlement.Collect(ctx, trader, payment); err != nil {
		return 0, fmt.Errorf("%w: %v", ports.ErrTransferFailed, err)
	}

	id, err := e.registry.Open(ctx, e.identity, trader, market, direction, size, leverage, price)
	if err != nil {
		// Undo the collection so a refused open leaves no partial state.
		if refundErr := e.settlement.Pay(ctx, trader, payment); refundErr != nil {
			e.logger.Error(ctx, refundErr, "Failed to refund payment after rejected open", map[string]interface{}{
				"trader":  trader,
				"payment": payment,
			})
		}
		return 0, err
	}

	e.accruedFees = domain.SaturatingAdd(e.accruedFees, fee)
	e.logger.Info(ctx, "Market order executed", map[string]interface{}{
		"positionID": id,
		"trader":     trader,
		"market":     market,
		"direction":  direction,
		"leverage":   leverage,
		"payment":    payment,
		"fee":        fee,
	})
	return id, nil
}

// AccruedFees returns the fee total retained so far.
func (e *MarketExecutor) AccruedFees() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accruedFees
}
