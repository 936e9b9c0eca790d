// Package router implements the OrderRouter, the single entry point for
// trader intent. It validates payment, dispatches to the right executor
// and re-exposes the registry's close and read operations. The router owns
// no funds and no state; it checks preconditions and relays.
package router

import (
	"context"
	"fmt"

	"geoVenue/internal/domain"
	"geoVenue/internal/ports"
	"geoVenue/internal/reentry"
)

const guardScope = "order-router"

// MarketExecutor is the immediate-fill path the router dispatches to.
type MarketExecutor interface {
	Execute(ctx context.Context, caller, trader domain.Account, market string, direction domain.Direction, leverage int, payment uint64) (int64, error)
}

// LimitOrderBook is the conditional-order path the router dispatches to.
type LimitOrderBook interface {
	Create(ctx context.Context, caller, trader domain.Account, market string, direction domain.Direction, leverage int, triggerPrice, payment uint64) (int64, error)
}

// PositionRegistry is the slice of the registry the router relays
// close and read operations to.
type PositionRegistry interface {
	Close(ctx context.Context, caller domain.Account, positionID int64, exitPrice uint64, forced bool) error
	CloseFirstOpenFor(ctx context.Context, caller, trader domain.Account, exitPrice uint64) error
	GetPosition(id int64) (*domain.Position, bool)
}

// Config holds construction parameters for the order router.
type Config struct {
	// Identity is the account the router presents downstream; it must be
	// on the registry's allow-list so it can close on traders' behalf.
	Identity domain.Account
	Executor MarketExecutor
	Book     LimitOrderBook
	Registry PositionRegistry
	Logger   ports.Logger
}

// OrderRouter dispatches trader intent to the market executor, the limit
// order book and the position registry. Guarded against reentrant calls
// within a single logical call chain.
type OrderRouter struct {
	identity domain.Account
	executor MarketExecutor
	book     LimitOrderBook
	registry PositionRegistry
	logger   ports.Logger
}

// New creates an order router. Collaborators may be nil; the corresponding
// operations then fail with ErrComponentNotConfigured until wired.
func New(cfg Config) (*OrderRouter, error) {
	if cfg.Identity == "" {
		return nil, fmt.Errorf("router identity is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the order router")
	}
	return &OrderRouter{
		identity: cfg.Identity,
		executor: cfg.Executor,
		book:     cfg.Book,
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}, nil
}

// SubmitMarketOrder forwards the full payment to the market executor and
// returns its result unchanged.
func (r *OrderRouter) SubmitMarketOrder(ctx context.Context, trader domain.Account, market string, direction domain.Direction, leverage int, payment uint64) (int64, error) {
	ctx, err := reentry.Enter(ctx, guardScope)
	if err != nil {
		return 0, err
	}
	if payment == 0 {
		return 0, ports.ErrInvalidAmount
	}
	if r.executor == nil {
		return 0, ports.ErrComponentNotConfigured
	}
	return r.executor.Execute(ctx, r.identity, trader, market, direction, leverage, payment)
}

// SubmitLimitOrder forwards the full payment to the limit order book and
// returns its result unchanged.
func (r *OrderRouter) SubmitLimitOrder(ctx context.Context, trader domain.Account, market string, direction domain.Direction, leverage int, triggerPrice, payment uint64) (int64, error) {
	ctx, err := reentry.Enter(ctx, guardScope)
	if err != nil {
		return 0, err
	}
	if payment == 0 {
		return 0, ports.ErrInvalidAmount
	}
	if r.book == nil {
		return 0, ports.ErrComponentNotConfigured
	}
	return r.book.Create(ctx, r.identity, trader, market, direction, leverage, triggerPrice, payment)
}

// ClosePosition closes the trader's first open position at exitPrice.
func (r *OrderRouter) ClosePosition(ctx context.Context, trader domain.Account, exitPrice uint64) error {
	ctx, err := reentry.Enter(ctx, guardScope)
	if err != nil {
		return err
	}
	if r.registry == nil {
		return ports.ErrComponentNotConfigured
	}
	return r.registry.CloseFirstOpenFor(ctx, r.identity, trader, exitPrice)
}

// ClosePositionByID closes a specific position at exitPrice on behalf of
// its owner. The router verifies ownership before relaying: it is
// allow-listed at the registry and must not lend that power to others.
func (r *OrderRouter) ClosePositionByID(ctx context.Context, trader domain.Account, positionID int64, exitPrice uint64) error {
	ctx, err := reentry.Enter(ctx, guardScope)
	if err != nil {
		return err
	}
	if r.registry == nil {
		return ports.ErrComponentNotConfigured
	}
	pos, ok := r.registry.GetPosition(positionID)
	if !ok || !pos.IsOpen() {
		return ports.ErrPositionNotFound
	}
	if pos.Trader != trader {
		return ports.ErrUnauthorized
	}
	return r.registry.Close(ctx, r.identity, positionID, exitPrice, false)
}
