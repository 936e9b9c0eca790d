// Package sqlite persists an append-only journal of venue events:
// position opens and closes, limit-order lifecycle and liquidations. The
// journal is an audit surface; the in-memory core never reads it back to
// make decisions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"geoVenue/internal/domain"
	"geoVenue/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements ports.EventSink on a SQLite database. Write failures
// are logged, never propagated: the journal must not fail the trading
// operation that emitted the event.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewJournal creates a SQLite journal instance.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/venue.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		return nil, fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
	}

	// SQLite handles concurrency internally; the Go driver benefits from
	// a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, logger: cfg.Logger}
	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	cfg.Logger.Info(context.Background(), "SQLite journal initialized", map[string]interface{}{"path": dbPath})
	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY,
		market TEXT NOT NULL,
		trader TEXT NOT NULL,
		direction TEXT NOT NULL,
		size INTEGER NOT NULL,
		leverage INTEGER NOT NULL,
		entry_price INTEGER NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS position_closes (
		position_id INTEGER NOT NULL,
		exit_price INTEGER NOT NULL,
		pnl INTEGER NOT NULL,
		payout INTEGER NOT NULL,
		degraded INTEGER NOT NULL,
		forced INTEGER NOT NULL,
		closed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS limit_orders (
		id INTEGER PRIMARY KEY,
		trader TEXT NOT NULL,
		market TEXT NOT NULL,
		direction TEXT NOT NULL,
		size INTEGER NOT NULL,
		leverage INTEGER NOT NULL,
		trigger_price INTEGER NOT NULL,
		fee INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		position_id INTEGER NULL,
		executor TEXT NULL
	);

	CREATE TABLE IF NOT EXISTS liquidations (
		position_id INTEGER NOT NULL,
		liquidator TEXT NOT NULL,
		price INTEGER NOT NULL,
		reward INTEGER NOT NULL,
		liquidated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reward_claims (
		liquidator TEXT NOT NULL,
		amount INTEGER NOT NULL,
		claimed_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_positions_trader ON positions (trader);
	CREATE INDEX IF NOT EXISTS idx_position_closes_position ON position_closes (position_id);
	CREATE INDEX IF NOT EXISTS idx_limit_orders_trader ON limit_orders (trader);
	CREATE INDEX IF NOT EXISTS idx_liquidations_position ON liquidations (position_id);
	`
	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// PositionOpened records a newly opened position.
func (j *Journal) PositionOpened(ctx context.Context, pos *domain.Position) {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO positions (id, market, trader, direction, size, leverage, entry_price, opened_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.ID, pos.Market, string(pos.Trader), string(pos.Direction), int64(pos.Size),
		pos.Leverage, int64(pos.EntryPrice), pos.OpenedAt, string(pos.Status))
	if err != nil {
		j.logger.Error(ctx, err, "Failed to journal position open", map[string]interface{}{"positionID": pos.ID})
	}
}

// PositionClosed records a close and flips the journaled status.
func (j *Journal) PositionClosed(ctx context.Context, report domain.CloseReport) {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO position_closes (position_id, exit_price, pnl, payout, degraded, forced, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.PositionID, int64(report.ExitPrice), report.PnL, int64(report.Payout),
		boolToInt(report.Degraded), boolToInt(report.Forced), report.ClosedAt)
	if err == nil {
		_, err = j.db.ExecContext(ctx,
			`UPDATE positions SET status = ? WHERE id = ?`,
			string(domain.StatusClosed), report.PositionID)
	}
	if err != nil {
		j.logger.Error(ctx, err, "Failed to journal position close", map[string]interface{}{"positionID": report.PositionID})
	}
}

// OrderCreated records a new limit order.
func (j *Journal) OrderCreated(ctx context.Context, order *domain.LimitOrder) {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO limit_orders (id, trader, market, direction, size, leverage, trigger_price, fee, created_at, expires_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, string(order.Trader), order.Market, string(order.Direction), int64(order.Size),
		order.Leverage, int64(order.TriggerPrice), int64(order.Fee), order.CreatedAt, order.ExpiresAt, string(order.Status))
	if err != nil {
		j.logger.Error(ctx, err, "Failed to journal order create", map[string]interface{}{"orderID": order.ID})
	}
}

// OrderExecuted records an order's conversion into a position.
func (j *Journal) OrderExecuted(ctx context.Context, order *domain.LimitOrder, positionID int64, executor domain.Account) {
	_, err := j.db.ExecContext(ctx,
		`UPDATE limit_orders SET status = ?, position_id = ?, executor = ? WHERE id = ?`,
		string(domain.OrderStatusExecuted), positionID, string(executor), order.ID)
	if err != nil {
		j.logger.Error(ctx, err, "Failed to journal order execution", map[string]interface{}{"orderID": order.ID})
	}
}

// OrderCancelled records an order cancellation.
func (j *Journal) OrderCancelled(ctx context.Context, order *domain.LimitOrder) {
	_, err := j.db.ExecContext(ctx,
		`UPDATE limit_orders SET status = ? WHERE id = ?`,
		string(domain.OrderStatusCancelled), order.ID)
	if err != nil {
		j.logger.Error(ctx, err, "Failed to journal order cancellation", map[string]interface{}{"orderID": order.ID})
	}
}

// PositionLiquidated records a successful forced close.
func (j *Journal) PositionLiquidated(ctx context.Context, record *domain.LiquidationRecord, reward uint64) {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO liquidations (position_id, liquidator, price, reward, liquidated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		record.PositionID, string(record.Liquidator), int64(record.Price), int64(reward), record.LiquidatedAt)
	if err != nil {
		j.logger.Error(ctx, err, "Failed to journal liquidation", map[string]interface{}{"positionID": record.PositionID})
	}
}

// RewardsClaimed records a liquidator reward withdrawal.
func (j *Journal) RewardsClaimed(ctx context.Context, liquidator domain.Account, amount uint64) {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO reward_claims (liquidator, amount, claimed_at) VALUES (?, ?, ?)`,
		string(liquidator), int64(amount), time.Now())
	if err != nil {
		j.logger.Error(ctx, err, "Failed to journal reward claim", map[string]interface{}{"liquidator": liquidator})
	}
}

// TraderPositions returns the journaled positions for a trader, oldest
// first.
func (j *Journal) TraderPositions(ctx context.Context, trader domain.Account) ([]*domain.Position, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, market, trader, direction, size, leverage, entry_price, opened_at, status
		 FROM positions WHERE trader = ? ORDER BY id ASC`, string(trader))
	if err != nil {
		return nil, fmt.Errorf("querying journaled positions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		var pos domain.Position
		var size, entryPrice int64
		var traderStr, direction, status string
		if err := rows.Scan(&pos.ID, &pos.Market, &traderStr, &direction, &size, &pos.Leverage, &entryPrice, &pos.OpenedAt, &status); err != nil {
			return nil, fmt.Errorf("scanning journaled position: %w", err)
		}
		pos.Trader = domain.Account(traderStr)
		pos.Direction = domain.Direction(direction)
		pos.Size = uint64(size)
		pos.EntryPrice = uint64(entryPrice)
		pos.Status = domain.PositionStatus(status)
		out = append(out, &pos)
	}
	return out, rows.Err()
}

// Liquidations returns the most recent journaled liquidations, up to limit.
func (j *Journal) Liquidations(ctx context.Context, limit int) ([]*domain.LiquidationRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT position_id, liquidator, price, liquidated_at FROM liquidations
		 ORDER BY liquidated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journaled liquidations: %w", err)
	}
	defer rows.Close()

	var out []*domain.LiquidationRecord
	for rows.Next() {
		var rec domain.LiquidationRecord
		var liquidator string
		var price int64
		if err := rows.Scan(&rec.PositionID, &liquidator, &price, &rec.LiquidatedAt); err != nil {
			return nil, fmt.Errorf("scanning journaled liquidation: %w", err)
		}
		rec.Liquidator = domain.Account(liquidator)
		rec.Price = uint64(price)
		rec.Status = domain.LiquidationCompleted
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
