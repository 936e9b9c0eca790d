package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geoVenue/config"
	"geoVenue/internal/adapters/events"
	"geoVenue/internal/adapters/logger"
	"geoVenue/internal/adapters/oracle"
	"geoVenue/internal/adapters/settlement"
	"geoVenue/internal/adapters/sqlite"
	"geoVenue/internal/api"
	"geoVenue/internal/domain"
	"geoVenue/internal/executor"
	"geoVenue/internal/liquidation"
	"geoVenue/internal/metrics"
	"geoVenue/internal/orderbook"
	"geoVenue/internal/ports"
	"geoVenue/internal/registry"
	"geoVenue/internal/router"
)

// Component identities presented to the registry's allow-list. These are
// internal accounts, not trader accounts.
const (
	routerIdentity   = domain.Account("order-router")
	executorIdentity = domain.Account("market-executor")
	bookIdentity     = domain.Account("limit-order-book")
	engineIdentity   = domain.Account("liquidation-engine")
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Event Sinks (SQLite journal + Prometheus metrics)
	journal, err := sqlite.NewJournal(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize event journal")
		log.Fatalf("FATAL: Failed to initialize event journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing event journal")
		}
	}()
	sinks := events.NewMulti(journal, metrics.NewSink())
	appLogger.Info(context.Background(), "Event sinks initialized")

	// 4. Initialize Price Oracle
	var priceOracle ports.PriceOracle
	switch cfg.OracleKind {
	case "binance":
		priceOracle, err = oracle.NewBinance(oracle.BinanceConfig{
			APIKey:    cfg.BinanceAPIKey,
			SecretKey: cfg.BinanceSecret,
			Symbols:   cfg.OracleSymbols,
			Scale:     int32(cfg.OracleScale),
			Logger:    appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance oracle")
			log.Fatalf("FATAL: Failed to initialize Binance oracle: %v", err)
		}
	default:
		priceOracle = oracle.NewPseudoOracle()
	}
	appLogger.Info(context.Background(), "Price oracle initialized", map[string]interface{}{"kind": cfg.OracleKind})

	// 5. Initialize Settlement Medium
	medium := settlement.NewMemory()

	// 6. Initialize Position Registry and wire the allow-list
	reg, err := registry.New(registry.Config{
		Owner:                 domain.Account(cfg.OwnerAccount),
		MaxPositionsPerTrader: cfg.MaxPositionsPerTrader,
		Settlement:            medium,
		Events:                sinks,
		Logger:                appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position registry")
		log.Fatalf("FATAL: Failed to initialize position registry: %v", err)
	}
	owner := domain.Account(cfg.OwnerAccount)
	for _, account := range []domain.Account{routerIdentity, executorIdentity, bookIdentity} {
		if err := reg.AuthorizeCaller(owner, account); err != nil {
			log.Fatalf("FATAL: Failed to authorize %s at the registry: %v", account, err)
		}
	}
	if err := reg.SetLiquidationEngine(owner, engineIdentity); err != nil {
		log.Fatalf("FATAL: Failed to designate the liquidation engine: %v", err)
	}
	appLogger.Info(context.Background(), "Position registry initialized")

	// 7. Initialize Market Executor
	exec, err := executor.New(executor.Config{
		Identity:    executorIdentity,
		Router:      routerIdentity,
		MaxLeverage: cfg.MaxLeverage,
		FeeBps:      cfg.FeeBps,
		Registry:    reg,
		Oracle:      priceOracle,
		Settlement:  medium,
		Logger:      appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize market executor")
		log.Fatalf("FATAL: Failed to initialize market executor: %v", err)
	}

	// 8. Initialize Limit Order Book
	book, err := orderbook.New(orderbook.Config{
		Identity:              bookIdentity,
		Router:                routerIdentity,
		MaxLeverage:           cfg.MaxLeverage,
		FeeBps:                cfg.FeeBps,
		TTL:                   cfg.OrderTTL,
		MaxPositionsPerTrader: cfg.MaxPositionsPerTrader,
		Registry:              reg,
		Oracle:                priceOracle,
		Settlement:            medium,
		Events:                sinks,
		Logger:                appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize limit order book")
		log.Fatalf("FATAL: Failed to initialize limit order book: %v", err)
	}

	// 9. Initialize Liquidation Engine
	engine, err := liquidation.New(liquidation.Config{
		Identity:     engineIdentity,
		ThresholdBps: cfg.LiquidationThresholdBps,
		BonusBps:     cfg.LiquidationBonusBps,
		Registry:     reg,
		Oracle:       priceOracle,
		Settlement:   medium,
		Events:       sinks,
		Logger:       appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize liquidation engine")
		log.Fatalf("FATAL: Failed to initialize liquidation engine: %v", err)
	}

	// 10. Initialize Order Router
	rtr, err := router.New(router.Config{
		Identity: routerIdentity,
		Executor: exec,
		Book:     book,
		Registry: reg,
		Logger:   appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize order router")
		log.Fatalf("FATAL: Failed to initialize order router: %v", err)
	}
	appLogger.Info(context.Background(), "Trading core initialized")

	// 11. Start the HTTP server and wait for a shutdown signal
	server := api.NewServer(cfg.HTTPAddr, api.Dependencies{
		Router:   rtr,
		Registry: reg,
		Book:     book,
		Engine:   engine,
		Logger:   appLogger,
	})

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info(context.Background(), "HTTP server starting", map[string]interface{}{"addr": cfg.HTTPAddr})
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		appLogger.Info(context.Background(), "Shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(context.Background(), err, "HTTP server exited with error")
			log.Fatalf("FATAL: HTTP server exited with error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(context.Background(), err, "Error during HTTP server shutdown")
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
