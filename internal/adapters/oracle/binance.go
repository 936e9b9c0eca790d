package oracle

import (
	"context"
	"fmt"

	"geoVenue/internal/ports"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// BinanceOracle implements ports.PriceOracle against the Binance spot
// ticker. Country market identifiers are mapped to reference symbols
// (typically the country's currency pair or a country-basket product) via
// a configured table; ticker prices are scaled to integer price units.
type BinanceOracle struct {
	client  *binance.Client
	symbols map[string]string // market id -> exchange symbol
	scale   int32             // decimal places kept in integer price units
	logger  ports.Logger
}

// BinanceConfig holds configuration specific to the Binance oracle adapter.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	// Symbols maps market (country) identifiers to exchange symbols,
	// e.g. "BR" -> "USDTBRL".
	Symbols map[string]string
	// Scale is how many decimal places of the quoted price are preserved
	// when truncating to integer price units (e.g. 4 turns 5.4321 into
	// 54321).
	Scale  int32
	Logger ports.Logger
}

// NewBinance creates a Binance-backed price oracle.
func NewBinance(cfg BinanceConfig) (*BinanceOracle, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance oracle")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("at least one market symbol mapping is required")
	}
	if cfg.Scale < 0 {
		return nil, fmt.Errorf("scale cannot be negative")
	}
	return &BinanceOracle{
		client:  binance.NewClient(cfg.APIKey, cfg.SecretKey),
		symbols: cfg.Symbols,
		scale:   cfg.Scale,
		logger:  cfg.Logger,
	}, nil
}

// GetPrice returns the current price for the market in integer price
// units, or 0 when the market is unmapped or the quote is unusable.
func (o *BinanceOracle) GetPrice(ctx context.Context, market string) (uint64, error) {
	symbol, ok := o.symbols[market]
	if !ok {
		o.logger.Warn(ctx, "No symbol mapping for market", map[string]interface{}{"market": market})
		return 0, nil
	}

	prices, err := o.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching ticker price for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, nil
	}

	quoted, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return 0, fmt.Errorf("parsing ticker price %q for %s: %w", prices[0].Price, symbol, err)
	}
	scaled := quoted.Shift(o.scale).IntPart()
	if scaled <= 0 {
		return 0, nil
	}
	return uint64(scaled), nil
}
