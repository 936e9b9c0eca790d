package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"geoVenue/internal/adapters/settlement"
	"geoVenue/internal/domain"
	"geoVenue/internal/executor"
	"geoVenue/internal/liquidation"
	"geoVenue/internal/orderbook"
	"geoVenue/internal/ports"
	"geoVenue/internal/registry"
	"geoVenue/internal/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// stubOracle returns a settable fixed price.
type stubOracle struct {
	price uint64
}

func (o *stubOracle) GetPrice(ctx context.Context, market string) (uint64, error) {
	return o.price, nil
}

const (
	ownerAccount = domain.Account("venue-owner")
	routerID     = domain.Account("order-router")
	executorID   = domain.Account("market-executor")
	bookID       = domain.Account("limit-order-book")
	engineID     = domain.Account("liquidation-engine")
	alice        = "alice"
)

type env struct {
	server *httptest.Server
	oracle *stubOracle
	medium *settlement.Memory
}

// newEnv wires the full trading core behind an httptest server.
func newEnv(t *testing.T) *env {
	t.Helper()
	logger := &mockLogger{}
	oracle := &stubOracle{price: 1000}
	medium := settlement.NewMemory()
	medium.Mint(domain.Account(alice), 1_000_000)

	reg, err := registry.New(registry.Config{
		Owner:                 ownerAccount,
		MaxPositionsPerTrader: 10,
		Settlement:            medium,
		Logger:                logger,
	})
	require.NoError(t, err)
	for _, account := range []domain.Account{routerID, executorID, bookID} {
		require.NoError(t, reg.AuthorizeCaller(ownerAccount, account))
	}
	require.NoError(t, reg.SetLiquidationEngine(ownerAccount, engineID))

	exec, err := executor.New(executor.Config{
		Identity:    executorID,
		Router:      routerID,
		MaxLeverage: 5,
		FeeBps:      30,
		Registry:    reg,
		Oracle:      oracle,
		Settlement:  medium,
		Logger:      logger,
	})
	require.NoError(t, err)

	book, err := orderbook.New(orderbook.Config{
		Identity:              bookID,
		Router:                routerID,
		MaxLeverage:           5,
		FeeBps:                30,
		TTL:                   24 * time.Hour,
		MaxPositionsPerTrader: 10,
		Registry:              reg,
		Oracle:                oracle,
		Settlement:            medium,
		Logger:                logger,
	})
	require.NoError(t, err)

	engine, err := liquidation.New(liquidation.Config{
		Identity:     engineID,
		ThresholdBps: 8000,
		BonusBps:     500,
		Registry:     reg,
		Oracle:       oracle,
		Settlement:   medium,
		Logger:       logger,
	})
	require.NoError(t, err)

	rtr, err := router.New(router.Config{
		Identity: routerID,
		Executor: exec,
		Book:     book,
		Registry: reg,
		Logger:   logger,
	})
	require.NoError(t, err)

	s := NewServer(":0", Dependencies{
		Router:   rtr,
		Registry: reg,
		Book:     book,
		Engine:   engine,
		Logger:   logger,
	})
	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)

	return &env{server: ts, oracle: oracle, medium: medium}
}

func (e *env) do(t *testing.T, method, path, account string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if account != "" {
		req.Header.Set(accountHeader, account)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestMarketOrderLifecycle(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/v1/orders/market", alice, map[string]interface{}{
		"market":    "BR",
		"direction": "LONG",
		"leverage":  5,
		"payment":   10000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(1), body["position_id"])

	resp, body = e.do(t, http.MethodGet, "/api/v1/positions/1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(9970), body["Size"])

	// Another trader cannot close it.
	resp, _ = e.do(t, http.MethodPost, "/api/v1/positions/1/close", "bob", map[string]interface{}{"exit_price": 900})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/positions/1/close", alice, map[string]interface{}{"exit_price": 900})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Size 9970, long 5x, 1000 -> 900: loss 4985, payout 4985.
	assert.Equal(t, uint64(1_000_000-10000+4985), e.medium.BalanceOf(domain.Account(alice)))
}

func TestMarketOrderValidation(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/orders/market", alice, map[string]interface{}{
		"market":    "BR",
		"direction": "LONG",
		"leverage":  5,
		"payment":   0,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/orders/market", alice, map[string]interface{}{
		"market":    "BR",
		"direction": "LONG",
		"leverage":  6,
		"payment":   10000,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLimitOrderLifecycle(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/v1/orders/limit", alice, map[string]interface{}{
		"market":        "BR",
		"direction":     "LONG",
		"leverage":      5,
		"trigger_price": 900,
		"payment":       10000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(1), body["order_id"])

	// Price has not reached the trigger.
	resp, _ = e.do(t, http.MethodPost, "/api/v1/orders/1/execute", "keeper", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	e.oracle.price = 900
	resp, body = e.do(t, http.MethodPost, "/api/v1/orders/1/execute", "keeper", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["position_id"])

	// The keeper collected the 30 bounty.
	assert.Equal(t, uint64(30), e.medium.BalanceOf(domain.Account("keeper")))

	resp, _ = e.do(t, http.MethodDelete, "/api/v1/orders/1", alice, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelRefunds(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/orders/limit", alice, map[string]interface{}{
		"market":        "BR",
		"direction":     "LONG",
		"leverage":      5,
		"trigger_price": 900,
		"payment":       10000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/api/v1/orders/1", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(1_000_000), e.medium.BalanceOf(domain.Account(alice)))
}

func TestLiquidationFlow(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/orders/market", alice, map[string]interface{}{
		"market":    "BR",
		"direction": "LONG",
		"leverage":  5,
		"payment":   10000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Healthy position: not liquidatable.
	resp, body := e.do(t, http.MethodGet, "/api/v1/positions/1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["eligible"])
	assert.Equal(t, float64(10000), body["margin_ratio_bps"])

	resp, _ = e.do(t, http.MethodPost, "/api/v1/positions/1/liquidate", "keeper", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// A drop to 992 leaves the 9970-size position a hair above the
	// threshold; 991 puts it under.
	e.oracle.price = 992
	resp, body = e.do(t, http.MethodGet, "/api/v1/positions/1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["eligible"])
	assert.Equal(t, float64(8004), body["margin_ratio_bps"])

	e.oracle.price = 991
	resp, body = e.do(t, http.MethodGet, "/api/v1/positions/1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["eligible"])
	assert.Equal(t, float64(7753), body["margin_ratio_bps"])

	resp, body = e.do(t, http.MethodPost, "/api/v1/positions/1/liquidate", "keeper", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// 500 bps of the 1994 initial margin.
	assert.Equal(t, float64(99), body["reward"])

	resp, body = e.do(t, http.MethodPost, "/api/v1/rewards/claim", "keeper", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(99), body["claimed"])
	assert.Equal(t, uint64(99), e.medium.BalanceOf(domain.Account("keeper")))

	resp, _ = e.do(t, http.MethodPost, "/api/v1/rewards/claim", "keeper", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestNotFoundAndHealthz(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/api/v1/positions/99", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/orders/99", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ports.ErrUnauthorized, http.StatusForbidden},
		{ports.ErrPositionNotFound, http.StatusNotFound},
		{ports.ErrOrderNotFound, http.StatusNotFound},
		{ports.ErrInvalidAmount, http.StatusBadRequest},
		{ports.ErrInvalidLeverage, http.StatusBadRequest},
		{ports.ErrTooManyPositions, http.StatusConflict},
		{ports.ErrTriggerNotMet, http.StatusConflict},
		{ports.ErrReentrantCall, http.StatusConflict},
		{ports.ErrComponentNotConfigured, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", ports.ErrOrderExpired), http.StatusConflict},
		{fmt.Errorf("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
