package orderbook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"geoVenue/internal/domain"
	"geoVenue/internal/ports"
	"geoVenue/internal/reentry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type transfer struct {
	account domain.Account
	amount  uint64
}

type mockSettlement struct {
	pays        []transfer
	collects    []transfer
	failPay     bool
	failCollect bool
}

func (m *mockSettlement) Pay(ctx context.Context, to domain.Account, amount uint64) error {
	if m.failPay {
		return fmt.Errorf("injected pay failure")
	}
	m.pays = append(m.pays, transfer{to, amount})
	return nil
}

func (m *mockSettlement) Collect(ctx context.Context, from domain.Account, amount uint64) error {
	if m.failCollect {
		return fmt.Errorf("injected collect failure")
	}
	m.collects = append(m.collects, transfer{from, amount})
	return nil
}

// mockRegistry implements the book's PositionRegistry slice.
type mockRegistry struct {
	openCount int
	nextID    int64
	openErr   error
	opens     int
}

func (m *mockRegistry) Open(ctx context.Context, caller, trader domain.Account, market string, direction domain.Direction, size uint64, leverage int, entryPrice uint64) (int64, error) {
	if m.openErr != nil {
		return 0, m.openErr
	}
	m.opens++
	m.nextID++
	return m.nextID, nil
}

func (m *mockRegistry) OpenCount(trader domain.Account) int {
	return m.openCount
}

type stubOracle struct {
	price uint64
	err   error
}

func (o *stubOracle) GetPrice(ctx context.Context, market string) (uint64, error) {
	return o.price, o.err
}

// mockEvents captures order lifecycle events.
type mockEvents struct {
	created   []*domain.LimitOrder
	executed  []*domain.LimitOrder
	cancelled []*domain.LimitOrder
}

func (m *mockEvents) PositionOpened(ctx context.Context, pos *domain.Position)      {}
func (m *mockEvents) PositionClosed(ctx context.Context, report domain.CloseReport) {}
func (m *mockEvents) OrderCreated(ctx context.Context, order *domain.LimitOrder) {
	m.created = append(m.created, order)
}
func (m *mockEvents) OrderExecuted(ctx context.Context, order *domain.LimitOrder, positionID int64, executor domain.Account) {
	m.executed = append(m.executed, order)
}
func (m *mockEvents) OrderCancelled(ctx context.Context, order *domain.LimitOrder) {
	m.cancelled = append(m.cancelled, order)
}
func (m *mockEvents) PositionLiquidated(ctx context.Context, record *domain.LiquidationRecord, reward uint64) {
}
func (m *mockEvents) RewardsClaimed(ctx context.Context, liquidator domain.Account, amount uint64) {}

const (
	bookID   = domain.Account("limit-order-book")
	routerID = domain.Account("order-router")
	trader   = domain.Account("alice")
	keeper   = domain.Account("keeper")
)

type fixture struct {
	book       *LimitOrderBook
	registry   *mockRegistry
	oracle     *stubOracle
	settlement *mockSettlement
	events     *mockEvents
	logger     *mockLogger
	clock      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry:   &mockRegistry{},
		oracle:     &stubOracle{price: 1000},
		settlement: &mockSettlement{},
		events:     &mockEvents{},
		logger:     &mockLogger{},
		clock:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	book, err := New(Config{
		Identity:              bookID,
		Router:                routerID,
		MaxLeverage:           5,
		FeeBps:                30,
		TTL:                   24 * time.Hour,
		MaxPositionsPerTrader: 10,
		Registry:              f.registry,
		Oracle:                f.oracle,
		Settlement:            f.settlement,
		Events:                f.events,
		Logger:                f.logger,
		Now:                   func() time.Time { return f.clock },
	})
	require.NoError(t, err)
	f.book = book
	return f
}

// create places a long order triggering at 900 with payment 10000.
func (f *fixture) create(t *testing.T) int64 {
	t.Helper()
	id, err := f.book.Create(context.Background(), routerID, trader, "BR", domain.Long, 5, 900, 10000)
	require.NoError(t, err)
	return id
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book.Create(ctx, trader, trader, "BR", domain.Long, 5, 900, 10000)
	assert.ErrorIs(t, err, ports.ErrUnauthorized)

	_, err = f.book.Create(ctx, routerID, trader, "BR", domain.Long, 0, 900, 10000)
	assert.ErrorIs(t, err, ports.ErrInvalidLeverage)

	_, err = f.book.Create(ctx, routerID, trader, "BR", domain.Long, 6, 900, 10000)
	assert.ErrorIs(t, err, ports.ErrInvalidLeverage)

	_, err = f.book.Create(ctx, routerID, trader, "BR", domain.Long, 5, 0, 10000)
	assert.ErrorIs(t, err, ports.ErrInvalidTriggerPrice)

	_, err = f.book.Create(ctx, routerID, trader, "BR", domain.Long, 5, 900, 0)
	assert.ErrorIs(t, err, ports.ErrInvalidAmount)

	assert.Empty(t, f.settlement.collects)
}

func TestCreateEscrowsPayment(t *testing.T) {
	f := newFixture(t)

	id := f.create(t)
	assert.Equal(t, int64(1), id)

	require.Len(t, f.settlement.collects, 1)
	assert.Equal(t, transfer{trader, 10000}, f.settlement.collects[0])

	order, ok := f.book.GetOrder(id)
	require.True(t, ok)
	assert.Equal(t, uint64(9970), order.Size)
	assert.Equal(t, uint64(30), order.Fee)
	assert.Equal(t, uint64(900), order.TriggerPrice)
	assert.Equal(t, f.clock.Add(24*time.Hour), order.ExpiresAt)
	assert.True(t, order.IsPending())

	require.Len(t, f.events.created, 1)
	assert.Equal(t, id, f.events.created[0].ID)
}

func TestCreateHugePaymentFeeIsExact(t *testing.T) {
	f := newFixture(t)

	// payment*feeBps wraps uint64; the escrow split must stay exact.
	const payment = uint64(1) << 63
	const fee = uint64(27670116110564327) // floor(2^63 * 30 / 10000)

	id, err := f.book.Create(context.Background(), routerID, trader, "BR", domain.Long, 5, 900, payment)
	require.NoError(t, err)

	order, ok := f.book.GetOrder(id)
	require.True(t, ok)
	assert.Equal(t, fee, order.Fee)
	assert.Equal(t, payment-fee, order.Size)
}

func TestCreateCollectFailure(t *testing.T) {
	f := newFixture(t)
	f.settlement.failCollect = true

	_, err := f.book.Create(context.Background(), routerID, trader, "BR", domain.Long, 5, 900, 10000)
	assert.ErrorIs(t, err, ports.ErrTransferFailed)
	assert.Empty(t, f.book.OrdersByTrader(trader))
}

func TestTryExecuteRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	// Price above the trigger: a long order does not fill.
	f.oracle.price = 950
	_, err := f.book.TryExecute(ctx, keeper, id)
	assert.ErrorIs(t, err, ports.ErrTriggerNotMet)

	order, _ := f.book.GetOrder(id)
	assert.True(t, order.IsPending())

	// Price reaches the trigger: the order converts into a position and
	// the keeper collects the bounty.
	f.oracle.price = 900
	positionID, err := f.book.TryExecute(ctx, keeper, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), positionID)

	require.Len(t, f.settlement.pays, 1)
	assert.Equal(t, transfer{keeper, 30}, f.settlement.pays[0])
	assert.Equal(t, 1, f.registry.opens)

	order, _ = f.book.GetOrder(id)
	assert.Equal(t, domain.OrderStatusExecuted, order.Status)
	require.Len(t, f.events.executed, 1)

	// A terminal order refuses re-execution.
	_, err = f.book.TryExecute(ctx, keeper, id)
	assert.ErrorIs(t, err, ports.ErrOrderNotPending)
}

func TestTryExecuteUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.book.TryExecute(context.Background(), keeper, 42)
	assert.ErrorIs(t, err, ports.ErrOrderNotFound)
}

func TestTryExecuteExpiredOrderStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	f.clock = f.clock.Add(24*time.Hour + time.Second)
	f.oracle.price = 900
	_, err := f.book.TryExecute(ctx, keeper, id)
	assert.ErrorIs(t, err, ports.ErrOrderExpired)

	// No sweep: the order remains pending and cancellable.
	order, _ := f.book.GetOrder(id)
	assert.True(t, order.IsPending())
	assert.NoError(t, f.book.Cancel(ctx, trader, id))
}

func TestTryExecuteOracleFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	f.oracle.err = fmt.Errorf("exchange unreachable")
	_, err := f.book.TryExecute(ctx, keeper, id)
	assert.ErrorIs(t, err, ports.ErrInvalidPrice)

	f.oracle.err = nil
	f.oracle.price = 0
	_, err = f.book.TryExecute(ctx, keeper, id)
	assert.ErrorIs(t, err, ports.ErrInvalidPrice)
}

func TestTryExecuteCapPreCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	f.oracle.price = 900
	f.registry.openCount = 10
	_, err := f.book.TryExecute(ctx, keeper, id)
	assert.ErrorIs(t, err, ports.ErrTooManyPositions)

	// The bounty never moved and the order is still pending.
	assert.Empty(t, f.settlement.pays)
	order, _ := f.book.GetOrder(id)
	assert.True(t, order.IsPending())
}

func TestTryExecuteBountyPayFailureKeepsFill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	// The position opens before the bounty moves; a failed bounty payment
	// cannot unwind it and is logged instead.
	f.oracle.price = 900
	f.settlement.failPay = true
	positionID, err := f.book.TryExecute(ctx, keeper, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), positionID)
	assert.Equal(t, 1, f.registry.opens)

	order, _ := f.book.GetOrder(id)
	assert.Equal(t, domain.OrderStatusExecuted, order.Status)
	assert.NotEmpty(t, f.logger.errorMsgs)
}

func TestTryExecuteRejectedOpenMovesNoFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	f.oracle.price = 900
	f.registry.openErr = ports.ErrUnauthorized
	_, err := f.book.TryExecute(ctx, keeper, id)
	assert.ErrorIs(t, err, ports.ErrUnauthorized)

	// The bounty never moved; only the create-time escrow was collected.
	assert.Empty(t, f.settlement.pays)
	require.Len(t, f.settlement.collects, 1)

	order, _ := f.book.GetOrder(id)
	assert.True(t, order.IsPending())
	assert.Empty(t, f.events.executed)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	assert.ErrorIs(t, f.book.Cancel(ctx, trader, 42), ports.ErrOrderNotFound)
	assert.ErrorIs(t, f.book.Cancel(ctx, domain.Account("mallory"), id), ports.ErrUnauthorized)

	require.NoError(t, f.book.Cancel(ctx, trader, id))

	// Full refund: escrowed size plus fee.
	require.Len(t, f.settlement.pays, 1)
	assert.Equal(t, transfer{trader, 10000}, f.settlement.pays[0])

	order, _ := f.book.GetOrder(id)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	require.Len(t, f.events.cancelled, 1)

	assert.ErrorIs(t, f.book.Cancel(ctx, trader, id), ports.ErrOrderNotPending)
}

func TestCancelRefundFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	f.settlement.failPay = true
	err := f.book.Cancel(ctx, trader, id)
	assert.ErrorIs(t, err, ports.ErrTransferFailed)

	order, _ := f.book.GetOrder(id)
	assert.True(t, order.IsPending())
	assert.Empty(t, f.events.cancelled)
}

func TestIndices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id1 := f.create(t)
	id2, err := f.book.Create(ctx, routerID, trader, "TR", domain.Short, 2, 1100, 5000)
	require.NoError(t, err)

	assert.Equal(t, []int64{id1, id2}, f.book.OrdersByTrader(trader))
	assert.Equal(t, []int64{id1}, f.book.OrdersByMarket("BR"))
	assert.Equal(t, []int64{id2}, f.book.OrdersByMarket("TR"))

	// Terminal orders stay in the indices.
	require.NoError(t, f.book.Cancel(ctx, trader, id1))
	assert.Equal(t, []int64{id1, id2}, f.book.OrdersByTrader(trader))
}

func TestGetOrderReturnsACopy(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	order, ok := f.book.GetOrder(id)
	require.True(t, ok)
	order.Status = domain.OrderStatusExpired

	fresh, _ := f.book.GetOrder(id)
	assert.True(t, fresh.IsPending())
}

func TestCreateRejectsReentrantChain(t *testing.T) {
	f := newFixture(t)

	ctx, err := reentry.Enter(context.Background(), "limit-order-book")
	require.NoError(t, err)

	_, err = f.book.Create(ctx, routerID, trader, "BR", domain.Long, 5, 900, 10000)
	assert.ErrorIs(t, err, ports.ErrReentrantCall)

	_, err = f.book.TryExecute(ctx, keeper, 1)
	assert.ErrorIs(t, err, ports.ErrReentrantCall)
}
