// Package metrics exposes Prometheus counters for the trading core,
// fed through the event sink so components stay free of metrics code.
package metrics

import (
	"context"

	"geoVenue/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	positionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geovenue",
			Subsystem: "core",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened",
		},
		[]string{"market", "direction"},
	)

	positionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geovenue",
			Subsystem: "core",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed",
		},
		[]string{"market", "forced"},
	)

	payoutsDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "geovenue",
			Subsystem: "core",
			Name:      "payouts_degraded_total",
			Help:      "Closes where the pool could not cover the profit payout and the trader received principal only",
		},
	)

	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geovenue",
			Subsystem: "core",
			Name:      "limit_orders_created_total",
			Help:      "Total number of limit orders created",
		},
		[]string{"market", "direction"},
	)

	ordersExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geovenue",
			Subsystem: "core",
			Name:      "limit_orders_executed_total",
			Help:      "Total number of limit orders converted into positions",
		},
		[]string{"market"},
	)

	ordersCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geovenue",
			Subsystem: "core",
			Name:      "limit_orders_cancelled_total",
			Help:      "Total number of limit orders cancelled and refunded",
		},
		[]string{"market"},
	)

	liquidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "geovenue",
			Subsystem: "core",
			Name:      "liquidations_total",
			Help:      "Total number of forced closes",
		},
	)

	liquidatorRewards = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "geovenue",
			Subsystem: "core",
			Name:      "liquidator_rewards_accrued_total",
			Help:      "Total liquidator rewards accrued, in settlement units",
		},
	)

	rewardsClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "geovenue",
			Subsystem: "core",
			Name:      "liquidator_rewards_claimed_total",
			Help:      "Total liquidator rewards withdrawn, in settlement units",
		},
	)
)

// Sink implements ports.EventSink by incrementing the counters above.
type Sink struct{}

// NewSink returns a metrics event sink.
func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) PositionOpened(ctx context.Context, pos *domain.Position) {
	positionsOpened.WithLabelValues(pos.Market, string(pos.Direction)).Inc()
}

func (s *Sink) PositionClosed(ctx context.Context, report domain.CloseReport) {
	forced := "false"
	if report.Forced {
		forced = "true"
	}
	positionsClosed.WithLabelValues(report.Market, forced).Inc()
	if report.Degraded {
		payoutsDegraded.Inc()
	}
}

func (s *Sink) OrderCreated(ctx context.Context, order *domain.LimitOrder) {
	ordersCreated.WithLabelValues(order.Market, string(order.Direction)).Inc()
}

func (s *Sink) OrderExecuted(ctx context.Context, order *domain.LimitOrder, positionID int64, executor domain.Account) {
	ordersExecuted.WithLabelValues(order.Market).Inc()
}

func (s *Sink) OrderCancelled(ctx context.Context, order *domain.LimitOrder) {
	ordersCancelled.WithLabelValues(order.Market).Inc()
}

func (s *Sink) PositionLiquidated(ctx context.Context, record *domain.LiquidationRecord, reward uint64) {
	liquidations.Inc()
	liquidatorRewards.Add(float64(reward))
}

func (s *Sink) RewardsClaimed(ctx context.Context, liquidator domain.Account, amount uint64) {
	rewardsClaimed.Add(float64(amount))
}
