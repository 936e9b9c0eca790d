// Package api binds the trading core's synchronous operations to HTTP.
// The core itself is transport-agnostic; this is the binding the venue
// ships with, plus the Prometheus scrape endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"geoVenue/internal/liquidation"
	"geoVenue/internal/orderbook"
	"geoVenue/internal/ports"
	"geoVenue/internal/registry"
	"geoVenue/internal/router"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies contains everything the API handlers need.
type Dependencies struct {
	Router   *router.OrderRouter
	Registry *registry.PositionRegistry
	Book     *orderbook.LimitOrderBook
	Engine   *liquidation.LiquidationEngine
	Logger   ports.Logger
}

// Server is the HTTP front of the venue.
type Server struct {
	deps Dependencies
	srv  *http.Server
}

// NewServer builds the HTTP server with all routes registered.
func NewServer(addr string, deps Dependencies) *Server {
	s := &Server{deps: deps}

	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/orders/market", s.handleSubmitMarketOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/limit", s.handleSubmitLimitOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id:[0-9]+}/execute", s.handleExecuteOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id:[0-9]+}", s.handleCancelOrder).Methods(http.MethodDelete)
	v1.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods(http.MethodGet)

	v1.HandleFunc("/positions/close", s.handleCloseFirstPosition).Methods(http.MethodPost)
	v1.HandleFunc("/positions/{id:[0-9]+}/close", s.handleClosePosition).Methods(http.MethodPost)
	v1.HandleFunc("/positions/{id:[0-9]+}/health", s.handleCheckHealth).Methods(http.MethodGet)
	v1.HandleFunc("/positions/{id:[0-9]+}/liquidate", s.handleLiquidate).Methods(http.MethodPost)
	v1.HandleFunc("/positions/{id:[0-9]+}", s.handleGetPosition).Methods(http.MethodGet)

	v1.HandleFunc("/traders/{account}/positions", s.handleTraderPositions).Methods(http.MethodGet)
	v1.HandleFunc("/traders/{account}/orders", s.handleTraderOrders).Methods(http.MethodGet)
	v1.HandleFunc("/markets/{market}/orders", s.handleMarketOrders).Methods(http.MethodGet)

	v1.HandleFunc("/liquidations/batch", s.handleBatchLiquidate).Methods(http.MethodPost)
	v1.HandleFunc("/liquidations/health", s.handleBatchCheckHealth).Methods(http.MethodPost)
	v1.HandleFunc("/rewards/claim", s.handleClaimRewards).Methods(http.MethodPost)
	v1.HandleFunc("/pool/fund", s.handleFundPool).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		rec.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(rec, r)

		s.deps.Logger.Info(r.Context(), "HTTP request", map[string]interface{}{
			"requestID": requestID,
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    rec.status,
			"duration":  time.Since(start).String(),
			"remote":    r.RemoteAddr,
		})
	})
}
