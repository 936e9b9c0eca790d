package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"geoVenue/internal/domain"
	"geoVenue/internal/ports"

	"github.com/gorilla/mux"
)

// ErrorResponse is the standard error payload for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// The caller's identity is taken from this header; transport-level
// authentication of that identity is the surrounding system's concern.
const accountHeader = "X-Account"

func callerAccount(r *http.Request) domain.Account {
	return domain.Account(r.Header.Get(accountHeader))
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
}

// statusFor maps the core's enumerable error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ports.ErrPositionNotFound), errors.Is(err, ports.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrInvalidAmount),
		errors.Is(err, ports.ErrInvalidLeverage),
		errors.Is(err, ports.ErrInvalidPrice),
		errors.Is(err, ports.ErrInvalidTriggerPrice),
		errors.Is(err, ports.ErrInvalidPosition):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrTooManyPositions),
		errors.Is(err, ports.ErrOrderNotPending),
		errors.Is(err, ports.ErrOrderExpired),
		errors.Is(err, ports.ErrTriggerNotMet),
		errors.Is(err, ports.ErrNotLiquidatable),
		errors.Is(err, ports.ErrNoRewards),
		errors.Is(err, ports.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, ports.ErrComponentNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type marketOrderRequest struct {
	Market    string           `json:"market"`
	Direction domain.Direction `json:"direction"`
	Leverage  int              `json:"leverage"`
	Payment   uint64           `json:"payment"`
}

func (s *Server) handleSubmitMarketOrder(w http.ResponseWriter, r *http.Request) {
	var req marketOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	id, err := s.deps.Router.SubmitMarketOrder(r.Context(), callerAccount(r), req.Market, req.Direction, req.Leverage, req.Payment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"position_id": id})
}

type limitOrderRequest struct {
	Market       string           `json:"market"`
	Direction    domain.Direction `json:"direction"`
	Leverage     int              `json:"leverage"`
	TriggerPrice uint64           `json:"trigger_price"`
	Payment      uint64           `json:"payment"`
}

func (s *Server) handleSubmitLimitOrder(w http.ResponseWriter, r *http.Request) {
	var req limitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	id, err := s.deps.Router.SubmitLimitOrder(r.Context(), callerAccount(r), req.Market, req.Direction, req.Leverage, req.TriggerPrice, req.Payment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"order_id": id})
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	positionID, err := s.deps.Book.TryExecute(r.Context(), callerAccount(r), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"position_id": positionID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Book.Cancel(r.Context(), callerAccount(r), pathID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := s.deps.Book.GetOrder(pathID(r))
	if !ok {
		writeError(w, ports.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type closeRequest struct {
	ExitPrice uint64 `json:"exit_price"`
}

func (s *Server) handleCloseFirstPosition(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := s.deps.Router.ClosePosition(r.Context(), callerAccount(r), req.ExitPrice); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := s.deps.Router.ClosePositionByID(r.Context(), callerAccount(r), pathID(r), req.ExitPrice); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.deps.Registry.GetPosition(pathID(r))
	if !ok {
		writeError(w, ports.ErrPositionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleTraderPositions(w http.ResponseWriter, r *http.Request) {
	trader := domain.Account(mux.Vars(r)["account"])
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions":  s.deps.Registry.TraderPositions(trader),
		"open_count": s.deps.Registry.OpenCount(trader),
	})
}

func (s *Server) handleTraderOrders(w http.ResponseWriter, r *http.Request) {
	trader := domain.Account(mux.Vars(r)["account"])
	writeJSON(w, http.StatusOK, map[string]interface{}{"order_ids": s.deps.Book.OrdersByTrader(trader)})
}

func (s *Server) handleMarketOrders(w http.ResponseWriter, r *http.Request) {
	market := mux.Vars(r)["market"]
	writeJSON(w, http.StatusOK, map[string]interface{}{"order_ids": s.deps.Book.OrdersByMarket(market)})
}

func (s *Server) handleCheckHealth(w http.ResponseWriter, r *http.Request) {
	eligible, ratio := s.deps.Engine.CheckHealth(r.Context(), pathID(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"eligible":         eligible,
		"margin_ratio_bps": ratio,
	})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	reward, err := s.deps.Engine.Liquidate(r.Context(), callerAccount(r), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"reward": reward})
}

type batchRequest struct {
	PositionIDs []int64 `json:"position_ids"`
}

func (s *Server) handleBatchLiquidate(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	total := s.deps.Engine.BatchLiquidate(r.Context(), callerAccount(r), req.PositionIDs)
	writeJSON(w, http.StatusOK, map[string]uint64{"total_reward": total})
}

func (s *Server) handleBatchCheckHealth(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	eligible, ratios := s.deps.Engine.BatchCheckHealth(r.Context(), req.PositionIDs)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"eligible":          eligible,
		"margin_ratios_bps": ratios,
	})
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	amount, err := s.deps.Engine.ClaimRewards(r.Context(), callerAccount(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"claimed": amount})
}

type fundRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleFundPool(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := s.deps.Registry.Fund(r.Context(), callerAccount(r), req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.deps.Registry.Balance()})
}
