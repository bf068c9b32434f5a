package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/intellidex/cryptobot/internal/domain"
)

// AccountService is the subset of ledger behavior the HTTP layer needs.
type AccountService interface {
	Balance() float64
	Positions() []domain.Position
	Stats() domain.TradingStats
	PortfolioValue(ctx context.Context) float64
	TradeHistory(limit int) []domain.Trade
	Reset(ctx context.Context)
}

// AccountHandler serves the paper-trading account endpoints.
type AccountHandler struct {
	svc    AccountService
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler backed by svc.
func NewAccountHandler(svc AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		svc:    svc,
		logger: logHandler(logger, "account"),
	}
}

// accountResponse is the combined account snapshot.
type accountResponse struct {
	Balance        float64             `json:"balance"`
	PortfolioValue float64             `json:"portfolioValue"`
	Positions      []domain.Position   `json:"positions"`
	Stats          domain.TradingStats `json:"stats"`
}

// Account returns the cash balance, open positions, mark-to-market
// portfolio value, and aggregate trading statistics.
// GET /api/account
func (h *AccountHandler) Account(w http.ResponseWriter, r *http.Request) {
	positions := h.svc.Positions()
	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, accountResponse{
		Balance:        h.svc.Balance(),
		PortfolioValue: h.svc.PortfolioValue(r.Context()),
		Positions:      positions,
		Stats:          h.svc.Stats(),
	})
}

// Trades returns the most recent completed trades, newest first.
// GET /api/account/trades?limit=
func (h *AccountHandler) Trades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 200)

	trades := h.svc.TradeHistory(limit)
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": trades,
		"count":  len(trades),
	})
}

// Reset restores the account to its initial state, discarding all
// positions and trade history.
// POST /api/account/reset
func (h *AccountHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset(r.Context())
	h.logger.Info("account reset")
	writeJSON(w, http.StatusOK, map[string]any{
		"reset":   true,
		"balance": h.svc.Balance(),
	})
}
