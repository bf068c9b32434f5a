package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/intellidex/cryptobot/internal/manager"
	"github.com/intellidex/cryptobot/internal/strategy"
)

// BotService is the subset of bot-manager behavior the HTTP layer needs.
type BotService interface {
	Names() []string
	StartBot(ctx context.Context, name, symbol string) (bool, error)
	StopBot(ctx context.Context, name string) error
	StartAll(ctx context.Context, symbol string) ([]string, error)
	StopAll(ctx context.Context) error
	Status(name string) (any, error)
	StatusAll() map[string]any
	UpdateConfig(ctx context.Context, name string, patch json.RawMessage) error
	CombinedPerformance() manager.Performance
}

// BotsHandler serves the bot control endpoints.
type BotsHandler struct {
	svc           BotService
	defaultSymbol string
	logger        *slog.Logger
}

// NewBotsHandler creates a BotsHandler. defaultSymbol is used when a
// start request omits one.
func NewBotsHandler(svc BotService, defaultSymbol string, logger *slog.Logger) *BotsHandler {
	return &BotsHandler{
		svc:           svc,
		defaultSymbol: defaultSymbol,
		logger:        logHandler(logger, "bots"),
	}
}

// shortNames maps URL-friendly bot identifiers to registered bot names.
var shortNames = map[string]string{
	"grid":  strategy.GridBotName,
	"trend": strategy.TrendBotName,
	"swing": strategy.SwingBotName,
}

// resolveName accepts either a short identifier ("grid") or a full
// registered bot name.
func resolveName(raw string) string {
	if full, ok := shortNames[raw]; ok {
		return full
	}
	return raw
}

// StatusAll returns the status of every registered bot keyed by name.
// GET /api/bots/status
func (h *BotsHandler) StatusAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.StatusAll())
}

// Status returns the status of a single bot.
// GET /api/bots/{name}/status
func (h *BotsHandler) Status(w http.ResponseWriter, r *http.Request) {
	name := resolveName(pathParam(r, "name"))

	status, err := h.svc.Status(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Start launches a single bot. The trading symbol comes from the
// "symbol" query parameter, falling back to the configured default.
// POST /api/bots/{name}/start
func (h *BotsHandler) Start(w http.ResponseWriter, r *http.Request) {
	name := resolveName(pathParam(r, "name"))
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = h.defaultSymbol
	}

	started, err := h.svc.StartBot(r.Context(), name, symbol)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bot":     name,
		"symbol":  symbol,
		"started": started,
	})
}

// Stop halts a single bot and flattens its open positions.
// POST /api/bots/{name}/stop
func (h *BotsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	name := resolveName(pathParam(r, "name"))

	if err := h.svc.StopBot(r.Context(), name); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bot":     name,
		"stopped": true,
	})
}

// StartAll launches every registered bot against one symbol. Bots that
// decline to activate are not treated as failures.
// POST /api/bots/start-all
func (h *BotsHandler) StartAll(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = h.defaultSymbol
	}

	started, err := h.svc.StartAll(r.Context(), symbol)
	if err != nil {
		h.logger.Warn("start-all completed with errors", slog.Any("error", err))
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"symbol":  symbol,
			"started": started,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"started": started,
	})
}

// StopAll halts every running bot.
// POST /api/bots/stop-all
func (h *BotsHandler) StopAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.StopAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stopped": true})
}

// UpdateConfig applies a JSON configuration patch to a bot.
// PUT /api/bots/{name}/config
func (h *BotsHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	name := resolveName(pathParam(r, "name"))

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	if err := h.svc.UpdateConfig(r.Context(), name, body); err != nil {
		writeDomainError(w, err)
		return
	}

	status, err := h.svc.Status(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Performance returns aggregate profit and activity across all bots.
// GET /api/bots/performance
func (h *BotsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CombinedPerformance())
}
