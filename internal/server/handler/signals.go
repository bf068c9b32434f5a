package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/intellidex/cryptobot/internal/domain"
)

// SignalService is the subset of the signal aggregator the HTTP layer needs.
type SignalService interface {
	All() []domain.Prediction
	Predictions(symbol string) []domain.Prediction
	PerformanceMetrics() domain.PredictionMetrics
	Analysis(ctx context.Context) domain.SentimentAnalysis
}

// SignalsHandler serves prediction and sentiment endpoints.
type SignalsHandler struct {
	svc    SignalService
	logger *slog.Logger
}

// NewSignalsHandler creates a SignalsHandler backed by svc.
func NewSignalsHandler(svc SignalService, logger *slog.Logger) *SignalsHandler {
	return &SignalsHandler{
		svc:    svc,
		logger: logHandler(logger, "signals"),
	}
}

// Predictions returns active predictions, optionally filtered by symbol.
// GET /api/predictions?symbol=
func (h *SignalsHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	var preds []domain.Prediction
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		preds = h.svc.Predictions(symbol)
	} else {
		preds = h.svc.All()
	}
	if preds == nil {
		preds = []domain.Prediction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"predictions": preds,
		"count":       len(preds),
	})
}

// Metrics returns accuracy statistics over verified predictions.
// GET /api/predictions/metrics
func (h *SignalsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.PerformanceMetrics())
}

// Sentiment returns the current aggregated news sentiment.
// GET /api/sentiment
func (h *SignalsHandler) Sentiment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Analysis(r.Context()))
}
