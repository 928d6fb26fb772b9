package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"eurofx-service/internal/domain/model"
	"eurofx-service/internal/domain/ports"
	"eurofx-service/internal/metrics"
	"eurofx-service/pkg/logger"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	service ports.RatesService
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewHandler(service ports.RatesService, log *logger.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		log:     log,
		metrics: metrics,
	}
}

// GetCurrenciesHandler lists the currency labels of the latest daily table.
func (h *Handler) GetCurrenciesHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.CurrenciesRequestsTotal.Inc()

	currencies, err := h.service.Currencies(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	labels := make([]string, 0, len(currencies))
	for _, c := range currencies {
		labels = append(labels, c.String())
	}
	h.sendJSON(w, http.StatusOK, labels)
}

// GetCurrencyRatesHandler returns the historical table keyed by date,
// optionally restricted by repeated currencies parameters.
func (h *Handler) GetCurrencyRatesHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.RatesRequestsTotal.Inc()

	currencies, err := model.ParseCurrencies(r.URL.Query()["currencies"])
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	rates, err := h.service.RatesByDate(r.Context(), currencies)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.sendJSON(w, http.StatusOK, rates)
}

func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := http.StatusInternalServerError
	if errors.Is(err, model.ErrInvalidCurrency) {
		statusCode = http.StatusBadRequest
	}

	h.log.Error("Service error", "error", err, "status_code", statusCode, "path", r.URL.Path, "request_id", requestID(r.Context()))
	h.sendJSON(w, statusCode, ErrorResponse{Error: err.Error()})
}
