// Package lambda exposes the rates endpoints as API Gateway proxy handlers.
package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"eurofx-service/internal/domain/model"
	"eurofx-service/internal/domain/ports"
	"eurofx-service/pkg/logger"

	"github.com/aws/aws-lambda-go/events"
)

type Handler struct {
	service ports.RatesService
	log     *logger.Logger
}

func NewHandler(service ports.RatesService, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Handle routes on the last path segment so the same function can back both
// API Gateway resources.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Resource
	if path == "" {
		path = req.Path
	}

	switch {
	case strings.HasSuffix(path, "/currencyRates"):
		return h.CurrencyRates(ctx, req)
	case strings.HasSuffix(path, "/currencies"):
		return h.Currencies(ctx, req)
	default:
		return respond(http.StatusNotFound, map[string]string{"error": "not found"}), nil
	}
}

func (h *Handler) Currencies(ctx context.Context, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	currencies, err := h.service.Currencies(ctx)
	if err != nil {
		return h.fail(err), nil
	}

	labels := make([]string, 0, len(currencies))
	for _, c := range currencies {
		labels = append(labels, c.String())
	}
	return respond(http.StatusOK, labels), nil
}

func (h *Handler) CurrencyRates(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	currencies, err := currenciesParam(req)
	if err != nil {
		return h.fail(err), nil
	}

	rates, err := h.service.RatesByDate(ctx, currencies)
	if err != nil {
		return h.fail(err), nil
	}
	return respond(http.StatusOK, rates), nil
}

// currenciesParam prefers the multi-value map, which carries every repeated
// currencies parameter.
func currenciesParam(req events.APIGatewayProxyRequest) ([]model.Currency, error) {
	if values, ok := req.MultiValueQueryStringParameters["currencies"]; ok {
		return model.ParseCurrencies(values)
	}
	if value, ok := req.QueryStringParameters["currencies"]; ok {
		return model.ParseCurrencies([]string{value})
	}
	return nil, nil
}

func (h *Handler) fail(err error) events.APIGatewayProxyResponse {
	status := http.StatusInternalServerError
	if errors.Is(err, model.ErrInvalidCurrency) {
		status = http.StatusBadRequest
	}
	h.log.Error("Service error", "error", err, "status_code", status)
	return respond(status, map[string]string{"error": err.Error()})
}

func respond(status int, body interface{}) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"failed to encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}
}
