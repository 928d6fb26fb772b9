package ports

import (
	"context"

	"eurofx-service/internal/domain/model"
)

type RatesService interface {
	FetchRates(ctx context.Context, opts model.FetchOptions) ([]model.RateRecord, error)
	Currencies(ctx context.Context) ([]model.Currency, error)
	RatesByDate(ctx context.Context, currencies []model.Currency) (model.DatedRates, error)
}
