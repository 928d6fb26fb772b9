package ports

import (
	"context"

	"eurofx-service/internal/domain/model"
)

type RateCache interface {
	Get(ctx context.Context, key string) (*model.CsvTable, bool)
	Set(ctx context.Context, key string, table *model.CsvTable) error
}
