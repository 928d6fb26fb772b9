package ports

import (
	"context"

	"eurofx-service/internal/domain/model"
)

// ArchiveExtractor decompresses every entry of an archive into memory.
type ArchiveExtractor interface {
	Extract(ctx context.Context, data []byte) (*model.ExtractedFiles, error)
}

// TableNormalizer turns extracted archive content into an unfiltered rate
// table and derives filtered records from it.
type TableNormalizer interface {
	Parse(ctx context.Context, files *model.ExtractedFiles) (*model.CsvTable, error)
	Normalize(table *model.CsvTable, filter []model.Currency) []model.RateRecord
}
