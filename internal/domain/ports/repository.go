package ports

import (
	"context"
)

// ArchiveFetcher downloads the raw archive published at url.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
