// Package app wires the rate pipeline from configuration.
package app

import (
	"fmt"

	"eurofx-service/internal/adapter/archive"
	"eurofx-service/internal/adapter/cache"
	"eurofx-service/internal/adapter/csvtable"
	"eurofx-service/internal/adapter/repository"
	"eurofx-service/internal/config"
	"eurofx-service/internal/metrics"
	"eurofx-service/internal/service"
	"eurofx-service/pkg/logger"
)

type App struct {
	Service *service.RatesService
	Cache   *cache.MemoryCache
}

func New(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*App, error) {
	rateCache, err := cache.NewMemoryCache(cfg.Cache.Capacity, cfg.Cache.TTL, cache.SystemClock, log.With("component", "cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate cache: %w", err)
	}

	svc := service.NewRatesService(
		service.Endpoints{
			Daily:      cfg.Source.DailyURL,
			Historical: cfg.Source.HistoricalURL,
			Timeout:    cfg.Source.Timeout,
		},
		repository.NewArchiveAPI(cfg.Source.Timeout, cfg.Source.MaxArchiveBytes, log.With("component", "fetcher")),
		archive.NewZipExtractor(cfg.Source.MaxEntryBytes, log.With("component", "extractor")),
		csvtable.NewParser(log.With("component", "normalizer")),
		rateCache,
		m,
		log.With("component", "service"),
	)

	return &App{Service: svc, Cache: rateCache}, nil
}
