package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eurofx-service/internal/domain/model"
	"eurofx-service/internal/domain/ports"
	"eurofx-service/internal/metrics"
	"eurofx-service/pkg/logger"

	"golang.org/x/sync/singleflight"
)

var (
	ErrFetchFailed  = errors.New("failed to fetch rate archive")
	ErrDecodeFailed = errors.New("failed to decode rate archive")
	ErrParseFailed  = errors.New("failed to parse rate table")
)

// Endpoints holds the archive URL for each endpoint kind. Timeout bounds one
// shared pipeline run; zero leaves it to the fetcher's own limits.
type Endpoints struct {
	Daily      string
	Historical string
	Timeout    time.Duration
}

func (e Endpoints) url(endpoint model.Endpoint) string {
	if endpoint == model.EndpointHistorical {
		return e.Historical
	}
	return e.Daily
}

// RatesService runs the fetch -> extract -> parse pipeline behind a cache.
// Concurrent misses for the same endpoint share one pipeline run.
type RatesService struct {
	endpoints  Endpoints
	fetcher    ports.ArchiveFetcher
	extractor  ports.ArchiveExtractor
	normalizer ports.TableNormalizer
	cache      ports.RateCache
	metrics    *metrics.Metrics
	log        *logger.Logger
	inflight   singleflight.Group
}

func NewRatesService(
	endpoints Endpoints,
	fetcher ports.ArchiveFetcher,
	extractor ports.ArchiveExtractor,
	normalizer ports.TableNormalizer,
	cache ports.RateCache,
	metrics *metrics.Metrics,
	log *logger.Logger,
) *RatesService {
	return &RatesService{
		endpoints:  endpoints,
		fetcher:    fetcher,
		extractor:  extractor,
		normalizer: normalizer,
		cache:      cache,
		metrics:    metrics,
		log:        log,
	}
}

// FetchRates returns the rows of the selected table in source order,
// restricted to the date column and opts.Currencies when any are given.
// Labels absent from the table match nothing.
func (s *RatesService) FetchRates(ctx context.Context, opts model.FetchOptions) ([]model.RateRecord, error) {
	endpoint := model.EndpointDaily
	if opts.Historical {
		endpoint = model.EndpointHistorical
	}

	table, err := s.table(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return s.normalizer.Normalize(table, opts.Currencies), nil
}

// Currencies lists the non-date labels of the first daily row in header order.
func (s *RatesService) Currencies(ctx context.Context) ([]model.Currency, error) {
	table, err := s.table(ctx, model.EndpointDaily)
	if err != nil {
		return nil, err
	}

	currencies := make([]model.Currency, 0, len(table.Header))
	if len(table.Rows) == 0 {
		return currencies, nil
	}

	first := table.Rows[0]
	for _, label := range table.Header {
		if label == model.DateColumn {
			continue
		}
		if _, ok := first[label]; ok {
			currencies = append(currencies, model.Currency(label))
		}
	}
	return currencies, nil
}

// RatesByDate reshapes the historical table into date -> label -> value. The
// first row seen for a date wins and rows without a date are dropped.
func (s *RatesService) RatesByDate(ctx context.Context, currencies []model.Currency) (model.DatedRates, error) {
	records, err := s.FetchRates(ctx, model.FetchOptions{Historical: true, Currencies: currencies})
	if err != nil {
		return nil, err
	}

	out := make(model.DatedRates, len(records))
	for _, record := range records {
		date := record.Date()
		if date == "" {
			continue
		}
		if _, dup := out[date]; dup {
			continue
		}
		day := make(map[string]model.Value, len(record))
		for label, v := range record {
			if label != model.DateColumn {
				day[label] = v
			}
		}
		out[date] = day
	}
	return out, nil
}

// Refresh reloads both endpoints regardless of cache state.
func (s *RatesService) Refresh(ctx context.Context) error {
	s.log.Info("Refreshing rate tables")

	var errs []error
	for _, endpoint := range []model.Endpoint{model.EndpointDaily, model.EndpointHistorical} {
		if _, err := s.share(ctx, endpoint); err != nil {
			s.log.Error("Failed to refresh rate table", "endpoint", endpoint, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *RatesService) table(ctx context.Context, endpoint model.Endpoint) (*model.CsvTable, error) {
	key := s.endpoints.url(endpoint)

	if table, found := s.cache.Get(ctx, key); found {
		s.metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return table, nil
	}
	s.metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	return s.share(ctx, endpoint)
}

// share joins or starts the pipeline run for endpoint. The run is detached
// from the caller that starts it, so one caller leaving never fails the others;
// each caller still stops waiting when its own context ends.
func (s *RatesService) share(ctx context.Context, endpoint model.Endpoint) (*model.CsvTable, error) {
	key := s.endpoints.url(endpoint)

	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := s.runContext(ctx)
		defer cancel()
		return s.load(runCtx, endpoint, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.CsvTable), nil
	}
}

func (s *RatesService) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.endpoints.Timeout > 0 {
		return context.WithTimeout(detached, s.endpoints.Timeout)
	}
	return context.WithCancel(detached)
}

func (s *RatesService) load(ctx context.Context, endpoint model.Endpoint, url string) (*model.CsvTable, error) {
	s.log.Info("Fetching rate archive", "endpoint", endpoint, "url", url)

	start := time.Now()
	data, err := s.fetcher.Fetch(ctx, url)
	s.observe("fetch", start)
	if err != nil {
		s.metrics.UpstreamFetchesTotal.WithLabelValues(endpoint.String(), "error").Inc()
		s.log.Error("Failed to fetch rate archive", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	s.metrics.UpstreamFetchesTotal.WithLabelValues(endpoint.String(), "ok").Inc()

	start = time.Now()
	files, err := s.extractor.Extract(ctx, data)
	s.observe("extract", start)
	if err != nil {
		s.log.Error("Failed to extract rate archive", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	start = time.Now()
	table, err := s.normalizer.Parse(ctx, files)
	s.observe("parse", start)
	if err != nil {
		s.log.Error("Failed to parse rate table", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if err := s.cache.Set(ctx, url, table); err != nil {
		s.log.Error("Failed to cache rate table", "endpoint", endpoint, "error", err)
	}

	s.log.Info("Rate table loaded", "endpoint", endpoint, "rows", len(table.Rows), "columns", len(table.Header))
	return table, nil
}

func (s *RatesService) observe(stage string, start time.Time) {
	s.metrics.PipelineDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
