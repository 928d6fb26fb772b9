package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eurofx-service/internal/adapter/archive"
	"eurofx-service/internal/adapter/cache"
	"eurofx-service/internal/adapter/csvtable"
	"eurofx-service/internal/domain/model"
	"eurofx-service/internal/domain/ports"
	"eurofx-service/internal/metrics"
	"eurofx-service/pkg/logger"

	"github.com/klauspost/compress/zip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dailyURL      = "http://source.test/eurofxref.zip"
	historicalURL = "http://source.test/eurofxref-hist.zip"

	dailyCSV      = "Date, USD, JPY, \n17 September 2018, 1.1691, 130.77, \n14 September 2018, 1.1690, 130.76, \n"
	historicalCSV = "Date,USD,JPY,\n2018-09-17,1.1691,130.77,\n2018-09-14,1.1690,130.76,\n2018-09-13,1.1689,130.45,\n"
)

type MockArchiveFetcher struct {
	FetchFunc func(ctx context.Context, url string) ([]byte, error)
	calls     atomic.Int32
}

func (m *MockArchiveFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.calls.Add(1)
	return m.FetchFunc(ctx, url)
}

type MockArchiveExtractor struct {
	ExtractFunc func(ctx context.Context, data []byte) (*model.ExtractedFiles, error)
}

func (m *MockArchiveExtractor) Extract(ctx context.Context, data []byte) (*model.ExtractedFiles, error) {
	return m.ExtractFunc(ctx, data)
}

type MockRateCache struct {
	GetFunc func(ctx context.Context, key string) (*model.CsvTable, bool)
	SetFunc func(ctx context.Context, key string, table *model.CsvTable) error
}

func (m *MockRateCache) Get(ctx context.Context, key string) (*model.CsvTable, bool) {
	return m.GetFunc(ctx, key)
}

func (m *MockRateCache) Set(ctx context.Context, key string, table *model.CsvTable) error {
	return m.SetFunc(ctx, key, table)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func buildArchive(t *testing.T, name, content string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create(name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// sourceFetcher serves the daily and historical test archives by URL.
func sourceFetcher(t *testing.T) *MockArchiveFetcher {
	daily := buildArchive(t, "eurofxref.csv", dailyCSV)
	hist := buildArchive(t, "eurofxref-hist.csv", historicalCSV)
	return &MockArchiveFetcher{
		FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
			if url == historicalURL {
				return hist, nil
			}
			return daily, nil
		},
	}
}

type fixture struct {
	svc     *RatesService
	clock   *fakeClock
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, fetcher *MockArchiveFetcher) fixture {
	t.Helper()

	log := logger.NewNop()
	clock := &fakeClock{now: time.Date(2018, 9, 17, 16, 0, 0, 0, time.UTC)}
	rateCache, err := cache.NewMemoryCache(4, time.Hour, clock, log)
	require.NoError(t, err)
	m := metrics.NewMetrics(prometheus.NewRegistry())

	svc := NewRatesService(
		Endpoints{Daily: dailyURL, Historical: historicalURL},
		fetcher,
		archive.NewZipExtractor(1<<20, log),
		csvtable.NewParser(log),
		rateCache,
		m,
		log,
	)
	return fixture{svc: svc, clock: clock, metrics: m}
}

func number(s string) model.Value {
	return model.NumberValue(decimal.RequireFromString(s))
}

func assertValue(t *testing.T, want, got model.Value) {
	t.Helper()
	require.True(t, got.Numeric, "expected numeric value, got %q", got.Text)
	assert.True(t, want.Number.Equal(got.Number), "want %s got %s", want.Number, got.Number)
}

func TestRatesService_FetchRates_Daily(t *testing.T) {
	f := newFixture(t, sourceFetcher(t))

	records, err := f.svc.FetchRates(context.Background(), model.FetchOptions{})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "17 September 2018", records[0].Date())
	assert.Equal(t, "14 September 2018", records[1].Date())
	assertValue(t, number("1.1691"), records[0]["USD"])
	assertValue(t, number("130.77"), records[0]["JPY"])
	assertValue(t, number("1.1690"), records[1]["USD"])
	assert.Len(t, records[0], 3)
}

func TestRatesService_Currencies(t *testing.T) {
	f := newFixture(t, sourceFetcher(t))

	currencies, err := f.svc.Currencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Currency{"USD", "JPY"}, currencies)
}

func TestRatesService_FetchRates_Filtered(t *testing.T) {
	f := newFixture(t, sourceFetcher(t))

	records, err := f.svc.FetchRates(context.Background(), model.FetchOptions{Currencies: []model.Currency{"USD"}})
	require.NoError(t, err)

	require.Len(t, records, 2)
	for _, r := range records {
		assert.Len(t, r, 2)
		assert.Contains(t, r, "Date")
		assert.Contains(t, r, "USD")
	}
	assertValue(t, number("1.1691"), records[0]["USD"])
}

func TestRatesService_RatesByDate(t *testing.T) {
	f := newFixture(t, sourceFetcher(t))

	rates, err := f.svc.RatesByDate(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, rates, 3)
	for _, date := range []string{"2018-09-17", "2018-09-14", "2018-09-13"} {
		day, ok := rates[date]
		require.True(t, ok, date)
		assert.NotContains(t, day, "Date")
		assert.Len(t, day, 2)
	}
	assertValue(t, number("130.45"), rates["2018-09-13"]["JPY"])
}

func TestRatesService_CacheHitSkipsFetch(t *testing.T) {
	fetcher := sourceFetcher(t)
	f := newFixture(t, fetcher)
	ctx := context.Background()

	_, err := f.svc.FetchRates(ctx, model.FetchOptions{})
	require.NoError(t, err)
	_, err = f.svc.FetchRates(ctx, model.FetchOptions{Currencies: []model.Currency{"JPY"}})
	require.NoError(t, err)

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheLookupsTotal.WithLabelValues("miss")))
}

func TestRatesService_CacheExpiryRefetches(t *testing.T) {
	fetcher := sourceFetcher(t)
	f := newFixture(t, fetcher)
	ctx := context.Background()

	_, err := f.svc.FetchRates(ctx, model.FetchOptions{})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	_, err = f.svc.FetchRates(ctx, model.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestRatesService_EndpointsCachedSeparately(t *testing.T) {
	fetcher := sourceFetcher(t)
	f := newFixture(t, fetcher)
	ctx := context.Background()

	_, err := f.svc.FetchRates(ctx, model.FetchOptions{})
	require.NoError(t, err)
	records, err := f.svc.FetchRates(ctx, model.FetchOptions{Historical: true})
	require.NoError(t, err)

	assert.Len(t, records, 3)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestRatesService_StageErrors(t *testing.T) {
	log := logger.NewNop()
	archiveBytes := buildArchive(t, "eurofxref.csv", dailyCSV)
	var emptyArchive bytes.Buffer
	require.NoError(t, zip.NewWriter(&emptyArchive).Close())

	testCases := []struct {
		name      string
		fetch     func(ctx context.Context, url string) ([]byte, error)
		extractor *MockArchiveExtractor
		wantErr   error
		wantCause error
	}{
		{
			name: "fetch failure",
			fetch: func(ctx context.Context, url string) ([]byte, error) {
				return nil, errors.New("connection refused")
			},
			wantErr: ErrFetchFailed,
		},
		{
			name: "malformed archive",
			fetch: func(ctx context.Context, url string) ([]byte, error) {
				return []byte("not a zip"), nil
			},
			wantErr:   ErrDecodeFailed,
			wantCause: archive.ErrMalformedArchive,
		},
		{
			name: "entry stream failure",
			fetch: func(ctx context.Context, url string) ([]byte, error) {
				return archiveBytes, nil
			},
			extractor: &MockArchiveExtractor{
				ExtractFunc: func(ctx context.Context, data []byte) (*model.ExtractedFiles, error) {
					return nil, archive.ErrEntryStream
				},
			},
			wantErr:   ErrDecodeFailed,
			wantCause: archive.ErrEntryStream,
		},
		{
			name: "empty archive",
			fetch: func(ctx context.Context, url string) ([]byte, error) {
				return emptyArchive.Bytes(), nil
			},
			wantErr:   ErrParseFailed,
			wantCause: csvtable.ErrNoEntries,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setCalls := 0
			mockCache := &MockRateCache{
				GetFunc: func(ctx context.Context, key string) (*model.CsvTable, bool) { return nil, false },
				SetFunc: func(ctx context.Context, key string, table *model.CsvTable) error {
					setCalls++
					return nil
				},
			}

			var extractor ports.ArchiveExtractor = archive.NewZipExtractor(1<<20, log)
			if tc.extractor != nil {
				extractor = tc.extractor
			}

			svc := NewRatesService(
				Endpoints{Daily: dailyURL, Historical: historicalURL},
				&MockArchiveFetcher{FetchFunc: tc.fetch},
				extractor,
				csvtable.NewParser(log),
				mockCache,
				metrics.NewMetrics(prometheus.NewRegistry()),
				log,
			)

			records, err := svc.FetchRates(context.Background(), model.FetchOptions{})
			require.ErrorIs(t, err, tc.wantErr)
			if tc.wantCause != nil {
				require.ErrorIs(t, err, tc.wantCause)
			}
			assert.Nil(t, records)
			assert.Zero(t, setCalls, "failed pipeline must not touch the cache")
		})
	}
}

func TestRatesService_UnknownLabelMatchesNothing(t *testing.T) {
	f := newFixture(t, sourceFetcher(t))

	records, err := f.svc.FetchRates(context.Background(), model.FetchOptions{Currencies: []model.Currency{"XYZ", "US$"}})
	require.NoError(t, err)

	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, []string{"Date"}, keys(r))
	}
}

func TestRatesService_RatesByDateSkipsUndatedRows(t *testing.T) {
	hist := buildArchive(t, "eurofxref-hist.csv", "Date,USD,JPY\n2018-09-17,1.1691,130.77\n,1.2,131\n2018-09-14,1.1690,130.76\n")
	f := newFixture(t, &MockArchiveFetcher{
		FetchFunc: func(ctx context.Context, url string) ([]byte, error) { return hist, nil },
	})

	rates, err := f.svc.RatesByDate(context.Background(), nil)
	require.NoError(t, err)

	assert.Len(t, rates, 2)
	assert.NotContains(t, rates, "")
	assert.Contains(t, rates, "2018-09-17")
	assert.Contains(t, rates, "2018-09-14")
}

func keys(r model.RateRecord) []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}

func TestRatesService_ConcurrentMissesShareOneFetch(t *testing.T) {
	archiveBytes := buildArchive(t, "eurofxref.csv", dailyCSV)
	release := make(chan struct{})
	fetcher := &MockArchiveFetcher{
		FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
			<-release
			return archiveBytes, nil
		},
	}
	f := newFixture(t, fetcher)

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]model.RateRecord, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.FetchRates(context.Background(), model.FetchOptions{})
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 2)
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestRatesService_LeaderCancelDoesNotFailWaiters(t *testing.T) {
	archiveBytes := buildArchive(t, "eurofxref.csv", dailyCSV)
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	fetcher := &MockArchiveFetcher{
		FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
			started <- struct{}{}
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return archiveBytes, nil
		},
	}
	f := newFixture(t, fetcher)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.svc.FetchRates(leaderCtx, model.FetchOptions{})
		leaderErr <- err
	}()
	<-started

	waiterDone := make(chan error, 1)
	var waiterRecords []model.RateRecord
	go func() {
		var err error
		waiterRecords, err = f.svc.FetchRates(context.Background(), model.FetchOptions{})
		waiterDone <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	require.NoError(t, <-waiterDone)
	assert.Len(t, waiterRecords, 2)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestRatesService_UpstreamTimeoutFetchesOnce(t *testing.T) {
	fetcher := &MockArchiveFetcher{
		FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	f := newFixture(t, fetcher)
	f.svc.endpoints.Timeout = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const callers = 2
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.FetchRates(ctx, model.FetchOptions{})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, ErrFetchFailed)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.NoError(t, ctx.Err())
}

func TestRatesService_Refresh(t *testing.T) {
	fetcher := sourceFetcher(t)
	f := newFixture(t, fetcher)
	ctx := context.Background()

	require.NoError(t, f.svc.Refresh(ctx))
	assert.Equal(t, int32(2), fetcher.calls.Load())

	_, err := f.svc.FetchRates(ctx, model.FetchOptions{Historical: true})
	require.NoError(t, err)
	_, err = f.svc.Currencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestRatesService_RefreshReportsFailures(t *testing.T) {
	fetcher := &MockArchiveFetcher{
		FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
			return nil, errors.New("upstream down")
		},
	}
	f := newFixture(t, fetcher)

	err := f.svc.Refresh(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UpstreamFetchesTotal.WithLabelValues("daily", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UpstreamFetchesTotal.WithLabelValues("historical", "error")))
}
