package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"eurofx-service/pkg/logger"
)

var (
	ErrUpstreamStatus  = errors.New("upstream returned non-OK status")
	ErrArchiveTooLarge = errors.New("archive exceeds size limit")
)

// maxErrorBody bounds how much of a failed response is echoed into the error.
const maxErrorBody = 512

// ArchiveAPI downloads rate archives over HTTP GET.
type ArchiveAPI struct {
	httpClient *http.Client
	maxBytes   int64
	log        *logger.Logger
}

func NewArchiveAPI(timeout time.Duration, maxBytes int64, log *logger.Logger) *ArchiveAPI {
	return NewArchiveAPIWithClient(&http.Client{Timeout: timeout}, maxBytes, log)
}

func NewArchiveAPIWithClient(client *http.Client, maxBytes int64, log *logger.Logger) *ArchiveAPI {
	return &ArchiveAPI{
		httpClient: client,
		maxBytes:   maxBytes,
		log:        log,
	}
}

func (a *ArchiveAPI) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/zip")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %d: %s", ErrUpstreamStatus, resp.StatusCode, string(body))
	}

	// One extra byte tells an exactly-at-limit body apart from an oversized one.
	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrArchiveTooLarge, a.maxBytes)
	}

	a.log.Debug("Archive downloaded", "url", url, "bytes", len(data), "duration", time.Since(start))
	return data, nil
}
