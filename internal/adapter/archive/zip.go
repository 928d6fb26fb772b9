// Package archive decodes the ZIP archives published by the rate source.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"eurofx-service/internal/domain/model"
	"eurofx-service/pkg/logger"

	"github.com/klauspost/compress/zip"
)

var (
	ErrMalformedArchive = errors.New("malformed archive")
	ErrEntryStream      = errors.New("entry stream failed")
	ErrEntryTooLarge    = errors.New("entry exceeds size limit")
)

const chunkSize = 32 << 10

// ZipExtractor inflates archive entries strictly one after another, so peak
// memory is bounded by the largest entry rather than the whole archive.
type ZipExtractor struct {
	maxEntryBytes int64
	log           *logger.Logger
}

func NewZipExtractor(maxEntryBytes int64, log *logger.Logger) *ZipExtractor {
	return &ZipExtractor{
		maxEntryBytes: maxEntryBytes,
		log:           log,
	}
}

// Extract returns every file entry keyed by name. The entry count comes from
// the central directory, which the reader checks against the end record before
// any entry is opened. Any failure discards all entries read so far.
func (z *ZipExtractor) Extract(ctx context.Context, data []byte) (*model.ExtractedFiles, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedArchive, err)
	}

	files := &model.ExtractedFiles{
		Names:    make([]string, 0, len(r.File)),
		Contents: make(map[string]string, len(r.File)),
	}

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}

		content, err := z.drain(ctx, f)
		if err != nil {
			return nil, err
		}

		if _, dup := files.Contents[f.Name]; dup {
			z.log.Warn("Duplicate archive entry ignored", "entry", f.Name)
			continue
		}
		files.Names = append(files.Names, f.Name)
		files.Contents[f.Name] = content
		z.log.Debug("Archive entry extracted", "entry", f.Name, "bytes", len(content))
	}

	return files, nil
}

// drain reads one entry to completion. The entry stream is closed before
// returning so no two streams are ever open at once.
func (z *ZipExtractor) drain(ctx context.Context, f *zip.File) (string, error) {
	if f.UncompressedSize64 > uint64(z.maxEntryBytes) {
		return "", fmt.Errorf("%w: %s declares %d bytes", ErrEntryTooLarge, f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrEntryStream, f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := rc.Read(chunk)
		if n > 0 {
			if int64(buf.Len()+n) > z.maxEntryBytes {
				return "", fmt.Errorf("%w: %s", ErrEntryTooLarge, f.Name)
			}
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %w", ErrEntryStream, f.Name, err)
		}
	}

	return buf.String(), nil
}
