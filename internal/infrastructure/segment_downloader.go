package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// HTTPSegmentDownloader fetches a track's segments with a bounded worker
// pool and reassembles them into one file in original sequence order,
// whatever order the fetches complete in.
type HTTPSegmentDownloader struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSegmentDownloader creates a segment downloader using the given
// HTTP client.
func NewHTTPSegmentDownloader(client *http.Client, logger *zap.Logger) *HTTPSegmentDownloader {
	return &HTTPSegmentDownloader{client: client, logger: logger}
}

type segmentWork struct {
	index int
	url   string
}

type segmentResult struct {
	index int
	data  []byte
	err   error
}

// Download fetches job.URLs with up to job.Concurrency requests in flight
// and writes the payloads to job.Filepath in URL-list order. The first
// fetch or write error aborts the whole download; the partial file stays
// on disk.
func (d *HTTPSegmentDownloader) Download(ctx context.Context, job domain.SegmentJob) error {
	if len(job.URLs) == 0 {
		return fmt.Errorf("no segment urls")
	}

	if err := os.MkdirAll(filepath.Dir(job.Filepath), 0755); err != nil {
		return fmt.Errorf("failed to create track directory: %w", err)
	}
	file, err := os.Create(job.Filepath)
	if err != nil {
		return fmt.Errorf("failed to create track file: %w", err)
	}
	defer file.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	numWorkers := clamp(job.Concurrency, 1, len(job.URLs))
	work := make(chan segmentWork, len(job.URLs))
	results := make(chan segmentResult, numWorkers)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for item := range work {
				data, err := d.fetchSegment(ctx, item.url)
				select {
				case results <- segmentResult{index: item.index, data: data, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for i, url := range job.URLs {
		work <- segmentWork{index: i, url: url}
	}
	close(work)

	writeErr := d.writeInOrder(ctx, file, results, len(job.URLs), job.Filepath)
	cancel()
	wg.Wait()
	return writeErr
}

// writeInOrder drains results and appends segment payloads strictly by
// index, parking out-of-order arrivals until their turn comes.
func (d *HTTPSegmentDownloader) writeInOrder(ctx context.Context, file *os.File, results <-chan segmentResult, total int, name string) error {
	pending := make(map[int][]byte, total)
	nextIndex := 0
	var written uint64
	lastLog := time.Now()

	for received := 0; received < total; received++ {
		var res segmentResult
		select {
		case res = <-results:
		case <-ctx.Done():
			return ctx.Err()
		}
		if res.err != nil {
			return res.err
		}
		pending[res.index] = res.data
		for {
			data, ok := pending[nextIndex]
			if !ok {
				break
			}
			if _, err := file.Write(data); err != nil {
				return fmt.Errorf("failed to write segment %d: %w", nextIndex, err)
			}
			written += uint64(len(data))
			delete(pending, nextIndex)
			nextIndex++
		}
		if time.Since(lastLog) > 3*time.Second {
			d.logger.Info("Downloading",
				zap.String("file", filepath.Base(name)),
				zap.Int("segments", nextIndex),
				zap.Int("total", total),
				zap.String("written", humanize.Bytes(written)))
			lastLog = time.Now()
		}
	}
	d.logger.Debug("Track download complete",
		zap.String("file", filepath.Base(name)),
		zap.Int("segments", total),
		zap.String("written", humanize.Bytes(written)))
	return nil
}

func (d *HTTPSegmentDownloader) fetchSegment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("segment fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
