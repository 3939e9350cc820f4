package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// HTTPSubtitleFetcher fetches sidecar subtitle files with one plain GET
// each; no segmentation, no decryption.
type HTTPSubtitleFetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSubtitleFetcher creates a subtitle fetcher using the given client.
func NewHTTPSubtitleFetcher(client *http.Client, logger *zap.Logger) *HTTPSubtitleFetcher {
	return &HTTPSubtitleFetcher{client: client, logger: logger}
}

// Fetch downloads one subtitle file to destPath.
func (f *HTTPSubtitleFetcher) Fetch(ctx context.Context, ref domain.SubtitleRef, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("subtitle fetch %s: unexpected status %d", ref.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(destPath, body, 0644); err != nil {
		return fmt.Errorf("failed to save subtitle file: %w", err)
	}

	f.logger.Debug("Subtitle downloaded",
		zap.String("language", ref.Language),
		zap.String("path", destPath))
	return nil
}
