package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Downloader fetches one remote pageviews snapshot to local storage.
// It streams the body straight to disk so dump size never matters, and it
// never retries: retry policy belongs to the runner.
type Downloader struct {
	client *http.Client
	logger *zap.Logger
}

// NewDownloader creates a Downloader whose transfers are bounded by timeout.
func NewDownloader(timeout time.Duration, logger *zap.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Download retrieves url and persists it byte-for-byte at destPath,
// creating missing parent directories. Returns destPath on success.
func (d *Downloader) Download(ctx context.Context, url, destPath string) (string, error) {
	d.logger.Info("starting download",
		zap.String("url", url),
		zap.String("dest", destPath))

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		d.logger.Error("failed to create destination directory", zap.String("dest", destPath), zap.Error(err))
		return "", wrapf(ErrStorage, err, "create directory for %s", destPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", wrapf(ErrNetwork, err, "build request for %s", url)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("download request failed", zap.String("url", url), zap.Error(err))
		return "", wrapf(ErrNetwork, err, "download %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		d.logger.Error("download rejected", zap.String("url", url), zap.String("status", resp.Status))
		return "", wrapf(ErrNetwork, err, "download %s", url)
	}

	out, err := os.Create(destPath)
	if err != nil {
		d.logger.Error("failed to create destination file", zap.String("dest", destPath), zap.Error(err))
		return "", wrapf(ErrStorage, err, "create %s", destPath)
	}

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		d.logger.Error("transfer interrupted", zap.String("url", url), zap.Error(err))
		return "", wrapf(ErrNetwork, err, "stream %s to %s", url, destPath)
	}
	if err := out.Close(); err != nil {
		return "", wrapf(ErrStorage, err, "close %s", destPath)
	}

	d.logger.Info("download completed",
		zap.String("dest", destPath),
		zap.Int64("bytes", written))
	return destPath, nil
}
