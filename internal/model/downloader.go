package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrNoModelSource is returned when the model file is missing and no URL is configured.
var ErrNoModelSource = errors.New("model not found and no download URL configured")

const progressStep = 10 << 20

// Downloader fetches model files that are too large to ship with the repository.
type Downloader struct {
	HTTPClient *http.Client
	Log        *slog.Logger
}

func NewDownloader(log *slog.Logger) *Downloader {
	return &Downloader{
		HTTPClient: &http.Client{Timeout: 30 * time.Minute},
		Log:        log,
	}
}

// GoogleDriveURL returns the direct download URL of a shared Drive file.
func GoogleDriveURL(fileID string) string {
	return "https://drive.google.com/uc?export=download&id=" + fileID
}

// HuggingFaceURL returns the direct download URL of a file on the Hub's main branch.
func HuggingFaceURL(repoID, filename string) string {
	return fmt.Sprintf("https://huggingface.co/%s/resolve/main/%s", repoID, filename)
}

// EnsureModel makes sure path exists, downloading it from url if needed.
func (d *Downloader) EnsureModel(ctx context.Context, path, url string) error {
	if info, err := os.Stat(path); err == nil {
		d.Log.Info("model found",
			slog.String("path", path),
			slog.String("size", megabytes(info.Size())),
		)
		return nil
	}

	if url == "" {
		d.Log.Warn("model not found and no MODEL_URL provided", slog.String("path", path))
		return fmt.Errorf("%w: %s", ErrNoModelSource, path)
	}

	d.Log.Info("model not found, attempting download", slog.String("path", path))

	if err := d.download(ctx, url, path); err != nil {
		return fmt.Errorf("model download failed: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("model file wasn't created: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(path)
		return errors.New("downloaded model file is empty")
	}

	d.Log.Info("model download verified", slog.String("path", path))
	return nil
}

// download streams url into a temporary file next to destination and renames
// it into place once complete, so a failed transfer never leaves a partial model.
func (d *Downloader) download(ctx context.Context, url, destination string) error {
	d.Log.Info("downloading model", slog.String("url", url))

	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	total := resp.ContentLength
	if total > 0 {
		d.Log.Info("model file size", slog.String("size", megabytes(total)))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(destination)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	pw := &progressWriter{log: d.Log, total: total, next: progressStep}
	if _, err := io.Copy(tmp, io.TeeReader(resp.Body, pw)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), destination); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}

	d.Log.Info("model downloaded", slog.String("path", destination))
	return nil
}

// progressWriter logs every progressStep bytes seen.
type progressWriter struct {
	log     *slog.Logger
	total   int64
	written int64
	next    int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.written >= p.next {
		p.next += progressStep
		attrs := []any{slog.String("downloaded", megabytes(p.written))}
		if p.total > 0 {
			attrs = append(attrs, slog.String("progress", fmt.Sprintf("%.1f%%", float64(p.written)/float64(p.total)*100)))
		}
		p.log.Info("download progress", attrs...)
	}
	return len(b), nil
}

func megabytes(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}
