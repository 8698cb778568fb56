package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

// ProgressFunc receives bytes written so far and the expected total (-1 when unknown).
type ProgressFunc func(received, total int64)

// Downloader saves a track's stream to disk. Downloads are not retried.
type Downloader struct {
	httpClient *http.Client
	userAgent  string
	logger     *log.Logger
}

// NewDownloader creates a Downloader. A nil client uses [http.DefaultClient].
func NewDownloader(client *http.Client, userAgent string, logger *log.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Downloader{
		httpClient: client,
		userAgent:  userAgent,
		logger:     shared.WithLogger(logger, "component", "download"),
	}
}

// Download streams the track to "<dir>/<title> - <artist>.mp3" and returns the written path.
//
// The file is written to a temporary name first and renamed once complete, so a failed download never leaves a partial file behind.
func (d *Downloader) Download(ctx context.Context, track models.Track, dir string, progress ProgressFunc) (string, error) {
	if !track.HasStream() {
		return "", fmt.Errorf("%w: %s", shared.ErrNoStream, track)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.StreamURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{Status: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(dir, ".melodyfetch-*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	pw := &progressWriter{w: tmp, total: resp.ContentLength, fn: progress}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		tmp.Close()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &TransportError{Err: fmt.Errorf("download interrupted: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}

	dest := filepath.Join(dir, track.Filename())
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	d.logger.Info("downloaded", "track", track.String(), "path", dest, "bytes", pw.received)
	return dest, nil
}

type progressWriter struct {
	w        io.Writer
	received int64
	total    int64
	fn       ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.received += int64(n)
	if p.fn != nil {
		p.fn(p.received, p.total)
	}
	return n, err
}
