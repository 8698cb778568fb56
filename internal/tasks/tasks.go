// package tasks implements long-running track operations with progress reporting.
//
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/services"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

// TrackResolver looks up full track details, retrying as configured.
type TrackResolver interface {
	FetchTrackDetail(ctx context.Context, id string) (models.Track, error)
}

// TrackDownloader saves a track's audio into dir and returns the file path.
type TrackDownloader interface {
	Download(ctx context.Context, track models.Track, dir string, progress services.ProgressFunc) (string, error)
}

// Engine runs bulk operations on top of the resolver and downloader.
type Engine struct {
	resolver   TrackResolver
	downloader TrackDownloader
	client     *http.Client // Used for cover images
	logger     *log.Logger
}

// NewEngine creates a new Engine with the provided dependencies.
func NewEngine(resolver TrackResolver, downloader TrackDownloader, client *http.Client, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		resolver:   resolver,
		downloader: downloader,
		client:     client,
		logger:     shared.WithLogger(logger, "component", "tasks"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}
