package tasks

import (
	"fmt"

	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveTracks Phase = iota
	DownloadTracks
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case ResolveTracks:
		return "resolve_tracks"
	case DownloadTracks:
		return "download_tracks"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func resolvingUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving %s...", step, total, id),
	}
}

func downloadingUpdate(step, total int, tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Downloading: %s - %s...", step, total, tr.Title, tr.Artist),
		Data:    tr,
	}
}

func downloadCompletedUpdate(step, total int, tr models.Track, bytes int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s - %s (%s)", step, total, tr.Title, tr.Artist, shared.FormatBytes(bytes)),
	}
}

func downloadFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", path),
		Data:    path,
	}
}
