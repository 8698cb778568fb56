package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/melodyfetch/internal/formatter"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers   = 3
	MaxWorkers       = 10
	DefaultRateLimit = 2.0
	ManifestFilename = "download_manifest.json"
)

// BulkDownloadOpts contains configuration for bulk downloads.
type BulkDownloadOpts struct {
	OutputDir  string  // Base output directory (default: downloads_{epoch})
	NumWorkers int     // Concurrent downloads (default: 3, max: 10)
	RateLimit  float64 // Detail lookups per second (default: 2)
	Covers     bool    // Also save each track's cover image next to the audio
}

// DownloadJob is a resolved track waiting for a worker.
type DownloadJob struct {
	Index int
	Track models.Track
}

// DownloadResult is the outcome for one requested id.
type DownloadResult struct {
	Index   int
	ID      string
	Track   models.Track
	File    string
	Cover   string
	Bytes   int64
	Success bool
	Error   error
}

func (r DownloadResult) name() string {
	if r.Track.Title != "" {
		return fmt.Sprintf("%s - %s", r.Track.Title, r.Track.Artist)
	}
	return fmt.Sprintf("Unknown (%s)", r.ID)
}

// BulkDownloadResult summarizes a bulk download. Results are in request order.
type BulkDownloadResult struct {
	Total           int
	Succeeded       int
	Failed          int
	OutputDirectory string
	ManifestPath    string
	Results         []DownloadResult
}

// BulkDownload resolves and downloads multiple tracks concurrently with rate limiting and progress tracking.
//
// Detail lookups run sequentially behind a rate limiter and feed a pool of download workers.
// Individual failures are recorded in the result and the manifest; they do not stop the batch.
func (e *Engine) BulkDownload(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	ids []string,
	opts BulkDownloadOpts,
) (*BulkDownloadResult, error) {
	if e.resolver == nil || e.downloader == nil {
		return nil, fmt.Errorf("%w: resolver and downloader are required", shared.ErrMissingArgument)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one track id", shared.ErrMissingArgument)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("downloads_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultWorkers
	}
	if opts.NumWorkers > MaxWorkers {
		opts.NumWorkers = MaxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkDownloadResult{
		Total:           len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]DownloadResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan DownloadJob, len(ids))
	results := make(chan DownloadResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.downloadWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, raw := range ids {
			id := strings.TrimSpace(raw)
			if ctx.Err() != nil {
				results <- DownloadResult{Index: i, ID: id, Error: ctx.Err()}
				continue
			}
			if !models.IsTrackID(id) {
				results <- DownloadResult{Index: i, ID: id, Error: &models.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a numeric track id", raw)}}
				continue
			}

			if err := limiter.Wait(ctx); err != nil {
				results <- DownloadResult{Index: i, ID: id, Error: err}
				continue
			}

			e.sendProgress(prog, resolvingUpdate(i+1, len(ids), id))
			track, err := e.resolver.FetchTrackDetail(ctx, id)
			if err != nil {
				results <- DownloadResult{
					Index: i,
					ID:    id,
					Error: fmt.Errorf("failed to resolve track: %w", err),
				}
				continue
			}

			jobs <- DownloadJob{Index: i, Track: track}
			e.sendProgress(prog, downloadingUpdate(i+1, len(ids), track))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.Succeeded++
			e.sendProgress(prog, downloadCompletedUpdate(completed, len(ids), res.Track, res.Bytes))
		} else {
			result.Failed++
			e.logger.Warn("download failed", "id", res.ID, "error", res.Error)
			e.sendProgress(prog, downloadFailedUpdate(completed, len(ids), res.name(), res.Error))
		}
	}

	sort.Slice(result.Results, func(i, j int) bool {
		return result.Results[i].Index < result.Results[j].Index
	})

	manifestPath := filepath.Join(opts.OutputDir, ManifestFilename)
	if err := formatter.WriteManifest(result.Manifest(), manifestPath); err != nil {
		return result, fmt.Errorf("download completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	e.sendProgress(prog, manifestUpdate(manifestPath))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// Manifest converts the result to its on-disk form.
func (r *BulkDownloadResult) Manifest() formatter.Manifest {
	m := formatter.Manifest{
		CreatedAt: time.Now().UTC(),
		Directory: r.OutputDirectory,
		Total:     r.Total,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Entries:   make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		entry := formatter.ManifestEntry{
			ID:     res.ID,
			Title:  res.Track.Title,
			Artist: res.Track.Artist,
			File:   res.File,
			Cover:  res.Cover,
			Bytes:  res.Bytes,
		}
		if res.Error != nil {
			entry.Error = res.Error.Error()
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}

// downloadWorker is a worker goroutine that downloads tracks from the jobs channel.
func (e *Engine) downloadWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan DownloadJob,
	results chan<- DownloadResult,
	opts BulkDownloadOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			results <- DownloadResult{Index: job.Index, ID: job.Track.ID, Track: job.Track, Error: ctx.Err()}
			continue
		}
		results <- e.downloadSingleTrack(ctx, job, opts)
	}
}

// downloadSingleTrack saves one track and, when requested, its cover image.
func (e *Engine) downloadSingleTrack(ctx context.Context, j DownloadJob, opts BulkDownloadOpts) DownloadResult {
	result := DownloadResult{Index: j.Index, ID: j.Track.ID, Track: j.Track}

	var received int64
	path, err := e.downloader.Download(ctx, j.Track, opts.OutputDir, func(n, _ int64) { received = n })
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		return result
	}
	result.File = path
	result.Bytes = received
	result.Success = true

	if opts.Covers && j.Track.CoverURL != "" {
		cover := strings.TrimSuffix(path, filepath.Ext(path)) + ".jpg"
		data, err := formatter.DownloadImage(ctx, e.client, j.Track.CoverURL)
		if err != nil {
			e.logger.Warn("failed to download cover image", "id", j.Track.ID, "error", err)
			return result
		}
		if err := os.WriteFile(cover, data, 0644); err != nil {
			e.logger.Warn("failed to save cover image", "path", cover, "error", err)
			return result
		}
		result.Cover = cover
	}
	return result
}
