package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodyfetch/internal/formatter"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/playback"
	"github.com/desertthunder/melodyfetch/internal/services"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

// Renderer is the presentation surface the fetch and playback layers draw into.
type Renderer interface {
	playback.Display
	RenderResultList(tracks []models.Track)
	RenderNoResults(message string)
	RenderDetail(track models.Track)
}

// Searcher is the subset of [services.Resolver] the UI drives.
type Searcher interface {
	Resolve(ctx context.Context, keyword string) ([]models.Track, error)
	FetchTrackDetail(ctx context.Context, id string) (models.Track, error)
}

// Search resolves keyword and hands the outcome to r, reporting failures through n.
func Search(ctx context.Context, s Searcher, keyword string, r Renderer, n shared.Notifier) ([]models.Track, error) {
	if _, err := models.NewSearchQuery(keyword); err != nil {
		PresentSearch(r, n, keyword, nil, err)
		return nil, err
	}
	tracks, err := s.Resolve(ctx, keyword)
	PresentSearch(r, n, keyword, tracks, err)
	return tracks, err
}

// ShowDetail looks up one track and renders it.
func ShowDetail(ctx context.Context, s Searcher, id string, r Renderer, n shared.Notifier) (models.Track, error) {
	track, err := s.FetchTrackDetail(ctx, id)
	PresentDetail(r, n, track, err)
	return track, err
}

// PresentSearch renders a finished search: the result list, or a status line plus a notification on failure.
func PresentSearch(r Renderer, n shared.Notifier, keyword string, tracks []models.Track, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		n.Notify("Please enter a search keyword", shared.NoticeWarning, shared.DefaultNoticeDuration)
		r.RenderNoResults("Enter a song title or artist to search")
	case errors.Is(err, context.Canceled):
		r.RenderNoResults("Search cancelled")
	case err != nil:
		n.Notify(fmt.Sprintf("Search failed: %s", services.Message(err)), shared.NoticeError, shared.DefaultNoticeDuration)
		r.RenderNoResults("Search failed, please try again later")
	case len(tracks) == 0:
		r.RenderNoResults(fmt.Sprintf("No results for \"%s\"", strings.TrimSpace(keyword)))
	default:
		r.RenderResultList(tracks)
	}
}

// PresentDetail renders a looked-up track, or notifies on failure.
func PresentDetail(r Renderer, n shared.Notifier, track models.Track, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		n.Notify(fmt.Sprintf("Failed to load track details: %s", services.Message(err)), shared.NoticeError, shared.DefaultNoticeDuration)
	default:
		r.RenderDetail(track)
	}
}

// progressBar draws a bar of width cells with the handle at percent.
// It returns the bar and the handle's offset from the bar's first cell.
func progressBar(width int, percent float64) (string, int) {
	if width < 2 {
		width = 2
	}
	handle := int(math.Round(playback.Clamp01(percent/100) * float64(width-1)))
	bar := strings.Repeat("━", handle) + "●" + strings.Repeat("─", width-handle-1)
	return bar, handle
}

func playIcon(playing bool) string {
	if playing {
		return "▶"
	}
	return "■"
}

var _ Renderer = (*PlainRenderer)(nil)

// PlainRenderer writes results and a single redrawn progress line to an [io.Writer].
//
// Render methods have no error return; the first failure is kept and reported by [PlainRenderer.Err].
type PlainRenderer struct {
	mu       sync.Mutex
	w        io.Writer
	barWidth int
	playing  bool
	inline   bool
	err      error
}

// NewPlainRenderer creates a PlainRenderer. A non-positive barWidth uses 30 cells.
func NewPlainRenderer(w io.Writer, barWidth int) *PlainRenderer {
	if barWidth <= 0 {
		barWidth = 30
	}
	return &PlainRenderer{w: w, barWidth: barWidth}
}

func (p *PlainRenderer) RenderResultList(tracks []models.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	data, err := formatter.ExportToText(tracks)
	if err != nil {
		p.fail(fmt.Errorf("failed to render results: %w", err))
		p.fprintf("Could not display %d results\n", len(tracks))
		return
	}
	if _, err := p.w.Write(data); err != nil {
		p.fail(fmt.Errorf("failed to write output: %w", err))
	}
}

func (p *PlainRenderer) RenderNoResults(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	p.fprintf("%s\n", message)
}

func (p *PlainRenderer) RenderDetail(track models.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	for _, row := range detailRows(track) {
		p.fprintf("%-9s %s\n", row[0]+":", row[1])
	}
}

// UpdateProgressDisplay redraws the progress line in place.
func (p *PlainRenderer) UpdateProgressDisplay(current, total string, percent float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bar, _ := progressBar(p.barWidth, percent)
	fmt.Fprintf(p.w, "\r%s %s %s %s %3.0f%%", playIcon(p.playing), current, bar, total, percent)
	p.inline = true
}

func (p *PlainRenderer) UpdatePlayState(playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = playing
}

// Finish ends an open progress line.
func (p *PlainRenderer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
}

// Err returns the first rendering or write failure, if any.
func (p *PlainRenderer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *PlainRenderer) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *PlainRenderer) fprintf(format string, args ...any) {
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		p.fail(fmt.Errorf("failed to write output: %w", err))
	}
}

func (p *PlainRenderer) breakLine() {
	if p.inline {
		fmt.Fprintln(p.w)
		p.inline = false
	}
}

func detailRows(track models.Track) [][2]string {
	rows := [][2]string{
		{"Title", track.Title},
		{"Artist", track.Artist},
		{"Album", track.Album},
		{"Duration", shared.FormatDuration(track.Duration)},
	}
	if track.Size != "" {
		rows = append(rows, [2]string{"Size", track.Size})
	}
	if track.Quality != "" {
		rows = append(rows, [2]string{"Quality", track.Quality})
	}
	rows = append(rows, [2]string{"ID", track.ID})
	if !track.HasStream() {
		rows = append(rows, [2]string{"Stream", "unavailable"})
	}
	return rows
}

// LogNotifier writes notifications to a logger at a level matching their kind.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(message string, kind shared.NoticeKind, _ time.Duration) {
	switch kind {
	case shared.NoticeWarning:
		n.Logger.Warn(message)
	case shared.NoticeError:
		n.Logger.Error(message)
	default:
		n.Logger.Info(message)
	}
}
