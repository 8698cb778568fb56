// package formatter renders track lists to output formats (CSV, Markdown, JSON, plain text) and writes download manifests
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

// Format is an output format for track lists.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// Formats lists the accepted --format values.
var Formats = []Format{FormatText, FormatJSON, FormatCSV, FormatMarkdown}

// ParseFormat converts a flag value to a [Format]. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// Render formats tracks found for keyword.
func Render(f Format, keyword string, tracks []models.Track) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ExportToJSON(tracks)
	case FormatCSV:
		return ExportToCSV(tracks)
	case FormatMarkdown:
		return ExportToMarkdown(keyword, tracks)
	default:
		return ExportToText(tracks)
	}
}

// ExportToCSV converts tracks to CSV with columns: ID, Title, Artist, Album, Duration, Size, Quality, URL
func ExportToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "Size", "Quality", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.ID,
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Duration),
			track.Size,
			track.Quality,
			track.StreamURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts tracks to a Markdown list headed by the search keyword
func ExportToMarkdown(keyword string, tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer

	if keyword != "" {
		buf.WriteString(fmt.Sprintf("# Results for \"%s\"\n\n", keyword))
	} else {
		buf.WriteString("# Results\n\n")
	}
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(tracks)))

	for i, track := range tracks {
		albumPart := ""
		if track.Album != "" && track.Album != models.UnknownAlbum {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n", i+1, track.Artist, track.Title, albumPart, shared.FormatDuration(track.Duration)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts tracks to a numbered plain text list
func ExportToText(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("%2d. %s - %s  [%s]  id=%s\n", i+1, track.Title, track.Artist, shared.FormatDuration(track.Duration), track.ID))
	}
	return buf.Bytes(), nil
}

// ExportToJSON converts tracks to indented JSON. An empty list encodes as [].
func ExportToJSON(tracks []models.Track) ([]byte, error) {
	if tracks == nil {
		tracks = []models.Track{}
	}
	return shared.MarshalJSON(tracks, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: failed to download image: status %d", shared.ErrHTTPStatus, resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ManifestEntry records the outcome for one requested track id.
type ManifestEntry struct {
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	File   string `json:"file,omitempty"`
	Cover  string `json:"cover,omitempty"`
	Bytes  int64  `json:"bytes,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Manifest summarizes a bulk download.
type Manifest struct {
	CreatedAt time.Time       `json:"created_at"`
	Directory string          `json:"directory"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Entries   []ManifestEntry `json:"entries"`
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m Manifest, path string) error {
	if path == "" {
		return fmt.Errorf("%w: manifest path is empty", shared.ErrInvalidArgument)
	}
	if m.Entries == nil {
		m.Entries = []ManifestEntry{}
	}

	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// WriteExport renders tracks in format f to path.
func WriteExport(f Format, keyword string, tracks []models.Track, path string) (string, error) {
	data, err := Render(f, keyword, tracks)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", f, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}
	return path, nil
}
