// package models defines the track and query types shared by the fetch, playback, and UI layers
package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/melodyfetch/internal/shared"
)

// UnknownAlbum is used when the upstream omits the album name.
const UnknownAlbum = "unknown"

// Track is a song as returned by the metadata API.
//
// Tracks are values: they are built once from a response and never mutated afterwards.
type Track struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Duration  int    `json:"duration"` // Nominal length in seconds, 0 when unknown
	CoverURL  string `json:"cover_url,omitempty"`
	StreamURL string `json:"stream_url,omitempty"`
	Size      string `json:"size,omitempty"`
	Quality   string `json:"quality,omitempty"`
}

// NewTrack applies field defaults to a parsed track.
func NewTrack(t Track) Track {
	t.ID = strings.TrimSpace(t.ID)
	t.Title = strings.TrimSpace(t.Title)
	t.Artist = strings.TrimSpace(t.Artist)
	t.Album = strings.TrimSpace(t.Album)
	if t.Album == "" {
		t.Album = UnknownAlbum
	}
	if t.Duration < 0 {
		t.Duration = 0
	}
	return t
}

// HasStream reports whether the track can be previewed or downloaded.
func (t Track) HasStream() bool {
	return t.StreamURL != ""
}

// Filename is the local file name used when the track is downloaded.
func (t Track) Filename() string {
	return shared.SanitizeFilename(fmt.Sprintf("%s - %s", t.Title, t.Artist)) + ".mp3"
}

// String renders "Title - Artist".
func (t Track) String() string {
	return fmt.Sprintf("%s - %s", t.Title, t.Artist)
}

// ValidationError reports input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches [shared.ErrInvalidInput].
func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrInvalidInput
}

// SearchQuery is trimmed, non-empty search text.
type SearchQuery struct {
	text string
}

// NewSearchQuery trims raw and rejects empty or whitespace-only input.
func NewSearchQuery(raw string) (SearchQuery, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return SearchQuery{}, &ValidationError{Field: "keyword", Reason: "search keyword is empty"}
	}
	return SearchQuery{text: text}, nil
}

func (q SearchQuery) String() string { return q.text }

// IsTrackID reports whether the query is a bare numeric track id.
func (q SearchQuery) IsTrackID() bool {
	return IsTrackID(q.text)
}

// IsTrackID reports whether s consists only of ASCII digits.
func IsTrackID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
