// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/melodyfetch/internal/models"
)

// MockProvider is a scripted, single-attempt track provider.
//
// SearchErrs and LookupErrs hold the outcome of each attempt in order; a nil entry, or running past the end of the list, is a success.
type MockProvider struct {
	mu          sync.Mutex
	SearchErrs  []error
	LookupErrs  []error
	Tracks      []models.Track
	Track       models.Track
	searchCalls int
	lookupCalls int
	keywords    []string
	ids         []string
}

func (m *MockProvider) Search(ctx context.Context, keyword string, page, pageSize int) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.searchCalls++
	m.keywords = append(m.keywords, keyword)
	if n := m.searchCalls; n <= len(m.SearchErrs) && m.SearchErrs[n-1] != nil {
		return nil, m.SearchErrs[n-1]
	}
	return m.Tracks, nil
}

func (m *MockProvider) Lookup(ctx context.Context, id string) (models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookupCalls++
	m.ids = append(m.ids, id)
	if n := m.lookupCalls; n <= len(m.LookupErrs) && m.LookupErrs[n-1] != nil {
		return models.Track{}, m.LookupErrs[n-1]
	}
	track := m.Track
	if track.ID == "" {
		track.ID = id
	}
	return track, nil
}

// SearchCalls returns the number of Search attempts made.
func (m *MockProvider) SearchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchCalls
}

// LookupCalls returns the number of Lookup attempts made.
func (m *MockProvider) LookupCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookupCalls
}

// Keywords returns every keyword passed to Search.
func (m *MockProvider) Keywords() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keywords...)
}

// RecordingSleeper records requested delays without sleeping.
type RecordingSleeper struct {
	mu      sync.Mutex
	delays  []time.Duration
	OnSleep func() // Called before returning, e.g. to cancel a context mid-backoff
}

func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()

	if s.OnSleep != nil {
		s.OnSleep()
	}
	return ctx.Err()
}

// Delays returns the recorded delays.
func (s *RecordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// SampleTracks returns n tracks with predictable ids and titles.
func SampleTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		id := string(rune('1' + i))
		tracks[i] = models.Track{
			ID:        "10" + id,
			Title:     "Song " + id,
			Artist:    "Artist " + id,
			Album:     "Album " + id,
			Duration:  200 + i,
			StreamURL: "https://example.com/" + id + ".mp3",
		}
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFileWithPrefix(t *testing.T, dir, prefix string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			t.Errorf("unexpected file %s in %s", e.Name(), dir)
		}
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
