package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
	tu "github.com/desertthunder/melodyfetch/internal/testing"
)

func TestDownloader(t *testing.T) {
	audio := strings.Repeat("ID3", 4096)

	t.Run("writes the stream to title - artist.mp3", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") == "" {
				t.Error("expected a user agent")
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
			w.Write([]byte(audio))
		}))
		defer server.Close()

		dir := filepath.Join(t.TempDir(), "music")
		track := models.Track{ID: "1", Title: "晴天", Artist: "周杰伦", StreamURL: server.URL + "/1.mp3"}

		var last, total int64
		d := NewDownloader(nil, "", shared.NewLogger(io.Discard))
		path, err := d.Download(context.Background(), track, dir, func(received, n int64) {
			last, total = received, n
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if path != filepath.Join(dir, "晴天 - 周杰伦.mp3") {
			t.Errorf("unexpected path %s", path)
		}
		if got := tu.MustReadFile(t, path); got != audio {
			t.Errorf("file content mismatch: %d bytes", len(got))
		}
		if last != int64(len(audio)) {
			t.Errorf("expected final progress %d, got %d", len(audio), last)
		}
		if total != int64(len(audio)) {
			t.Errorf("expected total %d, got %d", len(audio), total)
		}
		tu.AssertNoFileWithPrefix(t, dir, ".melodyfetch-")
	})

	t.Run("track without stream", func(t *testing.T) {
		d := NewDownloader(nil, "", shared.NewLogger(io.Discard))
		_, err := d.Download(context.Background(), models.Track{Title: "x"}, t.TempDir(), nil)
		if !errors.Is(err, shared.ErrNoStream) {
			t.Errorf("expected ErrNoStream, got %v", err)
		}
	})

	t.Run("http failure leaves no file behind", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		dir := t.TempDir()
		d := NewDownloader(server.Client(), "", shared.NewLogger(io.Discard))
		_, err := d.Download(context.Background(), models.Track{Title: "a", Artist: "b", StreamURL: server.URL}, dir, nil)

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.Status != 404 {
			t.Fatalf("expected HTTPError 404, got %v", err)
		}
		tu.AssertNoFileWithPrefix(t, dir, "a - b")
	})

	t.Run("interrupted body leaves no partial file", func(t *testing.T) {
		resp := &http.Response{StatusCode: 200, Body: &tu.FCloser{}, Header: http.Header{}, ContentLength: -1}
		client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}

		dir := t.TempDir()
		d := NewDownloader(client, "", shared.NewLogger(io.Discard))
		_, err := d.Download(context.Background(), models.Track{Title: "a", Artist: "b", StreamURL: "https://example.com/a.mp3"}, dir, nil)

		if !errors.Is(err, shared.ErrTransport) {
			t.Fatalf("expected transport error, got %v", err)
		}
		tu.AssertNoFileWithPrefix(t, dir, ".melodyfetch-")
		tu.AssertNoFileWithPrefix(t, dir, "a - b")
	})
}
