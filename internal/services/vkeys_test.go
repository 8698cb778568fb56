package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
	tu "github.com/desertthunder/melodyfetch/internal/testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts VkeysOpts) *VkeysClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts.BaseURL = server.URL
	opts.Logger = shared.NewLogger(io.Discard)
	return NewVkeysClient(opts)
}

func TestVkeysClient(t *testing.T) {
	t.Run("Search", func(t *testing.T) {
		t.Run("parses tracks in upstream order", func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("word") != "晴天" || q.Get("page") != "1" || q.Get("num") != "10" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				if r.Header.Get("User-Agent") != DefaultUserAgent {
					t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"code":200,"msg":"ok","data":[
					{"id":186016,"song":"晴天","singer":"周杰伦","album":"叶惠美","interval":"4分29秒","cover":"https://p1.music.126.net/a.jpg"},
					{"id":"1901371647","song":"晴天 (Live)","singer":["周杰伦","五月天"],"album":"","interval":"03:35"}
				]}`))
			}, VkeysOpts{})

			tracks, err := client.Search(context.Background(), "晴天", 1, 10)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tracks) != 2 {
				t.Fatalf("expected 2 tracks, got %d", len(tracks))
			}

			first := tracks[0]
			if first.ID != "186016" || first.Title != "晴天" || first.Artist != "周杰伦" || first.Album != "叶惠美" {
				t.Errorf("unexpected first track %+v", first)
			}
			if first.Duration != 269 {
				t.Errorf("expected 269s, got %d", first.Duration)
			}

			second := tracks[1]
			if second.ID != "1901371647" || second.Artist != "周杰伦/五月天" {
				t.Errorf("unexpected second track %+v", second)
			}
			if second.Album != models.UnknownAlbum {
				t.Errorf("expected default album, got %q", second.Album)
			}
			if second.Duration != 215 {
				t.Errorf("expected 215s, got %d", second.Duration)
			}
		})

		t.Run("null data is an empty success", func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":200,"msg":"ok","data":null}`))
			}, VkeysOpts{})

			tracks, err := client.Search(context.Background(), "nothing", 1, 10)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tracks == nil || len(tracks) != 0 {
				t.Errorf("expected empty non-nil slice, got %#v", tracks)
			}
		})
	})

	t.Run("Lookup", func(t *testing.T) {
		t.Run("parses a single track object", func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("id") != "42" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				w.Write([]byte(`{"code":200,"msg":"ok","data":{"song":"Answer","singer":"Deep","interval":"215","url":"https://m.example.com/42.mp3","size":"8.2MB","quality":"standard"}}`))
			}, VkeysOpts{})

			track, err := client.Lookup(context.Background(), "42")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if track.ID != "42" {
				t.Errorf("expected id fallback to 42, got %q", track.ID)
			}
			if track.StreamURL != "https://m.example.com/42.mp3" || track.Size != "8.2MB" || track.Quality != "standard" {
				t.Errorf("unexpected track %+v", track)
			}
			if track.Duration != 215 {
				t.Errorf("expected 215s, got %d", track.Duration)
			}
		})

		t.Run("missing data is an application failure", func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":200,"msg":"ok","data":null}`))
			}, VkeysOpts{})

			_, err := client.Lookup(context.Background(), "42")
			var appErr *ApplicationError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected ApplicationError, got %v", err)
			}
			if !appErr.NotFound || !errors.Is(err, shared.ErrTrackNotFound) {
				t.Errorf("expected a not-found failure, got %+v", appErr)
			}
			if strings.Contains(err.Error(), "code 200") {
				t.Errorf("success code leaked into %q", err.Error())
			}
			if !strings.Contains(err.Error(), "42") || !strings.Contains(Message(err), "track not found") {
				t.Errorf("unexpected message %q", err.Error())
			}
		})
	})

	t.Run("classifies failures", func(t *testing.T) {
		tests := []struct {
			name     string
			status   int
			body     string
			sentinel error
			check    func(t *testing.T, err error)
		}{
			{
				name:     "http status",
				status:   http.StatusInternalServerError,
				body:     "boom",
				sentinel: shared.ErrHTTPStatus,
				check: func(t *testing.T, err error) {
					var httpErr *HTTPError
					if !errors.As(err, &httpErr) || httpErr.Status != 500 {
						t.Errorf("expected HTTPError 500, got %v", err)
					}
				},
			},
			{
				name:     "temporarily unavailable code",
				status:   http.StatusOK,
				body:     `{"code":503,"msg":"busy","data":null}`,
				sentinel: shared.ErrAPIRequest,
				check: func(t *testing.T, err error) {
					var appErr *ApplicationError
					if !errors.As(err, &appErr) || !appErr.Temporary() || appErr.Message != "busy" {
						t.Errorf("expected temporary ApplicationError, got %v", err)
					}
				},
			},
			{
				name:     "other application code",
				status:   http.StatusOK,
				body:     `{"code":400,"msg":"bad word","data":null}`,
				sentinel: shared.ErrAPIRequest,
				check: func(t *testing.T, err error) {
					var appErr *ApplicationError
					if !errors.As(err, &appErr) || appErr.Temporary() || appErr.Code != 400 {
						t.Errorf("expected permanent ApplicationError 400, got %v", err)
					}
					if Message(err) != "bad word" {
						t.Errorf("expected upstream message, got %q", Message(err))
					}
				},
			},
			{
				name:     "malformed body",
				status:   http.StatusOK,
				body:     `<html>oops</html>`,
				sentinel: shared.ErrTransport,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				}, VkeysOpts{})

				_, err := client.Search(context.Background(), "x", 1, 10)
				if !errors.Is(err, tt.sentinel) {
					t.Fatalf("expected %v, got %v", tt.sentinel, err)
				}
				if tt.check != nil {
					tt.check(t, err)
				}
			})
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		client := NewVkeysClient(VkeysOpts{
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))},
			Logger:     shared.NewLogger(io.Discard),
		})

		_, err := client.Lookup(context.Background(), "1")
		var tErr *TransportError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected TransportError, got %v", err)
		}
	})

	t.Run("body read failure", func(t *testing.T) {
		resp := &http.Response{StatusCode: 200, Body: &tu.FCloser{}, Header: http.Header{}}
		client := NewVkeysClient(VkeysOpts{
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)},
			Logger:     shared.NewLogger(io.Discard),
		})

		_, err := client.Search(context.Background(), "x", 1, 10)
		if !errors.Is(err, shared.ErrTransport) {
			t.Fatalf("expected transport error, got %v", err)
		}
	})

	t.Run("cancelled context is returned as is", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":200,"data":[]}`))
		}, VkeysOpts{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Search(ctx, "x", 1, 10)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if errors.Is(err, shared.ErrTransport) {
			t.Error("cancellation should not be classified as transport failure")
		}
	})

	t.Run("replays configured headers", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Referer") != "https://music.163.com/" {
				t.Errorf("missing referer, got %q", r.Header.Get("Referer"))
			}
			if r.Header.Get("Cookie") != "NMTID=abc" {
				t.Errorf("missing cookie, got %q", r.Header.Get("Cookie"))
			}
			if r.Header.Get("User-Agent") != "Custom/1.0" {
				t.Errorf("headers file should override user agent, got %q", r.Header.Get("User-Agent"))
			}
			if r.Header.Get("Accept-Language") != "zh-CN" {
				t.Errorf("unexpected accept-language %q", r.Header.Get("Accept-Language"))
			}
			w.Write([]byte(`{"code":200,"data":[]}`))
		}, VkeysOpts{
			AcceptLanguage: "zh-CN",
			Headers: &shared.RequestHeaders{
				Headers: map[string]string{"referer": "https://music.163.com/", "user-agent": "Custom/1.0"},
				Cookie:  "NMTID=abc",
			},
		})

		if _, err := client.Search(context.Background(), "x", 1, 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestParseInterval(t *testing.T) {
	tests := map[string]int{
		"":          0,
		"215":       215,
		"215.9":     215,
		"-3":        0,
		"NaN":       0,
		"03:35":     215,
		"1:02:03":   3723,
		"4分29秒":     269,
		"29秒":       29,
		"4分":        240,
		"1时0分5秒":    3605,
		"unknown":   0,
		"3:xx":      0,
		"  03:35  ": 215,
	}
	for in, want := range tests {
		if got := ParseInterval(in); got != want {
			t.Errorf("ParseInterval(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestMessage(t *testing.T) {
	if got := Message(&HTTPError{Status: 502}); got != "HTTP 502" {
		t.Errorf("unexpected message %q", got)
	}
	if got := Message(&TransportError{Err: errors.New("dial")}); got != "network error" {
		t.Errorf("unexpected message %q", got)
	}
	wrapped := &ExhaustedRetriesError{Op: OpSearch, Attempts: 3, Last: &ApplicationError{Code: 400, Message: "no such song"}}
	if got := Message(wrapped); got != "no such song" {
		t.Errorf("expected wrapped upstream message, got %q", got)
	}
	if !strings.Contains(wrapped.Error(), "after 3 attempts") {
		t.Errorf("unexpected error text %q", wrapped.Error())
	}
}
