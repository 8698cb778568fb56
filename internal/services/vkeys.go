// Client for the vkeys.cn NetEase music metadata API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL         = "https://api.vkeys.cn/v2/music/netease"
	DefaultUserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	DefaultUnavailableCode = 503

	successCode  = 200
	maxErrorBody = 256
)

// Provider performs a single, unretried request against a music metadata API.
type Provider interface {
	Search(ctx context.Context, keyword string, page, pageSize int) ([]models.Track, error)
	Lookup(ctx context.Context, id string) (models.Track, error)
}

// VkeysOpts configures a [VkeysClient].
type VkeysOpts struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerSecond float64 // Zero disables pacing
	UserAgent         string
	AcceptLanguage    string
	Headers           *shared.RequestHeaders // Replayed on every request, overriding the defaults
	UnavailableCode   int
	Logger            *log.Logger
}

// VkeysClient talks to the vkeys.cn NetEase endpoint.
//
// Every call is one attempt classified as success, [TransportError], [HTTPError], or [ApplicationError].
type VkeysClient struct {
	baseURL         string
	httpClient      *http.Client
	limiter         *rate.Limiter
	headers         http.Header
	unavailableCode int
	logger          *log.Logger
}

// NewVkeysClient creates a client, filling unset options with defaults.
func NewVkeysClient(opts VkeysOpts) *VkeysClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.UnavailableCode == 0 {
		opts.UnavailableCode = DefaultUnavailableCode
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	headers := http.Header{}
	headers.Set("User-Agent", opts.UserAgent)
	headers.Set("Accept", "application/json, text/plain, */*")
	if opts.AcceptLanguage != "" {
		headers.Set("Accept-Language", opts.AcceptLanguage)
	}
	if opts.Headers != nil {
		for _, k := range opts.Headers.Keys() {
			headers.Set(k, opts.Headers.Headers[k])
		}
		if opts.Headers.Cookie != "" {
			headers.Set("Cookie", opts.Headers.Cookie)
		}
	}

	return &VkeysClient{
		baseURL:         strings.TrimRight(opts.BaseURL, "?"),
		httpClient:      opts.HTTPClient,
		limiter:         rate.NewLimiter(limit, 1),
		headers:         headers,
		unavailableCode: opts.UnavailableCode,
		logger:          shared.WithLogger(opts.Logger, "component", "vkeys"),
	}
}

// envelope is the payload shape shared by every endpoint.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// Search runs one keyword search. An empty result set is a success.
func (c *VkeysClient) Search(ctx context.Context, keyword string, page, pageSize int) ([]models.Track, error) {
	q := url.Values{}
	q.Set("word", keyword)
	q.Set("page", strconv.Itoa(page))
	q.Set("num", strconv.Itoa(pageSize))

	env, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}

	raw, err := decodeTrackList(env.Data)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to decode search data: %w", err)}
	}

	tracks := make([]models.Track, 0, len(raw))
	for _, r := range raw {
		tracks = append(tracks, r.toTrack())
	}
	return tracks, nil
}

// Lookup fetches one track by id, including its stream URL.
func (c *VkeysClient) Lookup(ctx context.Context, id string) (models.Track, error) {
	q := url.Values{}
	q.Set("id", id)

	env, err := c.get(ctx, q)
	if err != nil {
		return models.Track{}, err
	}

	raw, err := decodeTrackList(env.Data)
	if err != nil {
		return models.Track{}, &TransportError{Err: fmt.Errorf("failed to decode track data: %w", err)}
	}
	if len(raw) == 0 {
		return models.Track{}, &ApplicationError{Code: env.Code, NotFound: true, Message: fmt.Sprintf("%v: %s", shared.ErrTrackNotFound, id)}
	}

	track := raw[0].toTrack()
	if track.ID == "" {
		track.ID = id
	}
	return track, nil
}

func (c *VkeysClient) get(ctx context.Context, q url.Values) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Err: err}
	}

	apiURL := c.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	c.logger.Debug("request", "url", apiURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: truncate(string(bytes.TrimSpace(body)), maxErrorBody)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if env.Code != successCode {
		return nil, &ApplicationError{
			Code:      env.Code,
			Message:   env.Message,
			temporary: env.Code == c.unavailableCode,
		}
	}

	return &env, nil
}

// rawTrack mirrors the upstream track object. Fields arrive as strings or numbers depending on the endpoint.
type rawTrack struct {
	ID       flexString `json:"id"`
	Song     flexString `json:"song"`
	Singer   flexString `json:"singer"`
	Album    flexString `json:"album"`
	Interval flexString `json:"interval"`
	Cover    flexString `json:"cover"`
	URL      flexString `json:"url"`
	Size     flexString `json:"size"`
	Quality  flexString `json:"quality"`
}

func (r rawTrack) toTrack() models.Track {
	return models.NewTrack(models.Track{
		ID:        string(r.ID),
		Title:     string(r.Song),
		Artist:    string(r.Singer),
		Album:     string(r.Album),
		Duration:  ParseInterval(string(r.Interval)),
		CoverURL:  string(r.Cover),
		StreamURL: string(r.URL),
		Size:      string(r.Size),
		Quality:   string(r.Quality),
	})
}

// decodeTrackList accepts null, a single object, or an array of objects.
func decodeTrackList(data json.RawMessage) ([]rawTrack, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	if data[0] == '{' {
		var one rawTrack
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, err
		}
		return []rawTrack{one}, nil
	}

	var many []rawTrack
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// flexString decodes a JSON string, number, bool, or array of those into a string. Arrays are joined with "/".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '[':
		var parts []flexString
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		names := make([]string, 0, len(parts))
		for _, p := range parts {
			if p != "" {
				names = append(names, string(p))
			}
		}
		*f = flexString(strings.Join(names, "/"))
	case '{':
		var named struct {
			Name flexString `json:"name"`
		}
		if err := json.Unmarshal(b, &named); err != nil {
			return err
		}
		*f = named.Name
	default:
		*f = flexString(b)
	}
	return nil
}

var cjkInterval = regexp.MustCompile(`^(?:(\d+)时)?(?:(\d+)分)?(?:(\d+)秒)?$`)

// ParseInterval converts the upstream interval into seconds.
//
// Accepts plain seconds ("215", "215.4"), clock form ("3:35", "1:02:03"), and "3分35秒". Anything else is 0.
func ParseInterval(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return int(f)
	}

	if strings.Contains(s, ":") {
		total := 0
		for _, part := range strings.Split(s, ":") {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				return 0
			}
			total = total*60 + n
		}
		return total
	}

	if m := cjkInterval.FindStringSubmatch(s); m != nil {
		total := 0
		for i, mul := range []int{3600, 60, 1} {
			if m[i+1] == "" {
				continue
			}
			n, _ := strconv.Atoi(m[i+1])
			total += n * mul
		}
		return total
	}

	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
