package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

const (
	OpSearch = "search"
	OpDetail = "detail"

	DefaultPageSize = 10
)

// ResolverOpts configures a [Resolver]. Zero values select the defaults.
type ResolverOpts struct {
	Provider     Provider
	SearchPolicy RetryPolicy
	DetailPolicy RetryPolicy
	PageSize     int
	Rand         *rand.Rand // Source for randomized backoff; seed it for reproducible delays
	Sleeper      Sleeper
	Logger       *log.Logger
}

// Resolver wraps a [Provider] with bounded retries and normalizes every outcome into tracks or one terminal error.
//
// Attempts within one call are strictly sequential. Nothing is cached.
type Resolver struct {
	provider Provider
	search   RetryPolicy
	detail   RetryPolicy
	pageSize int
	sleep    Sleeper
	logger   *log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewResolver creates a Resolver. The provider is required.
func NewResolver(opts ResolverOpts) (*Resolver, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("%w: provider is required", shared.ErrMissingArgument)
	}
	if opts.SearchPolicy.MaxAttempts == 0 {
		opts.SearchPolicy = DefaultSearchPolicy
	}
	if opts.DetailPolicy.MaxAttempts == 0 {
		opts.DetailPolicy = DefaultDetailPolicy
	}
	if err := opts.SearchPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: search policy: %v", shared.ErrInvalidConfig, err)
	}
	if err := opts.DetailPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: detail policy: %v", shared.ErrInvalidConfig, err)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Sleeper == nil {
		opts.Sleeper = SleepContext
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Resolver{
		provider: opts.Provider,
		search:   opts.SearchPolicy,
		detail:   opts.DetailPolicy,
		pageSize: opts.PageSize,
		sleep:    opts.Sleeper,
		logger:   shared.WithLogger(opts.Logger, "component", "resolver"),
		rng:      opts.Rand,
	}, nil
}

// SearchTracks searches by keyword, retrying every failure kind under the search policy.
//
// Empty or whitespace-only keywords return a [models.ValidationError] without any request.
// The returned order is the upstream order and may be empty.
func (r *Resolver) SearchTracks(ctx context.Context, keyword string) ([]models.Track, error) {
	q, err := models.NewSearchQuery(keyword)
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	err = r.retry(ctx, OpSearch, r.search, func(ctx context.Context) error {
		res, err := r.provider.Search(ctx, q.String(), 1, r.pageSize)
		if err != nil {
			return err
		}
		tracks = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if tracks == nil {
		tracks = []models.Track{}
	}
	r.logger.Debug("search complete", "keyword", q.String(), "results", len(tracks))
	return tracks, nil
}

// FetchTrackDetail looks up one track by numeric id under the detail policy.
func (r *Resolver) FetchTrackDetail(ctx context.Context, id string) (models.Track, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Track{}, &models.ValidationError{Field: "id", Reason: "track id is empty"}
	}
	if !models.IsTrackID(id) {
		return models.Track{}, &models.ValidationError{Field: "id", Reason: fmt.Sprintf("track id %q is not numeric", id)}
	}

	var track models.Track
	err := r.retry(ctx, OpDetail, r.detail, func(ctx context.Context) error {
		res, err := r.provider.Lookup(ctx, id)
		if err != nil {
			return err
		}
		track = res
		return nil
	})
	if err != nil {
		return models.Track{}, err
	}
	return track, nil
}

// Resolve treats an all-digit keyword as a track id and anything else as a search.
func (r *Resolver) Resolve(ctx context.Context, keyword string) ([]models.Track, error) {
	q, err := models.NewSearchQuery(keyword)
	if err != nil {
		return nil, err
	}

	if q.IsTrackID() {
		track, err := r.FetchTrackDetail(ctx, q.String())
		if err != nil {
			return nil, err
		}
		return []models.Track{track}, nil
	}
	return r.SearchTracks(ctx, q.String())
}

func (r *Resolver) retry(ctx context.Context, op string, policy RetryPolicy, attempt func(context.Context) error) error {
	var lastErr error

	for n := 1; n <= policy.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := attempt(ctx)
		if err == nil {
			if n > 1 {
				r.logger.Info("recovered after retry", "op", op, "attempt", n)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		if n == policy.MaxAttempts {
			break
		}

		delay := r.backoff(policy)
		r.logAttempt(op, n, policy.MaxAttempts, delay, err)

		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}

	r.logger.Error("giving up", "op", op, "attempts", policy.MaxAttempts, "error", lastErr)
	return &ExhaustedRetriesError{Op: op, Attempts: policy.MaxAttempts, Last: lastErr}
}

func (r *Resolver) backoff(policy RetryPolicy) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return policy.Backoff(r.rng)
}

func (r *Resolver) logAttempt(op string, n, limit int, delay time.Duration, err error) {
	var appErr *ApplicationError
	if errors.As(err, &appErr) && appErr.Temporary() {
		r.logger.Warn("upstream temporarily unavailable", "op", op, "attempt", n, "max", limit, "retry_in", delay)
		return
	}
	r.logger.Warn("attempt failed", "op", op, "attempt", n, "max", limit, "retry_in", delay, "error", err)
}
