package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

// DefaultPollInterval is the progress refresh period while playing.
const DefaultPollInterval = 500 * time.Millisecond

// ErrSuperseded is returned by [Controller.Play] when a newer Play or a Teardown won the race while the stream was opening.
var ErrSuperseded = errors.New("playback request superseded")

// State is the lifecycle state of a playback session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Ticker drives progress polling. [NewTimeTicker] is the production implementation.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps [time.NewTicker].
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Session is the single live audio session owned by a [Controller].
//
// Invariant: poll is non-nil iff playing is true.
type Session struct {
	ID    string
	Track models.Track

	media     Media
	state     State
	playing   bool
	scrubbing bool
	cached    float64 // last finite duration reported by the engine
	poll      *poll
	cancel    context.CancelFunc
}

type poll struct {
	ticker Ticker
	done   chan struct{}
}

// Snapshot is a copy of the controller's visible state.
type Snapshot struct {
	SessionID string
	Track     models.Track
	State     State
	Playing   bool
	Scrubbing bool
	Progress  Progress
}

// Active reports whether a session exists.
func (s Snapshot) Active() bool { return s.SessionID != "" }

type ControllerOpts struct {
	Engine    Engine
	Display   Display
	Notifier  shared.Notifier
	Interval  time.Duration
	NewTicker func(time.Duration) Ticker
	Logger    *log.Logger
}

// Controller owns at most one playback session and keeps its progress display consistent
// across poll ticks, engine events, and user scrubbing.
//
// Display and Notifier are called without the controller lock held.
type Controller struct {
	engine    Engine
	display   Display
	notifier  shared.Notifier
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	logger    *log.Logger

	mu      sync.Mutex
	session *Session
	gen     uint64
	polls   int
	frames  uint64
	last    Progress

	renderMu         sync.Mutex
	renderedProgress uint64
	renderedState    uint64
}

type frame struct {
	seq      uint64
	progress *Progress
	playing  *bool
}

type nopDisplay struct{}

func (nopDisplay) UpdateProgressDisplay(string, string, float64) {}
func (nopDisplay) UpdatePlayState(bool)                          {}

// NewController creates a [Controller]. Only the engine is required.
func NewController(opts ControllerOpts) (*Controller, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("%w: playback engine", shared.ErrMissingArgument)
	}
	c := &Controller{
		engine:    opts.Engine,
		display:   opts.Display,
		notifier:  opts.Notifier,
		interval:  opts.Interval,
		newTicker: opts.NewTicker,
		logger:    opts.Logger,
	}
	if c.display == nil {
		c.display = nopDisplay{}
	}
	if c.notifier == nil {
		c.notifier = shared.NotifierFunc(func(string, shared.NoticeKind, time.Duration) {})
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	if c.newTicker == nil {
		c.newTicker = NewTimeTicker
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c, nil
}

// Play tears down any current session and starts loading track. Playback begins on the
// engine's can-play event.
func (c *Controller) Play(ctx context.Context, track models.Track) error {
	if !track.HasStream() {
		c.notifier.Notify(fmt.Sprintf("No preview available for %s", track.Title), shared.NoticeWarning, shared.DefaultNoticeDuration)
		return fmt.Errorf("%w: %s", shared.ErrNoStream, track.ID)
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.detachLocked()
	c.mu.Unlock()
	c.release(old)

	c.logger.Info("opening stream", "track", track.ID, "title", track.Title)
	media, err := c.engine.Open(ctx, track.StreamURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = &EngineError{Op: "open", Err: err}
		c.mu.Lock()
		current := c.gen == gen
		var f frame
		if current {
			f = c.frameLocked(&Progress{}, boolPtr(false))
		}
		c.mu.Unlock()
		if current {
			c.emit(f)
			c.failed(err)
		}
		return err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     shared.GenerateID(),
		Track:  track,
		media:  media,
		state:  StateLoading,
		cancel: cancel,
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		cancel()
		c.release(s)
		return ErrSuperseded
	}
	c.session = s
	p := progressAt(0, math.NaN(), 0, track.Duration)
	f := c.frameLocked(&p, boolPtr(false))
	c.mu.Unlock()

	go c.pump(pumpCtx, s)
	c.emit(f)
	return nil
}

// Toggle plays track if it is not the current session's track, and otherwise flips between paused and playing.
func (c *Controller) Toggle(ctx context.Context, track models.Track) error {
	c.mu.Lock()
	s := c.session
	same := s != nil && s.Track.ID == track.ID
	playing := same && s.playing
	c.mu.Unlock()

	switch {
	case !same:
		return c.Play(ctx, track)
	case playing:
		return c.Pause()
	default:
		return c.Resume()
	}
}

// Pause stops progress polling and pauses the engine.
func (c *Controller) Pause() error {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return shared.ErrNoSession
	}
	if !s.playing {
		c.mu.Unlock()
		return nil
	}
	c.stopPollLocked(s)
	s.playing = false
	s.state = StatePaused
	f := c.frameLocked(nil, boolPtr(false))
	c.mu.Unlock()

	c.emit(f)
	if err := s.media.Pause(); err != nil {
		c.logger.Warn("pause failed", "session", s.ID, "error", err)
		return &EngineError{Op: "pause", Err: err}
	}
	return nil
}

// Resume continues a paused session, or restarts an ended one from the beginning.
func (c *Controller) Resume() error {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return shared.ErrNoSession
	}
	if s.playing || (s.state != StatePaused && s.state != StateEnded) {
		c.mu.Unlock()
		return nil
	}
	rewind := s.state == StateEnded
	c.mu.Unlock()

	return c.start(s, rewind)
}

// Teardown destroys the current session, if any.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.gen++
	s := c.detachLocked()
	var f frame
	if s != nil {
		f = c.frameLocked(nil, boolPtr(false))
	}
	c.mu.Unlock()

	if s != nil {
		c.logger.Info("playback stopped", "session", s.ID, "track", s.Track.ID)
		c.release(s)
		c.emit(f)
	}
}

// BeginScrub starts a drag. Poll updates are suppressed until [Controller.EndScrub].
func (c *Controller) BeginScrub() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.session; s != nil {
		s.scrubbing = true
	}
}

// ScrubTo updates the display for a drag position without seeking.
func (c *Controller) ScrubTo(fraction float64) {
	c.mu.Lock()
	s := c.session
	if s == nil || !s.scrubbing {
		c.mu.Unlock()
		return
	}
	p := progressFraction(fraction, s.labelDuration())
	f := c.frameLocked(&p, nil)
	c.mu.Unlock()

	c.emit(f)
}

// EndScrub finishes a drag with exactly one seek to fraction.
func (c *Controller) EndScrub(fraction float64) error {
	c.mu.Lock()
	s := c.session
	if s == nil || !s.scrubbing {
		c.mu.Unlock()
		return nil
	}
	s.scrubbing = false
	c.mu.Unlock()

	return c.seek(s, fraction)
}

// SeekTo jumps to fraction of the track. Ignored while a drag is in progress.
func (c *Controller) SeekTo(fraction float64) error {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return shared.ErrNoSession
	}
	scrubbing := s.scrubbing
	c.mu.Unlock()

	if scrubbing {
		return nil
	}
	return c.seek(s, fraction)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return Snapshot{State: StateIdle}
	}
	return Snapshot{
		SessionID: s.ID,
		Track:     s.Track,
		State:     s.state,
		Playing:   s.playing,
		Scrubbing: s.scrubbing,
		Progress:  c.last,
	}
}

// ActivePolls returns the number of live poll timers.
func (c *Controller) ActivePolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

func (s *Session) labelDuration() float64 {
	label, _ := timing(math.NaN(), s.cached, s.Track.Duration)
	return label
}

func (c *Controller) pump(ctx context.Context, s *Session) {
	events := s.media.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// The engine went away without a teardown.
				c.abort(s, &EngineError{Op: "events", Err: io.ErrUnexpectedEOF})
				return
			}
			c.handle(s, ev)
		}
	}
}

func (c *Controller) handle(s *Session, ev Event) {
	c.logger.Debug("engine event", "session", s.ID, "event", ev.Kind, "duration", ev.Duration)

	switch ev.Kind {
	case EventMetadata:
		c.mu.Lock()
		if c.session != s {
			c.mu.Unlock()
			return
		}
		if finite(ev.Duration) && ev.Duration > 0 {
			s.cached = ev.Duration
		}
		var f frame
		if s.state == StateLoading || s.state == StateReady {
			s.state = StateReady
			p := progressAt(0, math.NaN(), s.cached, s.Track.Duration)
			f = c.frameLocked(&p, nil)
		}
		c.mu.Unlock()
		c.emit(f)
	case EventCanPlay:
		c.mu.Lock()
		ok := c.session == s && (s.state == StateLoading || s.state == StateReady)
		c.mu.Unlock()
		if ok {
			c.start(s, false)
		}
	case EventEnded:
		c.mu.Lock()
		if c.session != s {
			c.mu.Unlock()
			return
		}
		c.stopPollLocked(s)
		s.playing = false
		s.state = StateEnded
		label := s.labelDuration()
		p := progressAt(label, math.NaN(), s.cached, s.Track.Duration)
		f := c.frameLocked(&p, boolPtr(false))
		c.mu.Unlock()

		c.logger.Info("playback ended", "session", s.ID, "track", s.Track.ID)
		c.emit(f)
	case EventError:
		c.abort(s, &EngineError{Op: "load", Err: ev.Err})
	}
}

// abort reverts to Idle and reports err, unless s is no longer the current session.
func (c *Controller) abort(s *Session, err error) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	c.detachLocked()
	f := c.frameLocked(&Progress{}, boolPtr(false))
	c.mu.Unlock()

	c.release(s)
	c.emit(f)
	c.failed(err)
}

// start calls Media.Play and, on success, enters Playing with a fresh poll timer.
func (c *Controller) start(s *Session, rewind bool) error {
	if rewind {
		if err := s.media.Seek(0); err != nil {
			c.logger.Warn("rewind failed", "session", s.ID, "error", err)
		}
	}

	if err := s.media.Play(); err != nil {
		err = &EngineError{Op: "play", Err: err}
		c.mu.Lock()
		if c.session != s {
			c.mu.Unlock()
			return nil
		}
		c.detachLocked()
		f := c.frameLocked(&Progress{}, boolPtr(false))
		c.mu.Unlock()

		c.release(s)
		c.emit(f)
		c.failed(err)
		return err
	}

	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return nil
	}
	s.state = StatePlaying
	s.playing = true
	c.startPollLocked(s)
	f := c.frameLocked(nil, boolPtr(true))
	c.mu.Unlock()

	c.logger.Info("playback started", "session", s.ID, "track", s.Track.ID)
	c.emit(f)
	return nil
}

func (c *Controller) seek(s *Session, fraction float64) error {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return nil
	}
	if s.state == StateEnded {
		s.state = StatePaused
	}
	label := s.labelDuration()
	p := progressFraction(fraction, label)
	f := c.frameLocked(&p, nil)
	c.mu.Unlock()

	c.emit(f)
	if label <= 0 {
		return nil
	}

	target := Clamp01(fraction) * label
	if err := s.media.Seek(target); err != nil {
		c.logger.Warn("seek failed", "session", s.ID, "target", target, "error", err)
		return &EngineError{Op: "seek", Err: err}
	}
	return nil
}

func (c *Controller) startPollLocked(s *Session) {
	if s.poll != nil {
		return
	}
	p := &poll{ticker: c.newTicker(c.interval), done: make(chan struct{})}
	s.poll = p
	c.polls++
	go c.runPoll(s, p)
}

// stopPollLocked stops the ticker before returning; the poll goroutine exits on its own.
func (c *Controller) stopPollLocked(s *Session) {
	if s.poll == nil {
		return
	}
	s.poll.ticker.Stop()
	close(s.poll.done)
	s.poll = nil
	c.polls--
}

func (c *Controller) runPoll(s *Session, p *poll) {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C():
			c.tick(s, p)
		}
	}
}

func (c *Controller) tick(s *Session, p *poll) {
	c.mu.Lock()
	live := c.session == s && s.poll == p && !s.scrubbing
	c.mu.Unlock()
	if !live {
		return
	}

	pos, dur := s.media.Position(), s.media.Duration()

	c.mu.Lock()
	if c.session != s || s.poll != p || s.scrubbing {
		c.mu.Unlock()
		return
	}
	if finite(dur) && dur > 0 {
		s.cached = dur
	}
	pr := progressAt(pos, dur, s.cached, s.Track.Duration)
	f := c.frameLocked(&pr, nil)
	c.mu.Unlock()

	c.emit(f)
}

// detachLocked removes the current session and stops its goroutines. The caller releases the media.
func (c *Controller) detachLocked() *Session {
	s := c.session
	if s == nil {
		return nil
	}
	c.stopPollLocked(s)
	s.cancel()
	s.state = StateIdle
	s.playing = false
	s.scrubbing = false
	c.session = nil
	c.last = Progress{}
	return s
}

func (c *Controller) release(s *Session) {
	if s == nil {
		return
	}
	if err := s.media.Close(); err != nil {
		c.logger.Debug("close media", "session", s.ID, "error", err)
	}
}

func (c *Controller) failed(err error) {
	c.logger.Error("playback failed", "error", err)
	c.notifier.Notify("Playback failed, please try again later", shared.NoticeError, shared.DefaultNoticeDuration)
}

func (c *Controller) frameLocked(p *Progress, playing *bool) frame {
	c.frames++
	if p != nil && c.session != nil {
		c.last = *p
	}
	return frame{seq: c.frames, progress: p, playing: playing}
}

// emit forwards a frame to the display, skipping any part older than what was already shown.
func (c *Controller) emit(f frame) {
	if f.seq == 0 {
		return
	}

	c.renderMu.Lock()
	progress, playing := f.progress, f.playing
	if progress != nil {
		if f.seq < c.renderedProgress {
			progress = nil
		} else {
			c.renderedProgress = f.seq
		}
	}
	if playing != nil {
		if f.seq < c.renderedState {
			playing = nil
		} else {
			c.renderedState = f.seq
		}
	}
	c.renderMu.Unlock()

	if progress != nil {
		c.display.UpdateProgressDisplay(progress.Current, progress.Total, progress.Percent)
	}
	if playing != nil {
		c.display.UpdatePlayState(*playing)
	}
}

func boolPtr(v bool) *bool { return &v }
