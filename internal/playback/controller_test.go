package playback

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

type fakeMedia struct {
	mu      sync.Mutex
	events  chan Event
	pos     float64
	dur     float64
	playErr error
	plays   int
	pauses  int
	seeks   []float64
	closed  bool
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{events: make(chan Event, 8), dur: math.NaN()}
}

func (m *fakeMedia) Events() <-chan Event { return m.events }

func (m *fakeMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays++
	return m.playErr
}

func (m *fakeMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	return nil
}

func (m *fakeMedia) Seek(seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, seconds)
	m.pos = seconds
	return nil
}

func (m *fakeMedia) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *fakeMedia) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dur
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeMedia) set(pos, dur float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos, m.dur = pos, dur
}

func (m *fakeMedia) counts() (plays, pauses int, seeks []float64, closed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plays, m.pauses, append([]float64(nil), m.seeks...), m.closed
}

type fakeEngine struct {
	mu      sync.Mutex
	media   []*fakeMedia
	urls    []string
	openErr error
	playErr error
	opening chan struct{} // signalled when Open starts, if set
	gate    chan struct{} // Open blocks until closed, if set
}

func (e *fakeEngine) Open(ctx context.Context, url string) (Media, error) {
	if e.opening != nil {
		e.opening <- struct{}{}
	}
	if e.gate != nil {
		<-e.gate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.urls = append(e.urls, url)
	if e.openErr != nil {
		return nil, e.openErr
	}
	m := newFakeMedia()
	m.playErr = e.playErr
	e.media = append(e.media, m)
	return m, nil
}

func (e *fakeEngine) opened() []*fakeMedia {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*fakeMedia(nil), e.media...)
}

type manualTicker struct {
	c chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fire delivers two ticks. The second send only completes after the first tick was fully handled.
func (t *manualTicker) fire(tb testing.TB) {
	tb.Helper()
	for range 2 {
		select {
		case t.c <- time.Now():
		case <-time.After(2 * time.Second):
			tb.Fatal("poll goroutine did not receive tick")
		}
	}
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (f *tickerFactory) New(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &manualTicker{c: make(chan time.Time)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) last(tb testing.TB) *manualTicker {
	tb.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		tb.Fatal("no ticker created")
	}
	return f.tickers[len(f.tickers)-1]
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

type recordingDisplay struct {
	mu     sync.Mutex
	frames []Progress
	states []bool
}

func (d *recordingDisplay) UpdateProgressDisplay(current, total string, percent float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, Progress{Current: current, Total: total, Percent: percent})
}

func (d *recordingDisplay) UpdatePlayState(playing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = append(d.states, playing)
}

func (d *recordingDisplay) lastFrame() Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return Progress{}
	}
	return d.frames[len(d.frames)-1]
}

func (d *recordingDisplay) frameCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

func (d *recordingDisplay) lastState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.states) > 0 && d.states[len(d.states)-1]
}

type notice struct {
	message string
	kind    shared.NoticeKind
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(message string, kind shared.NoticeKind, d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{message, kind})
}

func (n *recordingNotifier) kinds() []shared.NoticeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var kinds []shared.NoticeKind
	for _, x := range n.notices {
		kinds = append(kinds, x.kind)
	}
	return kinds
}

type harness struct {
	c        *Controller
	engine   *fakeEngine
	tickers  *tickerFactory
	display  *recordingDisplay
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		engine:   &fakeEngine{},
		tickers:  &tickerFactory{},
		display:  &recordingDisplay{},
		notifier: &recordingNotifier{},
	}
	c, err := NewController(ControllerOpts{
		Engine:    h.engine,
		Display:   h.display,
		Notifier:  h.notifier,
		NewTicker: h.tickers.New,
		Logger:    shared.NewLogger(io.Discard),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.c = c
	t.Cleanup(c.Teardown)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sampleTrack(id string, duration int) models.Track {
	return models.Track{ID: id, Title: "Song " + id, Artist: "Artist", Duration: duration, StreamURL: "https://example.com/" + id + ".mp3"}
}

// playing starts track and drives it to the Playing state.
func (h *harness) playing(t *testing.T, track models.Track, metadata float64) *fakeMedia {
	t.Helper()
	if err := h.c.Play(context.Background(), track); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	media := h.engine.opened()
	m := media[len(media)-1]
	m.events <- Event{Kind: EventMetadata, Duration: metadata}
	m.events <- Event{Kind: EventCanPlay}
	waitFor(t, "playing state", func() bool { return h.c.Snapshot().State == StatePlaying })
	return m
}

func TestController(t *testing.T) {
	t.Run("NewController requires an engine", func(t *testing.T) {
		_, err := NewController(ControllerOpts{})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("track without stream warns and opens nothing", func(t *testing.T) {
		h := newHarness(t)
		err := h.c.Play(context.Background(), models.Track{ID: "1", Title: "Silent"})
		if !errors.Is(err, shared.ErrNoStream) {
			t.Fatalf("expected ErrNoStream, got %v", err)
		}
		if len(h.engine.opened()) != 0 {
			t.Error("engine should not be opened")
		}
		if kinds := h.notifier.kinds(); len(kinds) != 1 || kinds[0] != shared.NoticeWarning {
			t.Errorf("expected one warning, got %v", kinds)
		}
	})

	t.Run("loading to playing", func(t *testing.T) {
		h := newHarness(t)
		track := sampleTrack("1", 215)
		if err := h.c.Play(context.Background(), track); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := h.c.Snapshot()
		if snap.State != StateLoading || snap.Playing || !snap.Active() {
			t.Fatalf("expected loading session, got %+v", snap)
		}
		if f := h.display.lastFrame(); f.Total != "03:35" || f.Current != "00:00" {
			t.Errorf("expected nominal total before metadata, got %+v", f)
		}

		m := h.engine.opened()[0]
		m.events <- Event{Kind: EventMetadata, Duration: 200}
		waitFor(t, "ready", func() bool { return h.c.Snapshot().State == StateReady })
		if f := h.display.lastFrame(); f.Total != "03:20" {
			t.Errorf("expected metadata duration, got %+v", f)
		}

		m.events <- Event{Kind: EventCanPlay}
		waitFor(t, "playing", func() bool { return h.c.Snapshot().State == StatePlaying })

		if plays, _, _, _ := m.counts(); plays != 1 {
			t.Errorf("expected 1 play call, got %d", plays)
		}
		if h.c.ActivePolls() != 1 {
			t.Errorf("expected 1 poll timer, got %d", h.c.ActivePolls())
		}
		waitFor(t, "play affordance", h.display.lastState)
	})

	t.Run("tick before metadata uses nominal duration at 0%", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 215), math.NaN())
		m.set(42, math.Inf(1))

		h.tickers.last(t).fire(t)

		f := h.display.lastFrame()
		if f.Total != "03:35" || f.Current != "00:00" || f.Percent != 0 {
			t.Errorf("unexpected frame %+v", f)
		}
	})

	t.Run("tick reports position against engine duration", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 215), math.NaN())
		m.set(50, 200)

		h.tickers.last(t).fire(t)

		f := h.display.lastFrame()
		if f.Current != "00:50" || f.Total != "03:20" || f.Percent != 25 {
			t.Errorf("unexpected frame %+v", f)
		}
	})

	t.Run("cached metadata duration survives an invalid engine duration", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 215), 180)
		m.set(90, math.NaN())

		h.tickers.last(t).fire(t)

		f := h.display.lastFrame()
		if f.Total != "03:00" || f.Percent != 50 {
			t.Errorf("unexpected frame %+v", f)
		}
	})

	t.Run("play A then B leaves exactly one poll targeting B", func(t *testing.T) {
		h := newHarness(t)
		a := h.playing(t, sampleTrack("A", 100), 100)
		tickerA := h.tickers.last(t)

		b := h.playing(t, sampleTrack("B", 200), 200)
		tickerB := h.tickers.last(t)

		if h.c.ActivePolls() != 1 {
			t.Fatalf("expected exactly 1 poll timer, got %d", h.c.ActivePolls())
		}
		if !tickerA.isStopped() || tickerB.isStopped() {
			t.Error("expected A's ticker stopped and B's running")
		}
		if _, _, _, closed := a.counts(); !closed {
			t.Error("expected A's media closed")
		}
		if snap := h.c.Snapshot(); snap.Track.ID != "B" {
			t.Errorf("expected B to be current, got %s", snap.Track.ID)
		}

		b.set(50, 200)
		tickerB.fire(t)
		if f := h.display.lastFrame(); f.Percent != 25 {
			t.Errorf("expected B's progress, got %+v", f)
		}
	})

	t.Run("drag scrubs the display and seeks once on release", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 200), 200)
		m.set(10, 200)

		h.c.BeginScrub()
		h.c.ScrubTo(0.5)

		f := h.display.lastFrame()
		if f.Current != "01:40" || f.Percent != 50 {
			t.Errorf("unexpected drag frame %+v", f)
		}

		before := h.display.frameCount()
		h.tickers.last(t).fire(t)
		if h.display.frameCount() != before {
			t.Error("poll updates should be suppressed while scrubbing")
		}
		if _, _, seeks, _ := m.counts(); len(seeks) != 0 {
			t.Errorf("no seek expected during drag, got %v", seeks)
		}

		if err := h.c.EndScrub(0.5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, _, seeks, _ := m.counts(); len(seeks) != 1 || seeks[0] != 100 {
			t.Errorf("expected exactly one seek to 100, got %v", seeks)
		}
		if h.c.Snapshot().Scrubbing {
			t.Error("scrubbing should be over")
		}

		h.tickers.last(t).fire(t)
		if h.display.frameCount() == before+1 {
			t.Error("poll updates should resume after release")
		}
	})

	t.Run("scrub fraction is clamped", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 200), 200)

		h.c.BeginScrub()
		h.c.ScrubTo(1.7)
		if f := h.display.lastFrame(); f.Percent != 100 {
			t.Errorf("expected 100%%, got %+v", f)
		}
		h.c.EndScrub(-3)
		if _, _, seeks, _ := m.counts(); len(seeks) != 1 || seeks[0] != 0 {
			t.Errorf("expected one seek to 0, got %v", seeks)
		}
	})

	t.Run("click seek", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 200), 200)

		if err := h.c.SeekTo(0.25); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, _, seeks, _ := m.counts(); len(seeks) != 1 || seeks[0] != 50 {
			t.Errorf("expected one seek to 50, got %v", seeks)
		}
		if f := h.display.lastFrame(); f.Current != "00:50" {
			t.Errorf("unexpected frame %+v", f)
		}
	})

	t.Run("pause and resume", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 200), 200)

		if err := h.c.Pause(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.c.ActivePolls() != 0 {
			t.Errorf("expected no poll timer while paused, got %d", h.c.ActivePolls())
		}
		if !h.tickers.last(t).isStopped() {
			t.Error("expected ticker stopped")
		}
		if snap := h.c.Snapshot(); snap.State != StatePaused || snap.Playing {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if h.display.lastState() {
			t.Error("affordance should show play")
		}

		if err := h.c.Resume(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.c.ActivePolls() != 1 || h.tickers.count() != 2 {
			t.Errorf("expected a fresh poll timer, got %d active of %d", h.c.ActivePolls(), h.tickers.count())
		}
		if plays, pauses, _, _ := m.counts(); plays != 2 || pauses != 1 {
			t.Errorf("expected 2 plays and 1 pause, got %d and %d", plays, pauses)
		}
	})

	t.Run("toggle", func(t *testing.T) {
		h := newHarness(t)
		track := sampleTrack("1", 200)
		h.playing(t, track, 200)

		if err := h.c.Toggle(context.Background(), track); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.c.Snapshot().State != StatePaused {
			t.Errorf("expected paused, got %v", h.c.Snapshot().State)
		}

		h.c.Toggle(context.Background(), track)
		if h.c.Snapshot().State != StatePlaying {
			t.Errorf("expected playing, got %v", h.c.Snapshot().State)
		}

		other := sampleTrack("2", 100)
		h.c.Toggle(context.Background(), other)
		if snap := h.c.Snapshot(); snap.Track.ID != "2" || snap.State != StateLoading {
			t.Errorf("expected new loading session, got %+v", snap)
		}
		if h.c.ActivePolls() != 0 {
			t.Errorf("expected no poll timers while loading, got %d", h.c.ActivePolls())
		}
	})

	t.Run("ended stops polling and resume restarts from 0", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 200), 200)

		m.events <- Event{Kind: EventEnded}
		waitFor(t, "ended", func() bool { return h.c.Snapshot().State == StateEnded })

		if h.c.ActivePolls() != 0 {
			t.Errorf("expected no poll timer, got %d", h.c.ActivePolls())
		}
		if f := h.display.lastFrame(); f.Percent != 100 || f.Current != "03:20" {
			t.Errorf("expected final frame at 100%%, got %+v", f)
		}
		if h.display.lastState() {
			t.Error("affordance should reset to play")
		}

		if err := h.c.Resume(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, _, seeks, _ := m.counts(); len(seeks) != 1 || seeks[0] != 0 {
			t.Errorf("expected rewind to 0, got %v", seeks)
		}
		if h.c.Snapshot().State != StatePlaying {
			t.Errorf("expected playing, got %v", h.c.Snapshot().State)
		}
	})

	t.Run("play failure reverts to idle without retry", func(t *testing.T) {
		h := newHarness(t)
		h.engine.playErr = errors.New("autoplay blocked")
		if err := h.c.Play(context.Background(), sampleTrack("1", 200)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m := h.engine.opened()[0]
		m.events <- Event{Kind: EventCanPlay}

		waitFor(t, "idle", func() bool { return !h.c.Snapshot().Active() })

		if plays, _, _, closed := m.counts(); plays != 1 || !closed {
			t.Errorf("expected one play attempt and closed media, got %d plays closed=%v", plays, closed)
		}
		if h.c.ActivePolls() != 0 {
			t.Errorf("expected no poll timer, got %d", h.c.ActivePolls())
		}
		waitFor(t, "error notice", func() bool {
			kinds := h.notifier.kinds()
			return len(kinds) == 1 && kinds[0] == shared.NoticeError
		})
	})

	t.Run("open failure is an engine error", func(t *testing.T) {
		h := newHarness(t)
		h.engine.openErr = errors.New("mpv not found")

		err := h.c.Play(context.Background(), sampleTrack("1", 200))
		if !errors.Is(err, shared.ErrPlaybackEngine) {
			t.Fatalf("expected ErrPlaybackEngine, got %v", err)
		}
		var engineErr *EngineError
		if !errors.As(err, &engineErr) || engineErr.Op != "open" {
			t.Errorf("expected open EngineError, got %v", err)
		}
		if h.c.Snapshot().Active() {
			t.Error("no session expected")
		}
		if kinds := h.notifier.kinds(); len(kinds) != 1 || kinds[0] != shared.NoticeError {
			t.Errorf("expected one error notice, got %v", kinds)
		}
	})

	t.Run("engine error event reverts to idle", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 200), 200)

		m.events <- Event{Kind: EventError, Err: errors.New("decode failed")}
		waitFor(t, "idle", func() bool { return !h.c.Snapshot().Active() })

		if h.c.ActivePolls() != 0 {
			t.Errorf("expected no poll timer, got %d", h.c.ActivePolls())
		}
		if _, _, _, closed := m.counts(); !closed {
			t.Error("expected media closed")
		}
	})

	t.Run("closed event channel reverts to idle and notifies", func(t *testing.T) {
		h := newHarness(t)
		m := h.playing(t, sampleTrack("1", 200), 200)

		close(m.events)
		waitFor(t, "error notice", func() bool { return len(h.notifier.kinds()) == 1 })

		if h.c.Snapshot().Active() {
			t.Errorf("expected idle, got %v", h.c.Snapshot().State)
		}
		if h.c.ActivePolls() != 0 {
			t.Errorf("expected no poll timer, got %d", h.c.ActivePolls())
		}
		if h.display.lastState() {
			t.Error("expected play state off")
		}
		if _, _, _, closed := m.counts(); !closed {
			t.Error("expected media closed")
		}
		if kinds := h.notifier.kinds(); kinds[0] != shared.NoticeError {
			t.Errorf("expected error notice, got %v", kinds)
		}
	})

	t.Run("lost engine after teardown stays quiet", func(t *testing.T) {
		h := newHarness(t)
		h.playing(t, sampleTrack("1", 200), 200)
		h.c.mu.Lock()
		stale := h.c.session
		h.c.mu.Unlock()

		h.c.Teardown()
		h.c.abort(stale, &EngineError{Op: "events", Err: io.ErrUnexpectedEOF})

		if kinds := h.notifier.kinds(); len(kinds) != 0 {
			t.Errorf("expected no notices, got %v", kinds)
		}
	})

	t.Run("events for a torn down session are ignored", func(t *testing.T) {
		h := newHarness(t)
		if err := h.c.Play(context.Background(), sampleTrack("1", 200)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		h.c.mu.Lock()
		stale := h.c.session
		h.c.mu.Unlock()

		h.c.Teardown()
		h.c.handle(stale, Event{Kind: EventMetadata, Duration: 200})
		h.c.handle(stale, Event{Kind: EventCanPlay})

		m := h.engine.opened()[0]
		if plays, _, _, closed := m.counts(); plays != 0 || !closed {
			t.Errorf("expected no play on a closed session, got %d plays closed=%v", plays, closed)
		}
		if h.c.Snapshot().Active() || h.c.ActivePolls() != 0 {
			t.Error("expected idle controller")
		}
	})

	t.Run("teardown during open supersedes the request", func(t *testing.T) {
		h := newHarness(t)
		h.engine.opening = make(chan struct{})
		h.engine.gate = make(chan struct{})

		errs := make(chan error, 1)
		go func() { errs <- h.c.Play(context.Background(), sampleTrack("1", 200)) }()

		<-h.engine.opening
		h.c.Teardown()
		close(h.engine.gate)

		if err := <-errs; !errors.Is(err, ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded, got %v", err)
		}
		if h.c.Snapshot().Active() {
			t.Error("no session expected")
		}
		if _, _, _, closed := h.engine.opened()[0].counts(); !closed {
			t.Error("expected superseded media closed")
		}
	})

	t.Run("operations without a session", func(t *testing.T) {
		h := newHarness(t)
		if err := h.c.Pause(); !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected ErrNoSession, got %v", err)
		}
		if err := h.c.Resume(); !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected ErrNoSession, got %v", err)
		}
		if err := h.c.SeekTo(0.5); !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected ErrNoSession, got %v", err)
		}
		h.c.BeginScrub()
		h.c.ScrubTo(0.5)
		if err := h.c.EndScrub(0.5); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
		h.c.Teardown()
	})
}
