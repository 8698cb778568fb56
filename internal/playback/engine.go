package playback

import (
	"context"
	"fmt"

	"github.com/desertthunder/melodyfetch/internal/shared"
)

// EventKind identifies an asynchronous media event.
type EventKind int

const (
	EventMetadata EventKind = iota // Duration is known (or known to be unknown)
	EventCanPlay                   // Enough data is buffered to start
	EventEnded                     // Reached the end of the stream
	EventError                     // The engine failed to load or decode the stream
)

func (k EventKind) String() string {
	switch k {
	case EventMetadata:
		return "metadata"
	case EventCanPlay:
		return "canplay"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by a [Media] on its Events channel.
type Event struct {
	Kind     EventKind
	Duration float64 // Seconds, set for EventMetadata. May be NaN or Inf.
	Err      error   // Set for EventError
}

// Engine opens audio streams.
type Engine interface {
	Open(ctx context.Context, url string) (Media, error)
}

// Media is a single loaded stream.
//
// Position and Duration are in seconds; Duration returns NaN or +Inf while the length is unknown.
// The Events channel is closed when the media is closed or the engine goes away.
type Media interface {
	Events() <-chan Event
	Play() error
	Pause() error
	Seek(seconds float64) error
	Position() float64
	Duration() float64
	Close() error
}

// Display receives progress and play-state updates for the active session.
type Display interface {
	UpdateProgressDisplay(current, total string, percent float64)
	UpdatePlayState(playing bool)
}

// EngineError reports that the engine refused to load or play a stream.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("playback %s failed: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func (e *EngineError) Is(target error) bool { return target == shared.ErrPlaybackEngine }
