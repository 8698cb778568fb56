// Package playback previews tracks and keeps a progress display in sync with the audio engine.
//
// A [Controller] owns at most one [Session]. Each session moves through
//
//	Idle → Loading → Ready → Playing ⇄ Paused → Ended
//
// with scrubbing as an overlay flag while the user drags the progress bar. Three sources feed
// the display: a poll timer (every 500ms while playing), engine events (metadata, can-play,
// ended, error), and user drag input. Every asynchronous callback carries the session and poll
// handle it was created for and is dropped if either is no longer current.
//
// The bar uses the engine's duration when it is finite, then the last finite duration the
// engine reported, then the track's nominal duration with the bar held at 0%.
//
// [MPVEngine] is the production [Engine]: it drives an mpv subprocess over its JSON IPC socket.
package playback
