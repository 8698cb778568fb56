package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Fetch errors
	ErrTransport        = fmt.Errorf("transport failure")
	ErrHTTPStatus       = fmt.Errorf("unexpected HTTP status")
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrRetriesExhausted = fmt.Errorf("retries exhausted")
	ErrTrackNotFound    = fmt.Errorf("track not found")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Playback errors
	ErrPlaybackEngine = fmt.Errorf("playback engine failure")
	ErrNoStream       = fmt.Errorf("track has no stream URL")
	ErrNoSession      = fmt.Errorf("no active playback session")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
