// Package services fetches track metadata and audio from the remote music API.
//
// # Provider
//
// A [Provider] performs exactly one request per call. [VkeysClient] implements it for the
// vkeys.cn NetEase endpoint, pacing requests with a token-bucket limiter and replaying
// browser-like headers. Every call ends in one of four outcomes:
//   - success, with tracks in upstream order (possibly none)
//   - [TransportError] : network failure, timeout, or a body that is not the expected JSON
//   - [HTTPError] : non-2xx status
//   - [ApplicationError] : well-formed payload with a non-success code; Temporary() is true for the "unavailable" code
//
// # Resolver
//
// [Resolver] wraps a provider with a [RetryPolicy] per operation. Search defaults to three
// attempts with a random whole-second pause of 1-5s; detail lookups default to four attempts
// with a fixed 1s pause. Every failure kind is retried. When the budget runs out the caller
// gets an [ExhaustedRetriesError] wrapping the last failure. Cancelling the context aborts the
// loop at once, including mid-pause, and returns the context error.
//
// # Errors
//
// Typed errors match the sentinels in the shared package through errors.Is:
//   - [shared.ErrTransport], [shared.ErrHTTPStatus], [shared.ErrAPIRequest]
//   - [shared.ErrRetriesExhausted]
//   - [shared.ErrInvalidInput] via models.ValidationError
//
// # Downloads
//
// [Downloader] streams a track's audio to a file with progress reporting. Downloads are not retried.
package services
