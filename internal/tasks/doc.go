// Package tasks runs batch operations over tracks with real-time progress reporting.
//
// # Bulk downloads
//
// [Engine.BulkDownload] takes a list of track ids and:
//
//  1. Validates each id (digits only) and resolves it through the retrying detail lookup,
//     paced by a token-bucket limiter
//  2. Hands resolved tracks to a pool of download workers (default 3, at most 10)
//  3. Optionally saves each track's cover image beside the audio file
//  4. Writes download_manifest.json into the output directory
//
// One failed id never stops the batch; its error is kept in the result and the manifest.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
