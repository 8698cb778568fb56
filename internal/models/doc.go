// Package models defines the value types passed between the fetch, playback, and presentation layers.
//
//   - [Track] : Song metadata and stream URL as normalized from the API payload
//   - [SearchQuery] : Validated, trimmed search text
//   - [ValidationError] : Input rejected before any request is made; matches shared.ErrInvalidInput
//
// Tracks are built once by the services package and never mutated afterwards.
package models
