// Package ui presents search results, track details and playback progress.
//
// Two presentation surfaces implement [Renderer]:
//  1. [PlainRenderer] : line output for the CLI, with a single progress line redrawn in place
//  2. [Model] : a bubbletea TUI with a search box, a result list and a detail panel
//
// [Search], [ShowDetail], [PresentSearch] and [PresentDetail] are the shared flows: they turn a
// resolver outcome into either rendered tracks or a status line plus a notification.
//
// The TUI follows bubbletea's Init/Update/View pattern and receives messages via the Msg union type.
// The playback controller runs on its own goroutines, so it draws into a [Bridge], which turns display
// and notification calls into messages without ever blocking the caller.
//
// In the detail view the progress bar takes mouse input: pressing on the handle starts a drag that seeks
// once on release, and pressing elsewhere on the bar seeks immediately. Keys 0-9 jump to tenths of the track.
package ui
