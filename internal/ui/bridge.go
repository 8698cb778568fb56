package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/melodyfetch/internal/playback"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

// DefaultBridgeBuffer is the number of pending messages a [Bridge] holds.
const DefaultBridgeBuffer = 64

var (
	_ playback.Display = (*Bridge)(nil)
	_ shared.Notifier  = (*Bridge)(nil)
)

// Bridge carries display and notification calls from background goroutines into the TUI.
//
// Calls never block. Progress frames and download progress are dropped when the buffer is full;
// play state and notices are handed to a goroutine instead.
type Bridge struct {
	msgs chan tea.Msg
}

func NewBridge(size int) *Bridge {
	if size <= 0 {
		size = DefaultBridgeBuffer
	}
	return &Bridge{msgs: make(chan tea.Msg, size)}
}

func (b *Bridge) UpdateProgressDisplay(current, total string, percent float64) {
	b.offer(progressMsg(current, total, percent))
}

func (b *Bridge) UpdatePlayState(playing bool) {
	b.deliver(playStateMsg(playing))
}

func (b *Bridge) Notify(message string, kind shared.NoticeKind, d time.Duration) {
	b.deliver(noticeMsg(message, kind, d))
}

// DownloadProgress reports bytes received for the running download.
func (b *Bridge) DownloadProgress(received, total int64) {
	b.offer(downloadProgressMsg(received, total))
}

// Next waits for the next message. The model re-arms it after each bridged message.
func (b *Bridge) Next() tea.Cmd {
	return func() tea.Msg {
		return <-b.msgs
	}
}

func (b *Bridge) offer(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	default:
	}
}

func (b *Bridge) deliver(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	default:
		go func() { b.msgs <- msg }()
	}
}
