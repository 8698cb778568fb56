package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/playback"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSearchDone MsgKind = iota
	MsgDetailLoaded
	MsgProgress
	MsgPlayState
	MsgNotice
	MsgNoticeExpired
	MsgDownloadProgress
	MsgDownloadDone
	MsgActionDone
)

type searchResult struct {
	keyword string
	tracks  []models.Track
	err     error
}

type detailResult struct {
	seq   uint64
	track models.Track
	err   error
}

type noticePayload struct {
	text string
	kind shared.NoticeKind
	d    time.Duration
}

type downloadProgress struct {
	received int64
	total    int64
}

type downloadResult struct {
	path string
	err  error
}

type actionResult struct {
	action  string
	err     error
	gen     int
	trackID string
}

// searchDoneMsg is the constructor for [MsgSearchDone]
func searchDoneMsg(keyword string, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgSearchDone, data: searchResult{keyword, tracks, err}}
}

// detailLoadedMsg is the constructor for [MsgDetailLoaded]
func detailLoadedMsg(seq uint64, track models.Track, err error) Msg {
	return Msg{kind: MsgDetailLoaded, data: detailResult{seq, track, err}}
}

// progressMsg is the constructor for [MsgProgress]
func progressMsg(current, total string, percent float64) Msg {
	return Msg{kind: MsgProgress, data: playback.Progress{Current: current, Total: total, Percent: percent}}
}

// playStateMsg is the constructor for [MsgPlayState]
func playStateMsg(playing bool) Msg {
	return Msg{kind: MsgPlayState, data: playing}
}

// noticeMsg is the constructor for [MsgNotice]
func noticeMsg(text string, kind shared.NoticeKind, d time.Duration) Msg {
	return Msg{kind: MsgNotice, data: noticePayload{text, kind, d}}
}

// noticeExpiredMsg is the constructor for [MsgNoticeExpired]
func noticeExpiredMsg(id int) Msg {
	return Msg{kind: MsgNoticeExpired, data: id}
}

// downloadProgressMsg is the constructor for [MsgDownloadProgress]
func downloadProgressMsg(received, total int64) Msg {
	return Msg{kind: MsgDownloadProgress, data: downloadProgress{received, total}}
}

// downloadDoneMsg is the constructor for [MsgDownloadDone]
func downloadDoneMsg(path string, err error) Msg {
	return Msg{kind: MsgDownloadDone, data: downloadResult{path, err}}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(action string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionResult{action: action, err: err}}
}

// playDoneMsg reports a finished play/pause toggle for the detail view generation gen.
func playDoneMsg(gen int, trackID string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionResult{action: actionPlay, err: err, gen: gen, trackID: trackID}}
}
