package ui

import (
	"testing"
	"time"

	"github.com/desertthunder/melodyfetch/internal/playback"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

func TestBridge(t *testing.T) {
	t.Run("delivers frames in order", func(t *testing.T) {
		b := NewBridge(4)

		b.UpdateProgressDisplay("00:01", "03:00", 1)
		b.UpdatePlayState(true)
		b.Notify("hi", shared.NoticeInfo, time.Second)

		if msg := b.Next()().(Msg); msg.kind != MsgProgress || msg.data.(playback.Progress).Current != "00:01" {
			t.Errorf("expected progress first, got %+v", msg)
		}
		if msg := b.Next()().(Msg); msg.kind != MsgPlayState || msg.data.(bool) != true {
			t.Errorf("expected play state second, got %+v", msg)
		}
		if msg := b.Next()().(Msg); msg.kind != MsgNotice || msg.data.(noticePayload).text != "hi" {
			t.Errorf("expected notice third, got %+v", msg)
		}
	})

	t.Run("drops progress when full", func(t *testing.T) {
		b := NewBridge(1)

		b.UpdateProgressDisplay("00:01", "03:00", 1)
		b.UpdateProgressDisplay("00:02", "03:00", 2)
		b.DownloadProgress(10, 20)

		if msg := b.Next()().(Msg); msg.data.(playback.Progress).Current != "00:01" {
			t.Errorf("expected first frame kept, got %+v", msg)
		}
		select {
		case msg := <-b.msgs:
			t.Errorf("expected later frames dropped, got %+v", msg)
		default:
		}
	})

	t.Run("keeps play state without blocking when full", func(t *testing.T) {
		b := NewBridge(1)
		b.UpdateProgressDisplay("00:01", "03:00", 1)

		done := make(chan struct{})
		go func() {
			b.UpdatePlayState(false)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("UpdatePlayState blocked on a full bridge")
		}

		b.Next()()
		if msg := b.Next()().(Msg); msg.kind != MsgPlayState {
			t.Errorf("expected play state after draining, got %+v", msg)
		}
	})

	t.Run("defaults the buffer size", func(t *testing.T) {
		if got := cap(NewBridge(0).msgs); got != DefaultBridgeBuffer {
			t.Errorf("expected %d, got %d", DefaultBridgeBuffer, got)
		}
	})
}
