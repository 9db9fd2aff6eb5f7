package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voicewire/gateway/internal/wire"
)

func TestOutboundQueueDropsStaleTurnFrames(t *testing.T) {
	var active atomic.Int64
	active.Store(2)
	q := NewOutboundQueue(8, func() int64 { return active.Load() })

	ctx := context.Background()
	if err := q.Push(ctx, 1, wire.Frame{Type: wire.TTSAudio, Payload: []byte("stale")}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push(ctx, 2, wire.Frame{Type: wire.TTSAudio, Payload: []byte("live")}); err != nil {
		t.Fatalf("push: %v", err)
	}

	f, ok := q.Next(ctx)
	if !ok {
		t.Fatal("expected a frame")
	}
	if string(f.Payload) != "live" {
		t.Errorf("expected stale turn 1 frame to be skipped, got %q", f.Payload)
	}
}

func TestOutboundQueueNeverDropsControlFrames(t *testing.T) {
	var active atomic.Int64
	active.Store(5)
	q := NewOutboundQueue(8, func() int64 { return active.Load() })

	ctx := context.Background()
	if err := q.Push(ctx, 0, wire.Frame{Type: wire.ErrorFrame, Payload: []byte("boom")}); err != nil {
		t.Fatalf("push: %v", err)
	}

	f, ok := q.Next(ctx)
	if !ok {
		t.Fatal("expected the control frame to be delivered")
	}
	if f.Type != wire.ErrorFrame {
		t.Errorf("expected ERROR frame, got %s", f.Type)
	}
}

func TestOutboundQueueCloseUnblocksNext(t *testing.T) {
	q := NewOutboundQueue(1, func() int64 { return 0 })
	q.Close()

	ctx := context.Background()
	if _, ok := q.Next(ctx); ok {
		t.Error("expected Next to report false on a closed queue")
	}
}

func TestOutboundQueuePushBlocksOnCancelledContext(t *testing.T) {
	q := NewOutboundQueue(1, func() int64 { return 0 })
	// Fill the one slot so the second push has nowhere to go.
	if err := q.Push(context.Background(), 0, wire.Frame{Type: wire.Pong}); err != nil {
		t.Fatalf("push: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Push(ctx, 0, wire.Frame{Type: wire.Pong}); err == nil {
		t.Error("expected Push to return an error on an already-cancelled context")
	}
}

func TestOutboundQueueDefaultCapacity(t *testing.T) {
	q := NewOutboundQueue(0, func() int64 { return 0 })
	if cap(q.frames) != 64 {
		t.Errorf("expected default capacity 64, got %d", cap(q.frames))
	}
}

func TestOutboundQueueNextRespectsContextCancellation(t *testing.T) {
	q := NewOutboundQueue(1, func() int64 { return 0 })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := q.Next(ctx); ok {
		t.Error("expected Next to return false once its context expires with nothing queued")
	}
}
