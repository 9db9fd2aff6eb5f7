package session

import (
	"context"
	"time"

	"github.com/voicewire/gateway/internal/wire"
)

// slowClientWait is spec.md §5's bound: if an outbound push waits longer
// than this for queue space, the turn is aborted with SLOW_CLIENT.
const slowClientWait = 2 * time.Second

// ErrSlowClient is returned by OutboundQueue.Push when the bounded queue
// stayed full past slowClientWait.
type ErrSlowClient struct{}

func (ErrSlowClient) Error() string { return "outbound queue stalled past slow-client threshold" }

// taggedFrame carries the turn id that produced it. A frame with turn 0 is
// a control-plane frame (READY, PONG, ERROR) and is never dropped.
type taggedFrame struct {
	turn  int64
	frame wire.Frame
}

// OutboundQueue is the single bounded per-session FIFO that every producer
// (fast layer, main layer) pushes frames into, drained by one writer —
// spec.md §5's "single writer drains a bounded per-session queue in FIFO
// order", grounded on the teacher's events channel in managed_stream.go,
// generalized from an internal event enum to wire frames tagged with a
// turn id so a superseded turn's audio can be dropped at drain time
// (spec.md §4.10/P4: barge-in silences the previous turn without needing
// to physically scrub an in-flight channel).
type OutboundQueue struct {
	frames     chan taggedFrame
	activeTurn func() int64
}

// NewOutboundQueue builds a queue with the given capacity (spec.md §6's
// OUTBOUND_QUEUE_CAPACITY, default 64). activeTurn reports the session's
// currently live turn id at drain time.
func NewOutboundQueue(capacity int, activeTurn func() int64) *OutboundQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &OutboundQueue{frames: make(chan taggedFrame, capacity), activeTurn: activeTurn}
}

// Push enqueues f tagged with turn, blocking up to slowClientWait if the
// queue is full. turn 0 marks a control-plane frame that Next never drops.
func (q *OutboundQueue) Push(ctx context.Context, turn int64, f wire.Frame) error {
	timer := time.NewTimer(slowClientWait)
	defer timer.Stop()

	select {
	case q.frames <- taggedFrame{turn: turn, frame: f}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrSlowClient{}
	}
}

// Next blocks until the next non-stale frame is available, ctx is
// cancelled, or the queue is closed. Frames tagged with a turn id that is
// no longer active are silently dropped.
func (q *OutboundQueue) Next(ctx context.Context) (wire.Frame, bool) {
	for {
		select {
		case tf, ok := <-q.frames:
			if !ok {
				return wire.Frame{}, false
			}
			if tf.turn != 0 && tf.turn != q.activeTurn() {
				continue
			}
			return tf.frame, true
		case <-ctx.Done():
			return wire.Frame{}, false
		}
	}
}

// Close closes the underlying channel; no further Push calls may occur.
func (q *OutboundQueue) Close() {
	close(q.frames)
}
