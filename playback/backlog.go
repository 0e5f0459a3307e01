// Package playback runs the capture loop: it picks live, paused or catch-up
// behaviour each iteration and drives the stabilizer and the tracking
// state machine.
package playback

import (
	"fmt"
	"strings"

	"steadytrack/frame"
)

// Mode is the playback mode chosen for one loop iteration.
type Mode int

const (
	Live Mode = iota
	Paused
	CatchUp
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case Paused:
		return "paused"
	case CatchUp:
		return "catch-up"
	default:
		return "unknown"
	}
}

// OverflowPolicy decides what happens when the backlog is full.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest buffered frame to make room.
	DropOldest OverflowPolicy = iota
	// StallCapture stops pulling frames from the source until the backlog
	// has room again.
	StallCapture
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case StallCapture:
		return "stall-capture"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy parses "drop-oldest" or "stall-capture".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drop-oldest", "drop_oldest", "drop":
		return DropOldest, nil
	case "stall-capture", "stall_capture", "stall":
		return StallCapture, nil
	default:
		return DropOldest, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Backlog is a bounded, oldest-first buffer of frames it owns.
type Backlog[F any] struct {
	frames   []F
	capacity int
	policy   OverflowPolicy
	ops      frame.Ops[F]
	dropped  int
}

// NewBacklog creates a backlog holding at most capacity frames.
func NewBacklog[F any](capacity int, policy OverflowPolicy, ops frame.Ops[F]) *Backlog[F] {
	if capacity < 1 {
		capacity = 1
	}
	return &Backlog[F]{
		frames:   make([]F, 0, capacity),
		capacity: capacity,
		policy:   policy,
		ops:      ops,
	}
}

// Push takes ownership of f. When full, DropOldest frees the oldest frame;
// StallCapture rejects f and the caller keeps it.
func (b *Backlog[F]) Push(f F) bool {
	if len(b.frames) >= b.capacity {
		if b.policy == StallCapture {
			return false
		}
		b.ops.Free(b.frames[0])
		b.shift()
		b.dropped++
	}
	b.frames = append(b.frames, f)
	return true
}

// Pop removes the oldest frame; the caller owns it.
func (b *Backlog[F]) Pop() (F, bool) {
	if len(b.frames) == 0 {
		var zero F
		return zero, false
	}
	f := b.frames[0]
	b.shift()
	return f, true
}

func (b *Backlog[F]) shift() {
	var zero F
	b.frames[0] = zero
	b.frames = append(b.frames[:0], b.frames[1:]...)
}

// Len returns the number of buffered frames.
func (b *Backlog[F]) Len() int {
	return len(b.frames)
}

// Cap returns the capacity.
func (b *Backlog[F]) Cap() int {
	return b.capacity
}

// Full reports whether the backlog is at capacity.
func (b *Backlog[F]) Full() bool {
	return len(b.frames) >= b.capacity
}

// Dropped returns how many frames DropOldest has evicted.
func (b *Backlog[F]) Dropped() int {
	return b.dropped
}

// Policy returns the overflow policy.
func (b *Backlog[F]) Policy() OverflowPolicy {
	return b.policy
}

// Clear frees every buffered frame.
func (b *Backlog[F]) Clear() {
	for _, f := range b.frames {
		b.ops.Free(f)
	}
	b.frames = b.frames[:0]
}
