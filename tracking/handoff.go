package tracking

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Candidate is an initialized tracker waiting to be swapped in.
type Candidate[F any] struct {
	Tracker   Tracker[F]
	Box       image.Rectangle
	RequestID uuid.UUID
}

// Handoff is the only state shared between the init worker and the capture
// loop: one pending candidate and its flag, guarded by one mutex. The
// in-flight count covers requests the worker has not resolved yet.
type Handoff[F any] struct {
	mu       sync.Mutex
	pending  *Candidate[F]
	flag     atomic.Bool
	inflight atomic.Int64
}

// PublishPending stores c as the pending candidate. A candidate that was
// still pending is returned so the caller can close it.
func (h *Handoff[F]) PublishPending(c Candidate[F]) *Candidate[F] {
	h.mu.Lock()
	defer h.mu.Unlock()

	replaced := h.pending
	h.pending = &c
	h.flag.Store(true)
	return replaced
}

// TakePendingIfAny removes and returns the pending candidate.
func (h *Handoff[F]) TakePendingIfAny() (Candidate[F], bool) {
	if !h.flag.Load() {
		return Candidate[F]{}, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.pending
	h.pending = nil
	h.flag.Store(false)
	if c == nil {
		return Candidate[F]{}, false
	}
	return *c, true
}

// Pending reports whether a candidate awaits swap-in.
func (h *Handoff[F]) Pending() bool {
	return h.flag.Load()
}

// Initializing reports whether a request is in flight or a candidate is
// pending.
func (h *Handoff[F]) Initializing() bool {
	return h.inflight.Load() > 0 || h.flag.Load()
}

func (h *Handoff[F]) begin() {
	h.inflight.Add(1)
}

func (h *Handoff[F]) done() {
	h.inflight.Add(-1)
}
