package stabilizer

import "gonum.org/v1/gonum/mat"

// History is a bounded, oldest-first window of transforms with a running
// elementwise sum. The sum always equals the sum of the entries held.
type History struct {
	capacity int
	entries  []Transform
	sum      *mat.Dense
}

// NewHistory creates a history holding at most capacity transforms.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		capacity: capacity,
		entries:  make([]Transform, 0, capacity+1),
		sum:      mat.NewDense(3, 3, nil),
	}
}

// Push appends t and evicts the oldest entry once over capacity. The
// evicted transform is returned with ok set.
func (h *History) Push(t Transform) (evicted Transform, ok bool) {
	h.entries = append(h.entries, t)
	h.sum.Add(h.sum, t.Dense())

	if len(h.entries) > h.capacity {
		evicted = h.entries[0]
		h.sum.Sub(h.sum, evicted.Dense())
		h.entries = append(h.entries[:0], h.entries[1:]...)
		ok = true
	}
	return evicted, ok
}

// Len returns the number of transforms held.
func (h *History) Len() int {
	return len(h.entries)
}

// Cap returns the configured capacity.
func (h *History) Cap() int {
	return h.capacity
}

// Sum returns the running sum.
func (h *History) Sum() Transform {
	return FromMatrix(h.sum)
}

// Mean returns sum / count. It reports false when the history is empty.
func (h *History) Mean() (Transform, bool) {
	if len(h.entries) == 0 {
		return Transform{}, false
	}
	var m mat.Dense
	m.Scale(1/float64(len(h.entries)), h.sum)
	return FromMatrix(&m), true
}

// Entries returns a copy of the held transforms, oldest first.
func (h *History) Entries() []Transform {
	out := make([]Transform, len(h.entries))
	copy(out, h.entries)
	return out
}

// Reset empties the history and zeroes the sum.
func (h *History) Reset() {
	h.entries = h.entries[:0]
	h.sum.Zero()
}
