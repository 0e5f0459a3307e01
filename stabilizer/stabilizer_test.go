package stabilizer

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steadytrack/frame"
)

type testImage struct {
	id       int
	pixels   []byte
	released bool
}

type scriptedEstimator struct {
	results []estimate
	calls   int
}

type estimate struct {
	t  Transform
	ok bool
}

func (e *scriptedEstimator) Estimate(prev, curr *testImage) (Transform, bool) {
	if e.calls >= len(e.results) {
		e.calls++
		return Transform{}, false
	}
	r := e.results[e.calls]
	e.calls++
	return r.t, r.ok
}

type recordingWarper struct {
	applied []Transform
	err     error
}

func (w *recordingWarper) Warp(src *testImage, m Transform) (*testImage, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.applied = append(w.applied, m)
	return &testImage{id: -src.id, pixels: append([]byte(nil), src.pixels...)}, nil
}

func testOps() frame.Ops[*testImage] {
	return frame.Ops[*testImage]{
		Release: func(img *testImage) { img.released = true },
	}
}

func newTestStabilizer(capacity int, est Estimator[*testImage], warp Warper[*testImage]) *Stabilizer[*testImage] {
	return New[*testImage](Config{MaxHistory: capacity}, est, warp, testOps(), zerolog.Nop())
}

var approx = cmpopts.EquateApprox(0, 1e-4)

func TestHistoryRunningSumMatchesEntries(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, capacity := range []int{1, 3, 10} {
		for _, n := range []int{0, 1, 5, 25} {
			h := NewHistory(capacity)
			var pushed []Transform
			for i := 0; i < n; i++ {
				var tr Transform
				for k := range tr {
					tr[k] = rng.Float64()*20 - 10
				}
				tr, ok := tr.Normalize()
				require.True(t, ok)
				h.Push(tr)
				pushed = append(pushed, tr)
			}

			keep := n
			if keep > capacity {
				keep = capacity
			}
			want := Transform{}
			for _, tr := range pushed[len(pushed)-keep:] {
				for k := range tr {
					want[k] += tr[k]
				}
			}

			assert.Equal(t, keep, h.Len(), "capacity=%d n=%d", capacity, n)
			if diff := cmp.Diff(want, h.Sum(), approx); diff != "" {
				t.Errorf("capacity=%d n=%d sum mismatch (-want +got):\n%s", capacity, n, diff)
			}
			if diff := cmp.Diff(pushed[len(pushed)-keep:], h.Entries(), approx, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("capacity=%d n=%d entries mismatch (-want +got):\n%s", capacity, n, diff)
			}
		}
	}
}

func TestHistoryPushReportsEviction(t *testing.T) {
	h := NewHistory(2)
	_, ok := h.Push(Translation(1, 0))
	assert.False(t, ok)
	_, ok = h.Push(Translation(2, 0))
	assert.False(t, ok)

	evicted, ok := h.Push(Translation(3, 0))
	require.True(t, ok)
	assert.Equal(t, Translation(1, 0), evicted)
}

func TestHistoryMean(t *testing.T) {
	h := NewHistory(4)
	_, ok := h.Mean()
	assert.False(t, ok)

	h.Push(Translation(2, 4))
	h.Push(Translation(4, 8))

	mean, ok := h.Mean()
	require.True(t, ok)
	if diff := cmp.Diff(Translation(3, 6), mean, approx); diff != "" {
		t.Errorf("mean mismatch (-want +got):\n%s", diff)
	}
}

func TestResetClearsState(t *testing.T) {
	est := &scriptedEstimator{results: []estimate{
		{Translation(1, 1), true},
		{Translation(2, 2), true},
	}}
	s := newTestStabilizer(5, est, &recordingWarper{})

	out := s.Stabilize(&testImage{id: 1}, &testImage{id: 100})
	assert.Equal(t, 1, out.id)
	s.Stabilize(&testImage{id: 2}, &testImage{id: 101})
	s.Stabilize(&testImage{id: 3}, &testImage{id: 102})
	require.Equal(t, 2, s.History().Len())

	s.Reset()
	assert.Equal(t, 0, s.History().Len())
	assert.Equal(t, Transform{}, s.History().Sum())

	// The first call after a reset has no reference image and passes through.
	raw := &testImage{id: 4}
	assert.Same(t, raw, s.Stabilize(raw, &testImage{id: 103}))
	assert.Equal(t, 2, est.calls)
}

func TestStabilizePassThroughWhenHistoryEmpty(t *testing.T) {
	est := &scriptedEstimator{}
	warp := &recordingWarper{}
	s := newTestStabilizer(5, est, warp)

	for i := 0; i < 4; i++ {
		raw := &testImage{id: i, pixels: []byte{1, 2, 3, byte(i)}}
		out := s.Stabilize(raw, &testImage{id: 100 + i})
		assert.Same(t, raw, out)
		assert.Equal(t, []byte{1, 2, 3, byte(i)}, out.pixels)
		assert.False(t, out.released)
	}
	assert.Empty(t, warp.applied)
	assert.Equal(t, 3, est.calls)
}

func TestStabilizeWarpsByInverseMean(t *testing.T) {
	est := &scriptedEstimator{results: []estimate{
		{Translation(2, 0), true},
		{Translation(4, 2), true},
	}}
	warp := &recordingWarper{}
	s := newTestStabilizer(5, est, warp)

	s.Stabilize(&testImage{id: 1}, &testImage{id: 100})
	raw := &testImage{id: 2}
	out := s.Stabilize(raw, &testImage{id: 101})
	assert.Equal(t, -2, out.id)
	assert.True(t, raw.released)

	s.Stabilize(&testImage{id: 3}, &testImage{id: 102})
	require.Len(t, warp.applied, 2)
	if diff := cmp.Diff(Translation(-2, 0), warp.applied[0], approx); diff != "" {
		t.Errorf("first warp (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Translation(-3, -1), warp.applied[1], approx); diff != "" {
		t.Errorf("second warp (-want +got):\n%s", diff)
	}
}

func TestStabilizeKeepsReferenceAfterFailedEstimate(t *testing.T) {
	est := &scriptedEstimator{results: []estimate{
		{Transform{}, false},
		{Translation(1, 0), true},
	}}
	s := newTestStabilizer(5, est, &recordingWarper{})

	g0 := &testImage{id: 100}
	g1 := &testImage{id: 101}
	g2 := &testImage{id: 102}
	s.Stabilize(&testImage{id: 0}, g0)
	s.Stabilize(&testImage{id: 1}, g1)
	assert.True(t, g0.released)
	assert.Equal(t, 0, s.History().Len())

	s.Stabilize(&testImage{id: 2}, g2)
	assert.True(t, g1.released)
	assert.False(t, g2.released)
	assert.Equal(t, 1, s.History().Len())
}

func TestStabilizeRejectsNonFiniteTransform(t *testing.T) {
	bad := Identity()
	bad[2] = math.Inf(1)
	est := &scriptedEstimator{results: []estimate{{bad, true}}}
	s := newTestStabilizer(5, est, &recordingWarper{})

	s.Stabilize(&testImage{id: 0}, &testImage{id: 100})
	raw := &testImage{id: 1}
	assert.Same(t, raw, s.Stabilize(raw, &testImage{id: 101}))
	assert.Equal(t, 0, s.History().Len())
}

func TestStabilizeSingularMeanPassesThrough(t *testing.T) {
	est := &scriptedEstimator{results: []estimate{{Transform{}, true}}}
	warp := &recordingWarper{}
	s := newTestStabilizer(5, est, warp)

	s.Stabilize(&testImage{id: 0}, &testImage{id: 100})
	raw := &testImage{id: 1}
	assert.Same(t, raw, s.Stabilize(raw, &testImage{id: 101}))
	assert.Empty(t, warp.applied)
}

func TestStabilizeWarpErrorPassesThrough(t *testing.T) {
	est := &scriptedEstimator{results: []estimate{{Translation(1, 1), true}}}
	s := newTestStabilizer(5, est, &recordingWarper{err: errors.New("boom")})

	s.Stabilize(&testImage{id: 0}, &testImage{id: 100})
	raw := &testImage{id: 1}
	out := s.Stabilize(raw, &testImage{id: 101})
	assert.Same(t, raw, out)
	assert.False(t, raw.released)
}

func TestTransformInverse(t *testing.T) {
	inv, err := Translation(3, -5).Inverse()
	require.NoError(t, err)
	if diff := cmp.Diff(Translation(-3, 5), inv, approx); diff != "" {
		t.Errorf("inverse (-want +got):\n%s", diff)
	}

	_, err = Transform{}.Inverse()
	assert.ErrorIs(t, err, ErrSingular)
}

func TestTransformApply(t *testing.T) {
	x, y := Translation(3, 4).Apply(1, 1)
	assert.InDelta(t, 4, x, 1e-9)
	assert.InDelta(t, 5, y, 1e-9)
}
