package tracking

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(cfg Config) (*Machine[int], *countingResetter) {
	r := &countingResetter{}
	return NewMachine[int](cfg, r, zerolog.Nop()), r
}

func vetoConfig() Config {
	cfg := DefaultConfig()
	cfg.WarmupFrames = 0
	cfg.ConfirmLost = 3
	cfg.MaxLost = 5
	return cfg
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b [4]int
		want float64
	}{
		{"disjoint", [4]int{0, 0, 10, 10}, [4]int{20, 20, 10, 10}, 0},
		{"identical", [4]int{0, 0, 10, 10}, [4]int{0, 0, 10, 10}, 1},
		{"shifted by one", [4]int{0, 0, 10, 10}, [4]int{1, 1, 10, 10}, 81.0 / 119.0},
		{"half overlap", [4]int{0, 0, 10, 10}, [4]int{5, 0, 10, 10}, 50.0 / 150.0},
		{"empty", [4]int{0, 0, 0, 0}, [4]int{0, 0, 0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := rect(tt.a[0], tt.a[1], tt.a[2], tt.a[3])
			b := rect(tt.b[0], tt.b[1], tt.b[2], tt.b[3])
			assert.InDelta(t, tt.want, IoU(a, b), 1e-9)
			assert.InDelta(t, tt.want, IoU(b, a), 1e-9)
		})
	}
}

func TestDriftVetoNoOverlapLowConfidence(t *testing.T) {
	m, _ := newTestMachine(vetoConfig())
	tr := &scoredTracker{fakeTracker: newFakeTracker(1, ok(rect(20, 20, 10, 10))), confidence: 0.1}
	m.Activate(tr, rect(0, 0, 10, 10))

	res := m.Step(0)
	assert.False(t, res.OK)
	assert.True(t, res.Vetoed)
	assert.Equal(t, Tracking, res.State)
	assert.Equal(t, 1, m.Counters().Failures)
	assert.Equal(t, rect(0, 0, 10, 10), m.LastGood())
	assert.Equal(t, rect(0, 0, 10, 10), m.Box())
}

func TestDriftVetoHighOverlapLowConfidence(t *testing.T) {
	m, _ := newTestMachine(vetoConfig())
	tr := &scoredTracker{fakeTracker: newFakeTracker(1, ok(rect(1, 1, 10, 10))), confidence: 0.01}
	m.Activate(tr, rect(0, 0, 10, 10))

	res := m.Step(0)
	assert.True(t, res.OK)
	assert.False(t, res.Vetoed)
	assert.Equal(t, 0, m.Counters().Failures)
	assert.Equal(t, rect(1, 1, 10, 10), m.LastGood())
}

func TestDriftVetoNeedsLowConfidence(t *testing.T) {
	m, _ := newTestMachine(vetoConfig())
	tr := &scoredTracker{fakeTracker: newFakeTracker(1, ok(rect(20, 20, 10, 10))), confidence: 0.9}
	m.Activate(tr, rect(0, 0, 10, 10))

	assert.True(t, m.Step(0).OK)
	assert.Equal(t, rect(20, 20, 10, 10), m.LastGood())
}

func TestDriftVetoWithoutScorerNeverFires(t *testing.T) {
	m, _ := newTestMachine(vetoConfig())
	m.Activate(newFakeTracker(1, ok(rect(200, 200, 10, 10))), rect(0, 0, 10, 10))

	res := m.Step(0)
	assert.True(t, res.OK)
	assert.False(t, res.Vetoed)
}

func TestDriftVetoSkippedDuringWarmup(t *testing.T) {
	cfg := vetoConfig()
	cfg.WarmupFrames = 2
	m, _ := newTestMachine(cfg)
	tr := &scoredTracker{
		fakeTracker: newFakeTracker(1,
			ok(rect(20, 20, 10, 10)),
			ok(rect(40, 40, 10, 10)),
			ok(rect(80, 80, 10, 10)),
		),
		confidence: 0.1,
	}
	m.Activate(tr, rect(0, 0, 10, 10))

	assert.True(t, m.Step(0).OK)
	assert.True(t, m.Step(1).OK)
	res := m.Step(2)
	assert.False(t, res.OK)
	assert.True(t, res.Vetoed)
	assert.Equal(t, 3, m.Counters().FramesSinceInit)
}

func TestFailureThresholds(t *testing.T) {
	m, _ := newTestMachine(vetoConfig())
	tr := newFakeTracker(1, fail())
	m.Activate(tr, rect(0, 0, 10, 10))

	assert.Equal(t, Tracking, m.Step(0).State)
	assert.Equal(t, Tracking, m.Step(1).State)

	res := m.Step(2)
	assert.Equal(t, Lost, res.State)
	assert.Equal(t, Counters{Failures: 3, LostIterations: 1, FramesSinceInit: 3}, m.Counters())

	for i := 0; i < 3; i++ {
		assert.Equal(t, Lost, m.Step(3+i).State)
	}
	assert.False(t, tr.isClosed())
	assert.Equal(t, 4, m.Counters().LostIterations)

	res = m.Step(6)
	assert.Equal(t, Idle, res.State)
	assert.True(t, tr.isClosed())
	assert.False(t, m.HasTracker())
	assert.Equal(t, Counters{}, m.Counters())
}

func TestLostDoesNotUpdateWithoutResume(t *testing.T) {
	m, _ := newTestMachine(vetoConfig())
	tr := newFakeTracker(1, fail(), fail(), fail(), ok(rect(0, 0, 10, 10)))
	m.Activate(tr, rect(0, 0, 10, 10))

	for i := 0; i < 3; i++ {
		m.Step(i)
	}
	require.Equal(t, Lost, m.State())

	m.Step(3)
	assert.Equal(t, Lost, m.State())
	assert.Equal(t, 3, tr.updateCount())
	assert.Equal(t, 2, m.Counters().LostIterations)
}

func TestLostResumesOnRecovery(t *testing.T) {
	cfg := vetoConfig()
	cfg.ResumeOnRecovery = true
	m, _ := newTestMachine(cfg)
	tr := newFakeTracker(1, fail(), fail(), fail(), fail(), ok(rect(2, 2, 10, 10)))
	m.Activate(tr, rect(0, 0, 10, 10))

	for i := 0; i < 4; i++ {
		m.Step(i)
	}
	require.Equal(t, Lost, m.State())
	assert.Equal(t, 2, m.Counters().LostIterations)

	res := m.Step(4)
	assert.True(t, res.OK)
	assert.Equal(t, Tracking, res.State)
	assert.Equal(t, 0, m.Counters().Failures)
	assert.Equal(t, 0, m.Counters().LostIterations)
	assert.Equal(t, rect(2, 2, 10, 10), m.LastGood())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	m, _ := newTestMachine(vetoConfig())
	tr := newFakeTracker(1, fail(), fail(), ok(rect(1, 0, 10, 10)), fail(), fail())
	m.Activate(tr, rect(0, 0, 10, 10))

	for i := 0; i < 5; i++ {
		m.Step(i)
	}
	assert.Equal(t, Tracking, m.State())
	assert.Equal(t, 2, m.Counters().Failures)
	assert.Equal(t, rect(1, 0, 10, 10), m.LastGood())
}

func TestActivateResetsHistoryAndClosesPrevious(t *testing.T) {
	m, resetter := newTestMachine(vetoConfig())
	first := newFakeTracker(1, fail())
	m.Activate(first, rect(0, 0, 10, 10))
	m.Step(0)
	m.Step(1)
	require.Equal(t, 2, m.Counters().Failures)

	second := newFakeTracker(2, ok(rect(5, 5, 10, 10)))
	m.Activate(second, rect(4, 4, 10, 10))

	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())
	assert.Equal(t, 2, resetter.resets)
	assert.Equal(t, Counters{}, m.Counters())
	assert.Equal(t, rect(4, 4, 10, 10), m.LastGood())
	assert.Equal(t, Tracking, m.State())
}

func TestIdleStepIsNoop(t *testing.T) {
	m, _ := newTestMachine(vetoConfig())
	res := m.Step(0)
	assert.Equal(t, Idle, res.State)
	assert.False(t, res.OK)
	assert.Equal(t, Counters{}, m.Counters())
}

func TestReleaseReturnsToIdle(t *testing.T) {
	m, _ := newTestMachine(vetoConfig())
	tr := newFakeTracker(1, ok(rect(0, 0, 10, 10)))
	m.Activate(tr, rect(0, 0, 10, 10))

	m.Release()
	assert.Equal(t, Idle, m.State())
	assert.True(t, tr.isClosed())
	assert.False(t, m.HasTracker())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "tracking", Tracking.String())
	assert.Equal(t, "lost", Lost.String())
	assert.Equal(t, "unknown", State(42).String())
}
