package tracking

import (
	"image"
	"sync"
)

type updateStep struct {
	box image.Rectangle
	ok  bool
}

// fakeTracker replays scripted updates; the last step repeats forever.
type fakeTracker struct {
	mu      sync.Mutex
	id      int
	initOK  bool
	steps   []updateStep
	updates int
	inits   int
	closed  bool
	onInit  func()
}

func newFakeTracker(id int, steps ...updateStep) *fakeTracker {
	return &fakeTracker{id: id, initOK: true, steps: steps}
}

func (f *fakeTracker) Init(frame int, box image.Rectangle) bool {
	if f.onInit != nil {
		f.onInit()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initOK
}

func (f *fakeTracker) Update(frame int) (image.Rectangle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if len(f.steps) == 0 {
		return image.Rectangle{}, false
	}
	i := f.updates - 1
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	return f.steps[i].box, f.steps[i].ok
}

func (f *fakeTracker) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTracker) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTracker) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

// scoredTracker adds a fixed confidence to a fakeTracker.
type scoredTracker struct {
	*fakeTracker
	confidence float64
}

func (s *scoredTracker) Confidence() float64 {
	return s.confidence
}

type countingResetter struct {
	resets int
}

func (c *countingResetter) Reset() {
	c.resets++
}

func rect(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}

func ok(box image.Rectangle) updateStep {
	return updateStep{box: box, ok: true}
}

func fail() updateStep {
	return updateStep{}
}
