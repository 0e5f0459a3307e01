package tracking

import (
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"steadytrack/frame"
	"steadytrack/queue"
)

// InitRequest asks the worker to acquire a tracker on Box in Frame. The
// request owns Frame.
type InitRequest[F any] struct {
	ID    uuid.UUID
	Frame F
	Box   image.Rectangle
}

// Worker initializes trackers off the capture loop. Requests flow in through
// a queue; finished trackers flow back through the Handoff.
type Worker[F any] struct {
	queue   *queue.Queue[InitRequest[F]]
	handoff *Handoff[F]
	factory Factory[F]
	ops     frame.Ops[F]
	log     zerolog.Logger

	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewWorker creates a worker. A positive queueCap bounds the number of
// waiting requests; the oldest waiting request is dropped on overflow.
func NewWorker[F any](factory Factory[F], handoff *Handoff[F], ops frame.Ops[F], queueCap int, log zerolog.Logger) *Worker[F] {
	w := &Worker[F]{
		handoff: handoff,
		factory: factory,
		ops:     ops,
		log:     log.With().Str("component", "init-worker").Logger(),
	}
	w.queue = queue.New(queueCap, queue.WithEvict(func(req InitRequest[F]) {
		w.log.Debug().Str("request", req.ID.String()).Msg("superseded request dropped")
		w.discard(req)
	}))
	return w
}

// Start launches the worker goroutine.
func (w *Worker[F]) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.run()
	})
}

// Submit queues an initialization on a copy of f. It returns false once the
// worker is closed.
func (w *Worker[F]) Submit(f F, box image.Rectangle) (uuid.UUID, bool) {
	req := InitRequest[F]{
		ID:    uuid.New(),
		Frame: w.ops.Copy(f),
		Box:   box,
	}
	w.handoff.begin()
	if !w.queue.Push(req) {
		w.discard(req)
		return uuid.Nil, false
	}
	w.log.Info().
		Str("request", req.ID.String()).
		Int("x", box.Min.X).Int("y", box.Min.Y).
		Int("w", box.Dx()).Int("h", box.Dy()).
		Msg("init requested")
	return req.ID, true
}

func (w *Worker[F]) run() {
	defer w.wg.Done()
	for {
		req, ok := w.queue.Pop()
		if !ok {
			return
		}
		w.handle(req)
	}
}

func (w *Worker[F]) handle(req InitRequest[F]) {
	defer w.discard(req)

	log := w.log.With().Str("request", req.ID.String()).Logger()
	t, err := w.initialize(req)
	if err != nil {
		log.Warn().Err(err).Msg("init discarded")
		return
	}

	replaced := w.handoff.PublishPending(Candidate[F]{Tracker: t, Box: req.Box, RequestID: req.ID})
	if replaced != nil {
		log.Debug().Str("replaced", replaced.RequestID.String()).Msg("pending candidate replaced")
		closeTracker(replaced.Tracker, log)
	}
	log.Info().Msg("candidate published")
}

// initialize creates a tracker, initializes it and probes it with one update
// on the same frame. Panics from the tracker are turned into errors.
func (w *Worker[F]) initialize(req InitRequest[F]) (t Tracker[F], err error) {
	defer func() {
		if r := recover(); r != nil {
			if t != nil {
				closeTracker(t, w.log)
			}
			t, err = nil, fmt.Errorf("tracker panic: %v", r)
		}
	}()

	t, err = w.factory()
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}
	if !t.Init(req.Frame, req.Box) {
		closeTracker(t, w.log)
		return nil, fmt.Errorf("tracker init rejected box %v", req.Box)
	}
	if _, ok := t.Update(req.Frame); !ok {
		closeTracker(t, w.log)
		return nil, fmt.Errorf("init patch not trackable")
	}
	return t, nil
}

func (w *Worker[F]) discard(req InitRequest[F]) {
	w.ops.Free(req.Frame)
	w.handoff.done()
}

// Close stops accepting requests, drops the ones still waiting and waits
// for an in-progress initialization to finish. A candidate left pending is
// closed.
func (w *Worker[F]) Close() {
	w.closeOnce.Do(func() {
		waiting := w.queue.Drain()
		w.queue.Close()
		for _, req := range waiting {
			w.discard(req)
		}
		w.wg.Wait()

		if c, ok := w.handoff.TakePendingIfAny(); ok {
			closeTracker(c.Tracker, w.log)
		}
		w.log.Debug().Int("dropped", len(waiting)).Msg("init worker stopped")
	})
}

func closeTracker[F any](t Tracker[F], log zerolog.Logger) {
	if err := t.Close(); err != nil {
		log.Warn().Err(err).Msg("close tracker")
	}
}
