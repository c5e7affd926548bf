package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/seanblong/readmegen/internal/progress"
	"github.com/seanblong/readmegen/pkg/models"
)

// emitter forwards events to a sink with a non-decreasing percent and an
// estimate of the time left. It goes quiet once the context is done or a
// terminal event was sent.
type emitter struct {
	ctx   context.Context
	sink  progress.Sink
	now   func() time.Time
	start time.Time

	mu   sync.Mutex
	last int
	done bool
}

func newEmitter(ctx context.Context, sink progress.Sink, now func() time.Time) *emitter {
	return &emitter{ctx: ctx, sink: sink, now: now, start: now()}
}

func (e *emitter) emit(phase models.Phase, percent int, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done || e.ctx.Err() != nil {
		return
	}

	percent = max(min(percent, 100), e.last)
	e.last = percent

	ev := models.ProgressEvent{Phase: phase, Percent: percent, Message: message}
	if percent > 0 && percent < 100 && !phase.Terminal() {
		elapsed := e.now().Sub(e.start)
		remaining := int(math.Ceil(elapsed.Seconds() * float64(100-percent) / float64(percent)))
		ev.EstimatedSecondsRemaining = &remaining
	}
	if phase.Terminal() {
		e.done = true
	}
	e.sink.Emit(ev)
}

// fail emits the terminal error event for err and returns err.
func (e *emitter) fail(err error) error {
	e.mu.Lock()
	last := e.last
	e.mu.Unlock()
	e.emit(models.PhaseError, last, Message(err))
	return err
}
