// Package progress carries run progress events from the pipeline to
// whoever is watching.
package progress

import (
	"sync"

	"github.com/seanblong/readmegen/pkg/models"
)

// Sink receives the progress events of one run. Emit must not block.
type Sink interface {
	Emit(ev models.ProgressEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(models.ProgressEvent)

func (f SinkFunc) Emit(ev models.ProgressEvent) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(models.ProgressEvent) {})

// DefaultBuffer is the channel capacity of a Stream.
const DefaultBuffer = 32

// Stream is a Sink backed by a buffered channel. Events that do not fit
// are dropped, except terminal events, which replace the oldest queued one.
// The channel is closed after a terminal event or Close.
type Stream struct {
	mu     sync.Mutex
	ch     chan models.ProgressEvent
	closed bool
}

func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Stream{ch: make(chan models.ProgressEvent, buffer)}
}

// Events is the receive side of the stream.
func (s *Stream) Events() <-chan models.ProgressEvent { return s.ch }

func (s *Stream) Emit(ev models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- ev:
	default:
		if !ev.Phase.Terminal() {
			return
		}
		// make room so the watcher always sees how the run ended
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- ev:
		default:
		}
	}

	if ev.Phase.Terminal() {
		s.closeLocked()
	}
}

// Close closes the channel. It is safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Stream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Registry maps run ids to their streams.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*Stream
	buffer  int
}

func NewRegistry(buffer int) *Registry {
	return &Registry{streams: make(map[string]*Stream), buffer: buffer}
}

// Open returns the stream for runID, creating it if needed. The progress
// endpoint and the generate endpoint may arrive in either order.
func (r *Registry) Open(runID string) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.streams[runID]; ok {
		return s
	}
	s := NewStream(r.buffer)
	r.streams[runID] = s
	return s
}

// Remove closes and forgets the stream for runID.
func (r *Registry) Remove(runID string) {
	r.mu.Lock()
	s, ok := r.streams[runID]
	delete(r.streams, runID)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len is the number of open runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
