package progress

import (
	"sync"
	"testing"

	"github.com/seanblong/readmegen/pkg/models"
)

func drain(s *Stream) []models.ProgressEvent {
	var out []models.ProgressEvent
	for ev := range s.Events() {
		out = append(out, ev)
	}
	return out
}

func TestStreamClosesAfterTerminal(t *testing.T) {
	s := NewStream(8)
	s.Emit(models.ProgressEvent{Phase: models.PhaseParsing, Percent: 0})
	s.Emit(models.ProgressEvent{Phase: models.PhaseComplete, Percent: 100})
	s.Emit(models.ProgressEvent{Phase: models.PhaseAnalyzing, Percent: 50})

	got := drain(s)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[1].Phase != models.PhaseComplete {
		t.Errorf("last event = %s, want complete", got[1].Phase)
	}
}

func TestStreamNeverBlocks(t *testing.T) {
	s := NewStream(2)
	for i := 0; i < 10; i++ {
		s.Emit(models.ProgressEvent{Phase: models.PhaseAnalyzing, Percent: 40 + i})
	}
	s.Emit(models.ProgressEvent{Phase: models.PhaseError, Percent: 49, Message: "boom"})

	got := drain(s)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if last := got[len(got)-1]; last.Phase != models.PhaseError {
		t.Errorf("terminal event should survive a full buffer, got %+v", last)
	}
}

func TestStreamCloseIdempotent(t *testing.T) {
	s := NewStream(1)
	s.Close()
	s.Close()
	s.Emit(models.ProgressEvent{Phase: models.PhaseParsing})
	if got := drain(s); len(got) != 0 {
		t.Errorf("closed stream delivered %+v", got)
	}
}

func TestSinkFuncAndDiscard(t *testing.T) {
	var got []models.Phase
	var sink Sink = SinkFunc(func(ev models.ProgressEvent) { got = append(got, ev.Phase) })
	sink.Emit(models.ProgressEvent{Phase: models.PhaseFetching})
	Discard.Emit(models.ProgressEvent{Phase: models.PhaseFetching})
	if len(got) != 1 || got[0] != models.PhaseFetching {
		t.Errorf("got %v", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(4)

	a := r.Open("run-1")
	if again := r.Open("run-1"); again != a {
		t.Error("Open should return the existing stream")
	}
	r.Open("run-2")
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	r.Remove("run-2")

	r.Remove("run-1")
	r.Remove("run-1")
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Remove", r.Len())
	}
	if _, open := <-a.Events(); open {
		t.Error("Remove should close the stream")
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry(4)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := r.Open("shared")
			s.Emit(models.ProgressEvent{Phase: models.PhaseAnalyzing})
		}()
	}
	wg.Wait()
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	r.Remove("shared")
}
