package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/seanblong/readmegen/internal/ai"
	"github.com/seanblong/readmegen/internal/repourl"
	"github.com/seanblong/readmegen/internal/source"
	"github.com/seanblong/readmegen/pkg/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestEmitterEstimatesAndClamps(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	rec := &recorder{}
	em := newEmitter(context.Background(), rec, clock.now)

	em.emit(models.PhaseParsing, 0, "start")
	clock.t = clock.t.Add(10 * time.Second)
	em.emit(models.PhaseFetching, 25, "quarter")
	em.emit(models.PhaseFetching, 10, "stale")
	em.emit(models.PhaseComplete, 100, "done")
	em.emit(models.PhaseAnalyzing, 50, "after terminal")

	events := rec.all()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].EstimatedSecondsRemaining != nil {
		t.Error("no estimate expected at 0%")
	}
	if eta := events[1].EstimatedSecondsRemaining; eta == nil || *eta != 30 {
		t.Errorf("estimate at 25%% after 10s = %v, want 30", eta)
	}
	if events[2].Percent != 25 {
		t.Errorf("percent went backwards: %d", events[2].Percent)
	}
	if events[3].EstimatedSecondsRemaining != nil {
		t.Error("no estimate expected on a terminal event")
	}
}

func TestEmitterSilentAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	em := newEmitter(ctx, rec, time.Now)

	em.emit(models.PhaseParsing, 0, "start")
	cancel()
	err := em.fail(context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("fail() = %v", err)
	}
	if len(rec.all()) != 1 {
		t.Errorf("events after cancel: %+v", rec.all())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     FailureKind
		authHelp bool
	}{
		{"nil", nil, "", false},
		{"malformed", fmt.Errorf("%w: x", repourl.ErrMalformedInput), FailureMalformedInput, false},
		{"canceled", fmt.Errorf("crawling: %w", context.Canceled), FailureCanceled, false},
		{"deadline", context.DeadlineExceeded, FailureCanceled, false},
		{"rate limited", fmt.Errorf("crawling: %w", &source.RateLimitError{}), FailureRateLimited, false},
		{"access denied", fmt.Errorf("checking: %w", source.ErrAccessDenied), FailureAccessDenied, true},
		{"not found", source.ErrNotFound, FailureNotFound, true},
		{"generation", &ai.GenerationError{Provider: ai.ProviderOpenAI, Err: errors.New("boom")}, FailureGenerationFailed, false},
		{"other", errors.New("disk on fire"), FailureInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
			if got.AuthMayHelp() != tt.authHelp {
				t.Errorf("AuthMayHelp() = %v, want %v", got.AuthMayHelp(), tt.authHelp)
			}
			if tt.err != nil && Message(tt.err) == "" {
				t.Error("Message() is empty")
			}
		})
	}
}
