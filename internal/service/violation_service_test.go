package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

func newViolationService(f *fixture, threshold int) *ViolationService {
	return NewViolationService(f.violations, f.finalizer, threshold, f.clk, zerolog.Nop())
}

func TestLogViolationIncrementsCount(t *testing.T) {
	f := newFixture(t)
	svc := newViolationService(f, 5)
	ctx := context.Background()
	s := f.start(t)

	for want := 1; want <= 3; want++ {
		out, count, err := svc.LogViolation(ctx, s, &model.LogViolationRequest{Type: model.ViolationTabBlur})
		if err != nil {
			t.Fatalf("violation %d: %v", want, err)
		}
		if count != want {
			t.Errorf("count = %d, want %d", count, want)
		}
		if out.Status != model.SessionStatusInProgress {
			t.Errorf("status = %s, want IN_PROGRESS below threshold", out.Status)
		}
	}

	events, err := svc.Violations(ctx, s.ID)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
}

func TestThresholdTriggersAutoSubmit(t *testing.T) {
	f := newFixture(t)
	svc := newViolationService(f, 3)
	ctx := context.Background()
	s := f.start(t)

	var out *model.Session
	for i := 0; i < 3; i++ {
		var err error
		out, _, err = svc.LogViolation(ctx, s, &model.LogViolationRequest{Type: model.ViolationCopyDetected})
		if err != nil {
			t.Fatalf("violation %d: %v", i+1, err)
		}
	}

	if out.Status != model.SessionStatusAutoSubmitted {
		t.Fatalf("status = %s, want AUTO_SUBMITTED at threshold", out.Status)
	}
	if reason := out.TerminationReason; reason == nil || *reason != model.ReasonViolationThreshold {
		t.Errorf("reason = %v, want violation-threshold", reason)
	}
	if f.notifier.enqueueCount() != 1 {
		t.Errorf("enqueued = %d, want 1", f.notifier.enqueueCount())
	}
}

func TestConcurrentViolationsAutoSubmitExactlyOnce(t *testing.T) {
	f := newFixture(t)
	const threshold = 5
	svc := newViolationService(f, threshold)
	s := f.start(t)

	// 2*threshold concurrent reports: each gets a distinct count, and no
	// matter how they interleave the finalizer fires exactly once.
	const racers = 2 * threshold
	var wg sync.WaitGroup
	counts := make([]int, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, count, err := svc.LogViolation(context.Background(), s, &model.LogViolationRequest{Type: model.ViolationTabBlur})
			if err != nil && !errors.Is(err, ErrInvalidState) {
				t.Errorf("racer %d: %v", i, err)
			}
			counts[i] = count
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, c := range counts {
		if c == 0 {
			continue // rejected after termination
		}
		if seen[c] {
			t.Errorf("duplicate violation count %d", c)
		}
		seen[c] = true
	}

	if f.notifier.enqueueCount() != 1 {
		t.Fatalf("enqueued = %d, want exactly 1", f.notifier.enqueueCount())
	}

	got, _ := f.manager.Get(context.Background(), s.ID)
	if got.Status != model.SessionStatusAutoSubmitted {
		t.Fatalf("status = %s, want AUTO_SUBMITTED", got.Status)
	}
}

func TestLogViolationRejectsTerminalSession(t *testing.T) {
	f := newFixture(t)
	svc := newViolationService(f, 5)
	ctx := context.Background()
	s := f.start(t)

	if _, err := f.finalizer.Submit(ctx, s.ID, s.Version); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, _, err := svc.LogViolation(ctx, s, &model.LogViolationRequest{Type: model.ViolationDisconnect})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}

	// The rejected report left no trace.
	events, _ := svc.Violations(ctx, s.ID)
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func TestViolationHistoryPreservedAfterAutoSubmit(t *testing.T) {
	f := newFixture(t)
	svc := newViolationService(f, 2)
	ctx := context.Background()
	s := f.start(t)

	svc.LogViolation(ctx, s, &model.LogViolationRequest{Type: model.ViolationTabBlur})
	svc.LogViolation(ctx, s, &model.LogViolationRequest{Type: model.ViolationMultipleFaces})

	events, err := svc.Violations(ctx, s.ID)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 after auto-submit", len(events))
	}
}
