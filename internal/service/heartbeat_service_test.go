package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

func TestHeartbeatUpdatesLiveness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t)

	f.clk.Advance(30 * time.Second)
	if err := f.heartbeat.Heartbeat(ctx, s.ID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	got, _ := f.manager.Get(ctx, s.ID)
	if !got.LastHeartbeatAt.Equal(f.clk.Now()) {
		t.Errorf("last heartbeat = %v, want %v", got.LastHeartbeatAt, f.clk.Now())
	}
}

func TestHeartbeatRejectsTerminalSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t)

	if _, err := f.finalizer.Submit(ctx, s.ID, s.Version); err != nil {
		t.Fatalf("submit: %v", err)
	}

	err := f.heartbeat.Heartbeat(ctx, s.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestStaleSweepAutoSubmitsSilentSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := f.start(t)

	f.exams.add(&f.exam, fixtureStudentID, 8)
	f.clk.Advance(60 * time.Second)
	live, _, err := f.manager.Start(ctx, f.exam.ID, 8)
	if err != nil {
		t.Fatalf("start live session: %v", err)
	}

	// 100s since stale's heartbeat, 40s since live's. Grace is 90s.
	f.clk.Advance(40 * time.Second)

	swept, err := f.heartbeat.StaleSweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	got, _ := f.manager.Get(ctx, stale.ID)
	if got.Status != model.SessionStatusAutoSubmitted {
		t.Errorf("stale status = %s, want AUTO_SUBMITTED", got.Status)
	}
	if reason := got.TerminationReason; reason == nil || *reason != model.ReasonStaleHeartbeat {
		t.Errorf("reason = %v, want stale-heartbeat", reason)
	}

	got, _ = f.manager.Get(ctx, live.ID)
	if got.Status != model.SessionStatusInProgress {
		t.Errorf("live status = %s, want IN_PROGRESS", got.Status)
	}
}

func TestStaleSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t)

	f.clk.Advance(5 * time.Minute)

	if _, err := f.heartbeat.StaleSweep(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	swept, err := f.heartbeat.StaleSweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if swept != 0 {
		t.Fatalf("second sweep swept = %d, want 0", swept)
	}
	if f.notifier.enqueueCount() != 1 {
		t.Errorf("enqueued = %d, want 1", f.notifier.enqueueCount())
	}

	got, _ := f.manager.Get(ctx, s.ID)
	if got.Status != model.SessionStatusAutoSubmitted {
		t.Errorf("status = %s, want AUTO_SUBMITTED", got.Status)
	}
}

func TestHeartbeatKeepsSessionOutOfSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t)

	// Ping every minute; the 90s grace never elapses.
	for i := 0; i < 5; i++ {
		f.clk.Advance(time.Minute)
		if err := f.heartbeat.Heartbeat(ctx, s.ID); err != nil {
			t.Fatalf("heartbeat %d: %v", i, err)
		}
	}

	swept, err := f.heartbeat.StaleSweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 0 {
		t.Fatalf("swept = %d, want 0", swept)
	}
}
