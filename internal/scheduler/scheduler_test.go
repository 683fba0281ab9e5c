package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/ReleaseTrain/internal/orchestrator"
)

type fakeReconciler struct {
	calls atomic.Int32
	err   error
}

func (r *fakeReconciler) ReconcileInProgress(context.Context) (orchestrator.ReconcileResult, error) {
	r.calls.Add(1)
	return orchestrator.ReconcileResult{Checked: 1}, r.err
}

type fakeLeader struct {
	ok       bool
	err      error
	released atomic.Bool
}

func (l *fakeLeader) TryAcquire(context.Context) (bool, error) { return l.ok, l.err }
func (l *fakeLeader) Release(context.Context)                  { l.released.Store(true) }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTick(t *testing.T) {
	tests := []struct {
		name      string
		leader    *fakeLeader
		reconErr  error
		wantRan   bool
		wantCalls int32
		wantErr   bool
	}{
		{"no leader election", nil, nil, true, 1, false},
		{"leader", &fakeLeader{ok: true}, nil, true, 1, false},
		{"follower", &fakeLeader{ok: false}, nil, false, 0, false},
		{"lock error", &fakeLeader{err: errors.New("db down")}, nil, false, 0, true},
		{"reconcile error", nil, errors.New("list failed"), true, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeReconciler{err: tt.reconErr}
			cfg := Config{Reconciler: rec, Logger: discard()}
			if tt.leader != nil {
				cfg.Leader = tt.leader
			}
			s := New(cfg)

			ran, err := s.Tick(context.Background())
			if ran != tt.wantRan {
				t.Errorf("expected ran=%v, got %v", tt.wantRan, ran)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got := rec.calls.Load(); got != tt.wantCalls {
				t.Errorf("expected %d reconcile calls, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestRun_TicksAndStops(t *testing.T) {
	rec := &fakeReconciler{}
	leader := &fakeLeader{ok: true}
	s := New(Config{
		Reconciler: rec,
		Schedule:   "@every 1s",
		Leader:     leader,
		Logger:     discard(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for rec.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("reconciler was not called")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if !leader.released.Load() {
		t.Error("leadership must be released on stop")
	}
}

func TestRun_InvalidSchedule(t *testing.T) {
	s := New(Config{Reconciler: &fakeReconciler{}, Schedule: "every minute", Logger: discard()})
	if err := s.Run(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 3, 2, 10, 0, 30, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"*/5 * * * *", time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)},
		{"@hourly", time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)},
		{"@every 30s", time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := NextRun(tt.expr, from)
		if err != nil {
			t.Fatalf("%s: %v", tt.expr, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s: expected %s, got %s", tt.expr, tt.want, got)
		}
	}

	if err := ValidateCronExpr("61 * * * *"); err == nil {
		t.Error("expected error for minute 61")
	}
}
