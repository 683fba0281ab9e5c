package orchestrator

import (
	"context"
	"testing"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

func TestReconcileInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateDevelopToReleasePR(ctx, f.step(t, 2), f.release, f.config); err != nil {
		t.Fatalf("create pr: %v", err)
	}
	if _, err := f.svc.TriggerBuildAction(ctx, f.step(t, 4), f.release, f.config, ""); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	// Шаг без PR и run не сверяется.
	if _, err := f.svc.StartStep(ctx, f.step(t, 1).ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.gw.pr = &domain.PullRequestRecord{Number: 42, State: "closed", Merged: true}
	f.gw.run = &domain.ActionRunRecord{ID: 9001, Status: domain.RunStatusInProgress}

	res, err := f.svc.ReconcileInProgress(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Checked != 2 || res.Changed != 1 || res.Errors != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if f.gw.getPRCalls != 1 || f.gw.getRunCalls != 1 {
		t.Errorf("expected one PR and one run lookup, got %d and %d", f.gw.getPRCalls, f.gw.getRunCalls)
	}
	if got := f.step(t, 2); got.Status != domain.StepStatusCompleted {
		t.Errorf("merged PR should complete step, got %s", got.Status)
	}
	if got := f.step(t, 4); got.Status != domain.StepStatusInProgress || got.ActionStatus != domain.RunStatusInProgress {
		t.Errorf("running build stays IN_PROGRESS, got %s %s", got.Status, got.ActionStatus)
	}

	res, err = f.svc.ReconcileInProgress(ctx)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.Checked != 1 {
		t.Errorf("completed step must drop out of reconcile, checked %d", res.Checked)
	}
}

func TestReconcileInProgress_GatewayErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateDevelopToReleasePR(ctx, f.step(t, 2), f.release, f.config); err != nil {
		t.Fatalf("create pr: %v", err)
	}
	f.gw.err = context.DeadlineExceeded

	res, err := f.svc.ReconcileInProgress(ctx)
	if err != nil {
		t.Fatalf("step errors must not fail the pass: %v", err)
	}
	if res.Errors != 1 || res.Changed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}
