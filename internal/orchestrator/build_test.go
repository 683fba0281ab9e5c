package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

func TestIsBuildStep(t *testing.T) {
	build := map[domain.StepType]bool{
		domain.StepTypeFunctionalBuildAndShare:     true,
		domain.StepTypeRegressionBuildAndShare:     true,
		domain.StepTypeProdRegressionBuildAndShare: true,
		domain.StepTypeBuildStaging:                true,
		domain.StepTypeBuildProduction:             true,
	}

	for _, st := range domain.AllStepTypes {
		step := &domain.WorkflowStep{Type: st}
		if got := IsBuildStep(step); got != build[st] {
			t.Errorf("%s: expected %v, got %v", st, build[st], got)
		}
	}
	if IsBuildStep(nil) {
		t.Error("nil step is not a build step")
	}
}

func TestResolveWorkflowReference(t *testing.T) {
	cfg := &domain.GitHubConfig{
		WorkflowURLs: map[string]string{
			string(domain.StepTypeFunctionalBuildAndShare): "acme/app/build.yml?flavor=qa",
			string(domain.StepTypeRegressionBuildAndShare): "acme/app",
		},
	}

	info, ok := ResolveWorkflowReference(&domain.WorkflowStep{Type: domain.StepTypeFunctionalBuildAndShare}, cfg)
	if !ok {
		t.Fatal("expected reference")
	}
	if info.RepositoryRef != "acme/app" || info.WorkflowID != "build.yml" {
		t.Errorf("unexpected reference: %+v", info)
	}

	if _, ok := ResolveWorkflowReference(&domain.WorkflowStep{Type: domain.StepTypeRegressionBuildAndShare}, cfg); ok {
		t.Error("malformed reference must resolve to not configured")
	}
	if _, ok := ResolveWorkflowReference(&domain.WorkflowStep{Type: domain.StepTypeBuildStaging}, cfg); ok {
		t.Error("missing reference must resolve to not configured")
	}
	if _, ok := ResolveWorkflowReference(&domain.WorkflowStep{Type: domain.StepTypeFunctionalBuildAndShare}, nil); ok {
		t.Error("nil config must resolve to not configured")
	}
}

func TestIsConfigured(t *testing.T) {
	cfg := &domain.GitHubConfig{
		WorkflowURLs: map[string]string{
			string(domain.StepTypeFunctionalBuildAndShare): "acme/app/build.yml",
			string(domain.StepTypeCodeFreeze):              "acme/app/freeze.yml",
		},
	}

	tests := []struct {
		stepType domain.StepType
		want     bool
	}{
		{domain.StepTypeFunctionalBuildAndShare, true},
		{domain.StepTypeCodeFreeze, false},
		{domain.StepTypeBuildProduction, false},
	}
	for _, tt := range tests {
		if got := IsConfigured(&domain.WorkflowStep{Type: tt.stepType}, cfg); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.stepType, tt.want, got)
		}
	}
}

func TestTriggerBuildAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	step := f.step(t, 4)
	step.SourceBranch = "release-1.0"
	if err := f.store.Steps.Update(ctx, step); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := f.svc.TriggerBuildAction(ctx, step, f.release, f.config, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.gw.dispatches) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(f.gw.dispatches))
	}
	in := f.gw.dispatches[0]
	if f.gw.dispatchRepos[0] != "acme/app" || in.WorkflowID != "build.yml" {
		t.Errorf("unexpected target: %s %s", f.gw.dispatchRepos[0], in.WorkflowID)
	}
	if in.Ref != "release-1.0" {
		t.Errorf("expected ref from branch param, got %q", in.Ref)
	}
	if _, ok := in.Inputs["branch"]; ok {
		t.Error("branch must never be forwarded as an input")
	}
	if in.Inputs["version"] != "1.0.0" || in.Inputs["flavor"] != "qa" {
		t.Errorf("unexpected inputs: %v", in.Inputs)
	}

	if got.ActionRunID == nil || *got.ActionRunID != 9001 {
		t.Errorf("run id not recorded: %v", got.ActionRunID)
	}
	if got.ActionURL == "" || got.ActionStatus != domain.RunStatusQueued {
		t.Errorf("run not recorded: %q %q", got.ActionURL, got.ActionStatus)
	}
	if got.Status != domain.StepStatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", got.Status)
	}
	if stored := f.stepByID(t, step.ID); stored.ActionRunID == nil {
		t.Error("run id not persisted")
	}
}

func TestTriggerBuildAction_RefFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Шаг 8 ссылается на workflow без branch.
	if _, err := f.svc.TriggerBuildAction(ctx, f.step(t, 8), f.release, f.config, "hotfix"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.TriggerBuildAction(ctx, f.step(t, 8), f.release, f.config, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.gw.dispatches[0].Ref; got != "hotfix" {
		t.Errorf("expected caller ref, got %q", got)
	}
	if got := f.gw.dispatches[1].Ref; got != defaultBuildRef {
		t.Errorf("expected default ref, got %q", got)
	}
	if f.gw.dispatches[0].WorkflowID != "77" {
		t.Errorf("expected workflow 77, got %s", f.gw.dispatches[0].WorkflowID)
	}
}

func TestTriggerBuildAction_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.TriggerBuildAction(ctx, f.step(t, 2), f.release, f.config, ""); !errors.Is(err, ErrNotBuildStep) {
		t.Errorf("expected ErrNotBuildStep, got %v", err)
	}
	if _, err := f.svc.TriggerBuildAction(ctx, f.step(t, 12), f.release, f.config, ""); !errors.Is(err, ErrWorkflowNotConfigured) {
		t.Errorf("expected ErrWorkflowNotConfigured, got %v", err)
	}

	cfg := *f.config
	cfg.AccessToken = ""
	if _, err := f.svc.TriggerBuildAction(ctx, f.step(t, 4), f.release, &cfg, ""); !errors.Is(err, ErrCredentialNotConfigured) {
		t.Errorf("expected ErrCredentialNotConfigured, got %v", err)
	}

	if len(f.gw.dispatches) != 0 {
		t.Errorf("gateway must not be called, got %d dispatches", len(f.gw.dispatches))
	}
}

func TestCheckActionStatus(t *testing.T) {
	tests := []struct {
		name       string
		run        domain.ActionRunRecord
		wantStatus domain.StepStatus
	}{
		{"running", domain.ActionRunRecord{ID: 9001, Status: domain.RunStatusInProgress}, domain.StepStatusInProgress},
		{"success", domain.ActionRunRecord{ID: 9001, Status: domain.RunStatusCompleted, Conclusion: "success"}, domain.StepStatusCompleted},
		{"failure", domain.ActionRunRecord{ID: 9001, Status: domain.RunStatusCompleted, Conclusion: "failure"}, domain.StepStatusFailed},
		{"cancelled", domain.ActionRunRecord{ID: 9001, Status: domain.RunStatusCompleted, Conclusion: "cancelled"}, domain.StepStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			step, err := f.svc.TriggerBuildAction(ctx, f.step(t, 4), f.release, f.config, "")
			if err != nil {
				t.Fatalf("trigger: %v", err)
			}

			run := tt.run
			f.gw.run = &run
			got, err := f.svc.CheckActionStatus(ctx, step, f.config)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("expected %s, got %s", tt.wantStatus, got.Status)
			}
			if got.ActionStatus != tt.run.Status {
				t.Errorf("expected action status %s, got %s", tt.run.Status, got.ActionStatus)
			}
		})
	}
}

func TestCheckActionStatus_NoRun(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CheckActionStatus(context.Background(), f.step(t, 4), f.config); !errors.Is(err, ErrNoActionRun) {
		t.Errorf("expected ErrNoActionRun, got %v", err)
	}
}

func TestTriggerBuildAction_RetryAfterFailedRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	step, err := f.svc.TriggerBuildAction(ctx, f.step(t, 4), f.release, f.config, "")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	f.gw.run = &domain.ActionRunRecord{ID: 9001, Status: domain.RunStatusCompleted, Conclusion: "failure"}
	if step, err = f.svc.CheckActionStatus(ctx, step, f.config); err != nil {
		t.Fatalf("check: %v", err)
	}
	if step.Status != domain.StepStatusFailed {
		t.Fatalf("expected FAILED, got %s", step.Status)
	}

	// Повторный запуск, run которого GitHub ещё не показывает.
	f.gw.run = &domain.ActionRunRecord{Status: domain.RunStatusQueued, HTMLURL: "https://github.com/acme/app/actions/workflows/build.yml"}
	retried, err := f.svc.TriggerBuildAction(ctx, step, f.release, f.config, "")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := f.gw.dispatches[1].PreviousRunID; got != 9001 {
		t.Errorf("expected previous run 9001 to be excluded, got %d", got)
	}
	if retried.Status != domain.StepStatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", retried.Status)
	}
	if retried.HasActionRun() || retried.ActionConclusion != "" {
		t.Errorf("previous run leaked into retry: id=%v conclusion=%q", retried.ActionRunID, retried.ActionConclusion)
	}
	if retried.ActionURL != "https://github.com/acme/app/actions/workflows/build.yml" {
		t.Errorf("expected workflow page link after retry, got %q", retried.ActionURL)
	}
	if !retried.AwaitingActionRun() || retried.ActionRef != "release" {
		t.Errorf("dispatch not recorded: ref=%q at=%v", retried.ActionRef, retried.ActionDispatchedAt)
	}

	// Пока run не виден, сверка не меняет шаг и не читает старый run.
	getRunCalls := f.gw.getRunCalls
	res, err := f.svc.ReconcileInProgress(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Checked != 1 || res.Changed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if f.gw.getRunCalls != getRunCalls {
		t.Error("old run must not be read after retry")
	}
	if len(f.gw.lookups) != 1 || !f.gw.lookups[0].Since.Equal(testNow) || f.gw.lookups[0].WorkflowID != "build.yml" {
		t.Errorf("unexpected lookups: %+v", f.gw.lookups)
	}
	if got := f.step(t, 4); got.Status != domain.StepStatusInProgress {
		t.Fatalf("retried step failed by stale run: %s", got.Status)
	}

	f.gw.found = &domain.ActionRunRecord{ID: 9002, Status: domain.RunStatusCompleted, Conclusion: "success"}
	if _, err := f.svc.ReconcileInProgress(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	got := f.step(t, 4)
	if got.Status != domain.StepStatusCompleted {
		t.Errorf("expected COMPLETED from run 9002, got %s", got.Status)
	}
	if got.ActionRunID == nil || *got.ActionRunID != 9002 {
		t.Errorf("expected run 9002, got %v", got.ActionRunID)
	}
}

func TestCheckActionStatus_RunNeverAppears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gw.run = &domain.ActionRunRecord{Status: domain.RunStatusQueued}
	step, err := f.svc.TriggerBuildAction(ctx, f.step(t, 4), f.release, f.config, "")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !step.AwaitingActionRun() {
		t.Fatal("expected step to await its run")
	}

	at := func(d time.Duration) *Service {
		return New(Config{
			Releases: f.store.Releases,
			Steps:    f.store.Steps,
			Projects: f.store.Projects,
			Gateway:  f.gw,
			Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
			Now:      func() time.Time { return testNow.Add(d) },
		})
	}

	// Неудачный поиск сдвигает шаг в конец очереди сверки.
	got, err := at(10*time.Minute).CheckActionStatus(ctx, step, f.config)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got.Status != domain.StepStatusInProgress {
		t.Errorf("expected IN_PROGRESS while waiting, got %s", got.Status)
	}
	if stored := f.stepByID(t, step.ID); !stored.UpdatedAt.Equal(testNow.Add(10 * time.Minute)) {
		t.Errorf("updated_at not touched: %v", stored.UpdatedAt)
	}

	got, err = at(defaultRunWaitTimeout).CheckActionStatus(ctx, got, f.config)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got.Status != domain.StepStatusFailed {
		t.Fatalf("expected FAILED after wait timeout, got %s", got.Status)
	}
	if !strings.Contains(got.Notes, "not found") {
		t.Errorf("failure not recorded in notes: %q", got.Notes)
	}
	if stored := f.stepByID(t, step.ID); stored.Status != domain.StepStatusFailed {
		t.Errorf("expected stored FAILED, got %s", stored.Status)
	}
	if len(f.gw.lookups) != 2 {
		t.Errorf("expected 2 lookups, got %d", len(f.gw.lookups))
	}
}
