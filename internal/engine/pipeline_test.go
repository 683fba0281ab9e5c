package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ReleaseTrain/internal/domain"
)

func TestInstantiatePipeline(t *testing.T) {
	releaseID := uuid.New()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	steps := InstantiatePipeline(releaseID, now)
	if len(steps) != 29 {
		t.Fatalf("expected 29 steps, got %d", len(steps))
	}

	tmpl := DefaultPipeline()
	ids := make(map[uuid.UUID]bool)
	for i, step := range steps {
		if step.StepNumber != i+1 {
			t.Errorf("step %d: expected number %d, got %d", i, i+1, step.StepNumber)
		}
		if step.Type != tmpl[i].Type {
			t.Errorf("step %d: expected type %s, got %s", i+1, tmpl[i].Type, step.Type)
		}
		if step.ReleaseID != releaseID {
			t.Errorf("step %d: wrong release id", i+1)
		}
		if step.Status != domain.StepStatusPending {
			t.Errorf("step %d: expected PENDING, got %s", i+1, step.Status)
		}
		if !step.CreatedAt.Equal(now) {
			t.Errorf("step %d: CreatedAt not stamped", i+1)
		}
		if ids[step.ID] {
			t.Errorf("step %d: duplicate id", i+1)
		}
		ids[step.ID] = true
	}

	if err := ValidateDependencies(steps); err != nil {
		t.Errorf("template should validate: %v", err)
	}
}

func TestDefaultPipeline_IsCopy(t *testing.T) {
	p := DefaultPipeline()
	p[0].Title = "changed"

	if DefaultPipeline()[0].Title == "changed" {
		t.Error("DefaultPipeline must return a copy")
	}
}

func TestDefaultPipeline_DevelopToRelease(t *testing.T) {
	p := DefaultPipeline()
	for _, n := range []int{2, 3} {
		s := p[n-1]
		if s.RepositoryType == "" || s.SourceBranch != "develop" || s.TargetBranch != "release" {
			t.Errorf("step %d should move develop to release: %+v", n, s)
		}
	}
}

func TestDefaultPipeline_RolloutOrder(t *testing.T) {
	want := []domain.StepType{
		domain.StepTypeBetaRollout100,
		domain.StepTypePublishRollout99_9999,
		domain.StepTypeProductionRollout5,
		domain.StepTypeProductionRollout30,
		domain.StepTypeProductionRollout50,
		domain.StepTypeProductionRollout75,
		domain.StepTypeProductionRollout99_99999,
	}

	p := DefaultPipeline()
	for i, st := range want {
		if got := p[21+i].Type; got != st {
			t.Errorf("step %d: expected %s, got %s", 22+i, st, got)
		}
	}
}

func TestEstimatedPipelineDuration(t *testing.T) {
	if EstimatedPipelineDuration() <= 0 {
		t.Error("expected positive duration")
	}
}
