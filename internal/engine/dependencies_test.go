package engine

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/ReleaseTrain/internal/domain"
)

func makeSteps(n int) []domain.WorkflowStep {
	releaseID := uuid.New()
	steps := make([]domain.WorkflowStep, n)
	for i := range steps {
		steps[i] = domain.WorkflowStep{
			ID:         uuid.New(),
			ReleaseID:  releaseID,
			StepNumber: i + 1,
			Status:     domain.StepStatusPending,
		}
	}
	return steps
}

func TestIsEligible(t *testing.T) {
	steps := makeSteps(3)
	a, b, c := &steps[0], &steps[1], &steps[2]
	c.DependsOn = []uuid.UUID{a.ID, b.ID}

	if !IsEligible(a, steps) {
		t.Error("step without dependencies is always eligible")
	}

	tests := []struct {
		a, b domain.StepStatus
		want bool
	}{
		{domain.StepStatusCompleted, domain.StepStatusCompleted, true},
		{domain.StepStatusCompleted, domain.StepStatusSkipped, true},
		{domain.StepStatusSkipped, domain.StepStatusSkipped, true},
		{domain.StepStatusCompleted, domain.StepStatusFailed, false},
		{domain.StepStatusPending, domain.StepStatusCompleted, false},
		{domain.StepStatusInProgress, domain.StepStatusCompleted, false},
	}

	for _, tt := range tests {
		a.Status, b.Status = tt.a, tt.b
		if got := IsEligible(c, steps); got != tt.want {
			t.Errorf("A=%s B=%s: expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestCheckEligible_Error(t *testing.T) {
	steps := makeSteps(2)
	steps[1].DependsOn = []uuid.UUID{steps[0].ID}

	err := CheckEligible(&steps[1], steps)
	if !errors.Is(err, ErrDependencyNotMet) {
		t.Fatalf("expected ErrDependencyNotMet, got %v", err)
	}

	var de *DependencyError
	if !errors.As(err, &de) || len(de.Blocking) != 1 || de.Blocking[0] != steps[0].ID {
		t.Errorf("expected blocking step 1, got %+v", de)
	}
}

func TestBlockingDependencies_Unknown(t *testing.T) {
	steps := makeSteps(1)
	steps[0].DependsOn = []uuid.UUID{uuid.New()}

	if IsEligible(&steps[0], steps) {
		t.Error("unknown dependency should block")
	}
}

func TestBlockingDependencies_LaterStep(t *testing.T) {
	steps := makeSteps(3)
	steps[2].Status = domain.StepStatusCompleted
	steps[1].Status = domain.StepStatusCompleted
	steps[0].DependsOn = []uuid.UUID{steps[2].ID}
	steps[2].DependsOn = []uuid.UUID{steps[1].ID}

	blocking := BlockingDependencies(&steps[0], steps)
	if len(blocking) != 1 || blocking[0] != steps[2].ID {
		t.Errorf("completed later step must still block, got %v", blocking)
	}
	if !IsEligible(&steps[2], steps) {
		t.Error("completed earlier step should satisfy the dependency")
	}

	steps[1].DependsOn = []uuid.UUID{steps[1].ID}
	if IsEligible(&steps[1], steps) {
		t.Error("self dependency should block")
	}
}

func TestValidateDependencies(t *testing.T) {
	t.Run("forward", func(t *testing.T) {
		steps := makeSteps(2)
		steps[0].DependsOn = []uuid.UUID{steps[1].ID}
		if err := ValidateDependencies(steps); !errors.Is(err, ErrForwardDependency) {
			t.Errorf("expected ErrForwardDependency, got %v", err)
		}
	})

	t.Run("self", func(t *testing.T) {
		steps := makeSteps(1)
		steps[0].DependsOn = []uuid.UUID{steps[0].ID}
		if err := ValidateDependencies(steps); !errors.Is(err, ErrSelfDependency) {
			t.Errorf("expected ErrSelfDependency, got %v", err)
		}
	})

	t.Run("foreign", func(t *testing.T) {
		steps := makeSteps(2)
		steps[1].DependsOn = []uuid.UUID{uuid.New()}
		if err := ValidateDependencies(steps); !errors.Is(err, ErrForeignDependency) {
			t.Errorf("expected ErrForeignDependency, got %v", err)
		}
	})

	t.Run("other release", func(t *testing.T) {
		steps := makeSteps(2)
		steps[1].ReleaseID = uuid.New()
		if err := ValidateDependencies(steps); !errors.Is(err, ErrForeignDependency) {
			t.Errorf("expected ErrForeignDependency, got %v", err)
		}
	})

	t.Run("duplicate number", func(t *testing.T) {
		steps := makeSteps(2)
		steps[1].StepNumber = 1
		if err := ValidateDependencies(steps); !errors.Is(err, ErrDuplicateStepNumber) {
			t.Errorf("expected ErrDuplicateStepNumber, got %v", err)
		}
	})

	t.Run("valid chain", func(t *testing.T) {
		steps := makeSteps(4)
		steps[1].DependsOn = []uuid.UUID{steps[0].ID}
		steps[3].DependsOn = []uuid.UUID{steps[1].ID, steps[2].ID}

		g, err := BuildStepGraph(steps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, node := range g.Order {
			if node.Step.StepNumber != i+1 {
				t.Errorf("order[%d]: expected step %d, got %d", i, i+1, node.Step.StepNumber)
			}
		}
	})
}

func TestNextEligible(t *testing.T) {
	steps := makeSteps(3)
	steps[0].Status = domain.StepStatusCompleted
	steps[2].DependsOn = []uuid.UUID{steps[1].ID}

	next := NextEligible(steps)
	if next == nil || next.StepNumber != 2 {
		t.Fatalf("expected step 2, got %+v", next)
	}

	steps[1].Status = domain.StepStatusSkipped
	next = NextEligible(steps)
	if next == nil || next.StepNumber != 3 {
		t.Fatalf("expected step 3, got %+v", next)
	}

	steps[2].Status = domain.StepStatusCompleted
	if NextEligible(steps) != nil {
		t.Error("expected nil when all steps are done")
	}
}
