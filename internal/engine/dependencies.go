package engine

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// Node — узел графа зависимостей шагов релиза.
type Node struct {
	// Step — шаг релиза.
	Step *domain.WorkflowStep

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// StepGraph — граф зависимостей шагов одного релиза.
type StepGraph struct {
	// Nodes — все узлы графа (stepID → Node).
	Nodes map[uuid.UUID]*Node

	// Order — топологически отсортированный список узлов.
	// При равенстве порядок определяется StepNumber.
	Order []*Node
}

// BuildStepGraph строит граф зависимостей и проверяет инварианты:
//   - все шаги принадлежат одному релизу, StepNumber уникален
//   - DependsOn ссылается только на шаги того же релиза
//   - зависимость имеет строго меньший StepNumber
//   - циклов нет
func BuildStepGraph(steps []domain.WorkflowStep) (*StepGraph, error) {
	g := &StepGraph{Nodes: make(map[uuid.UUID]*Node, len(steps))}

	numbers := make(map[int]uuid.UUID, len(steps))
	var releaseID uuid.UUID

	// Первый проход: узлы
	for i := range steps {
		step := &steps[i]

		if i == 0 {
			releaseID = step.ReleaseID
		} else if step.ReleaseID != releaseID {
			return nil, NewValidationError(step.ID, "release_id",
				"steps belong to different releases", ErrForeignDependency)
		}

		if _, dup := numbers[step.StepNumber]; dup {
			return nil, NewValidationError(step.ID, "step_number",
				fmt.Sprintf("duplicate step number %d", step.StepNumber), ErrDuplicateStepNumber)
		}
		numbers[step.StepNumber] = step.ID

		g.Nodes[step.ID] = &Node{Step: step}
	}

	// Второй проход: рёбра
	for i := range steps {
		step := &steps[i]
		node := g.Nodes[step.ID]

		for _, depID := range step.DependsOn {
			if depID == step.ID {
				return nil, NewValidationError(step.ID, "depends_on",
					"step depends on itself", ErrSelfDependency)
			}

			depNode, ok := g.Nodes[depID]
			if !ok {
				return nil, NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", depID), ErrForeignDependency)
			}

			if depNode.Step.StepNumber >= step.StepNumber {
				return nil, NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on step %d which is not before step %d",
						depNode.Step.StepNumber, step.StepNumber), ErrForwardDependency)
			}

			g.addEdge(depNode, node)
		}
	}

	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// ValidateDependencies проверяет инварианты DependsOn для шагов релиза.
func ValidateDependencies(steps []domain.WorkflowStep) error {
	_, err := BuildStepGraph(steps)
	return err
}

// addEdge добавляет ребро между узлами, игнорируя дубликаты.
func (g *StepGraph) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep == from {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// topologicalSort выполняет сортировку Кана с приоритетом по StepNumber.
func (g *StepGraph) topologicalSort() ([]*Node, error) {
	inDegree := make(map[uuid.UUID]int, len(g.Nodes))
	queue := make([]*Node, 0)
	for id, node := range g.Nodes {
		inDegree[id] = node.InDegree
		if node.InDegree == 0 {
			queue = append(queue, node)
		}
	}

	order := make([]*Node, 0, len(g.Nodes))
	for len(queue) > 0 {
		sort.Slice(queue, func(i, j int) bool {
			return queue[i].Step.StepNumber < queue[j].Step.StepNumber
		})
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.Step.ID]--
			if inDegree[dependent.Step.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, ErrCyclicDependency
	}
	return order, nil
}

// BlockingDependencies возвращает зависимости шага, которые ещё не
// COMPLETED и не SKIPPED. Неизвестные ID и ссылки на шаги с тем же
// или большим StepNumber тоже считаются блокирующими.
//
// steps — все шаги того же релиза.
func BlockingDependencies(step *domain.WorkflowStep, steps []domain.WorkflowStep) []uuid.UUID {
	if len(step.DependsOn) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.WorkflowStep, len(steps))
	for i := range steps {
		byID[steps[i].ID] = &steps[i]
	}

	var blocking []uuid.UUID
	for _, depID := range step.DependsOn {
		dep, ok := byID[depID]
		if !ok || dep.ReleaseID != step.ReleaseID || dep.ID == step.ID ||
			dep.StepNumber >= step.StepNumber {
			blocking = append(blocking, depID)
			continue
		}
		if !dep.Status.SatisfiesDependency() {
			blocking = append(blocking, depID)
		}
	}
	return blocking
}

// IsEligible возвращает true, если все зависимости шага удовлетворены.
// Шаг без зависимостей всегда может быть начат.
func IsEligible(step *domain.WorkflowStep, steps []domain.WorkflowStep) bool {
	return len(BlockingDependencies(step, steps)) == 0
}

// CheckEligible возвращает DependencyError, если шаг нельзя начать.
func CheckEligible(step *domain.WorkflowStep, steps []domain.WorkflowStep) error {
	blocking := BlockingDependencies(step, steps)
	if len(blocking) == 0 {
		return nil
	}
	return &DependencyError{StepID: step.ID, Blocking: blocking}
}

// NextEligible возвращает первый по StepNumber шаг в PENDING или FAILED,
// который можно начать. nil, если таких нет.
func NextEligible(steps []domain.WorkflowStep) *domain.WorkflowStep {
	sorted := make([]*domain.WorkflowStep, 0, len(steps))
	for i := range steps {
		sorted = append(sorted, &steps[i])
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StepNumber < sorted[j].StepNumber
	})

	for _, step := range sorted {
		if step.Status != domain.StepStatusPending && step.Status != domain.StepStatusFailed {
			continue
		}
		if IsEligible(step, steps) {
			return step
		}
	}
	return nil
}
