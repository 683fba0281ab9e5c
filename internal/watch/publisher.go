package watch

import (
	"context"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// HubPublisher будит подписчиков Hub напрямую, без брокера.
// Используется, когда API работает без RabbitMQ.
type HubPublisher struct {
	Hub *Hub
}

// PublishStepUpdated будит ленту релиза шага.
func (p HubPublisher) PublishStepUpdated(_ context.Context, step *domain.WorkflowStep) error {
	p.Hub.Notify(step.ReleaseID)
	return nil
}

// PublishReleaseUpdated будит ленту релиза.
func (p HubPublisher) PublishReleaseUpdated(_ context.Context, rel *domain.Release) error {
	p.Hub.Notify(rel.ID)
	return nil
}
