package orchestrator

import "context"

// SystemActor — исполнитель изменений, сделанных по данным GitHub.
const SystemActor = "github"

const defaultActor = "releasetrain"

type actorKey struct{}

// WithActor сохраняет имя пользователя в контексте.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom возвращает пользователя из контекста.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return defaultActor
}
