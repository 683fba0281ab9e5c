package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/ReleaseTrain/internal/telemetry"
)

const defaultInterval = 5 * time.Second

// Source читает текущий снимок данных.
type Source[T any] func(ctx context.Context) ([]T, error)

// Config — конфигурация Feed.
type Config struct {
	// Interval — период опроса (по умолчанию 5s).
	Interval time.Duration

	// Logger для ошибок чтения.
	Logger *slog.Logger
}

// Feed — перезапускаемая лента снимков.
type Feed[T any] struct {
	source   Source[T]
	interval time.Duration
	logger   *slog.Logger
}

// NewFeed создаёт ленту над source.
func NewFeed[T any](source Source[T], cfg Config) *Feed[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Feed[T]{
		source:   source,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
}

// Interval возвращает период опроса.
func (f *Feed[T]) Interval() time.Duration {
	return f.interval
}

// Watch запускает ленту: первый снимок сразу, дальше по таймеру
// или по сигналу из wake (может быть nil).
//
// Канал закрывается при отмене ctx. Каждый вызов Watch независим,
// поэтому ленту можно перезапустить.
// Ошибки чтения логируются, снимок пропускается.
func (f *Feed[T]) Watch(ctx context.Context, wake <-chan struct{}) <-chan []T {
	out := make(chan []T)

	go func() {
		defer close(out)

		telemetry.WatchSubscribers.Inc()
		defer telemetry.WatchSubscribers.Dec()

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		// Первый снимок сразу
		if !f.emit(ctx, out) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case _, ok := <-wake:
				if !ok {
					wake = nil
					continue
				}
				ticker.Reset(f.interval)
			}

			if !f.emit(ctx, out) {
				return
			}
		}
	}()

	return out
}

// emit читает снимок и отправляет его. false — ctx отменён.
func (f *Feed[T]) emit(ctx context.Context, out chan<- []T) bool {
	items, err := f.source(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		f.logger.Warn("watch source failed", "error", err)
		return true
	}

	select {
	case out <- items:
		return true
	case <-ctx.Done():
		return false
	}
}
