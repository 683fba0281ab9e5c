package api

import (
	"log/slog"
	"time"

	"github.com/shaiso/ReleaseTrain/internal/orchestrator"
	"github.com/shaiso/ReleaseTrain/internal/watch"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	svc           *orchestrator.Service
	hub           *watch.Hub
	watchInterval time.Duration
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Service *orchestrator.Service

	// Hub — сигналы об изменениях для SSE (опционально).
	Hub *watch.Hub

	// WatchInterval — период опроса ленты шагов (default: 5s).
	WatchInterval time.Duration

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = watch.NewHub()
	}
	return &Handler{
		svc:           cfg.Service,
		hub:           hub,
		watchInterval: cfg.WatchInterval,
		logger:        logger,
	}
}
