package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/telemetry"
	"github.com/shaiso/ReleaseTrain/internal/watch"
)

// WatchRelease стримит снимки шагов релиза через Server-Sent Events.
//
// Первый снимок отправляется сразу. Следующие — при уведомлении из hub
// или по таймеру, только если содержимое изменилось.
// GET /api/v1/releases/{id}/watch
func (h *Handler) WatchRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid release id")
	if !ok {
		return
	}

	ctx := r.Context()
	if _, err := h.svc.GetRelease(ctx, id); HandleRepoError(w, h.logger, err, "release not found") {
		return
	}

	wake, unsubscribe := h.hub.Subscribe(id)
	defer unsubscribe()

	feed := watch.NewFeed[domain.WorkflowStep](func(ctx context.Context) ([]domain.WorkflowStep, error) {
		return h.svc.ListSteps(ctx, id)
	}, watch.Config{Interval: h.watchInterval, Logger: h.logger})

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		h.logger.Warn("watch: streaming not supported", "error", err)
		return
	}

	log := telemetry.WithReleaseID(h.logger, id.String())
	log.Debug("watch subscriber connected")
	defer log.Debug("watch subscriber disconnected")

	var last []byte
	for steps := range feed.Watch(ctx, wake) {
		data, err := json.Marshal(StepsFromDomain(steps))
		if err != nil {
			log.Error("watch: marshal snapshot", "error", err)
			return
		}
		if bytes.Equal(data, last) {
			continue
		}
		last = data

		if _, err := fmt.Fprintf(w, "event: steps\ndata: %s\n\n", data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
