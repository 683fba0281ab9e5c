package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayRequests — запросы к GitHub по операции и результату.
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "releasetrain_gateway_requests_total",
		Help: "GitHub API requests by operation and outcome",
	}, []string{"op", "outcome"})

	// GatewayDuration — длительность запросов к GitHub.
	GatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "releasetrain_gateway_request_duration_seconds",
		Help:    "GitHub API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// StepTransitions — переходы шагов по целевому статусу.
	StepTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "releasetrain_step_transitions_total",
		Help: "Workflow step status transitions by target status",
	}, []string{"status"})

	// OrchestratorActions — действия оркестратора по имени и результату.
	OrchestratorActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "releasetrain_orchestrator_actions_total",
		Help: "Orchestrator actions by name and outcome",
	}, []string{"action", "outcome"})

	// PersistFailures — ошибки записи после успешного внешнего вызова.
	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "releasetrain_persist_failures_total",
		Help: "Store writes that failed after a successful GitHub call",
	}, []string{"action"})

	// ReconcileRuns — проходы reconciler.
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "releasetrain_reconcile_runs_total",
		Help: "Reconciler passes by outcome",
	}, []string{"outcome"})

	// MQConnected — 1, пока соединение с RabbitMQ установлено.
	MQConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "releasetrain_mq_connected",
		Help: "Whether the RabbitMQ connection is up",
	})

	// MQReconnects — попытки переподключения к RabbitMQ по результату.
	MQReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "releasetrain_mq_reconnects_total",
		Help: "RabbitMQ reconnect attempts by outcome",
	}, []string{"outcome"})

	// WatchSubscribers — активные подписки на watch feed.
	WatchSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "releasetrain_watch_subscribers",
		Help: "Active watch feed subscribers",
	})
)

// Outcome возвращает метку результата для err.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
