// Package telemetry — логирование и метрики ReleaseTrain.
//
//   - logging.go — slog логгер (json/text), логгер в context,
//     поля release_id / step_id / project_id
//   - metrics.go — счётчики вызовов GitHub, операций оркестратора,
//     сверки и состояния RabbitMQ
//
// API и reconciler отдают метрики на /metrics.
package telemetry
