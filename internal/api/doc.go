// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go         — Handler с DI (оркестратор, hub, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery, actor)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - project_handler.go — обработчики для /projects
//   - release_handler.go — обработчики для /releases и /pipeline
//   - step_handler.go    — обработчики для /steps и действий GitHub
//   - watch_handler.go   — SSE лента шагов релиза
//
// Все изменения состояния идут через orchestrator.Service.
package api
