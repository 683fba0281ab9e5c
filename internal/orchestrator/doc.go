// Package orchestrator связывает шаги релиза с GitHub.
//
// Service отвечает за:
//   - создание релиза из шаблона pipeline
//   - ручные действия над шагами (start/complete/fail/retry/skip)
//   - создание PR для шагов, двигающих ветки
//   - запуск CI workflow для build шагов
//   - сверку шагов с состоянием PR и workflow run
//
// Каждая операция делает не больше одного внешнего вызова и одной
// записи в хранилище. Блокировок нет: при гонке побеждает последняя запись.
// Операции не идемпотентны: повторный вызов создаёт второй PR или run.
package orchestrator
