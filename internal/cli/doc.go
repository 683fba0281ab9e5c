// Package cli реализует инструмент командной строки ReleaseTrain.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с ReleaseTrain API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует HTTP-запросы, парсинг ответов
// (DataResponse, ListResponse, ErrorResponse) и чтение SSE ленты шагов.
// Имя пользователя передаётся в заголовке X-ReleaseTrain-Actor.
//
//	client := cli.NewClient("http://localhost:8080", "alice")
//	releases, err := client.ListReleases(cli.ListReleasesOpts{})
//
// ## Output
//
// Форматирование вывода (флаг --output):
//   - table (tablewriter, статусы раскрашены lipgloss) — по умолчанию
//   - json
//   - yaml
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr:
// releasetrain release list -o json | jq .
//
// ## Commands
//
//   - project: list, create, show, config show|set|validate
//   - release: list, create, show, status, progress, watch
//   - step: list, show, start, complete, fail, retry, skip,
//     pr, pr-refresh, pr-merge, build, build-refresh
//   - pipeline
//
// Каждая группа создаётся фабричной функцией (NewReleaseCmd и т.д.),
// принимающей clientFn и outputFn для ленивого создания Client и Output
// после парсинга PersistentFlags.
package cli
