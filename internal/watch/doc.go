// Package watch реализует ленту изменений поверх обычного чтения из БД.
//
// Feed перечитывает источник с фиксированным интервалом и отдаёт
// снимки в канал. Hub позволяет разбудить ленту раньше таймера,
// когда приходит событие (RabbitMQ или локальная запись).
// Потребитель должен допускать устаревание данных не больше интервала.
package watch
