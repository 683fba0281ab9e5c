// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — обменник событий и эксклюзивные watch очереди
//   - publisher.go  — публикация событий
//   - subscriber.go — подписка экземпляра API на события для watch feed
//
// Типы сообщений:
//   - step.updated    — шаг релиза изменился
//   - release.updated — релиз изменился
//
// События — уведомления без гарантии доставки: источником истины
// остаётся БД, а watch feed перечитывает её по событию или по таймеру.
package mq
