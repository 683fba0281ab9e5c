package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEvents Exchange = "releasetrain.events"
)

// Routing keys. Совпадают с типами сообщений.
const (
	RoutingKeyStepUpdated    RoutingKey = "step.updated"
	RoutingKeyReleaseUpdated RoutingKey = "release.updated"

	// RoutingKeyAll — все события (topic wildcard).
	RoutingKeyAll RoutingKey = "#"
)

// declareTopology объявляет обменник событий. Вызывается при каждом
// подключении; очереди подписчиков создаются динамически (DeclareWatchQueue).
func declareTopology(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeEvents), // name
		"topic",                // type
		true,                   // durable
		false,                  // auto-deleted
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}
	return nil
}

// DeclareWatchQueue создаёт эксклюзивную очередь экземпляра,
// привязанную к событиям с данными ключами.
// Очередь удаляется RabbitMQ при закрытии соединения.
func DeclareWatchQueue(ch *amqp.Channel, keys ...RoutingKey) (string, error) {
	if len(keys) == 0 {
		keys = []RoutingKey{RoutingKeyAll}
	}

	q, err := ch.QueueDeclare(
		"",    // name (сгенерирует сервер)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare watch queue: %w", err)
	}

	for _, key := range keys {
		if err := ch.QueueBind(q.Name, string(key), string(ExchangeEvents), false, nil); err != nil {
			return "", fmt.Errorf("bind watch queue %s: %w", key, err)
		}
	}
	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  ReleaseTrain RabbitMQ Topology:

    releasetrain.events (topic)
    ├── step.updated     — шаг изменён (API, reconciler)
    └── release.updated  — релиз изменён
        Consumers: exclusive per-instance watch queues (#)
  `
}
