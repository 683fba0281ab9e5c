package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// errDeliveriesClosed — брокер закрыл канал или соединение.
var errDeliveriesClosed = errors.New("deliveries channel closed")

// NotifyFunc получает ID релиза, для которого пришло событие.
type NotifyFunc func(releaseID uuid.UUID)

// SubscriberConfig — конфигурация подписчика на события релизов.
type SubscriberConfig struct {
	// Keys — на какие события подписываться (default: step.updated и release.updated).
	Keys []RoutingKey

	// Notify вызывается на каждое событие с известным релизом.
	Notify NotifyFunc

	// Prefetch — сколько доставок держать без ack (default: 32).
	Prefetch int

	// RetryDelay — первая пауза перед повторной подпиской (default: 1s).
	// Дальше пауза растёт до MaxRetryDelay (default: 30s).
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	Logger *slog.Logger
}

// Subscriber слушает releasetrain.events через эксклюзивную очередь
// экземпляра и будит watch feed тех релизов, о которых пришло событие.
//
// Подписка живёт на собственном канале. Канал, закрытый брокером
// (ошибка Qos/Consume, удалённая очередь), открывается заново с
// растущей паузой; после переподключения соединения — сразу.
// События без релиза или с битым телом отбрасываются: источником
// истины остаётся БД.
type Subscriber struct {
	logger   *slog.Logger
	keys     []RoutingKey
	notify   NotifyFunc
	prefetch int

	retryDelay    time.Duration
	maxRetryDelay time.Duration

	openChannel func() (*amqp.Channel, error)
	reconnected <-chan struct{}
}

// NewSubscriber создаёт Subscriber.
func NewSubscriber(conn *Connection, cfg SubscriberConfig) *Subscriber {
	if len(cfg.Keys) == 0 {
		cfg.Keys = []RoutingKey{RoutingKeyStepUpdated, RoutingKeyReleaseUpdated}
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 32
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = initialBackoff
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = max(defaultMaxBackoff, cfg.RetryDelay)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notify == nil {
		cfg.Notify = func(uuid.UUID) {}
	}
	return &Subscriber{
		logger:        cfg.Logger.With("component", "watch-subscriber"),
		keys:          cfg.Keys,
		notify:        cfg.Notify,
		prefetch:      cfg.Prefetch,
		retryDelay:    cfg.RetryDelay,
		maxRetryDelay: cfg.MaxRetryDelay,
		openChannel:   conn.OpenChannel,
		reconnected:   conn.ReconnectNotify(),
	}
}

// Run слушает события до отмены ctx.
func (s *Subscriber) Run(ctx context.Context) error {
	delay := s.retryDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ch, queue, deliveries, err := s.subscribe()
		if err == nil {
			s.logger.Info("watch subscription started", "queue", queue)
			delay = s.retryDelay
			err = s.drain(ctx, deliveries)
			ch.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		s.logger.Warn("watch subscription interrupted", "error", err, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.reconnected:
			timer.Stop()
			delay = s.retryDelay
		case <-timer.C:
			delay = nextBackoff(delay, s.maxRetryDelay)
		}
	}
}

// subscribe открывает канал, объявляет очередь экземпляра и начинает
// потребление. При ошибке канал закрывается.
func (s *Subscriber) subscribe() (*amqp.Channel, string, <-chan amqp.Delivery, error) {
	ch, err := s.openChannel()
	if err != nil {
		return nil, "", nil, err
	}

	queue, deliveries, err := s.consume(ch)
	if err != nil {
		ch.Close()
		return nil, "", nil, err
	}
	return ch, queue, deliveries, nil
}

func (s *Subscriber) consume(ch *amqp.Channel) (string, <-chan amqp.Delivery, error) {
	queue, err := DeclareWatchQueue(ch, s.keys...)
	if err != nil {
		return "", nil, err
	}
	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		return "", nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue, // queue
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return "", nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return queue, deliveries, nil
}

func (s *Subscriber) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			s.handle(raw.Body)
			raw.Ack(false)
		}
	}
}

// handle разбирает тело события и вызывает notify.
func (s *Subscriber) handle(body []byte) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		s.logger.Warn("dropping malformed event", "error", err)
		return
	}
	releaseID, err := ReleaseIDOf(&msg)
	if err != nil {
		s.logger.Debug("dropping event", "type", msg.Type, "error", err)
		return
	}
	s.notify(releaseID)
}

// ParsePayload парсит payload сообщения в указанный тип.
// После json.Unmarshal конверта payload — это map, поэтому он
// перекодируется в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
