package mq

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/ReleaseTrain/internal/telemetry"
)

// ErrNotConnected — соединение с RabbitMQ сейчас не установлено.
var ErrNotConnected = errors.New("rabbitmq not connected")

const (
	defaultConnectionName = "releasetrain"
	defaultHeartbeat      = 10 * time.Second
	defaultDialTimeout    = 10 * time.Second
	defaultMaxBackoff     = 30 * time.Second
	initialBackoff        = time.Second
)

// ConnectionConfig — параметры соединения с RabbitMQ.
type ConnectionConfig struct {
	URL string

	// Name — имя соединения в management UI (default: releasetrain).
	Name string

	Heartbeat   time.Duration
	DialTimeout time.Duration

	// MaxBackoff — верхняя граница паузы между попытками переподключения.
	MaxBackoff time.Duration

	Logger *slog.Logger
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	if c.Name == "" {
		c.Name = defaultConnectionName
	}
	if c.Heartbeat == 0 {
		c.Heartbeat = defaultHeartbeat
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Connection держит AMQP соединение и канал событий релизов.
//
// При каждом подключении заново объявляется обменник releasetrain.events,
// поэтому после рестарта брокера публикация продолжает работать.
// Состояние отражается в метрике releasetrain_mq_connected.
type Connection struct {
	cfg    ConnectionConfig
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	done        chan struct{}
	reconnected chan struct{}
}

// Dial подключается к RabbitMQ и объявляет топологию событий.
// Дальнейшие разрывы обрабатываются в фоне.
func Dial(cfg ConnectionConfig) (*Connection, error) {
	cfg = cfg.withDefaults()
	c := &Connection{
		cfg:         cfg,
		logger:      cfg.Logger.With("component", "rabbitmq", "connection", cfg.Name),
		done:        make(chan struct{}),
		reconnected: make(chan struct{}, 1),
	}

	conn, err := c.connect()
	if err != nil {
		return nil, err
	}
	go c.supervise(conn)

	return c, nil
}

// connect открывает соединение и канал, затем объявляет топологию.
func (c *Connection) connect() (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
		Heartbeat:  c.cfg.Heartbeat,
		Locale:     "en_US",
		Properties: amqp.Table{"connection_name": c.cfg.Name},
		Dial:       amqp.DefaultDial(c.cfg.DialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		conn.Close()
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil, ErrNotConnected
	}
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	telemetry.MQConnected.Set(1)
	c.logger.Info("connected to rabbitmq")
	return conn, nil
}

// supervise ждёт разрыва conn и переподключается, пока соединение не закрыто.
func (c *Connection) supervise(conn *amqp.Connection) {
	for {
		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.done:
			return
		case amqpErr := <-notifyClose:
			if amqpErr != nil {
				c.logger.Warn("rabbitmq connection lost", "error", amqpErr)
			}
		}

		c.mu.Lock()
		c.conn, c.channel = nil, nil
		c.mu.Unlock()
		telemetry.MQConnected.Set(0)

		next, ok := c.reconnect()
		if !ok {
			return
		}
		conn = next

		// Subscriber заново объявляет свою очередь по этому сигналу.
		select {
		case c.reconnected <- struct{}{}:
		default:
		}
	}
}

// reconnect повторяет connect с растущей паузой. false — соединение закрыто.
func (c *Connection) reconnect() (*amqp.Connection, bool) {
	delay := initialBackoff
	for {
		timer := time.NewTimer(delay)
		select {
		case <-c.done:
			timer.Stop()
			return nil, false
		case <-timer.C:
		}

		conn, err := c.connect()
		if err != nil {
			telemetry.MQReconnects.WithLabelValues("error").Inc()
			c.logger.Warn("rabbitmq reconnect failed", "error", err, "retry_in", delay)
			delay = nextBackoff(delay, c.cfg.MaxBackoff)
			continue
		}
		telemetry.MQReconnects.WithLabelValues("ok").Inc()
		return conn, true
	}
}

func nextBackoff(delay, limit time.Duration) time.Duration {
	return min(delay*2, limit)
}

// Channel возвращает текущий канал или nil, если соединения нет.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// OpenChannel открывает отдельный канал на текущем соединении.
// Закрывает его вызывающий.
func (c *Connection) OpenChannel() (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// ReconnectNotify сигналит после каждого успешного переподключения.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnected
}

// WithChannel выполняет fn с текущим каналом.
// Без соединения возвращает ErrNotConnected.
func (c *Connection) WithChannel(fn func(ch *amqp.Channel) error) error {
	ch := c.Channel()
	if ch == nil {
		return ErrNotConnected
	}
	return fn(ch)
}

// IsConnected сообщает, есть ли живое соединение.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close закрывает соединение и останавливает переподключение.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	telemetry.MQConnected.Set(0)

	if c.conn == nil {
		return nil
	}
	// Закрытие соединения закрывает и канал.
	err := c.conn.Close()
	c.conn, c.channel = nil, nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close rabbitmq connection: %w", err)
	}
	c.logger.Info("rabbitmq connection closed")
	return nil
}
