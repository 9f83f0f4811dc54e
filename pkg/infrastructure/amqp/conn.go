package amqp

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Logger interface {
	Info(...interface{})
	Error(error, ...interface{})
}

type Connection interface {
	// Start dials the broker, retrying until ConnectTimeout, and opens every registered channel.
	Start(ctx context.Context) error
	Stop() error
	AddChannel(channel Channel)

	Producer(exchangeConfig *ExchangeConfig, queueConfig *QueueConfig, bindConfig *BindConfig) Producer
	Consumer(
		ctx context.Context,
		handler Handler,
		queueConfig *QueueConfig,
		bindConfig *BindConfig,
		qosConfig *QoSConfig,
	) Consumer
}

type Channel interface {
	Connect(conn *amqp.Connection) error
}

func NewAMQPConnection(appID string, config *ConnectionConfig, logger Logger) Connection {
	return &connection{
		appID:  appID,
		config: config,
		logger: logger,
	}
}

type connection struct {
	appID  string
	config *ConnectionConfig
	logger Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	channels []Channel
	stopped  bool
}

func (c *connection) Start(ctx context.Context) error {
	url := fmt.Sprintf("amqp://%s:%s@%s/%s", c.config.User, c.config.Password, c.config.Host, c.config.VHost)

	var conn *amqp.Connection
	err := backoff.Retry(func() error {
		var dialErr error
		conn, dialErr = amqp.Dial(url)
		if dialErr != nil && ctx.Err() == nil {
			c.logger.Error(dialErr, "AMQP broker is not reachable yet")
		}
		return dialErr
	}, backoff.WithContext(newBackOff(c.config.ConnectTimeout), ctx))
	if err != nil {
		return errors.Wrap(err, "failed to connect to AMQP")
	}
	if err = c.validateConnection(conn); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	for _, channel := range c.channels {
		if err = channel.Connect(conn); err != nil {
			return errors.WithStack(err)
		}
	}

	connErrorChan := conn.NotifyClose(make(chan *amqp.Error, 1))
	go c.processConnectErrors(ctx, connErrorChan)

	return nil
}

func (c *connection) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

func (c *connection) AddChannel(channel Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = append(c.channels, channel)
}

func (c *connection) Producer(exchangeConfig *ExchangeConfig, queueConfig *QueueConfig, bindConfig *BindConfig) Producer {
	producer := NewProducer(c.appID, exchangeConfig, queueConfig, bindConfig, c.logger)
	c.AddChannel(producer)
	return producer
}

func (c *connection) Consumer(
	ctx context.Context,
	handler Handler,
	queueConfig *QueueConfig,
	bindConfig *BindConfig,
	qosConfig *QoSConfig,
) Consumer {
	consumer := NewConsumer(ctx, handler, queueConfig, bindConfig, qosConfig, c.logger)
	c.AddChannel(consumer)
	return consumer
}

func (c *connection) validateConnection(conn *amqp.Connection) error {
	if conn == nil {
		return stderrors.New("amqp connection is empty")
	}
	if conn.IsClosed() {
		return stderrors.New("amqp connection is closed")
	}
	return nil
}

func (c *connection) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *connection) processConnectErrors(ctx context.Context, ch chan *amqp.Error) {
	err, ok := <-ch
	if !ok || err == nil || c.isStopped() {
		return
	}

	c.logger.Error(err, "AMQP connection error, trying to reconnect")
	reconnect := backoff.NewExponentialBackOff()
	reconnect.MaxElapsedTime = 0
	reconnect.MaxInterval = 30 * time.Second
	for ctx.Err() == nil && !c.isStopped() {
		startErr := c.Start(ctx)
		if startErr == nil {
			c.logger.Info("AMQP connection restored")
			return
		}
		c.logger.Error(startErr, "failed to reconnect to AMQP")

		select {
		case <-time.After(reconnect.NextBackOff()):
		case <-ctx.Done():
		}
	}
}

func newBackOff(timeout time.Duration) backoff.BackOff {
	exponentialBackOff := backoff.NewExponentialBackOff()
	const defaultTimeout = 60 * time.Second
	if timeout != 0 {
		exponentialBackOff.MaxElapsedTime = timeout
	} else {
		exponentialBackOff.MaxElapsedTime = defaultTimeout
	}
	exponentialBackOff.MaxInterval = 5 * time.Second
	return exponentialBackOff
}
