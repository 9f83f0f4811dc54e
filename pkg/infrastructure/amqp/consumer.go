package amqp

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
)

// Handler takes ownership of a delivery when it returns nil and must settle it
// with Ack or Reject later. A returned error requeues the delivery immediately.
type Handler func(ctx context.Context, delivery Delivery) error

type Consumer interface {
	Channel
}

func NewConsumer(
	ctx context.Context,
	handler Handler,
	queueConfig *QueueConfig,
	bindConfig *BindConfig,
	qosConfig *QoSConfig,
	logger Logger,
) Consumer {
	if queueConfig == nil {
		panic("queue config is required")
	}
	return &consumer{
		ctx:         ctx,
		handler:     handler,
		queueConfig: queueConfig,
		bindConfig:  bindConfig,
		qosConfig:   qosConfig,
		logger:      logger,
	}
}

type consumer struct {
	ctx         context.Context
	handler     Handler
	queueConfig *QueueConfig
	bindConfig  *BindConfig
	qosConfig   *QoSConfig

	logger  Logger
	conn    *amqp.Connection
	channel *amqp.Channel
}

func (c *consumer) Connect(conn *amqp.Connection) (err error) {
	c.conn = conn

	channel, err := c.conn.Channel()
	if err != nil {
		return err
	}
	err = validateChannel(channel)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = liberr.Join(err, channel.Close())
		}
	}()

	if err = c.queueConfig.declare(channel); err != nil {
		return err
	}
	if c.bindConfig != nil {
		if err = c.bindConfig.declare(channel); err != nil {
			return err
		}
	}
	if c.qosConfig != nil {
		if err = c.qosConfig.declare(channel); err != nil {
			return err
		}
	}

	deliveries, err := channel.Consume(c.queueConfig.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	connErrorChan := channel.NotifyClose(make(chan *amqp.Error, 1))
	go c.processConnectErrors(connErrorChan)

	c.channel = channel
	go c.consume(deliveries)

	return nil
}

func (c *consumer) consume(deliveries <-chan amqp.Delivery) {
	for delivery := range deliveries {
		d := newInboundDelivery(delivery)
		if err := c.handler(c.ctx, d); err != nil {
			if rejectErr := d.Reject(true); rejectErr != nil {
				c.logger.Error(rejectErr, "failed to requeue AMQP delivery")
			}
		}
	}
}

func (c *consumer) processConnectErrors(ch chan *amqp.Error) {
	err, ok := <-ch
	if !ok || err == nil {
		return
	}
	if c.conn.IsClosed() {
		// the connection restarts every channel itself
		return
	}

	c.logger.Error(err, "AMQP channel error, trying to reconnect")
	if err := retryChannel(c.ctx, func() error { return c.Connect(c.conn) }); err != nil {
		c.logger.Error(err, "failed to reconnect to AMQP channel")
		return
	}
	c.logger.Info("AMQP channel restored")
}
