package amqp

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
)

type Producer interface {
	Channel
	Publish(ctx context.Context, delivery Delivery) error
}

func NewProducer(
	appID string,
	exchangeConfig *ExchangeConfig,
	queueConfig *QueueConfig,
	bindConfig *BindConfig,
	logger Logger,
) Producer {
	if exchangeConfig == nil && queueConfig == nil {
		panic("exchange or queue config is required")
	}
	return &producer{
		appID:          appID,
		exchangeConfig: exchangeConfig,
		queueConfig:    queueConfig,
		bindConfig:     bindConfig,
		logger:         logger,
	}
}

type producer struct {
	appID          string
	exchangeConfig *ExchangeConfig
	queueConfig    *QueueConfig
	bindConfig     *BindConfig
	logger         Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func (p *producer) Connect(conn *amqp.Connection) (err error) {
	channel, err := conn.Channel()
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

	if p.exchangeConfig != nil {
		if err = p.exchangeConfig.declare(channel); err != nil {
			return err
		}
	}
	if p.queueConfig != nil {
		if err = p.queueConfig.declare(channel); err != nil {
			return err
		}
	}
	if p.bindConfig != nil {
		if err = p.bindConfig.declare(channel); err != nil {
			return err
		}
	}

	if err = channel.Confirm(false); err != nil {
		return err
	}

	connErrorChan := channel.NotifyClose(make(chan *amqp.Error, 1))
	go p.processConnectErrors(connErrorChan)

	p.mu.Lock()
	p.conn = conn
	p.channel = channel
	p.mu.Unlock()

	return nil
}

// Publish returns once the broker confirmed the message.
func (p *producer) Publish(ctx context.Context, delivery Delivery) error {
	p.mu.RLock()
	channel := p.channel
	p.mu.RUnlock()

	if err := validateChannel(channel); err != nil {
		return err
	}

	var exchange string
	if p.exchangeConfig != nil {
		exchange = p.exchangeConfig.Name
	}
	routingKey := delivery.RoutingKey
	if routingKey == "" && p.exchangeConfig == nil {
		routingKey = p.queueConfig.Name
	}

	confirmation, err := channel.PublishWithDeferredConfirmWithContext(
		ctx,
		exchange,
		routingKey,
		true,
		false,
		amqp.Publishing{
			ContentType:   delivery.ContentType,
			DeliveryMode:  amqp.Persistent,
			CorrelationId: delivery.CorrelationID,
			Timestamp:     time.Now(),
			Type:          delivery.Type,
			AppId:         p.appID,
			Body:          delivery.Body,
		},
	)
	if err != nil {
		return errors.WithStack(err)
	}
	if confirmation == nil {
		return nil
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if !acked {
		return stderrors.New("broker refused the published message")
	}
	return nil
}

func (p *producer) processConnectErrors(ch chan *amqp.Error) {
	err, ok := <-ch
	if !ok || err == nil {
		return
	}
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn.IsClosed() {
		return
	}

	p.logger.Error(err, "AMQP channel error, trying to reconnect")
	if err := retryChannel(context.Background(), func() error { return p.Connect(conn) }); err != nil {
		p.logger.Error(err, "failed to reconnect to AMQP channel")
		return
	}
	p.logger.Info("AMQP channel restored")
}
