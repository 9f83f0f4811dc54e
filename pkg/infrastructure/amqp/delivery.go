package amqp

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff"
	amqp "github.com/rabbitmq/amqp091-go"
)

var errNotInbound = stderrors.New("delivery was not received from a broker")

type Delivery struct {
	RoutingKey    string
	CorrelationID string
	ContentType   string
	Type          string
	Body          []byte

	tag          uint64
	acknowledger amqp.Acknowledger
}

func newInboundDelivery(delivery amqp.Delivery) Delivery {
	return Delivery{
		RoutingKey:    delivery.RoutingKey,
		CorrelationID: delivery.CorrelationId,
		ContentType:   delivery.ContentType,
		Type:          delivery.Type,
		Body:          delivery.Body,
		tag:           delivery.DeliveryTag,
		acknowledger:  delivery.Acknowledger,
	}
}

func (d Delivery) Tag() uint64 {
	return d.tag
}

func (d Delivery) Ack() error {
	if d.acknowledger == nil {
		return errNotInbound
	}
	return d.acknowledger.Ack(d.tag, false)
}

func (d Delivery) Reject(requeue bool) error {
	if d.acknowledger == nil {
		return errNotInbound
	}
	return d.acknowledger.Nack(d.tag, false, requeue)
}

func validateChannel(channel *amqp.Channel) error {
	if channel == nil {
		return stderrors.New("amqp channel is empty")
	}
	if channel.IsClosed() {
		return stderrors.New("amqp channel is closed")
	}
	return nil
}

func retryChannel(ctx context.Context, connect func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Minute
	b.MaxInterval = 10 * time.Second
	return backoff.Retry(connect, backoff.WithContext(b, ctx))
}
