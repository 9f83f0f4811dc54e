package amqp

import (
	"context"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

const deadLetterType = "ingest.dead_letter"

type DeadLetterPublisher struct {
	producer   Producer
	routingKey string
}

func NewDeadLetterPublisher(producer Producer, routingKey string) *DeadLetterPublisher {
	return &DeadLetterPublisher{
		producer:   producer,
		routingKey: routingKey,
	}
}

func (p *DeadLetterPublisher) Put(ctx context.Context, letter ingest.DeadLetter) error {
	body, err := ingest.EncodeDeadLetter(letter)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, Delivery{
		RoutingKey:    p.routingKey,
		CorrelationID: letter.Event.ID,
		ContentType:   "application/json",
		Type:          deadLetterType,
		Body:          body,
	})
}
