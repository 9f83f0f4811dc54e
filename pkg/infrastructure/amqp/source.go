package amqp

import (
	"context"
	"fmt"
	"iter"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

// Source turns queue deliveries into records. Deliveries stay unacknowledged until the
// pipeline settles them, so the broker redelivers whatever was in flight at a crash.
type Source struct {
	queueName  string
	deliveries chan Delivery
}

// NewSource registers a consumer on conn; it starts receiving once conn is started.
// prefetch bounds deliveries held by this process and should match the queue capacity.
func NewSource(ctx context.Context, conn Connection, queueConfig *QueueConfig, bindConfig *BindConfig, prefetch int) *Source {
	s := &Source{
		queueName:  queueConfig.Name,
		deliveries: make(chan Delivery),
	}
	conn.Consumer(ctx, s.handle, queueConfig, bindConfig, &QoSConfig{PrefetchCount: prefetch})
	return s
}

func (s *Source) handle(ctx context.Context, delivery Delivery) error {
	select {
	case s.deliveries <- delivery:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Source) Records(ctx context.Context) iter.Seq2[ingest.Record, error] {
	return func(yield func(ingest.Record, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery := <-s.deliveries:
				record := ingest.Record{
					Body:         delivery.Body,
					Position:     fmt.Sprintf("amqp://%s#%d", s.queueName, delivery.Tag()),
					Acknowledger: deliveryAcknowledger{delivery: delivery},
				}
				if !yield(record, nil) {
					return
				}
			}
		}
	}
}

type deliveryAcknowledger struct {
	delivery Delivery
}

func (a deliveryAcknowledger) Ack(context.Context) error {
	return a.delivery.Ack()
}

func (a deliveryAcknowledger) Reject(context.Context) error {
	return a.delivery.Reject(true)
}
