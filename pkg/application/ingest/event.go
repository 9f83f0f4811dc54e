package ingest

import (
	"context"
	"iter"
	"time"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
)

const (
	NoOrderID   int64 = -1
	UnknownKind       = "UNKNOWN"
	EmptyPayload      = "{}"
)

// Event is immutable once parsed. ReceivedAt is not part of it: the store assigns it on insert.
type Event struct {
	ID         string
	OrderID    int64
	Kind       string
	OccurredAt time.Time
	Payload    string
}

func (e Event) Fields() logging.Fields {
	return logging.Fields{
		"message_id": e.ID,
		"order_id":   e.OrderID,
		"event_type": e.Kind,
	}
}

// Acknowledger settles a record with its upstream transport.
// Reject hands the record back for redelivery where the transport supports it.
type Acknowledger interface {
	Ack(ctx context.Context) error
	Reject(ctx context.Context) error
}

type Record struct {
	Body     []byte
	Position string
	// Err marks a record the source could not read in full. It is skipped as malformed.
	Err error

	Acknowledger Acknowledger
}

func (r Record) Ack(ctx context.Context) error {
	if r.Acknowledger == nil {
		return nil
	}
	return r.Acknowledger.Ack(ctx)
}

func (r Record) Reject(ctx context.Context) error {
	if r.Acknowledger == nil {
		return nil
	}
	return r.Acknowledger.Reject(ctx)
}

// Source yields raw records lazily. A yielded error ends the stream.
type Source interface {
	Records(ctx context.Context) iter.Seq2[Record, error]
}

type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Writer applies an event to the store at most once per event ID.
// Failures are returned as *WriteError so the retry policy can classify them.
type Writer interface {
	Write(ctx context.Context, event Event) (Outcome, error)
}

type DeadLetter struct {
	Event    Event
	Raw      []byte
	Reason   string
	Attempts int
	FailedAt time.Time
}

type DeadLetterSink interface {
	Put(ctx context.Context, letter DeadLetter) error
}
