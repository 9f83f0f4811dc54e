package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

const insertEventSQLQuery = `
	INSERT INTO ingested_event (message_id, order_id, event_type, occurred_at, payload, received_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (message_id) DO NOTHING
`

type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// AcquireFunc checks out a connection; the returned func gives it back.
type AcquireFunc func(ctx context.Context) (Executor, func(), error)

func PoolAcquirer(pool *pgxpool.Pool) AcquireFunc {
	return func(ctx context.Context) (Executor, func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return conn, conn.Release, nil
	}
}

func NewEventWriter(acquire AcquireFunc) ingest.Writer {
	return &eventWriter{acquire: acquire}
}

type eventWriter struct {
	acquire AcquireFunc
}

func (w *eventWriter) Write(ctx context.Context, event ingest.Event) (ingest.Outcome, error) {
	conn, release, err := w.acquire(ctx)
	if err != nil {
		return 0, classify(errors.Wrap(err, "failed to acquire connection"))
	}
	defer release()

	tag, err := conn.Exec(
		ctx,
		insertEventSQLQuery,
		event.ID, event.OrderID, event.Kind, event.OccurredAt.UTC(), event.Payload,
	)
	if err != nil {
		return 0, classify(errors.WithStack(err))
	}
	if tag.RowsAffected() == 0 {
		return ingest.OutcomeDuplicate, nil
	}
	return ingest.OutcomeInserted, nil
}
