package mysql

import (
	"context"

	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
)

// The no-op update turns a key collision into zero affected rows instead of an error.
// received_at is assigned by the server so it reflects persistence time.
const insertEventSQLQuery = `
	INSERT INTO ingested_event (message_id, order_id, event_type, occurred_at, payload, received_at)
	VALUES (?, ?, ?, ?, ?, UTC_TIMESTAMP(6))
	ON DUPLICATE KEY UPDATE message_id = message_id
`

func NewEventWriter(pool ConnectionPool) ingest.Writer {
	return &eventWriter{pool: pool}
}

type eventWriter struct {
	pool ConnectionPool
}

func (w *eventWriter) Write(ctx context.Context, event ingest.Event) (outcome ingest.Outcome, err error) {
	conn, err := w.pool.Connection(ctx)
	if err != nil {
		return 0, classify(errors.Wrap(err, "failed to acquire connection"))
	}
	defer func() {
		// the row is committed either way, so a failed release must not turn success into a retry
		if closeErr := conn.Close(); closeErr != nil && err != nil {
			err = liberr.Join(err, closeErr)
		}
	}()

	result, err := conn.ExecContext(
		ctx,
		insertEventSQLQuery,
		event.ID, event.OrderID, event.Kind, event.OccurredAt.UTC(), event.Payload,
	)
	if err != nil {
		return 0, classify(errors.WithStack(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, classify(errors.WithStack(err))
	}
	if affected == 0 {
		return ingest.OutcomeDuplicate, nil
	}
	return ingest.OutcomeInserted, nil
}
