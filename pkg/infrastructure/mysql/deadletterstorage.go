package mysql

import (
	"context"

	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
)

func NewDeadLetterStorage(appID string, pool ConnectionPool) ingest.DeadLetterSink {
	return &deadLetterStorage{
		appID: appID,
		pool:  pool,
	}
}

type deadLetterStorage struct {
	appID string
	pool  ConnectionPool
}

func (s *deadLetterStorage) Put(ctx context.Context, letter ingest.DeadLetter) (err error) {
	letterID, err := newLetterID(s.appID, letter.Raw)
	if err != nil {
		return err
	}

	conn, err := s.pool.Connection(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = liberr.Join(err, conn.Close())
	}()

	const insertSQLQuery = `
		INSERT INTO dead_letter_event
		    (letter_id, message_id, order_id, event_type, occurred_at, payload, raw, reason, attempts, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = conn.ExecContext(
		ctx,
		insertSQLQuery,
		letterID,
		letter.Event.ID,
		letter.Event.OrderID,
		letter.Event.Kind,
		letter.Event.OccurredAt.UTC(),
		letter.Event.Payload,
		string(letter.Raw),
		letter.Reason,
		letter.Attempts,
		letter.FailedAt.UTC(),
	)
	return errors.WithStack(err)
}
