package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

type fakeConn struct {
	tag  pgconn.CommandTag
	err  error
	args []any
}

func (c *fakeConn) Exec(_ context.Context, _ string, arguments ...any) (pgconn.CommandTag, error) {
	c.args = arguments
	return c.tag, c.err
}

func acquirerFor(conn *fakeConn, released *int) AcquireFunc {
	return func(context.Context) (Executor, func(), error) {
		return conn, func() { *released++ }, nil
	}
}

func TestEventWriter(t *testing.T) {
	event := ingest.Event{
		ID:         "m-1001",
		OrderID:    42,
		Kind:       "OrderCreated",
		OccurredAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		Payload:    `{}`,
	}

	t.Run("inserted", func(t *testing.T) {
		conn := &fakeConn{tag: pgconn.NewCommandTag("INSERT 0 1")}
		var released int

		outcome, err := NewEventWriter(acquirerFor(conn, &released)).Write(context.Background(), event)

		require.NoError(t, err)
		assert.Equal(t, ingest.OutcomeInserted, outcome)
		assert.Equal(t, []any{"m-1001", int64(42), "OrderCreated", event.OccurredAt, `{}`}, conn.args)
		assert.Equal(t, 1, released)
	})

	t.Run("duplicate", func(t *testing.T) {
		conn := &fakeConn{tag: pgconn.NewCommandTag("INSERT 0 0")}
		var released int

		outcome, err := NewEventWriter(acquirerFor(conn, &released)).Write(context.Background(), event)

		require.NoError(t, err)
		assert.Equal(t, ingest.OutcomeDuplicate, outcome)
		assert.Equal(t, 1, released)
	})

	t.Run("connection is released on failure", func(t *testing.T) {
		conn := &fakeConn{err: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}}
		var released int

		_, err := NewEventWriter(acquirerFor(conn, &released)).Write(context.Background(), event)

		assert.Equal(t, ingest.KindTransient, ingest.KindOf(err))
		assert.Equal(t, 1, released)
	})

	t.Run("acquire failure is classified", func(t *testing.T) {
		writer := NewEventWriter(func(context.Context) (Executor, func(), error) {
			return nil, nil, &pgconn.PgError{Code: pgerrcode.TooManyConnections}
		})

		_, err := writer.Write(context.Background(), event)

		assert.Equal(t, ingest.KindTransient, ingest.KindOf(err))
	})
}

func TestIsTransient(t *testing.T) {
	for name, tc := range map[string]struct {
		err       error
		transient bool
	}{
		"serialization failure": {err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, transient: true},
		"statement timeout":     {err: &pgconn.PgError{Code: pgerrcode.QueryCanceled}, transient: true},
		"connection failure":    {err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, transient: true},
		"check violation":       {err: &pgconn.PgError{Code: pgerrcode.CheckViolation}, transient: false},
		"not null violation":    {err: &pgconn.PgError{Code: pgerrcode.NotNullViolation}, transient: false},
		"attempt deadline":      {err: context.DeadlineExceeded, transient: true},
		"unknown":               {err: errors.New("boom"), transient: false},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.transient, IsTransient(tc.err))
		})
	}
}
