package postgres

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const defaultConnectTimeout = 60 * time.Second

type Logger interface {
	Info(...interface{})
	Error(error, ...interface{})
}

type Config struct {
	MaxConnections int32
	ConnectTimeout time.Duration
}

// Connect opens a pool and waits, with exponential backoff, until the server answers.
func Connect(ctx context.Context, dsn string, cfg Config, logger Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "invalid postgres dsn")
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = defaultConnectTimeout
	if cfg.ConnectTimeout != 0 {
		b.MaxElapsedTime = cfg.ConnectTimeout
	}
	b.MaxInterval = 5 * time.Second

	err = backoff.Retry(func() error {
		pingErr := pool.Ping(ctx)
		if pingErr != nil && ctx.Err() == nil {
			logger.Error(pingErr, "postgres is not reachable yet")
		}
		return pingErr
	}, backoff.WithContext(b, ctx))
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}

	logger.Info("connected to postgres")
	return pool, nil
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const createTableSQLQuery = `
		CREATE TABLE IF NOT EXISTS ingested_event
		(
		    message_id   TEXT         NOT NULL PRIMARY KEY,
		    order_id     BIGINT       NOT NULL,
		    event_type   TEXT         NOT NULL,
		    occurred_at  TIMESTAMPTZ  NOT NULL,
		    payload      TEXT         NOT NULL,
		    received_at  TIMESTAMPTZ  NOT NULL
		)
	`
	_, err := pool.Exec(ctx, createTableSQLQuery)
	return errors.WithStack(err)
}
