package mysql

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
)

const defaultConnectTimeout = 60 * time.Second

type Logger interface {
	Info(...interface{})
	Error(error, ...interface{})
}

type Connector interface {
	Open(ctx context.Context, dsn string, cfg Config) error
	Close() error

	Client() Client
}

type Config struct {
	MaxConnections        int
	ConnectionMaxLifeTime time.Duration
	ConnectionMaxIdleTime time.Duration
	// ConnectTimeout bounds how long Open keeps retrying an unreachable server.
	ConnectTimeout time.Duration
}

func NewConnector(logger Logger) Connector {
	return &connector{logger: logger}
}

type connector struct {
	logger Logger
	db     *sqlx.DB
}

func (c *connector) Open(ctx context.Context, dsn string, cfg Config) (err error) {
	mysqlConfig, err := driverConfig(dsn)
	if err != nil {
		return err
	}

	db, err := sqlx.Open("mysql", mysqlConfig.FormatDSN())
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err != nil {
			err = liberr.Join(err, db.Close())
		}
	}()

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(cfg.ConnectionMaxLifeTime)
	db.SetConnMaxIdleTime(cfg.ConnectionMaxIdleTime)

	err = backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		if pingErr != nil && ctx.Err() == nil {
			c.logger.Error(pingErr, "mysql is not reachable yet")
		}
		return pingErr
	}, backoff.WithContext(newBackOff(cfg.ConnectTimeout), ctx))
	if err != nil {
		return errors.Wrap(err, "failed to connect to mysql")
	}

	c.logger.Info("connected to mysql")
	c.db = db
	return nil
}

func (c *connector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return errors.New("db not initialized")
}

func (c *connector) Client() Client {
	return NewClient(c.db)
}

// driverConfig overrides the DSN settings the writers depend on.
func driverConfig(dsn string) (*gomysql.Config, error) {
	mysqlConfig, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mysql dsn")
	}
	// Timestamps are written and read back as UTC.
	mysqlConfig.ParseTime = true
	mysqlConfig.Loc = time.UTC
	// Duplicates are detected by zero affected rows, which found-rows mode would hide.
	mysqlConfig.ClientFoundRows = false
	return mysqlConfig, nil
}

func newBackOff(timeout time.Duration) backoff.BackOff {
	exponentialBackOff := backoff.NewExponentialBackOff()
	exponentialBackOff.MaxElapsedTime = defaultConnectTimeout
	if timeout != 0 {
		exponentialBackOff.MaxElapsedTime = timeout
	}
	exponentialBackOff.MaxInterval = 5 * time.Second
	return exponentialBackOff
}
