package mysql

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

type ClientContext interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Connection pins a single session, which GET_LOCK and other session state require.
type Connection interface {
	ClientContext
	Close() error
}

type Client interface {
	ClientContext
	ConnectionPool
}

func NewClient(db *sqlx.DB) Client {
	return &client{DB: db}
}

type client struct {
	*sqlx.DB
}

func (c *client) Connection(ctx context.Context) (Connection, error) {
	conn, err := c.Connx(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
