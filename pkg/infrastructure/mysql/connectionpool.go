package mysql

import (
	"context"
)

// ConnectionPool hands out a dedicated session per call. Sessions are never shared between
// callers, even when they pass the same context; Close returns the session to the driver pool.
type ConnectionPool interface {
	Connection(ctx context.Context) (Connection, error)
}
