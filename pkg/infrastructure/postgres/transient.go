package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

var transientCodes = map[string]struct{}{
	pgerrcode.SerializationFailure:   {},
	pgerrcode.DeadlockDetected:       {},
	pgerrcode.LockNotAvailable:       {},
	pgerrcode.QueryCanceled:          {},
	pgerrcode.AdminShutdown:          {},
	pgerrcode.CrashShutdown:          {},
	pgerrcode.CannotConnectNow:       {},
	pgerrcode.TooManyConnections:     {},
	pgerrcode.InsufficientResources:  {},
	pgerrcode.ReadOnlySQLTransaction: {},
}

func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := transientCodes[pgErr.Code]; ok {
			return true
		}
		return pgerrcode.IsConnectionException(pgErr.Code)
	}

	return errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}

func classify(err error) error {
	if IsTransient(err) {
		return ingest.Transient(err)
	}
	return ingest.Permanent(err)
}
