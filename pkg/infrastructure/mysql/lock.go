package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrLockTimeout   = errors.New("lock timed out")
	ErrLockNotLocked = errors.New("lock not locked")
	ErrLockNotFound  = errors.New("lock not found")
)

// Lock is a named advisory lock. It belongs to the session of its client,
// so the client must be a pinned Connection rather than the pool.
type Lock interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

func NewLock(lockName string, timeout time.Duration, client ClientContext) Lock {
	return &lock{
		lockName: lockName,
		timeout:  timeout,
		client:   client,
	}
}

type lock struct {
	lockName string
	timeout  time.Duration
	client   ClientContext
}

func (l lock) Lock(ctx context.Context) error {
	const sqlQuery = "SELECT GET_LOCK(SUBSTRING(CONCAT(?, '.', DATABASE()), 1, 64), ?)"
	var result sql.NullInt32
	err := l.client.GetContext(ctx, &result, sqlQuery, l.lockName, int(l.timeout.Seconds()))
	if err != nil {
		return err
	}
	if !result.Valid || result.Int32 == 0 {
		return ErrLockTimeout
	}
	return nil
}

func (l lock) Unlock(ctx context.Context) error {
	const sqlQuery = "SELECT RELEASE_LOCK(SUBSTRING(CONCAT(?, '.', DATABASE()), 1, 64))"
	var result sql.NullInt32
	err := l.client.GetContext(ctx, &result, sqlQuery, l.lockName)
	if err != nil {
		return err
	}
	if !result.Valid {
		return ErrLockNotFound
	}
	if result.Int32 == 0 {
		return ErrLockNotLocked
	}
	return nil
}
