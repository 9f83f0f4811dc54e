package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock(t *testing.T) {
	newLock := func(t *testing.T) (Lock, sqlmock.Sqlmock) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = db.Close()
		})
		return NewLock("migration", 5*time.Second, sqlx.NewDb(db, "sqlmock")), mock
	}
	ctx := context.Background()

	t.Run("acquires and releases", func(t *testing.T) {
		lock, mock := newLock(t)
		mock.ExpectQuery("SELECT GET_LOCK").
			WithArgs("migration", 5).
			WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(1))
		mock.ExpectQuery("SELECT RELEASE_LOCK").
			WithArgs("migration").
			WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(1))

		require.NoError(t, lock.Lock(ctx))
		require.NoError(t, lock.Unlock(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports timeout", func(t *testing.T) {
		lock, mock := newLock(t)
		mock.ExpectQuery("SELECT GET_LOCK").
			WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(0))

		assert.ErrorIs(t, lock.Lock(ctx), ErrLockTimeout)
	})

	t.Run("reports unknown lock on release", func(t *testing.T) {
		lock, mock := newLock(t)
		mock.ExpectQuery("SELECT RELEASE_LOCK").
			WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(nil))

		assert.ErrorIs(t, lock.Unlock(ctx), ErrLockNotFound)
	})
}
