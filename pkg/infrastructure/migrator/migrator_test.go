package migrator

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/logging"
)

type stubMigration struct {
	version int64
	applied *[]int64
	err     error
}

func (m stubMigration) Version() int64      { return m.version }
func (m stubMigration) Description() string { return "stub" }

func (m stubMigration) Up(context.Context) error {
	if m.err != nil {
		return m.err
	}
	*m.applied = append(*m.applied, m.version)
	return nil
}

func newTestFactory(t *testing.T) (Factory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	impl, _ := test.NewNullLogger()
	return NewMigratorFactory("eventingest", sqlx.NewDb(db, "sqlmock"), logging.NewLogger(impl, "test")), mock
}

func expectLock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT GET_LOCK").
		WithArgs("eventingest_migration", 5).
		WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS eventingest_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectUnlock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT RELEASE_LOCK").
		WithArgs("eventingest_migration").
		WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(1))
}

func expectApplied(mock sqlmock.Sqlmock, version int64, applied bool) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT version FROM eventingest_migrations")).
		WithArgs(version).
		WillReturnRows(sqlmock.NewRows([]string{"applied"}).AddRow(applied))
}

func TestMigrator(t *testing.T) {
	lastVersionQuery := regexp.QuoteMeta("SELECT MAX(version) FROM eventingest_migrations")

	t.Run("applies pending migrations in version order", func(t *testing.T) {
		factory, mock := newTestFactory(t)
		var applied []int64
		expectLock(mock)
		mock.ExpectQuery(lastVersionQuery).WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(nil))
		expectApplied(mock, 1, false)
		mock.ExpectExec("INSERT INTO eventingest_migrations").
			WithArgs(int64(1), "stub").
			WillReturnResult(sqlmock.NewResult(1, 1))
		expectApplied(mock, 2, false)
		mock.ExpectExec("INSERT INTO eventingest_migrations").
			WithArgs(int64(2), "stub").
			WillReturnResult(sqlmock.NewResult(1, 1))
		expectUnlock(mock)

		migrator, err := factory.NewMigrator(
			stubMigration{version: 2, applied: &applied},
			stubMigration{version: 1, applied: &applied},
		)
		require.NoError(t, err)

		require.NoError(t, migrator.Migrate(context.Background()))
		assert.Equal(t, []int64{1, 2}, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips applied migrations", func(t *testing.T) {
		factory, mock := newTestFactory(t)
		var applied []int64
		expectLock(mock)
		mock.ExpectQuery(lastVersionQuery).WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))
		expectApplied(mock, 1, true)
		expectUnlock(mock)

		migrator, err := factory.NewMigrator(stubMigration{version: 1, applied: &applied})
		require.NoError(t, err)

		require.NoError(t, migrator.Migrate(context.Background()))
		assert.Empty(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("releases the lock when a migration fails", func(t *testing.T) {
		factory, mock := newTestFactory(t)
		failure := errors.New("table exists")
		expectLock(mock)
		mock.ExpectQuery(lastVersionQuery).WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(nil))
		expectApplied(mock, 1, false)
		expectUnlock(mock)

		migrator, err := factory.NewMigrator(stubMigration{version: 1, err: failure})
		require.NoError(t, err)

		assert.ErrorIs(t, migrator.Migrate(context.Background()), failure)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses an empty migration list", func(t *testing.T) {
		factory, _ := newTestFactory(t)

		_, err := factory.NewMigrator()
		assert.Error(t, err)
	})
}
