package migrator

import (
	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/mysql"
)

type Factory interface {
	NewMigrator(migrations ...Migration) (Migrator, error)
}

// NewMigratorFactory expects a pinned connection: the migration lock lives in its session.
func NewMigratorFactory(tablePrefix string, conn mysql.ClientContext, logger logging.Logger) Factory {
	return &migratorFactory{
		tablePrefix: tablePrefix,
		conn:        conn,
		logger:      logger,
	}
}

type migratorFactory struct {
	tablePrefix string
	conn        mysql.ClientContext
	logger      logging.Logger
}

func (factory migratorFactory) NewMigrator(migrations ...Migration) (Migrator, error) {
	if len(migrations) == 0 {
		return nil, errors.New("migrations must not be empty")
	}
	return newMigrator(
		newVersionTable(factory.tablePrefix, factory.conn),
		mysql.NewLock(factory.tablePrefix+"_migration", migrationLockTimeout, factory.conn),
		factory.logger,
		migrations,
	), nil
}
