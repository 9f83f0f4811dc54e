package migrations

import (
	"context"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/common/io"
	libmigrator "gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/migrator"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/mysql"
)

const tablePrefix = "eventingest"

// NewMigrator pins one connection for the whole run; release returns it to the pool.
func NewMigrator(
	ctx context.Context,
	pool mysql.ConnectionPool,
	logger logging.Logger,
) (migrator libmigrator.Migrator, release io.CloserFunc, err error) {
	conn, err := pool.Connection(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			err = liberr.Join(err, conn.Close())
		}
	}()

	factory := libmigrator.NewMigratorFactory(tablePrefix, conn, logger.WithField("migrator", tablePrefix))

	migrations := make([]libmigrator.Migration, 0, len(builderFunctions))
	for _, builder := range builderFunctions {
		migrations = append(migrations, builder(conn))
	}

	migrator, err = factory.NewMigrator(migrations...)
	if err != nil {
		return nil, nil, err
	}
	return migrator, conn.Close, nil
}

var builderFunctions = []func(client mysql.ClientContext) libmigrator.Migration{
	newVersion1790812800,
	newVersion1790899200,
}
