package main

import (
	"context"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/common/io"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/config"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/migrations"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/mysql"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/postgres"
)

type store struct {
	writer ingest.Writer
	// mysqlPool is set only for the mysql driver.
	mysqlPool mysql.ConnectionPool
}

func openStore(ctx context.Context, cfg config.Config, logger logging.Logger, closer io.MultiCloser) (store, error) {
	storeLogger := logger.WithField("store", cfg.Store.Driver)
	if cfg.Store.Driver == config.DriverPostgres {
		return openPostgres(ctx, cfg.Store, storeLogger, closer)
	}
	return openMySQL(ctx, cfg.Store, storeLogger, closer)
}

func openMySQL(ctx context.Context, cfg config.StoreConfig, logger logging.Logger, closer io.MultiCloser) (store, error) {
	connector := mysql.NewConnector(logger)
	err := connector.Open(ctx, cfg.DSN, mysql.Config{
		MaxConnections: cfg.MaxConnections,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		return store{}, err
	}
	closer.AddCloser(connector)

	pool := connector.Client()
	if cfg.Migrate {
		if err = migrate(ctx, pool, logger); err != nil {
			return store{}, err
		}
	}
	return store{
		writer:    mysql.NewEventWriter(pool),
		mysqlPool: pool,
	}, nil
}

func migrate(ctx context.Context, pool mysql.ConnectionPool, logger logging.Logger) error {
	migrator, release, err := migrations.NewMigrator(ctx, pool, logger)
	if err != nil {
		return err
	}
	return liberr.Join(migrator.Migrate(ctx), release())
}

func openPostgres(ctx context.Context, cfg config.StoreConfig, logger logging.Logger, closer io.MultiCloser) (store, error) {
	pool, err := postgres.Connect(ctx, cfg.DSN, postgres.Config{
		MaxConnections: int32(cfg.MaxConnections),
		ConnectTimeout: cfg.ConnectTimeout,
	}, logger)
	if err != nil {
		return store{}, err
	}
	closer.AddCloser(io.CloserFunc(func() error {
		pool.Close()
		return nil
	}))

	if cfg.Migrate {
		if err = postgres.EnsureSchema(ctx, pool); err != nil {
			return store{}, err
		}
	}
	return store{writer: postgres.NewEventWriter(postgres.PoolAcquirer(pool))}, nil
}
