package migrator

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/mysql"
)

const migrationLockTimeout = 5 * time.Second

type Migration interface {
	Version() int64
	Description() string
	Up(ctx context.Context) error
}

type Migrator interface {
	Migrate(ctx context.Context) error
}

func newMigrator(
	versions *versionTable,
	lock mysql.Lock,
	logger logging.Logger,
	migrations []Migration,
) Migrator {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(l, r Migration) int {
		return cmp.Compare(l.Version(), r.Version())
	})
	return &migrator{
		versions:   versions,
		lock:       lock,
		logger:     logger,
		migrations: sorted,
	}
}

type migrator struct {
	versions *versionTable
	lock     mysql.Lock
	logger   logging.Logger

	migrations []Migration
}

// Migrate applies pending migrations in version order under the migration lock,
// so concurrently starting instances apply each version once.
func (m migrator) Migrate(ctx context.Context) (err error) {
	if err = m.lock.Lock(ctx); err != nil {
		return errors.Wrap(err, "failed to acquire migration lock")
	}
	defer func() {
		if r := recover(); r != nil {
			err = liberr.Join(err, fmt.Errorf("panic: %v", r))
		}
		err = liberr.Join(err, errors.WithStack(m.lock.Unlock(context.WithoutCancel(ctx))))
	}()

	if err = m.versions.ensure(ctx); err != nil {
		return err
	}
	lastVersion, err := m.versions.last(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		logger := m.logger.WithField("version", migration.Version())

		var applied bool
		applied, err = m.versions.isApplied(ctx, migration.Version())
		if err != nil {
			return err
		}
		if applied {
			logger.Debug("migration already applied")
			continue
		}
		if migration.Version() < lastVersion {
			return errors.Errorf("migration version %v less than last applied %v", migration.Version(), lastVersion)
		}
		if err = migration.Up(ctx); err != nil {
			return errors.Wrapf(err, "migration %v failed", migration.Version())
		}
		if err = m.versions.markApplied(ctx, migration); err != nil {
			return err
		}
		logger.WithField("description", migration.Description()).Info("migration applied")
	}
	return nil
}
