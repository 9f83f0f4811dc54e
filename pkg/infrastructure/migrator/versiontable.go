package migrator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/mysql"
)

// versionTable records which schema versions have been applied.
type versionTable struct {
	client mysql.ClientContext

	createQuery     string
	lastQuery       string
	isAppliedQuery  string
	markAppliedStmt string
}

func newVersionTable(tablePrefix string, client mysql.ClientContext) *versionTable {
	name := tablePrefix + "_migrations"
	return &versionTable{
		client: client,
		createQuery: fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s
			(
			    version     BIGINT      NOT NULL,
			    description TEXT        NOT NULL,
			    applied_at  DATETIME(6) NOT NULL,
			    PRIMARY KEY (version)
			)
			    ENGINE = InnoDB
			    CHARACTER SET = utf8mb4
			    COLLATE utf8mb4_unicode_ci
		`, name),
		lastQuery:       fmt.Sprintf(`SELECT MAX(version) FROM %s`, name),
		isAppliedQuery:  fmt.Sprintf(`SELECT EXISTS(SELECT version FROM %s WHERE version = ?)`, name),
		markAppliedStmt: fmt.Sprintf(`INSERT INTO %s (version, description, applied_at) VALUES (?, ?, UTC_TIMESTAMP(6))`, name),
	}
}

func (t *versionTable) ensure(ctx context.Context) error {
	_, err := t.client.ExecContext(ctx, t.createQuery)
	return errors.WithStack(err)
}

// last returns zero when nothing has been applied yet.
func (t *versionTable) last(ctx context.Context) (int64, error) {
	var version sql.NullInt64
	if err := t.client.GetContext(ctx, &version, t.lastQuery); err != nil {
		return 0, errors.WithStack(err)
	}
	return version.Int64, nil
}

func (t *versionTable) isApplied(ctx context.Context, version int64) (bool, error) {
	var applied bool
	err := t.client.GetContext(ctx, &applied, t.isAppliedQuery, version)
	return applied, errors.WithStack(err)
}

func (t *versionTable) markApplied(ctx context.Context, migration Migration) error {
	_, err := t.client.ExecContext(ctx, t.markAppliedStmt, migration.Version(), migration.Description())
	return errors.WithStack(err)
}
