package migrations

import (
	"context"

	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/migrator"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/mysql"
)

func newVersion1790812800(client mysql.ClientContext) migrator.Migration {
	return &version1790812800{client: client}
}

type version1790812800 struct {
	client mysql.ClientContext
}

func (v version1790812800) Version() int64 {
	return 1790812800
}

func (v version1790812800) Description() string {
	return "Create 'ingested_event' table"
}

func (v version1790812800) Up(ctx context.Context) error {
	_, err := v.client.ExecContext(ctx, `
		CREATE TABLE ingested_event
		(
		    message_id   VARBINARY(128)  NOT NULL,
		    order_id     BIGINT          NOT NULL,
		    event_type   VARCHAR(128)    NOT NULL,
		    occurred_at  DATETIME(6)     NOT NULL,
		    payload      MEDIUMTEXT      NOT NULL,
		    received_at  DATETIME(6)     NOT NULL,
		    PRIMARY KEY (message_id),
		    INDEX order_id_idx (order_id)
		)
		    ENGINE = InnoDB
		    CHARACTER SET = utf8mb4
		    COLLATE utf8mb4_unicode_ci
	`)
	return errors.WithStack(err)
}
