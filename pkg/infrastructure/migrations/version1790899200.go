package migrations

import (
	"context"

	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/migrator"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/mysql"
)

func newVersion1790899200(client mysql.ClientContext) migrator.Migration {
	return &version1790899200{client: client}
}

type version1790899200 struct {
	client mysql.ClientContext
}

func (v version1790899200) Version() int64 {
	return 1790899200
}

func (v version1790899200) Description() string {
	return "Create 'dead_letter_event' table"
}

func (v version1790899200) Up(ctx context.Context) error {
	_, err := v.client.ExecContext(ctx, `
		CREATE TABLE dead_letter_event
		(
		    letter_id    VARBINARY(255)  NOT NULL,
		    message_id   VARBINARY(128)  NOT NULL,
		    order_id     BIGINT          NOT NULL,
		    event_type   VARCHAR(128)    NOT NULL,
		    occurred_at  DATETIME(6)     NOT NULL,
		    payload      MEDIUMTEXT      NOT NULL,
		    raw          MEDIUMTEXT      NOT NULL,
		    reason       TEXT            NOT NULL,
		    attempts     INT             NOT NULL,
		    failed_at    DATETIME(6)     NOT NULL,
		    PRIMARY KEY (letter_id),
		    INDEX message_id_idx (message_id)
		)
		    ENGINE = InnoDB
		    CHARACTER SET = utf8mb4
		    COLLATE utf8mb4_unicode_ci
	`)
	return errors.WithStack(err)
}
