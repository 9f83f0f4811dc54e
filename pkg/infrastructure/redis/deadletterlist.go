package redis

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// MaxLen keeps only the newest letters when positive.
	MaxLen int64
}

func Connect(ctx context.Context, config Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(liberr.Join(err, client.Close()), "failed to reach redis at %s", config.Addr)
	}
	return client, nil
}

// DeadLetterList appends encoded dead letters to a redis list.
type DeadLetterList struct {
	client redis.Cmdable
	key    string
	maxLen int64
}

func NewDeadLetterList(client redis.Cmdable, key string, maxLen int64) *DeadLetterList {
	return &DeadLetterList{
		client: client,
		key:    key,
		maxLen: maxLen,
	}
}

func (l *DeadLetterList) Put(ctx context.Context, letter ingest.DeadLetter) error {
	body, err := ingest.EncodeDeadLetter(letter)
	if err != nil {
		return err
	}

	if l.maxLen <= 0 {
		return errors.Wrap(l.client.RPush(ctx, l.key, body).Err(), "failed to push dead letter")
	}
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, l.key, body)
		pipe.LTrim(ctx, l.key, -l.maxLen, -1)
		return nil
	})
	return errors.Wrap(err, "failed to push dead letter")
}
