package redis

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newLetter(id string) ingest.DeadLetter {
	return ingest.DeadLetter{
		Event:    ingest.Event{ID: id, Payload: ingest.EmptyPayload},
		Raw:      []byte(fmt.Sprintf(`{"messageId":%q}`, id)),
		Reason:   "permanent write error",
		Attempts: 1,
	}
}

func TestDeadLetterList(t *testing.T) {
	ctx := context.Background()

	t.Run("appends encoded letters", func(t *testing.T) {
		mr, client := newTestClient(t)
		list := NewDeadLetterList(client, "eventingest:dead", 0)

		require.NoError(t, list.Put(ctx, newLetter("m-1")))
		require.NoError(t, list.Put(ctx, newLetter("m-2")))

		items, err := mr.List("eventingest:dead")
		require.NoError(t, err)
		require.Len(t, items, 2)
		letter, err := ingest.DecodeDeadLetter([]byte(items[1]))
		require.NoError(t, err)
		assert.Equal(t, "m-2", letter.Event.ID)
	})

	t.Run("keeps the newest letters when bounded", func(t *testing.T) {
		mr, client := newTestClient(t)
		list := NewDeadLetterList(client, "eventingest:dead", 2)

		for i := 1; i <= 3; i++ {
			require.NoError(t, list.Put(ctx, newLetter(fmt.Sprintf("m-%d", i))))
		}

		items, err := mr.List("eventingest:dead")
		require.NoError(t, err)
		require.Len(t, items, 2)
		letter, err := ingest.DecodeDeadLetter([]byte(items[0]))
		require.NoError(t, err)
		assert.Equal(t, "m-2", letter.Event.ID)
	})

	t.Run("unreachable server fails the put", func(t *testing.T) {
		mr, client := newTestClient(t)
		mr.Close()
		list := NewDeadLetterList(client, "eventingest:dead", 0)

		assert.Error(t, list.Put(ctx, newLetter("m-1")))
	})
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = Connect(context.Background(), Config{Addr: mr.Addr()})
	assert.Error(t, err)
}
