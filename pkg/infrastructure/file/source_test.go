package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSource(t *testing.T) {
	t.Run("yields every line with its position", func(t *testing.T) {
		path := writeInput(t, "{\"messageId\":\"m-1\"}\n\n{\"messageId\":\"m-2\"}\n")
		source, err := NewSource(path)
		require.NoError(t, err)

		var bodies, positions []string
		for record, err := range source.Records(context.Background()) {
			require.NoError(t, err)
			bodies = append(bodies, string(record.Body))
			positions = append(positions, record.Position)
			assert.NoError(t, record.Ack(context.Background()))
		}

		assert.Equal(t, []string{`{"messageId":"m-1"}`, ``, `{"messageId":"m-2"}`}, bodies)
		assert.Equal(t, []string{path + ":1", path + ":2", path + ":3"}, positions)
	})

	t.Run("missing file is a startup error", func(t *testing.T) {
		_, err := NewSource(filepath.Join(t.TempDir(), "absent.jsonl"))
		assert.Error(t, err)
	})

	t.Run("stops when cancelled", func(t *testing.T) {
		path := writeInput(t, strings.Repeat("{}\n", 10))
		source, err := NewSource(path)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var read int
		for range source.Records(ctx) {
			read++
			if read == 3 {
				cancel()
			}
		}

		assert.Equal(t, 3, read)
	})

	t.Run("oversized line is marked and reading continues", func(t *testing.T) {
		path := writeInput(t, "{\"messageId\":\"m-1\"}\n"+strings.Repeat("x", 2*maxLineSize)+"\n{\"messageId\":\"m-3\"}")
		source, err := NewSource(path)
		require.NoError(t, err)

		var records []ingest.Record
		for record, err := range source.Records(context.Background()) {
			require.NoError(t, err)
			records = append(records, record)
		}

		require.Len(t, records, 3)
		assert.Equal(t, `{"messageId":"m-1"}`, string(records[0].Body))
		assert.NoError(t, records[0].Err)
		assert.Empty(t, records[1].Body)
		assert.Error(t, records[1].Err)
		assert.Equal(t, path+":2", records[1].Position)
		assert.Equal(t, `{"messageId":"m-3"}`, string(records[2].Body))
		assert.Equal(t, path+":3", records[2].Position)
	})

	t.Run("line of exactly the maximum size is kept", func(t *testing.T) {
		line := strings.Repeat("x", maxLineSize)
		path := writeInput(t, line+"\n")
		source, err := NewSource(path)
		require.NoError(t, err)

		var bodies []string
		for record, err := range source.Records(context.Background()) {
			require.NoError(t, err)
			require.NoError(t, record.Err)
			bodies = append(bodies, string(record.Body))
		}

		assert.Equal(t, []string{line}, bodies)
	})
}

func TestDeadLetterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deadletter.jsonl")
	sink, err := OpenDeadLetterFile(path)
	require.NoError(t, err)

	for _, id := range []string{"m-1003", "m-1007"} {
		require.NoError(t, sink.Put(context.Background(), ingest.DeadLetter{
			Event:    ingest.Event{ID: id, OrderID: ingest.NoOrderID, Kind: ingest.UnknownKind, Payload: "{}"},
			Raw:      []byte(`{"messageId":"` + id + `"}`),
			Reason:   "permanent write error",
			Attempts: 1,
			FailedAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		}))
	}
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	letter, err := ingest.DecodeDeadLetter([]byte(lines[1]))
	require.NoError(t, err)
	assert.Equal(t, "m-1007", letter.Event.ID)
	assert.Equal(t, `{"messageId":"m-1007"}`, string(letter.Raw))
}
