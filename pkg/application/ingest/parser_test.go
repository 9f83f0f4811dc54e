package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser(t *testing.T) {
	ingestedAt := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	parser := &Parser{
		now:   func() time.Time { return ingestedAt },
		newID: func() (string, error) { return "generated-id", nil },
	}

	t.Run("decodes every field", func(t *testing.T) {
		event, err := parser.Parse([]byte(
			`{"messageId":"m-1001","orderId":42,"eventType":"OrderCreated",` +
				`"occurredAt":"2026-10-01T12:00:00.5+03:00","payload":{"total": 10.5, "items":[1,2]}}`,
		))

		require.NoError(t, err)
		assert.Equal(t, "m-1001", event.ID)
		assert.Equal(t, int64(42), event.OrderID)
		assert.Equal(t, "OrderCreated", event.Kind)
		assert.Equal(t, time.Date(2026, 10, 1, 9, 0, 0, 500_000_000, time.UTC), event.OccurredAt)
		assert.Equal(t, `{"total": 10.5, "items":[1,2]}`, event.Payload)
	})

	t.Run("fills defaults for absent fields", func(t *testing.T) {
		event, err := parser.Parse([]byte(`{}`))

		require.NoError(t, err)
		assert.Equal(t, "generated-id", event.ID)
		assert.Equal(t, NoOrderID, event.OrderID)
		assert.Equal(t, UnknownKind, event.Kind)
		assert.Equal(t, ingestedAt, event.OccurredAt)
		assert.Equal(t, EmptyPayload, event.Payload)
	})

	t.Run("null payload and empty id count as absent", func(t *testing.T) {
		event, err := parser.Parse([]byte(`{"messageId":"","payload":null}`))

		require.NoError(t, err)
		assert.Equal(t, "generated-id", event.ID)
		assert.Equal(t, EmptyPayload, event.Payload)
	})

	t.Run("timestamp without zone is read as UTC", func(t *testing.T) {
		event, err := parser.Parse([]byte(`{"messageId":"m-1","occurredAt":"2026-10-01T12:00:00"}`))

		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC), event.OccurredAt)
	})

	t.Run("real generator produces distinct ids", func(t *testing.T) {
		p := NewParser()
		first, err := p.Parse([]byte(`{}`))
		require.NoError(t, err)
		second, err := p.Parse([]byte(`{}`))
		require.NoError(t, err)

		assert.NotEmpty(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("rejects malformed records", func(t *testing.T) {
		for name, body := range map[string]string{
			"invalid json":         `{"messageId":`,
			"not an object":        `["m-1"]`,
			"plain text":           `hello`,
			"null":                 `null`,
			"order id as string":   `{"orderId":"42"}`,
			"event type as number": `{"eventType":7}`,
			"bad timestamp":        `{"occurredAt":"yesterday"}`,
		} {
			t.Run(name, func(t *testing.T) {
				_, err := parser.Parse([]byte(body))

				var malformed *MalformedRecordError
				assert.ErrorAs(t, err, &malformed)
			})
		}
	})

	t.Run("blank records", func(t *testing.T) {
		assert.True(t, IsBlank([]byte("")))
		assert.True(t, IsBlank([]byte(" \t\r")))
		assert.False(t, IsBlank([]byte(" {} ")))
	})
}
