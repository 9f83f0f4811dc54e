package ingest

import (
	"bytes"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// localTimestampLayout is accepted for producers that omit the zone; such values are read as UTC.
const localTimestampLayout = "2006-01-02T15:04:05.999999999"

type MalformedRecordError struct {
	Err error
}

func (e *MalformedRecordError) Error() string {
	return "malformed record: " + e.Err.Error()
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

func IsBlank(body []byte) bool {
	return len(bytes.TrimSpace(body)) == 0
}

type Parser struct {
	now   func() time.Time
	newID func() (string, error)
}

func NewParser() *Parser {
	return &Parser{
		now:   time.Now,
		newID: newMessageID,
	}
}

type wireEvent struct {
	MessageID  *string         `json:"messageId"`
	OrderID    *int64          `json:"orderId"`
	EventType  *string         `json:"eventType"`
	OccurredAt *string         `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Parse decodes one record into an Event, filling absent fields with defaults.
// Every decoding failure is reported as *MalformedRecordError.
func (p *Parser) Parse(body []byte) (Event, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Event{}, &MalformedRecordError{Err: errors.New("record is not a JSON object")}
	}

	var wire wireEvent
	if err := json.Unmarshal(body, &wire); err != nil {
		return Event{}, &MalformedRecordError{Err: errors.WithStack(err)}
	}

	event := Event{
		OrderID:    NoOrderID,
		Kind:       UnknownKind,
		OccurredAt: p.now().UTC(),
		Payload:    EmptyPayload,
	}

	if wire.MessageID != nil && *wire.MessageID != "" {
		event.ID = *wire.MessageID
	} else {
		id, err := p.newID()
		if err != nil {
			return Event{}, err
		}
		event.ID = id
	}
	if wire.OrderID != nil {
		event.OrderID = *wire.OrderID
	}
	if wire.EventType != nil {
		event.Kind = *wire.EventType
	}
	if wire.OccurredAt != nil {
		occurredAt, err := parseTimestamp(*wire.OccurredAt)
		if err != nil {
			return Event{}, &MalformedRecordError{Err: err}
		}
		event.OccurredAt = occurredAt
	}
	if payload := bytes.TrimSpace(wire.Payload); len(payload) > 0 && !bytes.Equal(payload, []byte("null")) {
		event.Payload = string(payload)
	}

	return event, nil
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.ParseInLocation(localTimestampLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid occurredAt %q", value)
	}
	return t, nil
}

func newMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return id.String(), nil
}
