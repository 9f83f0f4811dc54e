package ingest

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

type wireDeadLetter struct {
	MessageID  string          `json:"messageId"`
	OrderID    int64           `json:"orderId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
	Raw        string          `json:"raw"`
	Reason     string          `json:"reason"`
	Attempts   int             `json:"attempts"`
	FailedAt   time.Time       `json:"failedAt"`
}

// EncodeDeadLetter renders a letter as a single JSON document, the format shared by every sink.
func EncodeDeadLetter(letter DeadLetter) ([]byte, error) {
	payload := json.RawMessage(letter.Event.Payload)
	if !json.Valid(payload) {
		payload = json.RawMessage(EmptyPayload)
	}
	data, err := json.Marshal(wireDeadLetter{
		MessageID:  letter.Event.ID,
		OrderID:    letter.Event.OrderID,
		EventType:  letter.Event.Kind,
		OccurredAt: letter.Event.OccurredAt.UTC(),
		Payload:    payload,
		Raw:        string(letter.Raw),
		Reason:     letter.Reason,
		Attempts:   letter.Attempts,
		FailedAt:   letter.FailedAt.UTC(),
	})
	return data, errors.WithStack(err)
}

func DecodeDeadLetter(data []byte) (DeadLetter, error) {
	var wire wireDeadLetter
	if err := json.Unmarshal(data, &wire); err != nil {
		return DeadLetter{}, errors.WithStack(err)
	}
	return DeadLetter{
		Event: Event{
			ID:         wire.MessageID,
			OrderID:    wire.OrderID,
			Kind:       wire.EventType,
			OccurredAt: wire.OccurredAt,
			Payload:    string(wire.Payload),
		},
		Raw:      []byte(wire.Raw),
		Reason:   wire.Reason,
		Attempts: wire.Attempts,
		FailedAt: wire.FailedAt,
	}, nil
}
