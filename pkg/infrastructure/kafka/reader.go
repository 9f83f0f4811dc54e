package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	// StartOffset applies when the group has no committed offset: "earliest" or "latest".
	StartOffset string
	DialTimeout time.Duration
}

func NewReader(config Config) *kafka.Reader {
	startOffset := kafka.FirstOffset
	if strings.EqualFold(strings.TrimSpace(config.StartOffset), "latest") {
		startOffset = kafka.LastOffset
	}

	dialTimeout := config.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      &kafka.Dialer{Timeout: dialTimeout},
		StartOffset: startOffset,
	})
}
