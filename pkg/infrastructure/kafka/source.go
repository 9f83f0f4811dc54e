package kafka

import (
	"context"
	"fmt"
	"iter"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

const maxHeldOffsets = 10000

// ErrCommitsBlocked ends the stream when a handed back message has held back too many
// commits. The group redelivers from that message after a restart.
var ErrCommitsBlocked = errors.New("offset commits blocked by a handed back message")

// Source reads a consumer group and commits offsets as the pipeline settles records.
type Source struct {
	reader  Reader
	offsets *offsetTracker
	maxHeld int
}

func NewSource(reader Reader) *Source {
	return &Source{
		reader:  reader,
		offsets: newOffsetTracker(),
		maxHeld: maxHeldOffsets,
	}
}

func (s *Source) Records(ctx context.Context) iter.Seq2[ingest.Record, error] {
	return func(yield func(ingest.Record, error) bool) {
		for {
			if head, held, blocked := s.offsets.blocked(s.maxHeld); blocked {
				yield(ingest.Record{}, errors.Wrapf(
					ErrCommitsBlocked,
					"offset %d of %s/%d holds %d offsets", head.Offset, head.Topic, head.Partition, held,
				))
				return
			}

			msg, err := s.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				yield(ingest.Record{}, errors.Wrap(err, "failed to fetch kafka message"))
				return
			}

			s.offsets.fetched(msg)
			record := ingest.Record{
				Body:         msg.Value,
				Position:     fmt.Sprintf("kafka://%s/%d@%d", msg.Topic, msg.Partition, msg.Offset),
				Acknowledger: &messageAcknowledger{source: s, msg: msg},
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (s *Source) Close() error {
	return s.reader.Close()
}

func (s *Source) settle(ctx context.Context, msg kafka.Message, acked bool) error {
	commit, ok := s.offsets.settle(msg, acked)
	if !ok {
		return nil
	}
	return errors.Wrapf(
		s.reader.CommitMessages(ctx, commit),
		"failed to commit offset %d of %s/%d", commit.Offset, commit.Topic, commit.Partition,
	)
}

type messageAcknowledger struct {
	source *Source
	msg    kafka.Message
}

func (a *messageAcknowledger) Ack(ctx context.Context) error {
	return a.source.settle(ctx, a.msg, true)
}

func (a *messageAcknowledger) Reject(ctx context.Context) error {
	return a.source.settle(ctx, a.msg, false)
}
