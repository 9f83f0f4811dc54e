package kafka

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

type offsetState int

const (
	offsetPending offsetState = iota
	offsetAcked
	offsetRejected
)

type partitionKey struct {
	topic     string
	partition int
}

type partitionOffsets struct {
	order  []int64
	states map[int64]offsetState
}

// offsetTracker releases commits only for the contiguous settled prefix of a partition.
// A rejected offset stays at the head, so nothing past it is committed during this run
// and the group resumes from it after a restart.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[partitionKey]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[partitionKey]*partitionOffsets)}
}

func (t *offsetTracker) fetched(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	offsets := t.partition(msg)
	offsets.order = append(offsets.order, msg.Offset)
	offsets.states[msg.Offset] = offsetPending
}

// settle marks msg and returns the message whose offset may now be committed, if any.
func (t *offsetTracker) settle(msg kafka.Message, acked bool) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	offsets := t.partition(msg)
	if _, ok := offsets.states[msg.Offset]; !ok {
		return kafka.Message{}, false
	}
	if acked {
		offsets.states[msg.Offset] = offsetAcked
	} else {
		offsets.states[msg.Offset] = offsetRejected
	}

	commit := int64(-1)
	for len(offsets.order) > 0 {
		head := offsets.order[0]
		if offsets.states[head] != offsetAcked {
			break
		}
		commit = head
		delete(offsets.states, head)
		offsets.order = offsets.order[1:]
	}
	if commit < 0 {
		return kafka.Message{}, false
	}
	return kafka.Message{Topic: msg.Topic, Partition: msg.Partition, Offset: commit}, true
}

// blocked reports the rejected head of a partition once limit offsets are held behind it.
func (t *offsetTracker) blocked(limit int) (kafka.Message, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, offsets := range t.partitions {
		if len(offsets.order) < limit || offsets.states[offsets.order[0]] != offsetRejected {
			continue
		}
		head := kafka.Message{Topic: key.topic, Partition: key.partition, Offset: offsets.order[0]}
		return head, len(offsets.order), true
	}
	return kafka.Message{}, 0, false
}

func (t *offsetTracker) partition(msg kafka.Message) *partitionOffsets {
	key := partitionKey{topic: msg.Topic, partition: msg.Partition}
	offsets, ok := t.partitions[key]
	if !ok {
		offsets = &partitionOffsets{states: make(map[int64]offsetState)}
		t.partitions[key] = offsets
	}
	return offsets
}
