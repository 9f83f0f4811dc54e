package ingest

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
)

type nopLogger struct{}

func (l nopLogger) WithField(string, interface{}) logging.Logger { return l }
func (l nopLogger) WithFields(logging.Fields) logging.Logger     { return l }
func (nopLogger) Debug(...interface{})                           {}
func (nopLogger) Info(...interface{})                            {}
func (nopLogger) Warn(...interface{})                            {}
func (nopLogger) Warning(error, ...interface{})                  {}
func (nopLogger) Error(error, ...interface{})                    {}

type settlements struct {
	mu       sync.Mutex
	acked    []string
	rejected []string
}

func (s *settlements) Acked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acked...)
}

func (s *settlements) Rejected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rejected...)
}

type recordAcknowledger struct {
	position string
	log      *settlements
}

func (a recordAcknowledger) Ack(context.Context) error {
	a.log.mu.Lock()
	defer a.log.mu.Unlock()
	a.log.acked = append(a.log.acked, a.position)
	return nil
}

func (a recordAcknowledger) Reject(context.Context) error {
	a.log.mu.Lock()
	defer a.log.mu.Unlock()
	a.log.rejected = append(a.log.rejected, a.position)
	return nil
}

func newRecords(log *settlements, lines ...string) []Record {
	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		position := fmt.Sprintf("line:%d", i+1)
		records = append(records, Record{
			Body:         []byte(line),
			Position:     position,
			Acknowledger: recordAcknowledger{position: position, log: log},
		})
	}
	return records
}

type sliceSource struct {
	records []Record
	// holdOpen keeps the stream open after the last record until ctx ends.
	holdOpen bool
	reached  chan struct{}
	err      error
}

func (s *sliceSource) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, record := range s.records {
			if ctx.Err() != nil {
				return
			}
			if !yield(record, nil) {
				return
			}
		}
		if s.err != nil {
			yield(Record{}, s.err)
			return
		}
		if s.reached != nil {
			close(s.reached)
		}
		if s.holdOpen {
			<-ctx.Done()
		}
	}
}

type fakeWriter struct {
	mu       sync.Mutex
	stored   map[string]Event
	failures map[string][]error
	calls    map[string]int

	delay time.Duration
	block chan struct{}

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		stored:   make(map[string]Event),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func (w *fakeWriter) Write(ctx context.Context, event Event) (Outcome, error) {
	current := w.inFlight.Add(1)
	defer w.inFlight.Add(-1)
	for {
		seen := w.maxInFlight.Load()
		if current <= seen || w.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}

	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if w.block != nil {
		select {
		case <-w.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls[event.ID]++
	if errs := w.failures[event.ID]; len(errs) > 0 {
		w.failures[event.ID] = errs[1:]
		return 0, errs[0]
	}
	if _, ok := w.stored[event.ID]; ok {
		return OutcomeDuplicate, nil
	}
	w.stored[event.ID] = event
	return OutcomeInserted, nil
}

func (w *fakeWriter) Calls(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[id]
}

func (w *fakeWriter) Stored() map[string]Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	stored := make(map[string]Event, len(w.stored))
	for id, event := range w.stored {
		stored[id] = event
	}
	return stored
}

type memorySink struct {
	mu      sync.Mutex
	letters []DeadLetter
	err     error
}

func (s *memorySink) Put(_ context.Context, letter DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.letters = append(s.letters, letter)
	return nil
}

func (s *memorySink) Letters() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeadLetter(nil), s.letters...)
}

func instantRetrier(policy RetryPolicy, delays *[]time.Duration) *Retrier {
	retrier := NewRetrier(policy)
	var mu sync.Mutex
	retrier.sleep = func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			mu.Lock()
			*delays = append(*delays, d)
			mu.Unlock()
		}
		return ctx.Err()
	}
	return retrier
}
