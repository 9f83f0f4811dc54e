package ingest

import (
	"sync/atomic"
	"time"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
)

// Resolution is the terminal state of one event.
type Resolution string

const (
	ResolutionInserted     Resolution = "inserted"
	ResolutionDuplicate    Resolution = "duplicate"
	ResolutionDeadLettered Resolution = "dead_lettered"
	// ResolutionUndelivered means the event failed permanently and the dead-letter sink refused it too.
	ResolutionUndelivered Resolution = "undelivered"
	ResolutionAbandoned   Resolution = "abandoned"
)

type Metrics interface {
	RecordRead(malformed bool)
	EventResolved(resolution Resolution)
	WriteObserved(kind string, duration time.Duration)
	RetryScheduled()
	QueueDepth(depth int)
}

type nopMetrics struct{}

func (nopMetrics) RecordRead(bool)                     {}
func (nopMetrics) EventResolved(Resolution)            {}
func (nopMetrics) WriteObserved(string, time.Duration) {}
func (nopMetrics) RetryScheduled()                     {}
func (nopMetrics) QueueDepth(int)                      {}

// Stats counts what a pipeline run did. Safe for concurrent use.
type Stats struct {
	read         atomic.Int64
	malformed    atomic.Int64
	inserted     atomic.Int64
	duplicates   atomic.Int64
	deadLettered atomic.Int64
	undelivered  atomic.Int64
	abandoned    atomic.Int64
	retries      atomic.Int64
}

func (s *Stats) Read() int64         { return s.read.Load() }
func (s *Stats) Malformed() int64    { return s.malformed.Load() }
func (s *Stats) Inserted() int64     { return s.inserted.Load() }
func (s *Stats) Duplicates() int64   { return s.duplicates.Load() }
func (s *Stats) DeadLettered() int64 { return s.deadLettered.Load() }
func (s *Stats) Undelivered() int64  { return s.undelivered.Load() }
func (s *Stats) Abandoned() int64    { return s.abandoned.Load() }
func (s *Stats) Retries() int64      { return s.retries.Load() }

func (s *Stats) Fields() logging.Fields {
	return logging.Fields{
		"read":          s.Read(),
		"malformed":     s.Malformed(),
		"inserted":      s.Inserted(),
		"duplicates":    s.Duplicates(),
		"dead_lettered": s.DeadLettered(),
		"undelivered":   s.Undelivered(),
		"abandoned":     s.Abandoned(),
		"retries":       s.Retries(),
	}
}

func (s *Stats) resolved(resolution Resolution) {
	switch resolution {
	case ResolutionInserted:
		s.inserted.Add(1)
	case ResolutionDuplicate:
		s.duplicates.Add(1)
	case ResolutionDeadLettered:
		s.deadLettered.Add(1)
	case ResolutionUndelivered:
		s.undelivered.Add(1)
	case ResolutionAbandoned:
		s.abandoned.Add(1)
	}
}
