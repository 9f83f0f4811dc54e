package ingest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
	liberr "gitea.xscloud.ru/xscloud/eventingest/pkg/common/errors"
)

var ErrDrainTimeout = errors.New("drain timeout expired before queued events were processed")

type Config struct {
	QueueCapacity int
	Workers       int
	Retry         RetryPolicy
	// DrainTimeout is how long workers keep processing queued events after shutdown was requested.
	DrainTimeout time.Duration
}

type Option func(p *Pipeline)

func WithMetrics(metrics Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = metrics
	}
}

func WithParser(parser *Parser) Option {
	return func(p *Pipeline) {
		p.parser = parser
	}
}

func WithRetrier(retrier *Retrier) Option {
	return func(p *Pipeline) {
		p.retrier = retrier
	}
}

type Pipeline struct {
	config      Config
	source      Source
	writer      Writer
	deadLetters DeadLetterSink
	logger      logging.Logger

	parser  *Parser
	retrier *Retrier
	metrics Metrics
	stats   *Stats
	now     func() time.Time
}

func NewPipeline(
	config Config,
	source Source,
	writer Writer,
	deadLetters DeadLetterSink,
	logger logging.Logger,
	opts ...Option,
) *Pipeline {
	if config.Workers <= 0 {
		panic("workers count must be positive")
	}
	p := &Pipeline{
		config:      config,
		source:      source,
		writer:      NewLimitedWriter(writer, int64(config.Workers)),
		deadLetters: deadLetters,
		logger:      logger,
		parser:      NewParser(),
		retrier:     NewRetrier(config.Retry),
		metrics:     nopMetrics{},
		stats:       &Stats{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Stats() *Stats {
	return p.stats
}

type envelope struct {
	record Record
	event  Event
}

// Run reads the source until it is exhausted or ctx is cancelled, then waits for the
// workers to drain the queue. Cancelling ctx is a normal shutdown, not an error;
// ErrDrainTimeout is returned when queued events had to be abandoned.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.WithFields(logging.Fields{
		"workers":        p.config.Workers,
		"queue_capacity": p.config.QueueCapacity,
		"max_attempts":   p.config.Retry.MaxAttempts,
	}).Info("pipeline started")

	queue := NewQueue[envelope](p.config.QueueCapacity)
	drainCtx, finished := p.setupDrainContext(ctx)

	var group errgroup.Group
	group.Go(func() error {
		return p.produce(ctx, queue)
	})
	for i := range p.config.Workers {
		logger := p.logger.WithField("worker", i)
		group.Go(func() error {
			p.consume(drainCtx, queue, logger)
			return nil
		})
	}
	err := group.Wait()

	timedOut := errors.Is(context.Cause(drainCtx), ErrDrainTimeout)
	close(finished)

	settleCtx := context.WithoutCancel(ctx)
	for _, item := range queue.Drain() {
		p.abandon(settleCtx, item.record, p.logger.WithFields(item.event.Fields()))
	}
	if timedOut {
		err = liberr.Join(err, ErrDrainTimeout)
	}

	logger := p.logger.WithFields(p.stats.Fields())
	if err != nil {
		logger.Error(err, "pipeline stopped")
		return err
	}
	logger.Info("pipeline finished")
	return nil
}

// setupDrainContext returns a context that outlives ctx by DrainTimeout so queued work can finish.
// Closing finished releases the timer.
func (p *Pipeline) setupDrainContext(ctx context.Context) (context.Context, chan struct{}) {
	drainCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	finished := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			p.logger.WithField("drain_timeout", p.config.DrainTimeout.String()).Info("shutdown requested, draining queue")
			timer := time.NewTimer(p.config.DrainTimeout)
			defer timer.Stop()
			select {
			case <-timer.C:
				cancel(ErrDrainTimeout)
			case <-finished:
				cancel(nil)
			}
		case <-finished:
			cancel(nil)
		}
	}()

	return drainCtx, finished
}

func (p *Pipeline) produce(ctx context.Context, queue *Queue[envelope]) error {
	var published int
	defer func() {
		queue.Complete()
		p.logger.WithField("published", published).Info("producer finished, queue completed")
	}()

	settleCtx := context.WithoutCancel(ctx)
	for record, err := range p.source.Records(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to read records")
		}
		if record.Err == nil && IsBlank(record.Body) {
			p.ack(settleCtx, record, p.logger)
			continue
		}

		event, err := p.parse(record)
		if err != nil {
			p.stats.read.Add(1)
			p.stats.malformed.Add(1)
			p.metrics.RecordRead(true)
			logger := p.logger.WithField("position", record.Position)
			logger.Warning(err, "skipping malformed record")
			p.ack(settleCtx, record, logger)
			continue
		}
		p.stats.read.Add(1)
		p.metrics.RecordRead(false)

		if err = queue.Push(ctx, envelope{record: record, event: event}); err != nil {
			p.abandon(settleCtx, record, p.logger.WithFields(event.Fields()))
			return nil
		}
		published++
		p.metrics.QueueDepth(queue.Len())
	}
	return nil
}

func (p *Pipeline) parse(record Record) (Event, error) {
	if record.Err != nil {
		return Event{}, &MalformedRecordError{Err: record.Err}
	}
	return p.parser.Parse(record.Body)
}

func (p *Pipeline) consume(ctx context.Context, queue *Queue[envelope], logger logging.Logger) {
	for {
		item, ok, err := queue.Pop(ctx)
		if err != nil || !ok {
			return
		}
		p.metrics.QueueDepth(queue.Len())
		p.process(ctx, item, logger.WithFields(item.event.Fields()))
	}
}

func (p *Pipeline) process(ctx context.Context, item envelope, logger logging.Logger) {
	var outcome Outcome
	attempts, err := p.retrier.Do(
		ctx,
		func(ctx context.Context) error {
			start := time.Now()
			var writeErr error
			outcome, writeErr = p.writer.Write(ctx, item.event)
			p.metrics.WriteObserved(writeResult(outcome, writeErr), time.Since(start))
			return writeErr
		},
		func(attempt int, delay time.Duration, err error) {
			p.stats.retries.Add(1)
			p.metrics.RetryScheduled()
			logger.WithFields(logging.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warning(err, "transient write failure, retrying")
		},
	)

	settleCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil && outcome == OutcomeDuplicate:
		logger.Warn("event already stored, duplicate skipped")
		p.resolved(ResolutionDuplicate)
		p.ack(settleCtx, item.record, logger)
	case err == nil:
		logger.Info("event saved")
		p.resolved(ResolutionInserted)
		p.ack(settleCtx, item.record, logger)
	case ctx.Err() != nil:
		p.abandon(settleCtx, item.record, logger)
	default:
		p.deadLetter(ctx, item, attempts, err, logger)
	}
}

func (p *Pipeline) deadLetter(ctx context.Context, item envelope, attempts int, cause error, logger logging.Logger) {
	logger = logger.WithField("attempts", attempts)
	logger.Error(cause, "event failed permanently")

	err := p.deadLetters.Put(ctx, DeadLetter{
		Event:    item.event,
		Raw:      item.record.Body,
		Reason:   cause.Error(),
		Attempts: attempts,
		FailedAt: p.now().UTC(),
	})
	settleCtx := context.WithoutCancel(ctx)
	if err != nil {
		logger.Error(err, "failed to dead-letter event, returning it to the source")
		p.resolved(ResolutionUndelivered)
		p.reject(settleCtx, item.record, logger)
		return
	}
	p.resolved(ResolutionDeadLettered)
	p.ack(settleCtx, item.record, logger)
}

func (p *Pipeline) abandon(ctx context.Context, record Record, logger logging.Logger) {
	logger.Info("event abandoned by shutdown, left for redelivery")
	p.resolved(ResolutionAbandoned)
	p.reject(ctx, record, logger)
}

func (p *Pipeline) resolved(resolution Resolution) {
	p.stats.resolved(resolution)
	p.metrics.EventResolved(resolution)
}

func (p *Pipeline) ack(ctx context.Context, record Record, logger logging.Logger) {
	if err := record.Ack(ctx); err != nil {
		logger.Error(err, "failed to acknowledge record")
	}
}

func (p *Pipeline) reject(ctx context.Context, record Record, logger logging.Logger) {
	if err := record.Reject(ctx); err != nil {
		logger.Error(err, "failed to reject record")
	}
}

func writeResult(outcome Outcome, err error) string {
	if err != nil {
		return KindOf(err).String()
	}
	return outcome.String()
}
