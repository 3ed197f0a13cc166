package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
	"github.com/reservly/pulsed/internal/telemetry"
)

type writeJob struct {
	kind string
	run  func() error
}

// RetryWriter decouples persistence from the hot path: writes are queued and
// a single worker applies them with bounded exponential backoff. When
// retries exhaust, the in-memory state stays authoritative and the failure
// is logged as a data-durability warning and raised through the alerter so
// the engine alerts on its own persistence, never silently dropped.
type RetryWriter struct {
	store    *Store
	log      *zap.Logger
	attempts int
	base     time.Duration
	queue    chan writeJob
	wg       sync.WaitGroup

	mu      sync.Mutex
	alerter func(model.Breach)
}

// NewRetryWriter wraps the store with an async bounded-backoff writer.
func NewRetryWriter(s *Store, attempts int, base time.Duration, queueSize int, log *zap.Logger) *RetryWriter {
	if attempts < 1 {
		attempts = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	return &RetryWriter{
		store:    s,
		log:      log,
		attempts: attempts,
		base:     base,
		queue:    make(chan writeJob, queueSize),
	}
}

// Start runs the write worker until ctx is cancelled, then drains the queue.
func (w *RetryWriter) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case job := <-w.queue:
						w.apply(job)
					default:
						return
					}
				}
			case job := <-w.queue:
				w.apply(job)
			}
		}
	}()
}

// Wait blocks until the worker has stopped.
func (w *RetryWriter) Wait() { w.wg.Wait() }

// SetAlerter sets the function handed a breach when a write exhausts its
// retries. Wired to the alert registry so persistence failures show up in
// the same alert stream as everything else.
func (w *RetryWriter) SetAlerter(fn func(model.Breach)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alerter = fn
}

func (w *RetryWriter) apply(job writeJob) {
	delay := w.base
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if err = job.run(); err == nil {
			return
		}
		if attempt < w.attempts {
			telemetry.StoreRetries.Inc()
			time.Sleep(delay)
			delay *= 2
		}
	}
	w.log.Warn("durable write failed, in-memory state remains authoritative",
		zap.String("kind", job.kind),
		zap.Int("attempts", w.attempts),
		zap.Error(err))

	w.mu.Lock()
	fn := w.alerter
	w.mu.Unlock()
	if fn != nil {
		// Open dedupes per (metric, severity) and the value never moves, so
		// the failing write of this very alert cannot re-trigger itself.
		fn(model.Breach{
			Metric:    "collector.persistence",
			Domain:    model.DomainSystem,
			Severity:  model.SeverityHigh,
			Value:     float64(w.attempts),
			Threshold: float64(w.attempts),
			Title:     "Durable store writes failing",
			Message:   fmt.Sprintf("A %s write failed after %d attempts; persisted history may be incomplete", job.kind, w.attempts),
		})
	}
}

func (w *RetryWriter) enqueue(job writeJob) {
	select {
	case w.queue <- job:
	default:
		// Queue full: apply inline rather than lose the write.
		w.apply(job)
	}
}

// SaveAlert queues an alert upsert.
func (w *RetryWriter) SaveAlert(a model.Alert) {
	w.enqueue(writeJob{kind: "alert", run: func() error { return w.store.SaveAlert(a) }})
}

// SaveSnapshot queues a snapshot upsert.
func (w *RetryWriter) SaveSnapshot(snap model.MetricSnapshot) {
	w.enqueue(writeJob{kind: "snapshot", run: func() error { return w.store.SaveSnapshot(snap) }})
}

// SaveSLAReport queues a report upsert.
func (w *RetryWriter) SaveSLAReport(r model.SLAReport) {
	w.enqueue(writeJob{kind: "sla_report", run: func() error { return w.store.SaveSLAReport(r) }})
}
