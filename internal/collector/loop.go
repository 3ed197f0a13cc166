package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/alert"
	"github.com/reservly/pulsed/internal/model"
	"github.com/reservly/pulsed/internal/source"
	"github.com/reservly/pulsed/internal/telemetry"
)

// BroadcastFunc is called with each appended snapshot for real-time streaming.
type BroadcastFunc func(snap model.MetricSnapshot)

// PersistFunc hands a snapshot to the durable store. It must not block.
type PersistFunc func(snap model.MetricSnapshot)

// Loop produces one snapshot per tick, appends it to the sample store and
// feeds it to threshold evaluation. Evaluation runs on its own goroutine
// behind a bounded queue: a slow evaluation delays later ticks, and once the
// queue is full the oldest queued snapshot is dropped and a collector-lag
// alert is raised.
type Loop struct {
	sources  *source.Registry
	samples  *SampleStore
	rules    []model.ThresholdRule
	registry *alert.Registry

	interval time.Duration
	queue    chan model.MetricSnapshot
	log      *zap.Logger

	mu        sync.Mutex
	broadcast BroadcastFunc
	persist   PersistFunc
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewLoop creates a collector loop. queueSize bounds the evaluation queue.
func NewLoop(sources *source.Registry, samples *SampleStore, rules []model.ThresholdRule, registry *alert.Registry, interval time.Duration, queueSize int, log *zap.Logger) *Loop {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Loop{
		sources:  sources,
		samples:  samples,
		rules:    rules,
		registry: registry,
		interval: interval,
		queue:    make(chan model.MetricSnapshot, queueSize),
		log:      log,
	}
}

// SetBroadcast sets the function called with each collected snapshot.
func (l *Loop) SetBroadcast(fn BroadcastFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.broadcast = fn
}

// SetPersist sets the function handed each collected snapshot for storage.
func (l *Loop) SetPersist(fn PersistFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persist = fn
}

// Start begins the collection and evaluation goroutines.
func (l *Loop) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	l.wg.Add(2)
	go l.collectLoop(ctx)
	go l.evalLoop()
}

// Stop halts the loop, letting the in-flight tick complete, and waits for
// the evaluation queue to drain.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
}

func (l *Loop) collectLoop(ctx context.Context) {
	defer l.wg.Done()
	defer close(l.queue)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	// Fetches run detached from the stop signal: a tick caught mid-flight
	// finishes under its own per-domain timeouts instead of aborting with a
	// spurious all-domains-failed alert.
	tickCtx := context.WithoutCancel(ctx)

	// Run once immediately
	l.Tick(tickCtx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Tick(tickCtx, now)
		}
	}
}

// Tick performs one collection: fetch all domains, append the snapshot, and
// queue it for evaluation. Exported for tests.
func (l *Loop) Tick(ctx context.Context, now time.Time) {
	snap, failed, err := l.sources.Snapshot(ctx, now, l.interval)
	for _, d := range model.Domains {
		if snap.IsStale(d) {
			telemetry.DomainFailures.WithLabelValues(string(d)).Inc()
		}
	}
	if err != nil {
		if errors.Is(err, source.ErrAllSourcesFailed) {
			// The tick is skipped entirely; the engine alerts on itself.
			telemetry.CollectTicksSkipped.Inc()
			l.log.Error("collection failed for every domain, skipping tick")
			l.registry.Open(model.Breach{
				Metric:    "collector.failure",
				Domain:    model.DomainSystem,
				Severity:  model.SeverityCritical,
				Value:     float64(failed),
				Threshold: float64(len(model.Domains)),
				Title:     "Metric collection failed",
				Message:   "All metric domains failed to collect; monitoring data is not being gathered",
			})
		}
		return
	}

	telemetry.CollectTicks.Inc()
	l.samples.Append(snap)

	l.mu.Lock()
	bfn := l.broadcast
	pfn := l.persist
	l.mu.Unlock()
	if bfn != nil {
		bfn(snap)
	}
	if pfn != nil {
		pfn(snap)
	}

	l.enqueue(snap)
}

// enqueue adds the snapshot to the evaluation queue, dropping the oldest
// queued entry and raising a lag alert when the queue is full.
func (l *Loop) enqueue(snap model.MetricSnapshot) {
	select {
	case l.queue <- snap:
		return
	default:
	}

	select {
	case dropped := <-l.queue:
		telemetry.EvalQueueDropped.Inc()
		l.log.Warn("evaluation lagging, dropped queued snapshot",
			zap.Time("dropped_ts", dropped.Timestamp))
	default:
	}

	select {
	case l.queue <- snap:
	default:
	}

	l.registry.Open(model.Breach{
		Metric:    "collector.lag",
		Domain:    model.DomainSystem,
		Severity:  model.SeverityHigh,
		Value:     float64(cap(l.queue)),
		Threshold: float64(cap(l.queue)),
		Title:     "Collector evaluation lag",
		Message:   fmt.Sprintf("Threshold evaluation is not keeping up; evaluation queue of %d is full and the oldest snapshot was dropped", cap(l.queue)),
	})
}

func (l *Loop) evalLoop() {
	defer l.wg.Done()
	for snap := range l.queue {
		l.evaluate(snap)
	}
}

func (l *Loop) evaluate(snap model.MetricSnapshot) {
	for _, b := range alert.Evaluate(snap, l.rules) {
		l.registry.Open(b)
	}
}
