// Package notify delivers alert notifications to external channels.
// Delivery is best-effort and must never stall alert processing.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
	"github.com/reservly/pulsed/internal/telemetry"
)

// Dispatcher pushes one alert event to a channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.AlertEvent) error
	Name() string
}

// LogDispatcher writes notifications to the service log. It is the fallback
// when no external channel is configured.
type LogDispatcher struct {
	log *zap.Logger
}

// NewLogDispatcher creates a log-backed dispatcher.
func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Name() string { return "log" }

func (d *LogDispatcher) Dispatch(_ context.Context, ev model.AlertEvent) error {
	d.log.Info("alert notification",
		zap.String("kind", string(ev.Kind)),
		zap.String("id", ev.Alert.ID),
		zap.String("severity", string(ev.Alert.Severity)),
		zap.String("metric", ev.Alert.Metric),
		zap.String("status", string(ev.Alert.Status)),
		zap.String("title", ev.Alert.Title))
	return nil
}

// Notifier fans alert events out to all dispatchers from a single worker
// goroutine. Submit never blocks: when the queue is full the event is
// dropped and counted.
type Notifier struct {
	dispatchers []Dispatcher
	queue       chan model.AlertEvent
	log         *zap.Logger
}

// NewNotifier creates a notifier over the given dispatchers.
func NewNotifier(queueSize int, log *zap.Logger, ds ...Dispatcher) *Notifier {
	if queueSize < 1 {
		queueSize = 64
	}
	return &Notifier{
		dispatchers: ds,
		queue:       make(chan model.AlertEvent, queueSize),
		log:         log,
	}
}

// Start runs the delivery worker until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-n.queue:
				for _, d := range n.dispatchers {
					if err := d.Dispatch(ctx, ev); err != nil {
						n.log.Warn("notification dispatch failed",
							zap.String("channel", d.Name()),
							zap.String("alert", ev.Alert.ID),
							zap.Error(err))
					}
				}
			}
		}
	}()
}

// Submit queues an alert event for delivery without blocking the caller.
func (n *Notifier) Submit(ev model.AlertEvent) {
	select {
	case n.queue <- ev:
	default:
		telemetry.NotifyDropped.Inc()
	}
}
