// Package stream fans snapshot and alert events out to connected observers.
package stream

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
	"github.com/reservly/pulsed/internal/telemetry"
)

// Observer is one connected consumer. Send must honor ctx cancellation; the
// hub treats a Send error or timeout as a failed delivery.
type Observer interface {
	ID() string
	Send(ctx context.Context, p model.StreamPayload) error
	Close(reason string)
}

// subscription holds one observer's filter, cadence and pending state. Each
// subscription runs its own delivery goroutine so a slow observer can only
// stall itself.
type subscription struct {
	obs      Observer
	filter   model.StreamFilter
	interval time.Duration
	cancel   context.CancelFunc

	mu            sync.Mutex
	pendingSnap   *model.MetricSnapshot
	pendingAlerts []model.AlertEvent
	pendingIndex  map[string]int // alert id → slot in pendingAlerts
	failures      int

	urgent chan struct{}
}

// Hub tracks subscriptions and coalesces events per observer: within one
// delivery interval only the latest snapshot and the latest state per alert
// are kept, with per-alert event order preserved.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscription

	writeTimeout time.Duration
	minInterval  time.Duration
	maxFailures  int
	log          *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub. Observer deliveries time out after writeTimeout and
// an observer is dropped after maxFailures consecutive failed deliveries.
func NewHub(writeTimeout, minInterval time.Duration, maxFailures int, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		subs:         make(map[string]*subscription),
		writeTimeout: writeTimeout,
		minInterval:  minInterval,
		maxFailures:  maxFailures,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Shutdown stops all delivery goroutines.
func (h *Hub) Shutdown() {
	h.cancel()
	h.mu.Lock()
	for id, sub := range h.subs {
		sub.cancel()
		delete(h.subs, id)
	}
	h.mu.Unlock()
}

// Subscribe registers an observer with a filter and delivery interval. A
// second subscribe with the same ID replaces the previous subscription.
func (h *Hub) Subscribe(obs Observer, filter model.StreamFilter, interval time.Duration) {
	if interval < h.minInterval {
		interval = h.minInterval
	}
	ctx, cancel := context.WithCancel(h.ctx)
	sub := &subscription{
		obs:          obs,
		filter:       filter,
		interval:     interval,
		cancel:       cancel,
		pendingIndex: make(map[string]int),
		urgent:       make(chan struct{}, 1),
	}

	h.mu.Lock()
	if prev, ok := h.subs[obs.ID()]; ok {
		prev.cancel()
	}
	h.subs[obs.ID()] = sub
	h.mu.Unlock()

	h.log.Info("observer subscribed",
		zap.String("observer", obs.ID()),
		zap.Duration("interval", interval))
	go h.deliverLoop(ctx, sub)
}

// Unsubscribe removes an observer. In-flight deliveries are abandoned.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if ok {
		sub.cancel()
		h.log.Info("observer unsubscribed", zap.String("observer", id))
	}
}

// BroadcastSnapshot queues a snapshot for every matching observer. Never
// blocks: only in-memory pending state is touched.
func (h *Hub) BroadcastSnapshot(snap model.MetricSnapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.filter.MatchesSnapshot() {
			continue
		}
		sub.mu.Lock()
		s := snap
		sub.pendingSnap = &s
		sub.mu.Unlock()
	}
}

// BroadcastAlert queues an alert event for every matching observer. Repeat
// events for the same alert within one interval coalesce to the latest
// state in the original slot, keeping per-alert order. Urgent events ask the
// observer's loop to flush without waiting for the next interval.
func (h *Hub) BroadcastAlert(ev model.AlertEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.filter.MatchesAlert(ev) {
			continue
		}
		sub.mu.Lock()
		if i, ok := sub.pendingIndex[ev.Alert.ID]; ok {
			sub.pendingAlerts[i] = ev
		} else {
			sub.pendingIndex[ev.Alert.ID] = len(sub.pendingAlerts)
			sub.pendingAlerts = append(sub.pendingAlerts, ev)
		}
		sub.mu.Unlock()
		if ev.Urgent {
			select {
			case sub.urgent <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Hub) deliverLoop(ctx context.Context, sub *subscription) {
	ticker := time.NewTicker(sub.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-sub.urgent:
		}
		if !h.flush(ctx, sub) {
			return
		}
	}
}

// flush sends pending state, if any. Returns false once the observer has
// been dropped.
func (h *Hub) flush(ctx context.Context, sub *subscription) bool {
	sub.mu.Lock()
	snap := sub.pendingSnap
	alerts := sub.pendingAlerts
	sub.pendingSnap = nil
	sub.pendingAlerts = nil
	sub.pendingIndex = make(map[string]int)
	sub.mu.Unlock()

	if snap == nil && len(alerts) == 0 {
		return true
	}

	payload := model.StreamPayload{
		Type:     "update",
		Snapshot: snap,
		Alerts:   alerts,
		SentAt:   time.Now().UTC(),
	}

	sctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	err := sub.obs.Send(sctx, payload)
	cancel()
	if err != nil {
		telemetry.StreamDeliveryFailures.Inc()
		sub.failures++
		h.log.Warn("delivery failed",
			zap.String("observer", sub.obs.ID()),
			zap.Int("consecutive", sub.failures),
			zap.Error(err))
		if sub.failures >= h.maxFailures {
			h.drop(sub)
			return false
		}
		return true
	}
	sub.failures = 0
	telemetry.StreamDeliveries.Inc()
	return true
}

// drop removes an unresponsive observer and tells it why.
func (h *Hub) drop(sub *subscription) {
	id := sub.obs.ID()
	h.mu.Lock()
	if h.subs[id] == sub {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	sub.cancel()
	sub.obs.Close("too many failed deliveries")
	h.log.Warn("observer dropped", zap.String("observer", id))
}

// Observers returns the IDs of currently connected observers.
func (h *Hub) Observers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.subs))
	for id := range h.subs {
		out = append(out, id)
	}
	return out
}
