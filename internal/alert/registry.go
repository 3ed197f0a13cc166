package alert

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
	"github.com/reservly/pulsed/internal/telemetry"
)

// ErrInvalidTransition is returned when a lifecycle call is not permitted in
// the alert's current status. Use errors.As with *TransitionError to learn
// the status that rejected it.
var ErrInvalidTransition = errors.New("invalid alert transition")

// ErrAlertNotFound is returned for unknown alert IDs.
var ErrAlertNotFound = errors.New("alert not found")

// TransitionError carries the status that made a transition invalid.
type TransitionError struct {
	Op      string
	Current model.AlertStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s alert in status %q", e.Op, e.Current)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Publisher receives every alert event in transition order.
type Publisher func(ev model.AlertEvent)

type entry struct {
	mu           sync.Mutex
	alert        model.Alert
	lastNotified float64
}

// Registry owns all live alerts and serializes transitions per alert: calls
// on different alerts run in parallel, calls on the same alert are
// linearized through the entry's own mutex. The registry-level lock only
// guards the index maps.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*entry
	openKey map[string]*entry // metric|severity → unresolved entry

	realertDeltaPct float64
	resolvedGrace   time.Duration
	publish         Publisher
	log             *zap.Logger

	now func() time.Time // swapped in tests
}

// NewRegistry creates an empty alert registry.
func NewRegistry(realertDeltaPct float64, resolvedGrace time.Duration, log *zap.Logger) *Registry {
	return &Registry{
		byID:            make(map[string]*entry),
		openKey:         make(map[string]*entry),
		realertDeltaPct: realertDeltaPct,
		resolvedGrace:   resolvedGrace,
		log:             log,
		now:             time.Now,
	}
}

// SetPublisher sets the function called after each state-changing operation.
func (r *Registry) SetPublisher(fn Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publish = fn
}

func (r *Registry) emit(ev model.AlertEvent) {
	r.mu.RLock()
	fn := r.publish
	r.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func openKeyOf(metric string, sev model.AlertSeverity) string {
	return metric + "|" + string(sev)
}

// Open applies a breach: if an unresolved alert already exists for the
// (metric, severity) pair its current value is updated in place, otherwise a
// new active alert is created. Returns the alert and whether it was created.
// A repeat breach only re-notifies when the value moved at least the re-alert
// delta (as a percentage of the threshold) from the last notified value.
func (r *Registry) Open(b model.Breach) (model.Alert, bool) {
	key := openKeyOf(b.Metric, b.Severity)
	now := r.now()

	r.mu.Lock()
	e, exists := r.openKey[key]
	if !exists {
		e = &entry{
			alert: model.Alert{
				ID:              uuid.NewString(),
				Type:            b.Domain,
				Severity:        b.Severity,
				Title:           b.Title,
				Description:     b.Message,
				Metric:          b.Metric,
				Threshold:       b.Threshold,
				CurrentValue:    b.Value,
				Status:          model.StatusActive,
				EscalationLevel: 1,
				Actions:         SuggestedActions(b.Metric),
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			lastNotified: b.Value,
		}
		r.byID[e.alert.ID] = e
		r.openKey[key] = e
		r.mu.Unlock()

		telemetry.AlertsCreated.WithLabelValues(string(b.Severity)).Inc()
		telemetry.ActiveAlerts.Inc()
		r.log.Info("alert created",
			zap.String("id", e.alert.ID),
			zap.String("metric", b.Metric),
			zap.String("severity", string(b.Severity)),
			zap.Float64("value", b.Value))
		r.emit(model.AlertEvent{Kind: model.AlertCreated, Alert: e.alert})
		return e.alert, true
	}
	r.mu.Unlock()

	e.mu.Lock()
	e.alert.CurrentValue = b.Value
	e.alert.Description = b.Message
	e.alert.UpdatedAt = now
	renotify := r.shouldRenotify(e, b)
	if renotify {
		e.lastNotified = b.Value
	}
	a := e.alert
	if renotify {
		r.emit(model.AlertEvent{Kind: model.AlertUpdated, Alert: a})
	}
	e.mu.Unlock()
	return a, false
}

// shouldRenotify is called with e.mu held.
func (r *Registry) shouldRenotify(e *entry, b model.Breach) bool {
	if r.realertDeltaPct <= 0 {
		return false
	}
	delta := b.Threshold * r.realertDeltaPct / 100
	if delta < 0 {
		delta = -delta
	}
	diff := b.Value - e.lastNotified
	if diff < 0 {
		diff = -diff
	}
	return diff >= delta && delta > 0
}

// Acknowledge marks an active alert as owned by actor.
func (r *Registry) Acknowledge(id, actor string) (model.Alert, error) {
	e, err := r.lookup(id)
	if err != nil {
		return model.Alert{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.alert.Status != model.StatusActive {
		return e.alert, &TransitionError{Op: "acknowledge", Current: e.alert.Status}
	}
	now := r.now()
	e.alert.Status = model.StatusAcknowledged
	e.alert.Assignee = actor
	e.alert.AcknowledgedAt = &now
	e.alert.UpdatedAt = now
	r.log.Info("alert acknowledged", zap.String("id", id), zap.String("actor", actor))
	r.emit(model.AlertEvent{Kind: model.AlertUpdated, Alert: e.alert})
	return e.alert, nil
}

// Resolve closes an alert from active or acknowledged, recording the
// resolution note. The alert leaves the live registry after a grace period
// but remains in durable storage.
func (r *Registry) Resolve(id, note string) (model.Alert, error) {
	e, err := r.lookup(id)
	if err != nil {
		return model.Alert{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.alert.Status == model.StatusResolved {
		return e.alert, &TransitionError{Op: "resolve", Current: e.alert.Status}
	}
	now := r.now()
	e.alert.Status = model.StatusResolved
	e.alert.Resolution = note
	e.alert.ResolvedAt = &now
	e.alert.UpdatedAt = now

	// Free the (metric, severity) slot immediately so a new breach opens a
	// fresh alert; keep the entry itself readable for the grace period.
	r.mu.Lock()
	key := openKeyOf(e.alert.Metric, e.alert.Severity)
	if r.openKey[key] == e {
		delete(r.openKey, key)
	}
	r.mu.Unlock()
	telemetry.ActiveAlerts.Dec()

	time.AfterFunc(r.resolvedGrace, func() { r.evict(id) })

	r.log.Info("alert resolved", zap.String("id", id))
	r.emit(model.AlertEvent{Kind: model.AlertUpdated, Alert: e.alert})
	return e.alert, nil
}

// Escalate raises the escalation level of an active alert. Acknowledged
// alerts are owned and never auto-escalated.
func (r *Registry) Escalate(id string) (model.Alert, error) {
	e, err := r.lookup(id)
	if err != nil {
		return model.Alert{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.alert.Status != model.StatusActive {
		return e.alert, &TransitionError{Op: "escalate", Current: e.alert.Status}
	}
	now := r.now()
	e.alert.EscalationLevel++
	e.alert.LastEscalatedAt = &now
	e.alert.UpdatedAt = now
	r.log.Warn("alert escalated",
		zap.String("id", id),
		zap.Int("level", e.alert.EscalationLevel),
		zap.String("severity", string(e.alert.Severity)))
	r.emit(model.AlertEvent{Kind: model.AlertUpdated, Alert: e.alert, Urgent: true})
	return e.alert, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return e, nil
}

func (r *Registry) evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// Get returns a copy of one alert.
func (r *Registry) Get(id string) (model.Alert, error) {
	e, err := r.lookup(id)
	if err != nil {
		return model.Alert{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alert, nil
}

// ListFilter narrows List results; zero values match everything.
type ListFilter struct {
	Severity model.AlertSeverity
	Type     model.MetricDomain
	Status   model.AlertStatus
}

// List returns copies of live alerts matching the filter, newest first.
func (r *Registry) List(f ListFilter) []model.Alert {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.byID))
	for _, e := range r.byID {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]model.Alert, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		a := e.alert
		e.mu.Unlock()
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Active returns copies of all alerts currently in active status.
func (r *Registry) Active() []model.Alert {
	return r.List(ListFilter{Status: model.StatusActive})
}
