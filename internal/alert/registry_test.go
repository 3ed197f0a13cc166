package alert

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
)

func testBreach(metric string, sev model.AlertSeverity, value float64) model.Breach {
	return model.Breach{
		Metric:    metric,
		Domain:    model.DomainPayment,
		Severity:  sev,
		Value:     value,
		Threshold: 95,
		Title:     "test breach",
		Message:   "value out of bounds",
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(10, time.Minute, zap.NewNop())
}

func TestOpenCreatesThenDedupes(t *testing.T) {
	r := newTestRegistry()

	a1, created := r.Open(testBreach("payments.successRate", model.SeverityHigh, 93))
	require.True(t, created)
	assert.Equal(t, model.StatusActive, a1.Status)
	assert.Equal(t, 1, a1.EscalationLevel)
	assert.NotEmpty(t, a1.Actions)

	// Same metric and severity while unresolved: update in place, no new alert.
	a2, created := r.Open(testBreach("payments.successRate", model.SeverityHigh, 92))
	assert.False(t, created)
	assert.Equal(t, a1.ID, a2.ID)
	assert.Equal(t, 92.0, a2.CurrentValue)

	// Same metric at a different severity is a separate slot.
	a3, created := r.Open(testBreach("payments.successRate", model.SeverityCritical, 88))
	assert.True(t, created)
	assert.NotEqual(t, a1.ID, a3.ID)

	assert.Len(t, r.Active(), 2)
}

func TestLifecycleTransitions(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Open(testBreach("payments.successRate", model.SeverityHigh, 93))

	acked, err := r.Acknowledge(a.ID, "oncall")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAcknowledged, acked.Status)
	assert.Equal(t, "oncall", acked.Assignee)
	require.NotNil(t, acked.AcknowledgedAt)

	// Double acknowledge is rejected with the current status attached.
	_, err = r.Acknowledge(a.ID, "other")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, model.StatusAcknowledged, te.Current)

	resolved, err := r.Resolve(a.ID, "fixed payment gateway")
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, resolved.Status)
	assert.Equal(t, "fixed payment gateway", resolved.Resolution)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = r.Resolve(a.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = r.Acknowledge(a.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolveDirectlyFromActive(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Open(testBreach("system.cpu", model.SeverityMedium, 95))

	resolved, err := r.Resolve(a.ID, "scaled out")
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, resolved.Status)
}

func TestResolveFreesDedupeSlot(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Open(testBreach("payments.successRate", model.SeverityHigh, 93))
	_, err := r.Resolve(a.ID, "")
	require.NoError(t, err)

	// A new breach after resolve opens a fresh alert even though the old
	// entry is still readable during the grace period.
	fresh, created := r.Open(testBreach("payments.successRate", model.SeverityHigh, 91))
	assert.True(t, created)
	assert.NotEqual(t, a.ID, fresh.ID)

	old, err := r.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, old.Status)
}

func TestEscalateOnlyActive(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Open(testBreach("payments.successRate", model.SeverityCritical, 80))

	esc, err := r.Escalate(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, esc.EscalationLevel)
	require.NotNil(t, esc.LastEscalatedAt)

	esc, err = r.Escalate(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, esc.EscalationLevel, "level only ever rises")

	_, err = r.Acknowledge(a.ID, "oncall")
	require.NoError(t, err)
	_, err = r.Escalate(a.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "owned alerts are not escalated")
}

func TestUnknownAlertID(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrAlertNotFound)
	_, err = r.Acknowledge("nope", "x")
	assert.ErrorIs(t, err, ErrAlertNotFound)
	_, err = r.Resolve("nope", "x")
	assert.ErrorIs(t, err, ErrAlertNotFound)
	_, err = r.Escalate("nope")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestRenotifyDelta(t *testing.T) {
	r := newTestRegistry() // 10% of threshold 95 → delta 9.5
	var events []model.AlertEvent
	r.SetPublisher(func(ev model.AlertEvent) { events = append(events, ev) })

	r.Open(testBreach("payments.successRate", model.SeverityHigh, 93))
	require.Len(t, events, 1)
	assert.Equal(t, model.AlertCreated, events[0].Kind)

	// Small movement: update happens, no event.
	r.Open(testBreach("payments.successRate", model.SeverityHigh, 90))
	assert.Len(t, events, 1)

	// Movement beyond the delta re-notifies.
	r.Open(testBreach("payments.successRate", model.SeverityHigh, 80))
	require.Len(t, events, 2)
	assert.Equal(t, model.AlertUpdated, events[1].Kind)
	assert.Equal(t, 80.0, events[1].Alert.CurrentValue)
}

func TestPublisherReceivesLifecycleEvents(t *testing.T) {
	r := newTestRegistry()
	var kinds []model.AlertEventKind
	r.SetPublisher(func(ev model.AlertEvent) { kinds = append(kinds, ev.Kind) })

	a, _ := r.Open(testBreach("system.disk", model.SeverityHigh, 97))
	_, err := r.Acknowledge(a.ID, "oncall")
	require.NoError(t, err)
	_, err = r.Resolve(a.ID, "cleaned up")
	require.NoError(t, err)

	assert.Equal(t, []model.AlertEventKind{
		model.AlertCreated, model.AlertUpdated, model.AlertUpdated,
	}, kinds)
}

func TestListFiltersAndOrder(t *testing.T) {
	r := newTestRegistry()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	r.now = func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Second)
	}

	r.Open(testBreach("payments.successRate", model.SeverityHigh, 93))
	r.Open(testBreach("payments.successRate", model.SeverityCritical, 85))
	crit, _ := r.Open(model.Breach{
		Metric: "system.cpu", Domain: model.DomainSystem,
		Severity: model.SeverityCritical, Value: 99, Threshold: 90,
		Title: "cpu", Message: "high",
	})

	all := r.List(ListFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, crit.ID, all[0].ID, "newest first")

	crits := r.List(ListFilter{Severity: model.SeverityCritical})
	assert.Len(t, crits, 2)

	system := r.List(ListFilter{Type: model.DomainSystem})
	require.Len(t, system, 1)
	assert.Equal(t, crit.ID, system[0].ID)
}

func TestErrorsUnwrap(t *testing.T) {
	err := error(&TransitionError{Op: "resolve", Current: model.StatusResolved})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), "resolve")
	assert.Contains(t, err.Error(), "resolved")
}
