package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/config"
	"github.com/reservly/pulsed/internal/model"
)

func escalationConfig() config.EscalationConfig {
	cfg := config.EscalationConfig{IntervalSec: 60, CooldownMin: 10}
	cfg.Patience.CriticalMin = 5
	cfg.Patience.HighMin = 15
	cfg.Patience.MediumMin = 30
	cfg.Patience.LowMin = 60
	return cfg
}

func TestSweepEscalatesAfterPatience(t *testing.T) {
	r := newTestRegistry()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	crit, _ := r.Open(testBreach("payments.successRate", model.SeverityCritical, 80))
	high, _ := r.Open(testBreach("payments.successRate", model.SeverityHigh, 93))

	m := NewMonitor(r, escalationConfig(), zap.NewNop())

	// Before any patience expires nothing happens.
	assert.Equal(t, 0, m.Sweep(base.Add(4*time.Minute)))

	// After 6 minutes only the critical alert (5m patience) is overdue.
	r.now = func() time.Time { return base.Add(6 * time.Minute) }
	assert.Equal(t, 1, m.Sweep(base.Add(6*time.Minute)))

	got, err := r.Get(crit.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.EscalationLevel)

	got, err = r.Get(high.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EscalationLevel, "15m patience not yet expired")
}

func TestSweepHonorsCooldown(t *testing.T) {
	r := newTestRegistry()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	a, _ := r.Open(testBreach("payments.successRate", model.SeverityCritical, 80))
	m := NewMonitor(r, escalationConfig(), zap.NewNop())

	r.now = func() time.Time { return base.Add(6 * time.Minute) }
	require.Equal(t, 1, m.Sweep(base.Add(6*time.Minute)))

	// Within the 10-minute cooldown the same alert is not escalated again.
	assert.Equal(t, 0, m.Sweep(base.Add(10*time.Minute)))

	// Past the cooldown it escalates once more.
	r.now = func() time.Time { return base.Add(17 * time.Minute) }
	assert.Equal(t, 1, m.Sweep(base.Add(17*time.Minute)))

	got, err := r.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.EscalationLevel)
}

func TestSweepSkipsAcknowledged(t *testing.T) {
	r := newTestRegistry()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	a, _ := r.Open(testBreach("payments.successRate", model.SeverityCritical, 80))
	_, err := r.Acknowledge(a.ID, "oncall")
	require.NoError(t, err)

	m := NewMonitor(r, escalationConfig(), zap.NewNop())
	assert.Equal(t, 0, m.Sweep(base.Add(time.Hour)))

	got, err := r.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EscalationLevel)
}

func TestEscalationUrgentEvent(t *testing.T) {
	r := newTestRegistry()
	var urgent []bool
	r.SetPublisher(func(ev model.AlertEvent) { urgent = append(urgent, ev.Urgent) })

	a, _ := r.Open(testBreach("payments.successRate", model.SeverityCritical, 80))
	_, err := r.Escalate(a.ID)
	require.NoError(t, err)

	require.Len(t, urgent, 2)
	assert.False(t, urgent[0], "creation is a normal event")
	assert.True(t, urgent[1], "escalation is delivered urgently")
}
