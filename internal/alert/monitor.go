package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/config"
	"github.com/reservly/pulsed/internal/model"
)

// Monitor escalates active alerts that sit unacknowledged too long. It is
// the only caller of Registry.Escalate; it never acknowledges or resolves.
type Monitor struct {
	reg      *Registry
	cfg      config.EscalationConfig
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewMonitor creates an escalation monitor over the registry.
func NewMonitor(reg *Registry, cfg config.EscalationConfig, log *zap.Logger) *Monitor {
	return &Monitor{
		reg:      reg,
		cfg:      cfg,
		interval: time.Duration(cfg.IntervalSec) * time.Second,
		log:      log,
		now:      time.Now,
	}
}

// Start runs the escalation loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(m.now())
			}
		}
	}()
}

// Sweep escalates every active alert that is overdue at now. An alert
// escalated within the cool-down window is skipped, so the sweep is
// idempotent per window.
func (m *Monitor) Sweep(now time.Time) int {
	cooldown := time.Duration(m.cfg.CooldownMin) * time.Minute
	escalated := 0
	for _, a := range m.reg.Active() {
		if !m.overdue(a, now, cooldown) {
			continue
		}
		if _, err := m.reg.Escalate(a.ID); err != nil {
			// Lost a race with acknowledge/resolve; nothing to do.
			continue
		}
		escalated++
	}
	if escalated > 0 {
		m.log.Info("escalation sweep", zap.Int("escalated", escalated))
	}
	return escalated
}

func (m *Monitor) overdue(a model.Alert, now time.Time, cooldown time.Duration) bool {
	if a.LastEscalatedAt == nil {
		return now.Sub(a.CreatedAt) > m.cfg.PatienceFor(a.Severity)
	}
	return now.Sub(*a.LastEscalatedAt) > cooldown
}
