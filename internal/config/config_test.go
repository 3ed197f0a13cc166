package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/reservly/pulsed/internal/model"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "127.0.0.1:9480", cfg.Listen)
	assert.Equal(t, 15, cfg.Collect.IntervalSec)
	assert.Equal(t, 10.0, cfg.Alerts.RealertDeltaPct)
	assert.Equal(t, 15, cfg.Alerts.ResolvedGraceMin)
	assert.Equal(t, 3, cfg.Stream.MaxDeliveryFailures)
	assert.Equal(t, 99.9, cfg.SLA.TargetAvailability)
	assert.NoError(t, cfg.Validate())
}

func TestYAMLOverridesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	data := []byte(`
listen: "0.0.0.0:8080"
redis:
  addr: "redis:6379"
collect:
  interval_sec: 30
alerts:
  realert_delta_pct: 5
  rules:
    - metric: payments.successRate
      operator: lt
      threshold: 97
      severity: high
      title: "Success rate low"
      message: "rate %.1f"
escalation:
  cooldown_min: 20
`)
	require.NoError(t, yaml.Unmarshal(data, cfg))

	assert.Equal(t, "0.0.0.0:8080", cfg.Listen)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 30, cfg.Collect.IntervalSec)
	assert.Equal(t, 5.0, cfg.Alerts.RealertDeltaPct)
	assert.Equal(t, 20, cfg.Escalation.CooldownMin)
	// Untouched values keep their defaults.
	assert.Equal(t, "pulsed.db", cfg.DBPath)
	assert.Equal(t, 3000, cfg.Collect.FetchTimeoutMs)

	require.Len(t, cfg.Alerts.Rules, 1)
	rule := cfg.Alerts.Rules[0]
	assert.Equal(t, "payments.successRate", rule.Metric)
	assert.Equal(t, "lt", rule.Operator)
	assert.Equal(t, 97.0, rule.Threshold)
	assert.Equal(t, model.SeverityHigh, rule.Severity)
}

func TestValidateClamps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collect.IntervalSec = 0
	cfg.Stream.MaxDeliveryFailures = -1
	cfg.SLA.TargetAvailability = 150

	err := cfg.Validate()
	require.Error(t, err, "first offending value is reported")
	assert.Equal(t, 1, cfg.Collect.IntervalSec)
	assert.Equal(t, 1, cfg.Stream.MaxDeliveryFailures)
	assert.Equal(t, 99.9, cfg.SLA.TargetAvailability)
}

func TestPatienceFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5*time.Minute, cfg.Escalation.PatienceFor(model.SeverityCritical))
	assert.Equal(t, 15*time.Minute, cfg.Escalation.PatienceFor(model.SeverityHigh))
	assert.Equal(t, 30*time.Minute, cfg.Escalation.PatienceFor(model.SeverityMedium))
	assert.Equal(t, 60*time.Minute, cfg.Escalation.PatienceFor(model.SeverityLow))
}
