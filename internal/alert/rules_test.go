package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservly/pulsed/internal/model"
)

func snapshotWith(successRate float64) model.MetricSnapshot {
	return model.MetricSnapshot{
		Payment: model.PaymentMetrics{SuccessRate: successRate},
		System:  model.SystemMetrics{AvailabilityPct: 100},
	}
}

func TestEvaluateHighestSeverityWins(t *testing.T) {
	// 85% breaches both the critical (<90) and high (<95) rule; only the
	// critical breach must come out.
	snap := snapshotWith(85)
	breaches := Evaluate(snap, DefaultRules())

	var got []model.Breach
	for _, b := range breaches {
		if b.Metric == "payments.successRate" {
			got = append(got, b)
		}
	}
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityCritical, got[0].Severity)
	assert.Equal(t, 85.0, got[0].Value)
	assert.Equal(t, model.DomainPayment, got[0].Domain)
}

func TestEvaluateSingleRuleBreach(t *testing.T) {
	// 93% breaches only the high rule.
	snap := snapshotWith(93)
	breaches := Evaluate(snap, DefaultRules())

	require.Len(t, breaches, 1)
	assert.Equal(t, "payments.successRate", breaches[0].Metric)
	assert.Equal(t, model.SeverityHigh, breaches[0].Severity)
}

func TestEvaluateNoBreaches(t *testing.T) {
	snap := snapshotWith(99.5)
	assert.Empty(t, Evaluate(snap, DefaultRules()))
}

func TestEvaluateSkipsStaleDomains(t *testing.T) {
	snap := snapshotWith(50) // would be critical if fresh
	snap.Stale = map[model.MetricDomain]bool{model.DomainPayment: true}

	for _, b := range Evaluate(snap, DefaultRules()) {
		assert.NotEqual(t, model.DomainPayment, b.Domain,
			"carried-over values must not trigger alerts")
	}
}

func TestEvaluateOperators(t *testing.T) {
	rules := []model.ThresholdRule{
		{Metric: "system.cpu", Operator: "gt", Threshold: 90, Severity: model.SeverityMedium,
			Title: "cpu", Message: "%.1f"},
		{Metric: "system.availability", Operator: "lt", Threshold: 99, Severity: model.SeverityCritical,
			Title: "avail", Message: "%.2f"},
	}

	snap := model.MetricSnapshot{System: model.SystemMetrics{CPUPct: 90, AvailabilityPct: 99}}
	assert.Empty(t, Evaluate(snap, rules), "boundary values are not breaches")

	snap.System.CPUPct = 90.1
	snap.System.AvailabilityPct = 98.9
	assert.Len(t, Evaluate(snap, rules), 2)
}

func TestEvaluatePreservesRuleOrder(t *testing.T) {
	snap := model.MetricSnapshot{
		Payment: model.PaymentMetrics{SuccessRate: 85, FailTx: 80},
		System:  model.SystemMetrics{AvailabilityPct: 100, CPUPct: 95},
	}
	breaches := Evaluate(snap, DefaultRules())
	require.Len(t, breaches, 3)
	assert.Equal(t, "payments.successRate", breaches[0].Metric)
	assert.Equal(t, "payments.failedTx", breaches[1].Metric)
	assert.Equal(t, "system.cpu", breaches[2].Metric)
}

func TestDomainOf(t *testing.T) {
	cases := []struct {
		metric string
		domain model.MetricDomain
		ok     bool
	}{
		{"payments.successRate", model.DomainPayment, true},
		{"system.cpu", model.DomainSystem, true},
		{"collector.lag", model.DomainSystem, true},
		{"security.fraudAttempts", model.DomainSecurity, true},
		{"business.revenue", model.DomainBusiness, true},
		{"bogus.metric", "", false},
	}
	for _, tc := range cases {
		d, ok := DomainOf(tc.metric)
		assert.Equal(t, tc.ok, ok, tc.metric)
		assert.Equal(t, tc.domain, d, tc.metric)
	}
}
