// Package alert evaluates snapshots against threshold rules and owns the
// alert lifecycle.
package alert

import (
	"fmt"
	"strings"

	"github.com/reservly/pulsed/internal/model"
)

// Evaluate maps one snapshot and a rule set to zero or more breaches. It is a
// pure function: no shared state, safe to call concurrently. Rules for stale
// domains are skipped — carried-over values must not re-trigger alerts. When
// one metric breaches bounds at several severities, only the highest wins.
func Evaluate(snap model.MetricSnapshot, rules []model.ThresholdRule) []model.Breach {
	best := make(map[string]model.Breach)
	var order []string
	values := snap.Values()

	for _, rule := range rules {
		domain, ok := DomainOf(rule.Metric)
		if !ok || snap.IsStale(domain) {
			continue
		}
		value, ok := values[rule.Metric]
		if !ok || !breaches(rule.Operator, value, rule.Threshold) {
			continue
		}
		b := model.Breach{
			Metric:    rule.Metric,
			Domain:    domain,
			Severity:  rule.Severity,
			Value:     value,
			Threshold: rule.Threshold,
			Title:     rule.Title,
			Message:   fmt.Sprintf(rule.Message, value),
		}
		prev, seen := best[rule.Metric]
		if !seen {
			order = append(order, rule.Metric)
		}
		if !seen || b.Severity.Rank() > prev.Severity.Rank() {
			best[rule.Metric] = b
		}
	}

	out := make([]model.Breach, 0, len(order))
	for _, metric := range order {
		out = append(out, best[metric])
	}
	return out
}

func breaches(op string, value, threshold float64) bool {
	switch op {
	case "gt":
		return value > threshold
	case "lt":
		return value < threshold
	default:
		return false
	}
}

// DomainOf maps a metric name to its domain by first segment.
func DomainOf(metric string) (model.MetricDomain, bool) {
	seg := metric
	if i := strings.IndexByte(metric, '.'); i > 0 {
		seg = metric[:i]
	}
	switch seg {
	case "payments":
		return model.DomainPayment, true
	case "system", "collector":
		return model.DomainSystem, true
	case "security":
		return model.DomainSecurity, true
	case "business":
		return model.DomainBusiness, true
	}
	return "", false
}

// DefaultRules returns the built-in threshold rules, used when the config
// file does not define any.
func DefaultRules() []model.ThresholdRule {
	return []model.ThresholdRule{
		{Metric: "payments.successRate", Operator: "lt", Threshold: 90, Severity: model.SeverityCritical,
			Title:   "Payment success rate critically low",
			Message: "Payment success rate dropped to %.1f%%, customers are failing to pay"},
		{Metric: "payments.successRate", Operator: "lt", Threshold: 95, Severity: model.SeverityHigh,
			Title:   "Payment success rate degraded",
			Message: "Payment success rate is %.1f%%, below the 95%% floor"},
		{Metric: "payments.failedTx", Operator: "gt", Threshold: 50, Severity: model.SeverityMedium,
			Title:   "Elevated payment failures",
			Message: "%.0f failed transactions in the current window"},

		{Metric: "system.responseTime", Operator: "gt", Threshold: 2000, Severity: model.SeverityHigh,
			Title:   "Slow API responses",
			Message: "Average response time is %.0f ms"},
		{Metric: "system.errorRate", Operator: "gt", Threshold: 5, Severity: model.SeverityHigh,
			Title:   "Elevated error rate",
			Message: "Error rate is %.1f%% of requests"},
		{Metric: "system.availability", Operator: "lt", Threshold: 99, Severity: model.SeverityCritical,
			Title:   "Availability below target",
			Message: "Availability dropped to %.2f%%"},
		{Metric: "system.cpu", Operator: "gt", Threshold: 90, Severity: model.SeverityMedium,
			Title:   "High CPU usage",
			Message: "CPU usage is %.1f%%"},
		{Metric: "system.mem", Operator: "gt", Threshold: 90, Severity: model.SeverityMedium,
			Title:   "High memory usage",
			Message: "Memory usage is %.1f%%"},
		{Metric: "system.disk", Operator: "gt", Threshold: 95, Severity: model.SeverityHigh,
			Title:   "Disk almost full",
			Message: "Disk usage is %.1f%%"},

		{Metric: "security.fraudAttempts", Operator: "gt", Threshold: 10, Severity: model.SeverityHigh,
			Title:   "Fraud attempts spiking",
			Message: "%.0f fraud attempts detected in the current window"},
		{Metric: "security.suspiciousActivity", Operator: "gt", Threshold: 25, Severity: model.SeverityMedium,
			Title:   "Suspicious activity",
			Message: "%.0f suspicious events in the current window"},

		{Metric: "business.refundAmount", Operator: "gt", Threshold: 1000000, Severity: model.SeverityMedium,
			Title:   "Refund volume unusual",
			Message: "Refunds total %.0f in the current window"},
		{Metric: "business.chargebackAmount", Operator: "gt", Threshold: 500000, Severity: model.SeverityHigh,
			Title:   "Chargebacks spiking",
			Message: "Chargebacks total %.0f in the current window"},
	}
}
