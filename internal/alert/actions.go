package alert

import "strings"

// SuggestedActions returns remediation hints attached to alerts created for
// the given metric.
func SuggestedActions(metric string) []string {
	switch {
	case strings.HasPrefix(metric, "payments."):
		return []string{
			"Check payment gateway status page",
			"Inspect recent gateway error responses",
			"Verify webhook delivery from the gateway",
		}
	case metric == "system.responseTime" || metric == "system.errorRate":
		return []string{
			"Check recent deploys for regressions",
			"Inspect database slow-query log",
			"Review upstream dependency latency",
		}
	case strings.HasPrefix(metric, "system."):
		return []string{
			"Check host resource usage",
			"Consider scaling out the affected service",
		}
	case strings.HasPrefix(metric, "security."):
		return []string{
			"Review the fraud detection dashboard",
			"Consider tightening rate limits",
			"Audit recently flagged accounts",
		}
	case strings.HasPrefix(metric, "business."):
		return []string{
			"Review recent refunds and chargebacks",
			"Cross-check with the payment provider's dispute feed",
		}
	case strings.HasPrefix(metric, "collector."):
		return []string{
			"Check connectivity to the platform counter store",
			"Review pulsed logs for source errors",
		}
	}
	return nil
}
