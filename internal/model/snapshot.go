package model

import "time"

// MetricDomain identifies one of the four metric groups sampled per tick.
type MetricDomain string

const (
	DomainPayment  MetricDomain = "payment"
	DomainSystem   MetricDomain = "system"
	DomainSecurity MetricDomain = "security"
	DomainBusiness MetricDomain = "business"
)

// Domains lists all metric domains in collection order.
var Domains = []MetricDomain{DomainPayment, DomainSystem, DomainSecurity, DomainBusiness}

// PaymentMetrics holds transaction counters for one collection window.
type PaymentMetrics struct {
	TotalTx     int64   `json:"total_tx"`
	SuccessTx   int64   `json:"success_tx"`
	FailTx      int64   `json:"fail_tx"`
	Volume      float64 `json:"volume"`
	AvgValue    float64 `json:"avg_value"`
	TPS         float64 `json:"tps"`
	SuccessRate float64 `json:"success_rate"`
}

// SystemMetrics holds platform health figures.
type SystemMetrics struct {
	ResponseTimeMs    float64 `json:"response_time_ms"`
	ErrorRatePct      float64 `json:"error_rate_pct"`
	AvailabilityPct   float64 `json:"availability_pct"`
	CPUPct            float64 `json:"cpu_pct"`
	MemPct            float64 `json:"mem_pct"`
	DiskPct           float64 `json:"disk_pct"`
	ActiveConnections int64   `json:"active_connections"`
}

// SecurityMetrics holds fraud and abuse counters for one collection window.
type SecurityMetrics struct {
	FraudAttempts      int64 `json:"fraud_attempts"`
	BlockedTx          int64 `json:"blocked_tx"`
	SecurityAlerts     int64 `json:"security_alerts"`
	SuspiciousActivity int64 `json:"suspicious_activity"`
}

// BusinessMetrics holds revenue and loyalty counters for one collection window.
type BusinessMetrics struct {
	Revenue          float64 `json:"revenue"`
	PointsEarned     int64   `json:"points_earned"`
	PointsRedeemed   int64   `json:"points_redeemed"`
	RefundAmount     float64 `json:"refund_amount"`
	ChargebackAmount float64 `json:"chargeback_amount"`
}

// MetricSnapshot is one immutable sample of all four domains, produced once
// per collector tick. Stale marks domains whose fetch failed this tick and
// whose values were carried over from the last successful collection.
type MetricSnapshot struct {
	Timestamp time.Time             `json:"timestamp"`
	Payment   PaymentMetrics        `json:"payment"`
	System    SystemMetrics         `json:"system"`
	Security  SecurityMetrics       `json:"security"`
	Business  BusinessMetrics       `json:"business"`
	Stale     map[MetricDomain]bool `json:"stale,omitempty"`
}

// IsStale reports whether the given domain's values were carried over.
func (s *MetricSnapshot) IsStale(d MetricDomain) bool {
	return s.Stale[d]
}

// DomainHealth describes the collection state of one metric domain,
// returned by the health query.
type DomainHealth struct {
	Domain      MetricDomain `json:"domain"`
	Healthy     bool         `json:"healthy"`
	LastSuccess time.Time    `json:"last_success,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
}
