package model

import (
	"math"
	"time"
)

// SLAPeriod is the rollup window of an SLA report.
type SLAPeriod string

const (
	PeriodDay   SLAPeriod = "day"
	PeriodWeek  SLAPeriod = "week"
	PeriodMonth SLAPeriod = "month"
)

// SLAReport is an immutable availability rollup for one period. Percentages
// are kept at full float precision; rounding happens only in Presented.
type SLAReport struct {
	PeriodKey          string    `json:"period_key"`
	PeriodType         SLAPeriod `json:"period_type"`
	PeriodStart        time.Time `json:"period_start"`
	PeriodEnd          time.Time `json:"period_end"`
	TargetAvailability float64   `json:"target_availability"`
	Availability       float64   `json:"availability"`
	ElapsedSeconds     int64     `json:"elapsed_seconds"`
	UptimeSeconds      int64     `json:"uptime_seconds"`
	DowntimeSeconds    int64     `json:"downtime_seconds"`
	AvgResponseTimeMs  float64   `json:"avg_response_time_ms"`
	SuccessRate        float64   `json:"success_rate"`
	InsufficientData   bool      `json:"insufficient_data"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// Presented returns a copy with percentage and latency figures rounded to
// two decimal places for API and export output.
func (r SLAReport) Presented() SLAReport {
	r.Availability = round2(r.Availability)
	r.SuccessRate = round2(r.SuccessRate)
	r.AvgResponseTimeMs = round2(r.AvgResponseTimeMs)
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
