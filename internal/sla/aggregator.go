// Package sla rolls metric history and alert downtime up into availability
// reports.
package sla

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
)

// History supplies the persisted inputs of a report.
type History interface {
	QuerySnapshots(from, to time.Time) ([]model.MetricSnapshot, error)
	SystemDowntimeAlerts(from, to time.Time) ([]model.Alert, error)
}

// Aggregator computes SLA reports for day/week/month periods.
type Aggregator struct {
	hist   History
	target float64
	log    *zap.Logger
	now    func() time.Time
}

// NewAggregator creates an aggregator reading from hist with the configured
// availability target.
func NewAggregator(hist History, targetAvailability float64, log *zap.Logger) *Aggregator {
	return &Aggregator{hist: hist, target: targetAvailability, log: log, now: time.Now}
}

// PeriodBounds returns [start, end) of the period containing t.
func PeriodBounds(t time.Time, p model.SLAPeriod) (time.Time, time.Time) {
	t = t.UTC()
	switch p {
	case model.PeriodWeek:
		// ISO week, Monday start.
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case model.PeriodMonth:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	}
}

// PeriodKey returns the durable-store key for the period containing t, e.g.
// "day:2026-08-24", "week:2026-W35", "month:2026-08".
func PeriodKey(t time.Time, p model.SLAPeriod) string {
	start, _ := PeriodBounds(t, p)
	switch p {
	case model.PeriodWeek:
		year, week := start.ISOWeek()
		return fmt.Sprintf("week:%d-W%02d", year, week)
	case model.PeriodMonth:
		return fmt.Sprintf("month:%s", start.Format("2006-01"))
	default:
		return fmt.Sprintf("day:%s", start.Format("2006-01-02"))
	}
}

// BuildReport computes the report for the period containing t. A period with
// no snapshots still yields a report, with availability 0 and the
// insufficient-data flag set. Percentages stay unrounded; rounding is the
// presenter's job.
func (a *Aggregator) BuildReport(t time.Time, p model.SLAPeriod) (model.SLAReport, error) {
	start, end := PeriodBounds(t, p)
	now := a.now().UTC()
	clippedEnd := end
	if now.Before(end) {
		clippedEnd = now
	}

	report := model.SLAReport{
		PeriodKey:          PeriodKey(t, p),
		PeriodType:         p,
		PeriodStart:        start,
		PeriodEnd:          end,
		TargetAvailability: a.target,
		GeneratedAt:        now,
	}
	if !clippedEnd.After(start) {
		report.InsufficientData = true
		return report, nil
	}
	elapsed := int64(clippedEnd.Sub(start).Seconds())
	report.ElapsedSeconds = elapsed

	snaps, err := a.hist.QuerySnapshots(start, end)
	if err != nil {
		return report, fmt.Errorf("query snapshots: %w", err)
	}
	if len(snaps) == 0 {
		report.InsufficientData = true
		a.log.Warn("no snapshots for period", zap.String("period", report.PeriodKey))
		return report, nil
	}

	downtime, err := a.downtimeSeconds(start, clippedEnd)
	if err != nil {
		return report, fmt.Errorf("query downtime: %w", err)
	}
	if downtime > elapsed {
		downtime = elapsed
	}
	report.DowntimeSeconds = downtime
	report.UptimeSeconds = elapsed - downtime
	report.Availability = float64(report.UptimeSeconds) / float64(elapsed) * 100

	var respSum float64
	var totalTx, successTx int64
	for _, s := range snaps {
		respSum += s.System.ResponseTimeMs
		totalTx += s.Payment.TotalTx
		successTx += s.Payment.SuccessTx
	}
	report.AvgResponseTimeMs = respSum / float64(len(snaps))
	if totalTx > 0 {
		report.SuccessRate = float64(successTx) / float64(totalTx) * 100
	} else {
		report.SuccessRate = 100
	}
	return report, nil
}

// downtimeSeconds sums system outage intervals overlapping [from, to),
// merging overlaps so concurrent alerts do not double-count.
func (a *Aggregator) downtimeSeconds(from, to time.Time) (int64, error) {
	alerts, err := a.hist.SystemDowntimeAlerts(from, to)
	if err != nil {
		return 0, err
	}

	type interval struct{ start, end time.Time }
	var ivs []interval
	for _, al := range alerts {
		s := al.CreatedAt
		if s.Before(from) {
			s = from
		}
		e := to
		if al.ResolvedAt != nil && al.ResolvedAt.Before(to) {
			e = *al.ResolvedAt
		}
		if e.After(s) {
			ivs = append(ivs, interval{s, e})
		}
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].start.Before(ivs[j].start) })

	var total int64
	var cur interval
	for i, iv := range ivs {
		if i == 0 {
			cur = iv
			continue
		}
		if !iv.start.After(cur.end) {
			if iv.end.After(cur.end) {
				cur.end = iv.end
			}
			continue
		}
		total += int64(cur.end.Sub(cur.start).Seconds())
		cur = iv
	}
	if len(ivs) > 0 {
		total += int64(cur.end.Sub(cur.start).Seconds())
	}
	return total, nil
}
