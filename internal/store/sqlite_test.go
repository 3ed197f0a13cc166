package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservly/pulsed/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot(ts time.Time) model.MetricSnapshot {
	return model.MetricSnapshot{
		Timestamp: ts,
		Payment:   model.PaymentMetrics{TotalTx: 100, SuccessTx: 97, FailTx: 3, SuccessRate: 97},
		System:    model.SystemMetrics{ResponseTimeMs: 120, AvailabilityPct: 99.95, CPUPct: 35},
		Security:  model.SecurityMetrics{FraudAttempts: 1},
		Business:  model.BusinessMetrics{Revenue: 52000},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveSnapshot(sampleSnapshot(ts)))

	got, err := s.QuerySnapshots(ts.Add(-time.Minute), ts.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(100), got[0].Payment.TotalTx)
	assert.Equal(t, 99.95, got[0].System.AvailabilityPct)
	assert.Equal(t, 52000.0, got[0].Business.Revenue)
}

func TestQuerySeriesDownsamples(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	// Four samples 15s apart; cpu climbs 10, 20, 30, 40.
	for i := 0; i < 4; i++ {
		snap := sampleSnapshot(base.Add(time.Duration(i) * 15 * time.Second))
		snap.System.CPUPct = float64((i + 1) * 10)
		require.NoError(t, s.SaveSnapshot(snap))
	}

	raw, err := s.QuerySeries("system.cpu", base.Unix(), base.Add(time.Minute).Unix(), 0)
	require.NoError(t, err)
	require.Len(t, raw, 4)
	assert.Equal(t, 10.0, raw[0].Value)

	// 60-second buckets: first bucket averages the first four samples.
	bucketed, err := s.QuerySeries("system.cpu", base.Unix(), base.Add(time.Minute).Unix(), 60)
	require.NoError(t, err)
	require.Len(t, bucketed, 1)
	assert.Equal(t, 25.0, bucketed[0].Value)
}

func TestSaveSnapshotIsIdempotentPerTimestamp(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	snap := sampleSnapshot(ts)
	require.NoError(t, s.SaveSnapshot(snap))
	snap.System.CPUPct = 80
	require.NoError(t, s.SaveSnapshot(snap))

	got, err := s.QuerySnapshots(ts.Add(-time.Minute), ts.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1, "same timestamp replaces, never duplicates")
	assert.Equal(t, 80.0, got[0].System.CPUPct)

	series, err := s.QuerySeries("system.cpu", ts.Unix(), ts.Unix(), 0)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 80.0, series[0].Value)
}

func testAlert(id string, created time.Time) model.Alert {
	return model.Alert{
		ID:              id,
		Type:            model.DomainPayment,
		Severity:        model.SeverityHigh,
		Title:           "Payment success rate degraded",
		Description:     "rate at 93%",
		Metric:          "payments.successRate",
		Threshold:       95,
		CurrentValue:    93,
		Status:          model.StatusActive,
		EscalationLevel: 1,
		Actions:         []string{"check gateway"},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func TestAlertUpsertAndQuery(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	a := testAlert("a1", created)
	require.NoError(t, s.SaveAlert(a))

	// Lifecycle progresses; the same row is updated.
	ack := created.Add(5 * time.Minute)
	a.Status = model.StatusAcknowledged
	a.Assignee = "oncall"
	a.AcknowledgedAt = &ack
	a.UpdatedAt = ack
	require.NoError(t, s.SaveAlert(a))

	got, err := s.ListAlerts(AlertQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusAcknowledged, got[0].Status)
	assert.Equal(t, "oncall", got[0].Assignee)
	require.NotNil(t, got[0].AcknowledgedAt)
	assert.Equal(t, ack.Unix(), got[0].AcknowledgedAt.Unix())
	assert.Equal(t, []string{"check gateway"}, got[0].Actions)
	assert.Nil(t, got[0].ResolvedAt)
}

func TestGetAlert(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveAlert(testAlert("a1", created)))
	require.NoError(t, s.SaveAlert(testAlert("a2", created.Add(time.Minute))))

	got, err := s.GetAlert("a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", got.ID)
	assert.Equal(t, "payments.successRate", got.Metric)

	_, err = s.GetAlert("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListAlertsFilters(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveAlert(testAlert("a1", created)))

	b := testAlert("a2", created.Add(time.Minute))
	b.Type = model.DomainSystem
	b.Severity = model.SeverityCritical
	require.NoError(t, s.SaveAlert(b))

	crit, err := s.ListAlerts(AlertQuery{Severity: model.SeverityCritical})
	require.NoError(t, err)
	require.Len(t, crit, 1)
	assert.Equal(t, "a2", crit[0].ID)

	all, err := s.ListAlerts(AlertQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a2", all[0].ID, "newest first")

	limited, err := s.ListAlerts(AlertQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSystemDowntimeAlerts(t *testing.T) {
	s := newTestStore(t)
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// System critical inside the window.
	in := testAlert("in", day.Add(2*time.Hour))
	in.Type = model.DomainSystem
	in.Severity = model.SeverityCritical
	require.NoError(t, s.SaveAlert(in))

	// Medium severity never counts as downtime.
	med := testAlert("med", day.Add(3*time.Hour))
	med.Type = model.DomainSystem
	med.Severity = model.SeverityMedium
	require.NoError(t, s.SaveAlert(med))

	// Payment domain is not system downtime.
	require.NoError(t, s.SaveAlert(testAlert("pay", day.Add(4*time.Hour))))

	// Resolved before the window starts.
	old := testAlert("old", day.Add(-48*time.Hour))
	old.Type = model.DomainSystem
	resolved := day.Add(-47 * time.Hour)
	old.Status = model.StatusResolved
	old.ResolvedAt = &resolved
	require.NoError(t, s.SaveAlert(old))

	got, err := s.SystemDowntimeAlerts(day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "in", got[0].ID)
}

func TestSLAReportUpsertAndList(t *testing.T) {
	s := newTestStore(t)
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	r := model.SLAReport{
		PeriodKey:          "day:2026-08-20",
		PeriodType:         model.PeriodDay,
		PeriodStart:        day,
		PeriodEnd:          day.AddDate(0, 0, 1),
		TargetAvailability: 99.9,
		Availability:       99.95,
		ElapsedSeconds:     86400,
		UptimeSeconds:      86357,
		DowntimeSeconds:    43,
		AvgResponseTimeMs:  140,
		SuccessRate:        98.7,
		GeneratedAt:        day.AddDate(0, 0, 1),
	}
	require.NoError(t, s.SaveSLAReport(r))

	// Regenerating the same period replaces the row.
	r.Availability = 99.97
	require.NoError(t, s.SaveSLAReport(r))

	got, err := s.ListSLAReports(model.PeriodDay, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 99.97, got[0].Availability)
	assert.Equal(t, int64(43), got[0].DowntimeSeconds)

	none, err := s.ListSLAReports(model.PeriodWeek, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPurgeSnapshots(t *testing.T) {
	s := newTestStore(t)

	old := sampleSnapshot(time.Now().Add(-48 * time.Hour))
	recent := sampleSnapshot(time.Now())
	require.NoError(t, s.SaveSnapshot(old))
	require.NoError(t, s.SaveSnapshot(recent))

	n, err := s.PurgeSnapshotsOlderThan(24)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.QuerySnapshots(time.Now().Add(-72*time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, recent.Timestamp.Unix(), got[0].Timestamp.Unix())
}
