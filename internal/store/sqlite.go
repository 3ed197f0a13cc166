// Package store persists alerts, snapshots and SLA reports in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/reservly/pulsed/internal/model"
)

// Store provides database operations. All writes are idempotent upserts so
// a retried write after a transient failure cannot duplicate rows.
type Store struct {
	db     *sql.DB
	dbPath string
}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// DBPath returns the database file path.
func (s *Store) DBPath() string { return s.dbPath }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Snapshots ---

// SaveSnapshot upserts the full snapshot plus its flattened samples, keyed
// by timestamp.
func (s *Store) SaveSnapshot(snap model.MetricSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	ts := snap.Timestamp.Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO snapshots (ts, data) VALUES (?, ?)", ts, string(data)); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec("DELETE FROM snapshot_samples WHERE ts = ?", ts); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO snapshot_samples (ts, metric, value) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for metric, value := range snap.Values() {
		if _, err := stmt.Exec(ts, metric, value); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// QuerySnapshots retrieves full snapshots with from <= ts < to, oldest first.
func (s *Store) QuerySnapshots(from, to time.Time) ([]model.MetricSnapshot, error) {
	rows, err := s.db.Query("SELECT data FROM snapshots WHERE ts >= ? AND ts < ? ORDER BY ts",
		from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.MetricSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var snap model.MetricSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		result = append(result, snap)
	}
	return result, rows.Err()
}

// SeriesPoint is one point of a downsampled metric series.
type SeriesPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// QuerySeries retrieves one metric's series with optional downsampling.
// step is in seconds; if step > 0, values are averaged per step.
func (s *Store) QuerySeries(metric string, from, to int64, step int) ([]SeriesPoint, error) {
	var rows *sql.Rows
	var err error

	if step > 0 {
		rows, err = s.db.Query(`
			SELECT (ts / ? * ?) as bucket, AVG(value)
			FROM snapshot_samples
			WHERE metric = ? AND ts >= ? AND ts <= ?
			GROUP BY bucket
			ORDER BY bucket`,
			step, step, metric, from, to)
	} else {
		rows, err = s.db.Query(`
			SELECT ts, value
			FROM snapshot_samples
			WHERE metric = ? AND ts >= ? AND ts <= ?
			ORDER BY ts`,
			metric, from, to)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SeriesPoint
	for rows.Next() {
		var p SeriesPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// PurgeSnapshotsOlderThan removes snapshots and samples beyond retention.
func (s *Store) PurgeSnapshotsOlderThan(hours int) (int64, error) {
	cutoff := time.Now().Unix() - int64(hours*3600)
	if _, err := s.db.Exec("DELETE FROM snapshot_samples WHERE ts < ?", cutoff); err != nil {
		return 0, err
	}
	res, err := s.db.Exec("DELETE FROM snapshots WHERE ts < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Alerts ---

// SaveAlert upserts an alert by ID.
func (s *Store) SaveAlert(a model.Alert) error {
	actions, err := json.Marshal(a.Actions)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO alerts (id, type, severity, title, description, metric, threshold, current_value,
			status, assignee, escalation_level, actions, resolution,
			created_at, updated_at, acknowledged_at, resolved_at, last_escalated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			current_value = excluded.current_value,
			status = excluded.status,
			assignee = excluded.assignee,
			escalation_level = excluded.escalation_level,
			resolution = excluded.resolution,
			updated_at = excluded.updated_at,
			acknowledged_at = excluded.acknowledged_at,
			resolved_at = excluded.resolved_at,
			last_escalated_at = excluded.last_escalated_at`,
		a.ID, string(a.Type), string(a.Severity), a.Title, a.Description, a.Metric,
		a.Threshold, a.CurrentValue, string(a.Status), a.Assignee, a.EscalationLevel,
		string(actions), a.Resolution,
		a.CreatedAt.Unix(), a.UpdatedAt.Unix(),
		nullableUnix(a.AcknowledgedAt), nullableUnix(a.ResolvedAt), nullableUnix(a.LastEscalatedAt))
	return err
}

// GetAlert returns a single alert by ID; sql.ErrNoRows when unknown.
func (s *Store) GetAlert(id string) (model.Alert, error) {
	alerts, err := s.queryAlerts("SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	if err != nil {
		return model.Alert{}, err
	}
	if len(alerts) == 0 {
		return model.Alert{}, sql.ErrNoRows
	}
	return alerts[0], nil
}

// AlertQuery narrows ListAlerts; zero values match everything.
type AlertQuery struct {
	Severity model.AlertSeverity
	Type     model.MetricDomain
	Status   model.AlertStatus
	Limit    int
}

// ListAlerts returns persisted alerts matching the query, newest first.
func (s *Store) ListAlerts(q AlertQuery) ([]model.Alert, error) {
	query := "SELECT " + alertColumns + " FROM alerts WHERE 1=1"
	var args []interface{}
	if q.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(q.Severity))
	}
	if q.Type != "" {
		query += " AND type = ?"
		args = append(args, string(q.Type))
	}
	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, string(q.Status))
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return s.queryAlerts(query, args...)
}

// SystemDowntimeAlerts returns system-domain alerts of at least high
// severity whose active interval overlaps [from, to).
func (s *Store) SystemDowntimeAlerts(from, to time.Time) ([]model.Alert, error) {
	return s.queryAlerts(`
		SELECT `+alertColumns+` FROM alerts
		WHERE type = ? AND severity IN (?, ?)
		AND created_at < ?
		AND (resolved_at IS NULL OR resolved_at > ?)
		ORDER BY created_at`,
		string(model.DomainSystem), string(model.SeverityCritical), string(model.SeverityHigh),
		to.Unix(), from.Unix())
}

const alertColumns = `id, type, severity, title, description, metric, threshold, current_value,
	status, assignee, escalation_level, actions, resolution,
	created_at, updated_at, acknowledged_at, resolved_at, last_escalated_at`

func (s *Store) queryAlerts(query string, args ...interface{}) ([]model.Alert, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Alert
	for rows.Next() {
		var a model.Alert
		var actions string
		var created, updated int64
		var acked, resolved, escalated sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Type, &a.Severity, &a.Title, &a.Description, &a.Metric,
			&a.Threshold, &a.CurrentValue, &a.Status, &a.Assignee, &a.EscalationLevel,
			&actions, &a.Resolution, &created, &updated, &acked, &resolved, &escalated); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(actions), &a.Actions)
		a.CreatedAt = time.Unix(created, 0).UTC()
		a.UpdatedAt = time.Unix(updated, 0).UTC()
		a.AcknowledgedAt = unixPtr(acked)
		a.ResolvedAt = unixPtr(resolved)
		a.LastEscalatedAt = unixPtr(escalated)
		result = append(result, a)
	}
	return result, rows.Err()
}

// --- SLA reports ---

// SaveSLAReport upserts a report by period key: a re-run for the same period
// supersedes the prior report.
func (s *Store) SaveSLAReport(r model.SLAReport) error {
	_, err := s.db.Exec(`
		INSERT INTO sla_reports (period_key, period_type, period_start, period_end,
			target_availability, availability, elapsed_seconds, uptime_seconds, downtime_seconds,
			avg_response_time_ms, success_rate, insufficient_data, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(period_key) DO UPDATE SET
			availability = excluded.availability,
			elapsed_seconds = excluded.elapsed_seconds,
			uptime_seconds = excluded.uptime_seconds,
			downtime_seconds = excluded.downtime_seconds,
			avg_response_time_ms = excluded.avg_response_time_ms,
			success_rate = excluded.success_rate,
			insufficient_data = excluded.insufficient_data,
			generated_at = excluded.generated_at`,
		r.PeriodKey, string(r.PeriodType), r.PeriodStart.Unix(), r.PeriodEnd.Unix(),
		r.TargetAvailability, r.Availability, r.ElapsedSeconds, r.UptimeSeconds, r.DowntimeSeconds,
		r.AvgResponseTimeMs, r.SuccessRate, boolInt(r.InsufficientData), r.GeneratedAt.Unix())
	return err
}

// ListSLAReports returns persisted reports, newest period first. periodType
// may be empty to list all types.
func (s *Store) ListSLAReports(periodType model.SLAPeriod, limit int) ([]model.SLAReport, error) {
	query := `SELECT period_key, period_type, period_start, period_end,
		target_availability, availability, elapsed_seconds, uptime_seconds, downtime_seconds,
		avg_response_time_ms, success_rate, insufficient_data, generated_at
		FROM sla_reports`
	var args []interface{}
	if periodType != "" {
		query += " WHERE period_type = ?"
		args = append(args, string(periodType))
	}
	query += " ORDER BY period_start DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.SLAReport
	for rows.Next() {
		var r model.SLAReport
		var start, end, generated int64
		var insufficient int
		if err := rows.Scan(&r.PeriodKey, &r.PeriodType, &start, &end,
			&r.TargetAvailability, &r.Availability, &r.ElapsedSeconds, &r.UptimeSeconds,
			&r.DowntimeSeconds, &r.AvgResponseTimeMs, &r.SuccessRate, &insufficient, &generated); err != nil {
			return nil, err
		}
		r.PeriodStart = time.Unix(start, 0).UTC()
		r.PeriodEnd = time.Unix(end, 0).UTC()
		r.GeneratedAt = time.Unix(generated, 0).UTC()
		r.InsufficientData = insufficient != 0
		result = append(result, r)
	}
	return result, rows.Err()
}

func nullableUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
