package store

import "database/sql"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		ts INTEGER PRIMARY KEY,
		data TEXT NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS snapshot_samples (
		ts INTEGER NOT NULL,
		metric TEXT NOT NULL,
		value REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_samples_metric_ts ON snapshot_samples(metric, ts);
	CREATE INDEX IF NOT EXISTS idx_samples_ts ON snapshot_samples(ts);`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		metric TEXT NOT NULL,
		threshold REAL NOT NULL,
		current_value REAL NOT NULL,
		status TEXT NOT NULL,
		assignee TEXT NOT NULL DEFAULT '',
		escalation_level INTEGER NOT NULL DEFAULT 1,
		actions TEXT NOT NULL DEFAULT '[]',
		resolution TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		acknowledged_at INTEGER,
		resolved_at INTEGER,
		last_escalated_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_type_sev ON alerts(type, severity);`,

	`CREATE TABLE IF NOT EXISTS sla_reports (
		period_key TEXT PRIMARY KEY,
		period_type TEXT NOT NULL,
		period_start INTEGER NOT NULL,
		period_end INTEGER NOT NULL,
		target_availability REAL NOT NULL,
		availability REAL NOT NULL,
		elapsed_seconds INTEGER NOT NULL,
		uptime_seconds INTEGER NOT NULL,
		downtime_seconds INTEGER NOT NULL,
		avg_response_time_ms REAL NOT NULL,
		success_rate REAL NOT NULL,
		insufficient_data INTEGER NOT NULL DEFAULT 0,
		generated_at INTEGER NOT NULL
	);`,
}

func runMigrations(db *sql.DB) error {
	// Create migration tracking table
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
