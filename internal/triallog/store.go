package triallog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/visionegg/visionegg-sub000/internal/timing"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS trials (
	trial_id          TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	duration_value    REAL NOT NULL,
	duration_unit     TEXT NOT NULL,
	frames            INTEGER NOT NULL,
	elapsed_sec       REAL NOT NULL,
	measured_fps      REAL NOT NULL,
	frame_controllers INTEGER NOT NULL,
	offline           INTEGER NOT NULL DEFAULT 0,
	frames_dropped    INTEGER NOT NULL DEFAULT 0,
	severity          TEXT,
	stats_json        TEXT,
	created_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trial_anomalies (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	trial_id  TEXT NOT NULL,
	type      TEXT NOT NULL,
	severity  TEXT NOT NULL,
	reason    TEXT NOT NULL,
	FOREIGN KEY (trial_id) REFERENCES trials(trial_id)
);

CREATE TABLE IF NOT EXISTS swap_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	command    TEXT NOT NULL,
	origin     TEXT,
	accepted   INTEGER NOT NULL,
	reason     TEXT,
	created_at TEXT NOT NULL
);
`

// #endregion schema

// #region store
// Store keeps trial reports and swap attempts in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region record-trial
// RecordTrial stores rec with a fresh trial ID and returns it.
func (s *Store) RecordTrial(rec TrialRecord) (TrialRecord, error) {
	rec.TrialID = uuid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.CreatedAt
	}

	tx, err := s.db.Begin()
	if err != nil {
		return TrialRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO trials (trial_id, started_at, duration_value, duration_unit, frames, elapsed_sec,
			measured_fps, frame_controllers, offline, frames_dropped, severity, stats_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TrialID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationValue,
		rec.DurationUnit,
		rec.Frames,
		rec.ElapsedSec,
		finite(rec.MeasuredFPS),
		rec.FrameControllers,
		boolInt(rec.Offline),
		boolInt(rec.FramesDropped),
		nullIfEmpty(rec.Severity()),
		nullIfEmpty(rec.StatsJSON),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return TrialRecord{}, fmt.Errorf("insert trial: %w", err)
	}

	for _, a := range rec.Anomalies {
		_, err = tx.Exec(
			`INSERT INTO trial_anomalies (trial_id, type, severity, reason) VALUES (?, ?, ?, ?)`,
			rec.TrialID, string(a.Type), string(a.Severity), a.Reason,
		)
		if err != nil {
			return TrialRecord{}, fmt.Errorf("insert anomaly: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return TrialRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion record-trial

// #region get-trial
const trialColumns = `trial_id, started_at, duration_value, duration_unit, frames, elapsed_sec,
	measured_fps, frame_controllers, offline, frames_dropped, stats_json, created_at`

// GetTrial reads one trial with its anomalies.
func (s *Store) GetTrial(trialID string) (TrialRecord, error) {
	row := s.db.QueryRow(`SELECT `+trialColumns+` FROM trials WHERE trial_id = ?`, trialID)
	rec, err := scanTrial(row)
	if err != nil {
		return TrialRecord{}, fmt.Errorf("get trial %s: %w", trialID, err)
	}
	if rec.Anomalies, err = s.anomalies(trialID); err != nil {
		return TrialRecord{}, err
	}
	return rec, nil
}

// ListTrials returns the most recent trials first. limit <= 0 returns all.
func (s *Store) ListTrials(limit int) ([]TrialRecord, error) {
	q := `SELECT ` + trialColumns + ` FROM trials ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var out []TrialRecord
	for rows.Next() {
		rec, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	for i := range out {
		if out[i].Anomalies, err = s.anomalies(out[i].TrialID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) anomalies(trialID string) ([]timing.Anomaly, error) {
	rows, err := s.db.Query(
		`SELECT type, severity, reason FROM trial_anomalies WHERE trial_id = ? ORDER BY id`, trialID)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var out []timing.Anomaly
	for rows.Next() {
		var typ, sev, reason string
		if err := rows.Scan(&typ, &sev, &reason); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		out = append(out, timing.Anomaly{Type: timing.AnomalyType(typ), Severity: timing.Severity(sev), Reason: reason})
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrial(sc scanner) (TrialRecord, error) {
	var (
		rec                  TrialRecord
		startedAt, createdAt string
		offline, dropped     int
		stats                sql.NullString
	)
	err := sc.Scan(&rec.TrialID, &startedAt, &rec.DurationValue, &rec.DurationUnit, &rec.Frames,
		&rec.ElapsedSec, &rec.MeasuredFPS, &rec.FrameControllers, &offline, &dropped, &stats, &createdAt)
	if err != nil {
		return TrialRecord{}, err
	}
	rec.Offline = offline != 0
	rec.FramesDropped = dropped != 0
	rec.StatsJSON = stats.String
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// #endregion get-trial
