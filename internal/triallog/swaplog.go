package triallog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/visionegg/visionegg-sub000/internal/timing"
)

// #region log-swap
// LogSwap writes a swap attempt to the swap_log table.
func LogSwap(db *sql.DB, entry SwapEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO swap_log (name, command, origin, accepted, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Name,
		entry.Command,
		nullIfEmpty(entry.Origin),
		boolInt(entry.Accepted),
		nullIfEmpty(entry.Reason),
		entry.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log swap: %w", err)
	}
	return nil
}

// LogSwap records a swap attempt.
func (s *Store) LogSwap(entry SwapEntry) error {
	return LogSwap(s.db, entry)
}

// ListSwaps returns swap attempts oldest first, optionally for one name.
func (s *Store) ListSwaps(name string) ([]SwapEntry, error) {
	q := `SELECT id, name, command, origin, accepted, reason, created_at FROM swap_log`
	var args []any
	if name != "" {
		q += ` WHERE name = ?`
		args = append(args, name)
	}
	q += ` ORDER BY id`
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	defer rows.Close()

	var out []SwapEntry
	for rows.Next() {
		var (
			e              SwapEntry
			origin, reason sql.NullString
			accepted       int
			at             string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Command, &origin, &accepted, &reason, &at); err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		e.Origin = origin.String
		e.Reason = reason.String
		e.Accepted = accepted != 0
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion log-swap

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// finite maps the +Inf rate of a zero-length trial to 0 so it can be stored.
func finite(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

func statsJSON(st *timing.Stats) string {
	if st == nil {
		return ""
	}
	data, err := json.Marshal(st)
	if err != nil {
		return ""
	}
	return string(data)
}

// #endregion helpers
