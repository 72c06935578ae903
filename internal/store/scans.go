package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/signalscout/internal/signal"
)

// SaveScan inserts or updates a scan record. Called once when a scan
// starts and again when it finishes.
func (s *Store) SaveScan(scan *signal.Scan) error {
	stats, err := json.Marshal(scan.Sources)
	if err != nil {
		return err
	}

	var finishedAt any
	if !scan.FinishedAt.IsZero() {
		finishedAt = scan.FinishedAt
	}
	_, err = s.db.Exec(`
		INSERT INTO scans (id, started_at, finished_at, status, error, source_stats)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			error = excluded.error,
			source_stats = excluded.source_stats
	`, scan.ID, scan.StartedAt, finishedAt, string(scan.Status), scan.Error, string(stats))
	return err
}

// GetScan fetches one scan by id.
func (s *Store) GetScan(id string) (signal.Scan, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, status, error, source_stats
		FROM scans WHERE id = ?
	`, id)
	scan, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return signal.Scan{}, fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	return scan, err
}

// ListScans returns the most recent scans, newest first.
func (s *Store) ListScans(limit int) ([]signal.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, status, error, source_stats
		FROM scans
		ORDER BY started_at DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []signal.Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func scanScan(row rowScanner) (signal.Scan, error) {
	var (
		sc         signal.Scan
		status     string
		errMsg     sql.NullString
		finishedAt sql.NullTime
		stats      string
	)
	if err := row.Scan(&sc.ID, &sc.StartedAt, &finishedAt, &status, &errMsg, &stats); err != nil {
		return signal.Scan{}, err
	}
	sc.Status = signal.ScanStatus(status)
	sc.Error = errMsg.String
	if finishedAt.Valid {
		sc.FinishedAt = finishedAt.Time
	}
	if err := json.Unmarshal([]byte(stats), &sc.Sources); err != nil {
		return signal.Scan{}, err
	}
	return sc, nil
}

// Stats summarizes the lead pipeline.
type Stats struct {
	TotalLeads     int                       `json:"total_leads"`
	ByStatus       map[signal.LeadStatus]int `json:"by_status"`
	BySource       map[signal.SourceType]int `json:"by_source"`
	AverageScore   float64                   `json:"average_score"`
	HighIntent     int                       `json:"high_intent"`
	ConversionRate float64                   `json:"conversion_rate"` // converted / contacted-or-beyond
	LastScanAt     time.Time                 `json:"last_scan_at,omitempty"`
}

// Stats computes pipeline totals across all leads and scans.
func (s *Store) Stats() (Stats, error) {
	st := Stats{
		ByStatus: make(map[signal.LeadStatus]int),
		BySource: make(map[signal.SourceType]int),
	}

	rows, err := s.db.Query("SELECT status, COUNT(*) FROM leads GROUP BY status")
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return st, err
		}
		st.ByStatus[signal.LeadStatus(status)] = n
		st.TotalLeads += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}

	rows, err = s.db.Query("SELECT source, COUNT(*) FROM leads GROUP BY source")
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			rows.Close()
			return st, err
		}
		st.BySource[signal.SourceType(source)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRow("SELECT AVG(score) FROM leads").Scan(&avg); err != nil {
		return st, err
	}
	st.AverageScore = avg.Float64

	if err := s.db.QueryRow("SELECT COUNT(*) FROM leads WHERE category = ?",
		string(signal.IntentHigh)).Scan(&st.HighIntent); err != nil {
		return st, err
	}

	contacted := st.ByStatus[signal.StatusContacted] + st.ByStatus[signal.StatusConverted]
	if contacted > 0 {
		st.ConversionRate = float64(st.ByStatus[signal.StatusConverted]) / float64(contacted)
	}

	var lastScan sql.NullTime
	err = s.db.QueryRow("SELECT started_at FROM scans ORDER BY started_at DESC LIMIT 1").Scan(&lastScan)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return st, err
	}
	if lastScan.Valid {
		st.LastScanAt = lastScan.Time
	}
	return st, nil
}
