// Package store persists leads and scan runs in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/signal"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for lookups of leads or scans that do not
// exist.
var ErrNotFound = errors.New("not found")

// Store handles persistence of leads and scans.
type Store struct {
	db *sql.DB

	// mu serializes read-modify-write sequences (upserts and status
	// changes) so concurrent scans cannot race on the same lead.
	mu sync.Mutex
}

// New opens (or creates) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		logging.Error("Failed to open database", "path", dbPath, "error", err)
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		logging.Error("Failed to migrate database", "error", err)
		return nil, err
	}

	logging.Info("Database initialized", "path", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		external_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		url TEXT,
		author TEXT,
		created_at DATETIME NOT NULL,
		engagement INTEGER DEFAULT 0,

		keyword_match REAL DEFAULT 0,
		pain_points REAL DEFAULT 0,
		recency REAL DEFAULT 0,
		engagement_factor REAL DEFAULT 0,
		ai_intent REAL DEFAULT 0,
		ai_used INTEGER DEFAULT 0,
		ai_unavailable INTEGER DEFAULT 0,
		score INTEGER NOT NULL,
		category TEXT NOT NULL,
		rationale TEXT,
		suggested_reply TEXT,

		status TEXT NOT NULL DEFAULT 'new',
		notes TEXT,
		first_seen_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL,
		contacted_at DATETIME,
		UNIQUE(source, external_id)
	);

	CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
	CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC);
	CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
	CREATE INDEX IF NOT EXISTS idx_leads_last_seen ON leads(last_seen_at DESC);

	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		error TEXT,
		source_stats TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_scans_started ON scans(started_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertLead records a scored signal. The first sighting inserts a new
// lead with status new; later sightings refresh the content snapshot,
// score, and last_seen_at while preserving status, notes, and contact
// timestamps. A dismissed lead stays dismissed. Returns the stored
// lead and whether it was newly created.
func (s *Store) UpsertLead(sig signal.Signal, bd signal.ScoreBreakdown) (signal.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, err := s.getLeadLocked(sig.Key())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return signal.Lead{}, false, err
	}

	if errors.Is(err, ErrNotFound) {
		lead := signal.Lead{
			ID:          sig.Key(),
			Source:      sig.Source,
			ExternalID:  sig.ExternalID,
			Title:       sig.Title,
			Body:        sig.Body,
			URL:         sig.URL,
			Author:      sig.Author,
			CreatedAt:   sig.CreatedAt,
			Engagement:  sig.Engagement,
			Score:       bd,
			Status:      signal.StatusNew,
			FirstSeenAt: now,
			LastSeenAt:  now,
		}
		if err := s.insertLead(lead); err != nil {
			return signal.Lead{}, false, err
		}
		return lead, true, nil
	}

	existing.Title = sig.Title
	existing.Body = sig.Body
	existing.URL = sig.URL
	existing.Author = sig.Author
	existing.Engagement = sig.Engagement
	existing.Score = bd
	existing.LastSeenAt = now

	_, err = s.db.Exec(`
		UPDATE leads SET
			title = ?, body = ?, url = ?, author = ?, engagement = ?,
			keyword_match = ?, pain_points = ?, recency = ?, engagement_factor = ?,
			ai_intent = ?, ai_used = ?, ai_unavailable = ?,
			score = ?, category = ?, rationale = ?, suggested_reply = ?,
			last_seen_at = ?
		WHERE id = ?
	`,
		existing.Title, existing.Body, existing.URL, existing.Author, existing.Engagement,
		bd.KeywordMatch, bd.PainPoints, bd.Recency, bd.Engagement,
		bd.AIIntent, boolInt(bd.AIUsed), boolInt(bd.AIUnavailable),
		bd.Total, string(bd.Category), bd.Rationale, bd.SuggestedReply,
		existing.LastSeenAt, existing.ID,
	)
	if err != nil {
		return signal.Lead{}, false, err
	}
	return existing, false, nil
}

func (s *Store) insertLead(l signal.Lead) error {
	_, err := s.db.Exec(`
		INSERT INTO leads (
			id, source, external_id, title, body, url, author, created_at, engagement,
			keyword_match, pain_points, recency, engagement_factor,
			ai_intent, ai_used, ai_unavailable,
			score, category, rationale, suggested_reply,
			status, notes, first_seen_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, string(l.Source), l.ExternalID, l.Title, l.Body, l.URL, l.Author, l.CreatedAt, l.Engagement,
		l.Score.KeywordMatch, l.Score.PainPoints, l.Score.Recency, l.Score.Engagement,
		l.Score.AIIntent, boolInt(l.Score.AIUsed), boolInt(l.Score.AIUnavailable),
		l.Score.Total, string(l.Score.Category), l.Score.Rationale, l.Score.SuggestedReply,
		string(l.Status), l.Notes, l.FirstSeenAt, l.LastSeenAt,
	)
	return err
}

// GetLead fetches one lead by id.
func (s *Store) GetLead(id string) (signal.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLeadLocked(id)
}

const leadColumns = `id, source, external_id, title, body, url, author, created_at, engagement,
	keyword_match, pain_points, recency, engagement_factor,
	ai_intent, ai_used, ai_unavailable,
	score, category, rationale, suggested_reply,
	status, notes, first_seen_at, last_seen_at, contacted_at`

func (s *Store) getLeadLocked(id string) (signal.Lead, error) {
	row := s.db.QueryRow("SELECT "+leadColumns+" FROM leads WHERE id = ?", id)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return signal.Lead{}, fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	return lead, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (signal.Lead, error) {
	var (
		l           signal.Lead
		source      string
		category    string
		status      string
		aiUsed      int
		aiUnavail   int
		notes       sql.NullString
		rationale   sql.NullString
		reply       sql.NullString
		body        sql.NullString
		url         sql.NullString
		author      sql.NullString
		contactedAt sql.NullTime
	)
	err := row.Scan(
		&l.ID, &source, &l.ExternalID, &l.Title, &body, &url, &author, &l.CreatedAt, &l.Engagement,
		&l.Score.KeywordMatch, &l.Score.PainPoints, &l.Score.Recency, &l.Score.Engagement,
		&l.Score.AIIntent, &aiUsed, &aiUnavail,
		&l.Score.Total, &category, &rationale, &reply,
		&status, &notes, &l.FirstSeenAt, &l.LastSeenAt, &contactedAt,
	)
	if err != nil {
		return signal.Lead{}, err
	}
	l.Source = signal.SourceType(source)
	l.Body = body.String
	l.URL = url.String
	l.Author = author.String
	l.Score.AIUsed = aiUsed != 0
	l.Score.AIUnavailable = aiUnavail != 0
	l.Score.Category = signal.IntentCategory(category)
	l.Score.Rationale = rationale.String
	l.Score.SuggestedReply = reply.String
	l.Status = signal.LeadStatus(status)
	l.Notes = notes.String
	if contactedAt.Valid {
		l.ContactedAt = contactedAt.Time
	}
	return l, nil
}

// LeadFilter narrows ListLeads. Zero values mean no constraint.
type LeadFilter struct {
	Status   signal.LeadStatus
	Source   signal.SourceType
	Category signal.IntentCategory
	MinScore int
	MaxScore int
	Limit    int
}

// ListLeads returns leads matching the filter, best score first.
// Ordering is deterministic: score, then most recently seen, then
// insertion order.
func (s *Store) ListLeads(f LeadFilter) ([]signal.Lead, error) {
	q := sq.Select(leadColumns).From("leads").
		OrderBy("score DESC", "last_seen_at DESC", "rowid ASC")

	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Source != "" {
		q = q.Where(sq.Eq{"source": string(f.Source)})
	}
	if f.Category != "" {
		q = q.Where(sq.Eq{"category": string(f.Category)})
	}
	if f.MinScore > 0 {
		q = q.Where(sq.GtOrEq{"score": f.MinScore})
	}
	if f.MaxScore > 0 {
		q = q.Where(sq.LtOrEq{"score": f.MaxScore})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []signal.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// UpdateStatus moves a lead through its lifecycle. Invalid transitions
// return ErrInvalidTransition and leave the lead unchanged. The first
// move to contacted stamps contacted_at.
func (s *Store) UpdateStatus(id string, to signal.LeadStatus) (signal.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, err := s.getLeadLocked(id)
	if err != nil {
		return signal.Lead{}, err
	}
	if err := signal.ValidateTransition(lead.Status, to); err != nil {
		return signal.Lead{}, err
	}

	lead.Status = to
	if to == signal.StatusContacted && lead.ContactedAt.IsZero() {
		lead.ContactedAt = time.Now().UTC()
	}

	var contactedAt any
	if !lead.ContactedAt.IsZero() {
		contactedAt = lead.ContactedAt
	}
	_, err = s.db.Exec("UPDATE leads SET status = ?, contacted_at = ? WHERE id = ?",
		string(lead.Status), contactedAt, id)
	if err != nil {
		return signal.Lead{}, err
	}
	logging.Info("Lead status changed", "id", id, "status", to)
	return lead, nil
}

// UpdateNotes replaces a lead's free-form notes.
func (s *Store) UpdateNotes(id string, notes string) (signal.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, err := s.getLeadLocked(id)
	if err != nil {
		return signal.Lead{}, err
	}
	if _, err := s.db.Exec("UPDATE leads SET notes = ? WHERE id = ?", notes, id); err != nil {
		return signal.Lead{}, err
	}
	lead.Notes = notes
	return lead, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
