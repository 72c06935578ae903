package signal

import "time"

// ScanStatus is the state of one orchestration run.
type ScanStatus string

const (
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// SourceStats accumulates per-source counts for one scan.
type SourceStats struct {
	Fetched    int    `json:"fetched"`
	NewLeads   int    `json:"new_leads"`
	Duplicates int    `json:"duplicates"`
	Filtered   int    `json:"filtered"`      // below min score or negative-keyword match
	Errors     int    `json:"errors"`        // malformed items skipped during fetch
	Err        string `json:"err,omitempty"` // source-level failure, if any
}

// Scan is the durable record of one orchestration run across all
// configured sources.
type Scan struct {
	ID         string                      `json:"id"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at,omitzero"`
	Status     ScanStatus                  `json:"status"`
	Error      string                      `json:"error,omitempty"`
	Sources    map[SourceType]*SourceStats `json:"sources"`
}

// TotalFetched sums fetched counts across sources.
func (s *Scan) TotalFetched() int {
	n := 0
	for _, st := range s.Sources {
		n += st.Fetched
	}
	return n
}

// TotalNewLeads sums new-lead counts across sources.
func (s *Scan) TotalNewLeads() int {
	n := 0
	for _, st := range s.Sources {
		n += st.NewLeads
	}
	return n
}

// StatsFor returns the stats bucket for src, creating it if needed.
func (s *Scan) StatsFor(src SourceType) *SourceStats {
	if s.Sources == nil {
		s.Sources = make(map[SourceType]*SourceStats)
	}
	st, ok := s.Sources[src]
	if !ok {
		st = &SourceStats{}
		s.Sources[src] = st
	}
	return st
}
