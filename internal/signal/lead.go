package signal

import (
	"errors"
	"fmt"
	"time"
)

// LeadStatus is the lifecycle state of a lead.
// Transitions move forward only (new -> contacted -> converted);
// dismissed is reachable from any state.
type LeadStatus string

const (
	StatusNew       LeadStatus = "new"
	StatusContacted LeadStatus = "contacted"
	StatusConverted LeadStatus = "converted"
	StatusDismissed LeadStatus = "dismissed"
)

// ErrInvalidTransition is returned when a status change would move a
// lead backward in its lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// statusRank orders the forward lifecycle. Dismissed sits outside the
// ladder and is handled separately.
var statusRank = map[LeadStatus]int{
	StatusNew:       0,
	StatusContacted: 1,
	StatusConverted: 2,
}

// ValidStatus reports whether s is a known lead status.
func ValidStatus(s LeadStatus) bool {
	if s == StatusDismissed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// ValidateTransition checks a user-driven status change.
// Allowed: any forward move on the ladder, dismissing from any state,
// and re-engaging a dismissed lead as contacted or converted.
// A dismissed lead can never go back to new.
func ValidateTransition(from, to LeadStatus) error {
	if !ValidStatus(from) || !ValidStatus(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if from == to {
		return fmt.Errorf("%w: already %s", ErrInvalidTransition, from)
	}
	if to == StatusDismissed {
		return nil
	}
	if from == StatusDismissed {
		if to == StatusNew {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		return nil
	}
	if statusRank[to] < statusRank[from] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Lead is a persisted, deduplicated, scored signal tracked through the
// contact lifecycle. Exactly one Lead exists per (source, external_id).
type Lead struct {
	ID         string     `json:"id"` // "<source>:<external_id>"
	Source     SourceType `json:"source"`
	ExternalID string     `json:"external_id"`
	Title      string     `json:"title"`
	Body       string     `json:"body,omitempty"`
	URL        string     `json:"url,omitempty"`
	Author     string     `json:"author,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Engagement int        `json:"engagement"`

	Score  ScoreBreakdown `json:"score"` // latest only; history is not kept
	Status LeadStatus     `json:"status"`
	Notes  string         `json:"notes,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	ContactedAt time.Time `json:"contacted_at,omitzero"`
}
