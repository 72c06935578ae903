// Package signal defines the core data model for SignalScout:
// raw fetched signals, score breakdowns, deduplicated leads, and scan records.
package signal

import (
	"fmt"
	"time"
)

// SourceType identifies the platform a signal was fetched from.
type SourceType string

const (
	SourceHackerNews SourceType = "hackernews"
	SourceReddit     SourceType = "reddit"
	SourceTwitter    SourceType = "twitter"
)

// SourceTypes is the fixed set of supported platforms.
func SourceTypes() []SourceType {
	return []SourceType{SourceHackerNews, SourceReddit, SourceTwitter}
}

// Signal is one raw external post, pre-scoring. It exists only inside a
// scan's pipeline until it is persisted as a Lead or discarded.
type Signal struct {
	Source     SourceType
	ExternalID string // unique within Source
	Title      string
	Body       string
	URL        string
	Author     string
	CreatedAt  time.Time
	Engagement int // normalized per source, see each adapter's formula
	FetchedAt  time.Time
}

// Key returns the identity key (source, external_id) as a single string.
// It doubles as the durable Lead ID.
func (s Signal) Key() string {
	return fmt.Sprintf("%s:%s", s.Source, s.ExternalID)
}

// Text returns title and body joined for keyword matching.
func (s Signal) Text() string {
	if s.Body == "" {
		return s.Title
	}
	return s.Title + " " + s.Body
}

// IntentCategory buckets a total score into a coarse intent label.
type IntentCategory string

const (
	IntentHigh   IntentCategory = "high_intent"
	IntentMedium IntentCategory = "medium_intent"
	IntentLow    IntentCategory = "low_intent"
	IntentNoise  IntentCategory = "noise"
)

// CategoryForScore maps a 1-10 total to an intent category.
func CategoryForScore(total int) IntentCategory {
	switch {
	case total >= 8:
		return IntentHigh
	case total >= 5:
		return IntentMedium
	case total >= 3:
		return IntentLow
	default:
		return IntentNoise
	}
}

// ScoreBreakdown holds per-factor contributions for one scored signal.
// Factors are in [0,1]; Total is on a 1-10 scale.
type ScoreBreakdown struct {
	KeywordMatch float64 `json:"keyword_match"`
	PainPoints   float64 `json:"pain_points"`
	Recency      float64 `json:"recency"`
	Engagement   float64 `json:"engagement"`

	// AIIntent is the classifier's 0-1 intent estimate.
	// Only meaningful when AIUsed is true.
	AIIntent float64 `json:"ai_intent,omitempty"`
	AIUsed   bool    `json:"ai_used,omitempty"`
	// AIUnavailable marks a breakdown that fell back to pure heuristics
	// because the classifier failed or was not configured.
	AIUnavailable bool `json:"ai_unavailable,omitempty"`

	Total          int            `json:"total"` // clamped to [1,10]
	Category       IntentCategory `json:"category"`
	Rationale      string         `json:"rationale,omitempty"`
	SuggestedReply string         `json:"suggested_reply,omitempty"`
}
