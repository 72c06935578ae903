// Package scoring computes buying-intent scores for signals. The
// heuristic engine is always available; AI modes blend in a classifier
// verdict and fall back to pure heuristics on any failure.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/signal"
)

// Heuristic scores signals with the deterministic weighted-factor
// formula. Score is a pure function; one Heuristic is safe for
// concurrent use.
type Heuristic struct {
	keywords   []string // lowercased
	painPoints []string // lowercased
	negative   []string // lowercased
	weights    map[string]float64
	horizon    time.Duration
	saturation float64
}

// NewHeuristic builds the heuristic scorer from config.
func NewHeuristic(cfg *config.Config) *Heuristic {
	return &Heuristic{
		keywords:   lowerAll(cfg.ICP.Keywords),
		painPoints: lowerAll(cfg.ICP.PainPoints),
		negative:   lowerAll(cfg.ICP.NegativeKeywords),
		weights:    cfg.Scoring.Weights,
		horizon:    cfg.Scoring.RecencyHorizon(),
		saturation: cfg.Scoring.EngagementSaturation,
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// MatchesNegative reports whether the signal text contains any
// configured negative keyword. Matching signals are dropped before
// persistence.
func (h *Heuristic) MatchesNegative(sig signal.Signal) bool {
	text := strings.ToLower(sig.Text())
	for _, nk := range h.negative {
		if strings.Contains(text, nk) {
			return true
		}
	}
	return false
}

// Score computes the heuristic breakdown for one signal.
func (h *Heuristic) Score(sig signal.Signal) signal.ScoreBreakdown {
	text := strings.ToLower(sig.Text())

	bd := signal.ScoreBreakdown{
		KeywordMatch: matchRatio(text, h.keywords),
		PainPoints:   matchRatio(text, h.painPoints),
		Recency:      h.recency(sig),
		Engagement:   h.engagement(sig.Engagement),
	}

	weighted := bd.KeywordMatch*h.weights[config.WeightKeyword] +
		bd.PainPoints*h.weights[config.WeightPainPoints] +
		bd.Recency*h.weights[config.WeightRecency] +
		bd.Engagement*h.weights[config.WeightEngagement]

	bd.Total = clampTotal(math.Round(10 * weighted))
	bd.Category = signal.CategoryForScore(bd.Total)
	bd.Rationale = fmt.Sprintf(
		"keywords %.0f%%, pain points %.0f%%, recency %.2f, engagement %.2f",
		bd.KeywordMatch*100, bd.PainPoints*100, bd.Recency, bd.Engagement)
	return bd
}

// matchRatio is the share of distinct terms appearing in text,
// clamped to [0,1]. An empty term list scores 0.
func matchRatio(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	ratio := float64(hits) / float64(len(terms))
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// recency decays linearly from 1.0 at fetch time to 0 at the horizon.
// Signals older than the horizon score 0.
func (h *Heuristic) recency(sig signal.Signal) float64 {
	ref := sig.FetchedAt
	if ref.IsZero() {
		ref = time.Now()
	}
	age := ref.Sub(sig.CreatedAt)
	if age <= 0 {
		return 1
	}
	if age >= h.horizon {
		return 0
	}
	return 1 - float64(age)/float64(h.horizon)
}

// engagement saturates toward 1: e/(e+k) equals 0.5 at the saturation
// constant and never exceeds 1.
func (h *Heuristic) engagement(e int) float64 {
	if e <= 0 {
		return 0
	}
	return float64(e) / (float64(e) + h.saturation)
}

func clampTotal(v float64) int {
	t := int(v)
	if t < 1 {
		return 1
	}
	if t > 10 {
		return 10
	}
	return t
}
