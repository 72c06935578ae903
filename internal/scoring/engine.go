package scoring

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/intent"
	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/signal"
)

const classifyTimeout = 45 * time.Second

// Engine scores signals for a single scan run. It always computes the
// heuristic breakdown; in hybrid and ai modes it additionally consults
// the classifier for promising signals, subject to the heuristic
// threshold and the per-scan call budget. Classifier failures degrade
// to the heuristic score and flag the breakdown, never fail the scan.
type Engine struct {
	mode       config.AIMode
	heuristic  *Heuristic
	classifier intent.Classifier
	icp        string
	threshold  int

	mu     sync.Mutex
	budget int // remaining classifier calls this scan
}

// New builds the engine for one scan. Create a fresh Engine per scan
// so the call budget resets.
func New(cfg *config.Config, cls intent.Classifier) *Engine {
	return &Engine{
		mode:       cfg.Scoring.Mode,
		heuristic:  NewHeuristic(cfg),
		classifier: cls,
		icp:        cfg.ICP.Description,
		threshold:  cfg.Scoring.AIThreshold,
		budget:     cfg.Scoring.MaxAIPerScan,
	}
}

// Heuristic exposes the underlying heuristic scorer, used by callers
// for negative-keyword filtering.
func (e *Engine) Heuristic() *Heuristic { return e.heuristic }

// Score produces the breakdown for one signal.
func (e *Engine) Score(ctx context.Context, sig signal.Signal) signal.ScoreBreakdown {
	bd := e.heuristic.Score(sig)
	if e.mode == config.AIOff {
		return bd
	}
	if !e.classifier.Available() {
		bd.AIUnavailable = true
		return bd
	}
	if bd.Total < e.threshold || !e.spendBudget() {
		// Skipped on purpose, heuristic score stands unflagged.
		return bd
	}

	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()
	verdict, err := e.classifier.Classify(cctx, intent.Request{
		Title:          sig.Title,
		Body:           sig.Body,
		ICPDescription: e.icp,
	})
	if err != nil {
		logging.Warn("intent classification failed", "source", sig.Source, "id", sig.ExternalID, "err", err)
		bd.AIUnavailable = true
		return bd
	}

	bd.AIUsed = true
	bd.AIIntent = verdict.Intent
	bd.Total = e.blend(bd.Total, verdict.Intent)
	bd.Category = signal.CategoryForScore(bd.Total)
	if verdict.Rationale != "" {
		bd.Rationale = verdict.Rationale
	}
	bd.SuggestedReply = verdict.SuggestedReply
	return bd
}

// spendBudget consumes one classifier call if any remain.
func (e *Engine) spendBudget() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.budget <= 0 {
		return false
	}
	e.budget--
	return true
}

// blend combines the heuristic total with the classifier's [0,1]
// intent. The intent maps onto the 1-10 scale; ai mode uses it
// outright, hybrid averages the two.
func (e *Engine) blend(heurTotal int, aiIntent float64) int {
	aiScaled := 1 + 9*aiIntent
	if e.mode == config.AIOnly {
		return clampTotal(math.Round(aiScaled))
	}
	return clampTotal(math.Round((float64(heurTotal) + aiScaled) / 2))
}
