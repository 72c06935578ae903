package scoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/intent"
	"github.com/abelbrown/signalscout/internal/signal"
)

type fakeClassifier struct {
	result intent.Result
	err    error
	calls  atomic.Int64
}

func (f *fakeClassifier) Name() string    { return "fake" }
func (f *fakeClassifier) Available() bool { return true }

func (f *fakeClassifier) Classify(ctx context.Context, req intent.Request) (intent.Result, error) {
	f.calls.Add(1)
	return f.result, f.err
}

func hotSignal() signal.Signal {
	now := time.Now()
	return signal.Signal{
		Source:     signal.SourceReddit,
		ExternalID: "abc",
		Title:      "Need AI tools for my small business",
		CreatedAt:  now,
		FetchedAt:  now,
		Engagement: 100,
	}
}

func TestEngineOffModeSkipsClassifier(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.Mode = config.AIOff
	cls := &fakeClassifier{}
	e := New(cfg, cls)

	bd := e.Score(context.Background(), hotSignal())
	if cls.calls.Load() != 0 {
		t.Errorf("classifier called %d times in off mode", cls.calls.Load())
	}
	if bd.AIUsed || bd.AIUnavailable {
		t.Errorf("off mode set AI flags: used=%v unavailable=%v", bd.AIUsed, bd.AIUnavailable)
	}
}

func TestEngineHybridBlendsIntent(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.Mode = config.AIHybrid
	cls := &fakeClassifier{result: intent.Result{
		Intent:         1.0,
		Rationale:      "explicit ask for tool recommendations",
		SuggestedReply: "Happy to share what worked for us.",
	}}
	e := New(cfg, cls)

	heur := e.Heuristic().Score(hotSignal())
	bd := e.Score(context.Background(), hotSignal())

	if !bd.AIUsed {
		t.Fatal("AIUsed = false, want true")
	}
	if bd.AIIntent != 1.0 {
		t.Errorf("AIIntent = %v, want 1.0", bd.AIIntent)
	}
	want := (heur.Total + 10 + 1) / 2 // round((heur+10)/2)
	if bd.Total != want {
		t.Errorf("Total = %d, want %d", bd.Total, want)
	}
	if bd.Rationale != "explicit ask for tool recommendations" {
		t.Errorf("Rationale = %q, want classifier rationale", bd.Rationale)
	}
	if bd.SuggestedReply == "" {
		t.Error("SuggestedReply not carried through")
	}
}

func TestEngineAIModeUsesIntentOutright(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.Mode = config.AIOnly
	cls := &fakeClassifier{result: intent.Result{Intent: 0.5}}
	e := New(cfg, cls)

	bd := e.Score(context.Background(), hotSignal())
	// 1 + 9*0.5 = 5.5 rounds to 6.
	if bd.Total != 6 {
		t.Errorf("Total = %d, want 6", bd.Total)
	}
	if bd.Category != signal.IntentMedium {
		t.Errorf("Category = %q, want medium", bd.Category)
	}
}

func TestEngineFallsBackOnClassifierError(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.Mode = config.AIHybrid
	cls := &fakeClassifier{err: errors.New("api 529")}
	e := New(cfg, cls)

	heur := e.Heuristic().Score(hotSignal())
	bd := e.Score(context.Background(), hotSignal())

	if !bd.AIUnavailable {
		t.Error("AIUnavailable = false, want true on classifier error")
	}
	if bd.AIUsed {
		t.Error("AIUsed = true on classifier error")
	}
	if bd.Total != heur.Total {
		t.Errorf("Total = %d, want heuristic %d", bd.Total, heur.Total)
	}
}

func TestEngineUnconfiguredClassifierFlagsUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.Mode = config.AIHybrid
	e := New(cfg, intent.Noop{})

	bd := e.Score(context.Background(), hotSignal())
	if !bd.AIUnavailable {
		t.Error("AIUnavailable = false, want true with no configured classifier")
	}
}

func TestEngineThresholdSkipsLowScores(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.Mode = config.AIHybrid
	cfg.Scoring.AIThreshold = 9
	cls := &fakeClassifier{result: intent.Result{Intent: 1.0}}
	e := New(cfg, cls)

	bd := e.Score(context.Background(), hotSignal())
	if cls.calls.Load() != 0 {
		t.Errorf("classifier called %d times below threshold", cls.calls.Load())
	}
	if bd.AIUsed || bd.AIUnavailable {
		t.Error("threshold skip must leave AI flags unset")
	}
}

func TestEngineBudgetCapsCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.Mode = config.AIHybrid
	cfg.Scoring.MaxAIPerScan = 2
	cls := &fakeClassifier{result: intent.Result{Intent: 0.8}}
	e := New(cfg, cls)

	for i := 0; i < 5; i++ {
		e.Score(context.Background(), hotSignal())
	}
	if got := cls.calls.Load(); got != 2 {
		t.Errorf("classifier called %d times, want 2", got)
	}
}
