// Package intent provides the optional AI buying-intent classifier.
// The Noop implementation is the default; Claude is selected when an
// API key is configured. A missing key is never an error.
package intent

import (
	"context"

	"github.com/abelbrown/signalscout/internal/config"
)

// Request carries one signal's content plus the ICP description.
type Request struct {
	Title          string
	Body           string
	ICPDescription string
}

// Result is the classifier's structured verdict.
type Result struct {
	// Intent is the buying-intent estimate in [0,1].
	Intent float64
	// Rationale is a short free-text explanation.
	Rationale string
	// SuggestedReply is a natural response the user could post to
	// engage the prospect.
	SuggestedReply string
}

// Classifier is the interface AI intent providers implement.
type Classifier interface {
	// Name returns the provider name (e.g., "claude", "noop")
	Name() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Classify rates one signal's buying intent against the ICP
	Classify(ctx context.Context, req Request) (Result, error)
}

// FromConfig selects the classifier for the configured scoring mode.
func FromConfig(cfg *config.Config) Classifier {
	if !cfg.AIEnabled() {
		return Noop{}
	}
	return NewClaude(cfg.Scoring.AIAPIKey, cfg.Scoring.AIModel)
}

// Noop is the disabled classifier. It never reports available.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Available() bool { return false }

func (Noop) Classify(ctx context.Context, req Request) (Result, error) {
	return Result{}, ErrUnavailable
}
