// Package config loads and validates SignalScout configuration.
// The scan pipeline treats the loaded Config as read-only input.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "SIGNALSCOUT_CONFIG"
	aiAPIKeyEnv   = "ANTHROPIC_API_KEY"
	aiModelEnv    = "SIGNALSCOUT_AI_MODEL"
)

// weightEpsilon is the tolerance when checking that weights sum to 1.0.
const weightEpsilon = 0.001

// AIMode selects how scoring uses the classifier.
type AIMode string

const (
	AIOff    AIMode = "off"
	AIHybrid AIMode = "hybrid"
	AIOnly   AIMode = "ai"
)

// Config is the full application configuration.
type Config struct {
	ICP     ICPConfig     `yaml:"icp"`
	Scoring ScoringConfig `yaml:"scoring"`
	Sources SourcesConfig `yaml:"sources"`
	Output  OutputConfig  `yaml:"output"`
	Server  ServerConfig  `yaml:"server"`
	DBPath  string        `yaml:"db_path"`
}

// ICPConfig describes the ideal customer profile driving the scan.
type ICPConfig struct {
	Description      string   `yaml:"description"`
	Keywords         []string `yaml:"keywords"`
	PainPoints       []string `yaml:"pain_points"`
	NegativeKeywords []string `yaml:"negative_keywords"`
}

// ScoringConfig holds the weighted-factor parameters and AI settings.
type ScoringConfig struct {
	Mode    AIMode             `yaml:"mode"`
	Weights map[string]float64 `yaml:"weights"`

	// RecencyHorizonDays is the age at which the recency factor hits 0.
	RecencyHorizonDays int `yaml:"recency_horizon_days"`
	// EngagementSaturation is the engagement value scoring 0.5;
	// the factor approaches 1 as engagement grows past it.
	EngagementSaturation float64 `yaml:"engagement_saturation"`

	// MinScore is the lowest total persisted as a lead.
	MinScore int `yaml:"min_score"`

	AIAPIKey     string `yaml:"ai_api_key"`
	AIModel      string `yaml:"ai_model"`
	AIThreshold  int    `yaml:"ai_threshold"` // heuristic total required before an AI call
	MaxAIPerScan int    `yaml:"max_ai_per_scan"`
}

// RecencyHorizon returns the horizon as a duration.
func (s ScoringConfig) RecencyHorizon() time.Duration {
	return time.Duration(s.RecencyHorizonDays) * 24 * time.Hour
}

// Weight factor names. Weights must cover exactly these keys.
const (
	WeightKeyword    = "keyword_match"
	WeightPainPoints = "pain_points"
	WeightRecency    = "recency"
	WeightEngagement = "engagement"
)

// SourcesConfig enables and tunes the fixed adapter set.
type SourcesConfig struct {
	HackerNews HackerNewsConfig `yaml:"hackernews"`
	Reddit     RedditConfig     `yaml:"reddit"`
	Twitter    TwitterConfig    `yaml:"twitter"`
}

// HackerNewsConfig tunes the Algolia HN search adapter.
type HackerNewsConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Queries  []string `yaml:"queries"` // defaults to the first ICP keywords
	MaxItems int      `yaml:"max_items"`
}

// RedditConfig tunes the public Reddit search adapter.
type RedditConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Subreddits     []string `yaml:"subreddits"`
	Queries        []string `yaml:"queries"`
	MaxPostsPerSub int      `yaml:"max_posts_per_sub"`
}

// TwitterConfig tunes the Nitter search-feed adapter.
type TwitterConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Instances []string `yaml:"instances"`
	Queries   []string `yaml:"queries"`
	MaxItems  int      `yaml:"max_items"`
}

// OutputConfig controls report and export paths.
type OutputConfig struct {
	ReportFile string `yaml:"report_file"`
	LeadsFile  string `yaml:"leads_file"`
	MaxLeads   int    `yaml:"max_leads"`
}

// ServerConfig holds dashboard server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the baseline configuration before file and env overrides.
func Default() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Mode: AIOff,
			Weights: map[string]float64{
				WeightKeyword:    0.4,
				WeightPainPoints: 0.2,
				WeightRecency:    0.2,
				WeightEngagement: 0.2,
			},
			RecencyHorizonDays:   30,
			EngagementSaturation: 50,
			MinScore:             3,
			AIModel:              "claude-sonnet-4-5-20250929",
			AIThreshold:          4,
			MaxAIPerScan:         50,
		},
		Sources: SourcesConfig{
			HackerNews: HackerNewsConfig{Enabled: true, MaxItems: 100},
			Reddit:     RedditConfig{Enabled: true, MaxPostsPerSub: 25},
			Twitter: TwitterConfig{
				Instances: []string{"https://nitter.net"},
				MaxItems:  50,
			},
		},
		Output: OutputConfig{
			ReportFile: "out/report.md",
			LeadsFile:  "out/leads.json",
			MaxLeads:   50,
		},
		Server: ServerConfig{Addr: ":8080"},
		DBPath: "signalscout.db",
	}
}

// Load reads YAML configuration from path (or $SIGNALSCOUT_CONFIG when
// path is empty) on top of defaults, then applies env overrides.
// A missing file is not an error; an unparseable one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(aiAPIKeyEnv); v != "" {
		c.Scoring.AIAPIKey = v
	}
	if v := os.Getenv(aiModelEnv); v != "" {
		c.Scoring.AIModel = v
	}
}

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks the invariants the scan pipeline depends on.
// A failing config must cause the scan to fail before any fetching.
func (c *Config) Validate() error {
	if len(c.ICP.Keywords) == 0 {
		return fmt.Errorf("%w: icp.keywords must not be empty", ErrInvalidConfig)
	}
	switch c.Scoring.Mode {
	case AIOff, AIHybrid, AIOnly:
	default:
		return fmt.Errorf("%w: unknown scoring mode %q", ErrInvalidConfig, c.Scoring.Mode)
	}

	sum := 0.0
	for name, w := range c.Scoring.Weights {
		switch name {
		case WeightKeyword, WeightPainPoints, WeightRecency, WeightEngagement:
		default:
			return fmt.Errorf("%w: unknown weight %q", ErrInvalidConfig, name)
		}
		if w < 0 {
			return fmt.Errorf("%w: weight %q is negative", ErrInvalidConfig, name)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("%w: weights sum to %.3f, want 1.0", ErrInvalidConfig, sum)
	}

	if c.Scoring.RecencyHorizonDays <= 0 {
		return fmt.Errorf("%w: recency_horizon_days must be positive", ErrInvalidConfig)
	}
	if c.Scoring.EngagementSaturation <= 0 {
		return fmt.Errorf("%w: engagement_saturation must be positive", ErrInvalidConfig)
	}
	return nil
}

// AIEnabled reports whether scoring should attempt classifier calls.
// A missing API key silently disables AI; it is never an error.
func (c *Config) AIEnabled() bool {
	return c.Scoring.Mode != AIOff && c.Scoring.AIAPIKey != ""
}

// QueriesFor returns the configured queries with the ICP keywords as
// fallback, capped at max.
func QueriesFor(configured, keywords []string, max int) []string {
	qs := configured
	if len(qs) == 0 {
		qs = keywords
	}
	if len(qs) > max {
		qs = qs[:max]
	}
	return qs
}
