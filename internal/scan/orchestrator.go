// Package scan orchestrates one end-to-end run: fetch from every
// enabled source, filter and score the signals, and persist leads and
// the scan record.
package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/intent"
	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/scoring"
	"github.com/abelbrown/signalscout/internal/signal"
	"github.com/abelbrown/signalscout/internal/sources"
	"github.com/abelbrown/signalscout/internal/store"
)

// fetchTimeout is the timeout for each individual source fetch.
const fetchTimeout = 30 * time.Second

// maxConcurrentFetches limits parallel source fetches.
const maxConcurrentFetches = 3

// ErrScanRunning is returned when a scan is requested while another is
// in progress. At most one scan runs at a time.
var ErrScanRunning = errors.New("a scan is already running")

// Orchestrator runs scans. Safe for concurrent use; overlapping Run
// calls are rejected, never queued.
type Orchestrator struct {
	cfg        *config.Config
	store      *store.Store
	sources    []sources.Source
	classifier intent.Classifier

	running atomic.Bool
}

// New builds an orchestrator over the enabled sources.
func New(cfg *config.Config, st *store.Store, srcs []sources.Source, cls intent.Classifier) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		sources:    srcs,
		classifier: cls,
	}
}

// Running reports whether a scan is currently in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

type fetchResult struct {
	src    signal.SourceType
	result sources.Result
	err    error
}

// Run executes one scan and returns its durable record. A second
// caller while a scan is in flight gets ErrScanRunning. Individual
// source failures are recorded per source and do not fail the scan;
// the scan fails only on invalid configuration or when persistence
// itself breaks.
func (o *Orchestrator) Run(ctx context.Context) (signal.Scan, error) {
	if !o.running.CompareAndSwap(false, true) {
		return signal.Scan{}, ErrScanRunning
	}
	defer o.running.Store(false)

	scan := signal.Scan{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    signal.ScanRunning,
	}

	if err := o.cfg.Validate(); err != nil {
		scan.Status = signal.ScanFailed
		scan.Error = err.Error()
		scan.FinishedAt = time.Now().UTC()
		if saveErr := o.store.SaveScan(&scan); saveErr != nil {
			return scan, saveErr
		}
		return scan, err
	}

	if err := o.store.SaveScan(&scan); err != nil {
		return scan, err
	}
	logging.Info("Scan started", "id", scan.ID, "sources", len(o.sources))

	results := o.fetchAll(ctx)

	engine := scoring.New(o.cfg, o.classifier)
	failed := 0
	for _, fr := range results {
		stats := scan.StatsFor(fr.src)
		if fr.err != nil {
			stats.Err = fr.err.Error()
			failed++
			logging.Warn("Source fetch failed", "source", fr.src, "error", fr.err)
			continue
		}
		stats.Fetched = len(fr.result.Signals)
		stats.Errors = fr.result.Malformed

		for _, sig := range fr.result.Signals {
			if engine.Heuristic().MatchesNegative(sig) {
				stats.Filtered++
				continue
			}
			bd := engine.Score(ctx, sig)
			if bd.Total < o.cfg.Scoring.MinScore {
				stats.Filtered++
				continue
			}
			_, isNew, err := o.store.UpsertLead(sig, bd)
			if err != nil {
				scan.Status = signal.ScanFailed
				scan.Error = err.Error()
				scan.FinishedAt = time.Now().UTC()
				if saveErr := o.store.SaveScan(&scan); saveErr != nil {
					return scan, saveErr
				}
				return scan, err
			}
			if isNew {
				stats.NewLeads++
			} else {
				stats.Duplicates++
			}
		}
	}

	scan.Status = signal.ScanCompleted
	if len(o.sources) > 0 && failed == len(o.sources) {
		scan.Status = signal.ScanFailed
		scan.Error = "all sources failed"
	}
	scan.FinishedAt = time.Now().UTC()
	if err := o.store.SaveScan(&scan); err != nil {
		return scan, err
	}

	logging.Info("Scan finished", "id", scan.ID, "status", scan.Status,
		"fetched", scan.TotalFetched(), "new_leads", scan.TotalNewLeads())
	return scan, nil
}

// fetchAll queries every source in parallel, each with its own
// timeout. Results come back in source order.
func (o *Orchestrator) fetchAll(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(o.sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	var mu sync.Mutex

	since := time.Now().Add(-o.cfg.Scoring.RecencyHorizon())
	for i, src := range o.sources {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
			defer cancel()

			queries := sources.Queries(src.Type(), o.cfg)
			res, err := src.Fetch(fetchCtx, queries, since)

			mu.Lock()
			results[i] = fetchResult{src: src.Type(), result: res, err: err}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}
