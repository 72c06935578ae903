package scan

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/intent"
	"github.com/abelbrown/signalscout/internal/signal"
	"github.com/abelbrown/signalscout/internal/sources"
	"github.com/abelbrown/signalscout/internal/store"
)

type fakeSource struct {
	typ     signal.SourceType
	result  sources.Result
	err     error
	block   chan struct{} // if set, Fetch waits until closed
	fetches int
}

func (f *fakeSource) Name() string            { return string(f.typ) }
func (f *fakeSource) Type() signal.SourceType { return f.typ }

func (f *fakeSource) Fetch(ctx context.Context, queries []string, since time.Time) (sources.Result, error) {
	f.fetches++
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return sources.Result{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ICP.Keywords = []string{"crm", "small business"}
	cfg.ICP.NegativeKeywords = []string{"hiring"}
	cfg.Scoring.MinScore = 4
	return cfg
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "scan.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sig(src signal.SourceType, id, title string) signal.Signal {
	now := time.Now().UTC()
	return signal.Signal{
		Source:     src,
		ExternalID: id,
		Title:      title,
		CreatedAt:  now.Add(-time.Hour),
		FetchedAt:  now,
		Engagement: 60,
	}
}

func TestRunPersistsLeadsAndScan(t *testing.T) {
	st := testStore(t)
	hn := &fakeSource{
		typ: signal.SourceHackerNews,
		result: sources.Result{
			Signals: []signal.Signal{
				sig(signal.SourceHackerNews, "1", "Best CRM for a small business?"),
				sig(signal.SourceHackerNews, "2", "We are hiring a CRM admin"),
				sig(signal.SourceHackerNews, "3", "unrelated kernel discussion"),
			},
			Malformed: 1,
		},
	}
	o := New(testConfig(), st, []sources.Source{hn}, intent.Noop{})

	scan, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scan.Status != signal.ScanCompleted {
		t.Fatalf("Status = %q, want completed", scan.Status)
	}

	stats := scan.Sources[signal.SourceHackerNews]
	if stats.Fetched != 3 {
		t.Errorf("Fetched = %d, want 3", stats.Fetched)
	}
	if stats.NewLeads != 1 {
		t.Errorf("NewLeads = %d, want 1 (negative keyword and low score filtered)", stats.NewLeads)
	}
	if stats.Filtered != 2 {
		t.Errorf("Filtered = %d, want 2", stats.Filtered)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1 malformed", stats.Errors)
	}

	leads, err := st.ListLeads(store.LeadFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 || leads[0].ID != "hackernews:1" {
		t.Fatalf("leads = %+v, want just hackernews:1", leads)
	}

	saved, err := st.GetScan(scan.ID)
	if err != nil {
		t.Fatalf("scan record not persisted: %v", err)
	}
	if saved.Status != signal.ScanCompleted {
		t.Errorf("persisted status = %q", saved.Status)
	}
}

func TestRunCountsDuplicates(t *testing.T) {
	st := testStore(t)
	hn := &fakeSource{
		typ: signal.SourceHackerNews,
		result: sources.Result{Signals: []signal.Signal{
			sig(signal.SourceHackerNews, "1", "Best CRM for a small business?"),
		}},
	}
	o := New(testConfig(), st, []sources.Source{hn}, intent.Noop{})

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stats := second.Sources[signal.SourceHackerNews]
	if stats.NewLeads != 0 || stats.Duplicates != 1 {
		t.Errorf("new = %d dup = %d, want 0/1", stats.NewLeads, stats.Duplicates)
	}
}

func TestRunPartialSourceFailureCompletes(t *testing.T) {
	st := testStore(t)
	hn := &fakeSource{
		typ: signal.SourceHackerNews,
		result: sources.Result{Signals: []signal.Signal{
			sig(signal.SourceHackerNews, "1", "Best CRM for a small business?"),
		}},
	}
	rd := &fakeSource{typ: signal.SourceReddit, err: errors.New("503 service unavailable")}
	o := New(testConfig(), st, []sources.Source{hn, rd}, intent.Noop{})

	scan, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scan.Status != signal.ScanCompleted {
		t.Errorf("Status = %q, want completed despite one source failing", scan.Status)
	}
	if scan.Sources[signal.SourceReddit].Err == "" {
		t.Error("reddit failure not recorded")
	}
	if scan.TotalNewLeads() != 1 {
		t.Errorf("TotalNewLeads = %d, want 1", scan.TotalNewLeads())
	}
}

func TestRunAllSourcesFailedFailsScan(t *testing.T) {
	st := testStore(t)
	hn := &fakeSource{typ: signal.SourceHackerNews, err: errors.New("timeout")}
	rd := &fakeSource{typ: signal.SourceReddit, err: errors.New("timeout")}
	o := New(testConfig(), st, []sources.Source{hn, rd}, intent.Noop{})

	scan, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scan.Status != signal.ScanFailed {
		t.Errorf("Status = %q, want failed when every source fails", scan.Status)
	}
}

func TestRunInvalidConfigRecordsFailedScan(t *testing.T) {
	st := testStore(t)
	cfg := testConfig()
	cfg.ICP.Keywords = nil // invalid
	hn := &fakeSource{typ: signal.SourceHackerNews}
	o := New(cfg, st, []sources.Source{hn}, intent.Noop{})

	scan, err := o.Run(context.Background())
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	if scan.Status != signal.ScanFailed {
		t.Errorf("Status = %q, want failed", scan.Status)
	}
	if hn.fetches != 0 {
		t.Error("sources must not be queried with invalid config")
	}

	saved, err := st.GetScan(scan.ID)
	if err != nil {
		t.Fatalf("failed scan not persisted: %v", err)
	}
	if saved.Error == "" {
		t.Error("failed scan record missing error detail")
	}
}

func TestRunRejectsConcurrentScan(t *testing.T) {
	st := testStore(t)
	block := make(chan struct{})
	hn := &fakeSource{typ: signal.SourceHackerNews, block: block}
	o := New(testConfig(), st, []sources.Source{hn}, intent.Noop{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := o.Run(context.Background()); err != nil {
			t.Errorf("first Run: %v", err)
		}
	}()

	// Wait until the first scan is visibly running.
	deadline := time.After(2 * time.Second)
	for !o.Running() {
		select {
		case <-deadline:
			t.Fatal("scan never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := o.Run(context.Background()); !errors.Is(err, ErrScanRunning) {
		t.Errorf("second Run err = %v, want ErrScanRunning", err)
	}

	close(block)
	wg.Wait()

	scans, err := st.ListScans(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(scans) != 1 {
		t.Errorf("got %d scan records, want 1 (rejected scan leaves no record)", len(scans))
	}
}
