// Package sources implements the platform adapters that fetch raw
// signals from public search APIs and normalize them into the common
// Signal shape.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/abelbrown/signalscout/internal/signal"
)

// userAgent identifies us to the public APIs we poll.
const userAgent = "SignalScout/1.0 (b2b lead detection; +https://github.com/abelbrown/signalscout)"

// defaultWindow is how far back a fetch looks when no since time is given.
const defaultWindow = 7 * 24 * time.Hour

// clientTimeout bounds each individual HTTP request. The orchestrator
// additionally bounds the whole fetch via context.
const clientTimeout = 15 * time.Second

// Result is the outcome of one adapter fetch. Malformed counts items
// that were skipped because required fields were missing; it never
// fails the fetch.
type Result struct {
	Signals   []signal.Signal
	Malformed int
}

// Source is the interface all platform adapters implement.
// Adapters are registered as a fixed enumerated set, see Enabled.
type Source interface {
	// Name returns the human-readable source name.
	Name() string

	// Type returns the platform this adapter covers.
	Type() signal.SourceType

	// Fetch retrieves signals matching the keyword queries, bounded by
	// the adapter's configured item cap. A zero since falls back to the
	// default 7-day window. A source-level failure aborts only this
	// adapter; malformed individual items are skipped and counted.
	Fetch(ctx context.Context, queries []string, since time.Time) (Result, error)
}

func newClient() *http.Client {
	return &http.Client{Timeout: clientTimeout}
}

// sinceOrDefault resolves the fetch window start.
func sinceOrDefault(since time.Time, now time.Time) time.Time {
	if since.IsZero() {
		return now.Add(-defaultWindow)
	}
	return since
}

// get performs a GET with at most one immediate retry on transient
// failure (network error or 5xx). The caller owns the response body.
func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return resp, nil
	}
	return nil, lastErr
}
