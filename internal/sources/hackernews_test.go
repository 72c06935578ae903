package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/signal"
)

const algoliaFixture = `{
	"hits": [
		{
			"objectID": "101",
			"title": "Looking for AI tools for small business accounting",
			"story_text": "Any recommendations?",
			"url": "https://example.com/post",
			"author": "alice",
			"created_at_i": 1700000000,
			"points": 30,
			"num_comments": 10
		},
		{
			"objectID": "",
			"title": "malformed, no id",
			"points": 5
		},
		{
			"objectID": "102",
			"title": "",
			"comment_text": "We struggle with manual invoicing",
			"author": "bob",
			"created_at_i": 1700000500,
			"points": 2,
			"num_comments": 1
		}
	]
}`

func newTestHN(t *testing.T, handler http.HandlerFunc) *HackerNews {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hn := NewHackerNews(config.HackerNewsConfig{MaxItems: 100})
	hn.BaseURL = srv.URL
	return hn
}

func TestHackerNewsFetch(t *testing.T) {
	hn := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "AI tools" {
			t.Errorf("query = %q, want %q", got, "AI tools")
		}
		if got := r.URL.Query().Get("tags"); got != "(story,show_hn,ask_hn)" {
			t.Errorf("tags = %q", got)
		}
		w.Write([]byte(algoliaFixture))
	})

	res, err := hn.Fetch(context.Background(), []string{"AI tools"}, time.Time{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(res.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(res.Signals))
	}
	if res.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", res.Malformed)
	}

	sig := res.Signals[0]
	if sig.Source != signal.SourceHackerNews {
		t.Errorf("Source = %s", sig.Source)
	}
	if sig.ExternalID != "101" {
		t.Errorf("ExternalID = %q, want 101", sig.ExternalID)
	}
	if sig.Engagement != 30+2*10 {
		t.Errorf("Engagement = %d, want 50", sig.Engagement)
	}
	if sig.URL != "https://example.com/post" {
		t.Errorf("URL = %q", sig.URL)
	}

	// Comment-only hit falls back to the HN item page URL.
	if res.Signals[1].URL != hnItemURL+"102" {
		t.Errorf("fallback URL = %q", res.Signals[1].URL)
	}
}

func TestHackerNewsFetchDeduplicatesAcrossQueries(t *testing.T) {
	hn := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(algoliaFixture))
	})

	res, err := hn.Fetch(context.Background(), []string{"AI tools", "small business"}, time.Time{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(res.Signals) != 2 {
		t.Errorf("expected 2 unique signals across queries, got %d", len(res.Signals))
	}
}

func TestHackerNewsFetchRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	hn := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(algoliaFixture))
	})

	res, err := hn.Fetch(context.Background(), []string{"AI tools"}, time.Time{})
	if err != nil {
		t.Fatalf("Fetch after retry failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 requests (one retry), got %d", calls.Load())
	}
	if len(res.Signals) != 2 {
		t.Errorf("expected 2 signals after retry, got %d", len(res.Signals))
	}
}

func TestHackerNewsFetchAllQueriesFail(t *testing.T) {
	hn := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if _, err := hn.Fetch(context.Background(), []string{"AI tools"}, time.Time{}); err == nil {
		t.Fatal("expected error when every query fails")
	}
}

func TestHackerNewsFetchNoQueries(t *testing.T) {
	hn := NewHackerNews(config.HackerNewsConfig{})
	res, err := hn.Fetch(context.Background(), nil, time.Time{})
	if err != nil {
		t.Fatalf("Fetch with no queries = %v, want nil", err)
	}
	if len(res.Signals) != 0 {
		t.Errorf("expected no signals, got %d", len(res.Signals))
	}
}
