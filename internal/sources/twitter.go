package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/signal"
)

// tweetTitleLen caps how much tweet text is used as the title.
const tweetTitleLen = 120

// statusIDRe extracts the tweet ID from a Nitter status link.
var statusIDRe = regexp.MustCompile(`/([^/]+)/status/(\d+)`)

// Twitter fetches tweets through Nitter search feeds, since the
// Twitter API itself requires paid access. Instances are tried in
// order; the first one that answers wins.
//
// Engagement formula: 0. Nitter search feeds expose no like or
// retweet counts, so the engagement factor contributes nothing for
// this source.
type Twitter struct {
	client    *http.Client
	parser    *gofeed.Parser
	instances []string
	maxItems  int
}

// NewTwitter creates the adapter from its config section.
func NewTwitter(cfg config.TwitterConfig) *Twitter {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 50
	}
	return &Twitter{
		client:    newClient(),
		parser:    gofeed.NewParser(),
		instances: cfg.Instances,
		maxItems:  maxItems,
	}
}

func (t *Twitter) Name() string { return "Twitter" }

func (t *Twitter) Type() signal.SourceType { return signal.SourceTwitter }

func (t *Twitter) Fetch(ctx context.Context, queries []string, since time.Time) (Result, error) {
	if len(queries) == 0 || len(t.instances) == 0 {
		return Result{}, nil
	}

	now := time.Now()
	cutoff := sinceOrDefault(since, now)

	var res Result
	seen := make(map[string]bool)
	okQueries := 0
	var lastErr error

	for _, q := range queries {
		feed, err := t.searchAnyInstance(ctx, q)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			continue
		}
		okQueries++

		for _, item := range feed.Items {
			if len(res.Signals) >= t.maxItems {
				break
			}
			sig, ok := t.convertItem(item, cutoff, now)
			if !ok {
				res.Malformed++
				continue
			}
			if sig.ExternalID == "" {
				continue // outside the fetch window
			}
			if seen[sig.ExternalID] {
				continue
			}
			seen[sig.ExternalID] = true
			res.Signals = append(res.Signals, sig)
		}
	}

	if okQueries == 0 && lastErr != nil {
		return Result{}, lastErr
	}
	return res, nil
}

// searchAnyInstance tries each configured Nitter instance until one
// returns a parseable feed.
func (t *Twitter) searchAnyInstance(ctx context.Context, query string) (*gofeed.Feed, error) {
	var lastErr error
	for _, instance := range t.instances {
		feedURL := fmt.Sprintf("%s/search/rss?f=tweets&q=%s",
			strings.TrimRight(instance, "/"), url.QueryEscape(query))

		resp, err := get(ctx, t.client, feedURL)
		if err != nil {
			logging.Warn("nitter instance failed", "instance", instance, "error", err)
			lastErr = fmt.Errorf("nitter %s: %w", instance, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		feed, err := t.parser.Parse(resp.Body)
		resp.Body.Close()
		if err != nil {
			logging.Warn("nitter parse failed", "instance", instance, "error", err)
			lastErr = fmt.Errorf("nitter parse %s: %w", instance, err)
			continue
		}
		return feed, nil
	}
	return nil, lastErr
}

// convertItem normalizes one feed entry. ok is false when the entry is
// malformed. Entries older than cutoff return ok with an empty ID so
// the caller can drop them without counting an error.
func (t *Twitter) convertItem(item *gofeed.Item, cutoff, now time.Time) (signal.Signal, bool) {
	m := statusIDRe.FindStringSubmatch(item.Link)
	if m == nil {
		return signal.Signal{}, false
	}
	author, id := m[1], m[2]

	text := stripHTML(item.Description)
	if text == "" {
		text = strings.TrimSpace(item.Title)
	}
	if text == "" {
		return signal.Signal{}, false
	}

	created := now
	if item.PublishedParsed != nil {
		created = item.PublishedParsed.UTC()
	}
	if created.Before(cutoff) {
		return signal.Signal{ExternalID: ""}, true
	}

	title := text
	if len(title) > tweetTitleLen {
		title = title[:tweetTitleLen]
	}

	return signal.Signal{
		Source:     signal.SourceTwitter,
		ExternalID: id,
		Title:      title,
		Body:       text,
		URL:        fmt.Sprintf("https://twitter.com/%s/status/%s", author, id),
		Author:     author,
		CreatedAt:  created,
		Engagement: 0,
		FetchedAt:  now,
	}, true
}

// stripHTML extracts plain text from a Nitter RSS description.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(doc.Text())
}
