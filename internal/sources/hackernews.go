package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/signal"
)

const (
	algoliaSearchURL = "https://hn.algolia.com/api/v1/search"
	hnItemURL        = "https://news.ycombinator.com/item?id="

	// algoliaPageCap is Algolia's practical per-request limit.
	algoliaPageCap = 50
)

// HackerNews fetches stories and Ask/Show HN posts from the free
// Algolia HN search API. No API key required.
//
// Engagement formula: points + 2*comments. Comments weigh double
// because a comment is a stronger interest signal than an upvote.
type HackerNews struct {
	// BaseURL overrides the Algolia endpoint, for tests.
	BaseURL string

	client   *http.Client
	maxItems int
}

// NewHackerNews creates the adapter from its config section.
func NewHackerNews(cfg config.HackerNewsConfig) *HackerNews {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 100
	}
	return &HackerNews{
		BaseURL:  algoliaSearchURL,
		client:   newClient(),
		maxItems: maxItems,
	}
}

func (h *HackerNews) Name() string { return "Hacker News" }

func (h *HackerNews) Type() signal.SourceType { return signal.SourceHackerNews }

// algoliaHit is one search result from the Algolia API.
type algoliaHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryText   string `json:"story_text"`
	CommentText string `json:"comment_text"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	CreatedAtI  int64  `json:"created_at_i"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
}

type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

func (h *HackerNews) Fetch(ctx context.Context, queries []string, since time.Time) (Result, error) {
	if len(queries) == 0 {
		return Result{}, nil
	}

	now := time.Now()
	cutoff := sinceOrDefault(since, now)
	perQuery := h.maxItems / len(queries)
	if perQuery > algoliaPageCap {
		perQuery = algoliaPageCap
	}
	if perQuery < 1 {
		perQuery = 1
	}

	var res Result
	seen := make(map[string]bool)
	okQueries := 0
	var lastErr error

	for _, q := range queries {
		params := url.Values{
			"query":          {q},
			"tags":           {"(story,show_hn,ask_hn)"},
			"hitsPerPage":    {strconv.Itoa(perQuery)},
			"numericFilters": {fmt.Sprintf("created_at_i>%d", cutoff.Unix())},
		}

		resp, err := get(ctx, h.client, h.BaseURL+"?"+params.Encode())
		if err != nil {
			logging.Warn("hn search failed", "query", q, "error", err)
			lastErr = fmt.Errorf("hn search %q: %w", q, err)
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			continue
		}

		var body algoliaResponse
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			logging.Warn("hn decode failed", "query", q, "error", err)
			lastErr = fmt.Errorf("hn decode %q: %w", q, err)
			continue
		}
		okQueries++

		for _, hit := range body.Hits {
			if len(res.Signals) >= h.maxItems {
				break
			}
			if seen[hit.ObjectID] {
				continue
			}
			seen[hit.ObjectID] = true

			if hit.ObjectID == "" || (hit.Title == "" && hit.StoryText == "" && hit.CommentText == "") {
				res.Malformed++
				continue
			}

			text := hit.StoryText
			if text == "" {
				text = hit.CommentText
			}
			postURL := hit.URL
			if postURL == "" {
				postURL = hnItemURL + hit.ObjectID
			}

			res.Signals = append(res.Signals, signal.Signal{
				Source:     signal.SourceHackerNews,
				ExternalID: hit.ObjectID,
				Title:      hit.Title,
				Body:       text,
				URL:        postURL,
				Author:     hit.Author,
				CreatedAt:  time.Unix(hit.CreatedAtI, 0).UTC(),
				Engagement: hit.Points + 2*hit.NumComments,
				FetchedAt:  now,
			})
		}
	}

	if okQueries == 0 && lastErr != nil {
		return Result{}, lastErr
	}
	return res, nil
}
