package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/signal"
)

const redditBaseURL = "https://www.reddit.com"

// redditPageCap is Reddit's search result limit per request.
const redditPageCap = 25

// Reddit fetches posts from Reddit's public JSON search endpoints.
// No API key required; requests are paced to stay polite.
//
// Engagement formula: score + 2*comments, mirroring the HN adapter.
type Reddit struct {
	// BaseURL overrides the Reddit endpoint, for tests.
	BaseURL string

	client     *http.Client
	limiter    *rate.Limiter
	subreddits []string
	maxPerSub  int
}

// NewReddit creates the adapter from its config section.
func NewReddit(cfg config.RedditConfig) *Reddit {
	maxPerSub := cfg.MaxPostsPerSub
	if maxPerSub <= 0 || maxPerSub > redditPageCap {
		maxPerSub = redditPageCap
	}
	return &Reddit{
		BaseURL:    redditBaseURL,
		client:     newClient(),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		subreddits: cfg.Subreddits,
		maxPerSub:  maxPerSub,
	}
}

func (r *Reddit) Name() string { return "Reddit" }

func (r *Reddit) Type() signal.SourceType { return signal.SourceReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

func (r *Reddit) Fetch(ctx context.Context, queries []string, since time.Time) (Result, error) {
	if len(queries) == 0 || len(r.subreddits) == 0 {
		return Result{}, nil
	}

	now := time.Now()
	cutoff := sinceOrDefault(since, now)

	var res Result
	seen := make(map[string]bool)
	okRequests := 0
	var lastErr error

	for _, sub := range r.subreddits {
		for _, q := range queries {
			if err := r.limiter.Wait(ctx); err != nil {
				return res, err
			}

			params := url.Values{
				"q":           {q},
				"restrict_sr": {"on"},
				"sort":        {"new"},
				"t":           {"week"},
				"limit":       {strconv.Itoa(r.maxPerSub)},
			}
			reqURL := fmt.Sprintf("%s/r/%s/search.json?%s", r.BaseURL, sub, params.Encode())

			resp, err := get(ctx, r.client, reqURL)
			if err != nil {
				logging.Warn("reddit search failed", "subreddit", sub, "query", q, "error", err)
				lastErr = fmt.Errorf("reddit r/%s %q: %w", sub, q, err)
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				continue
			}

			var listing redditListing
			err = json.NewDecoder(resp.Body).Decode(&listing)
			resp.Body.Close()
			if err != nil {
				logging.Warn("reddit decode failed", "subreddit", sub, "error", err)
				lastErr = fmt.Errorf("reddit decode r/%s: %w", sub, err)
				continue
			}
			okRequests++

			for _, child := range listing.Data.Children {
				post := child.Data
				if seen[post.ID] {
					continue
				}
				seen[post.ID] = true

				if post.ID == "" || post.Title == "" {
					res.Malformed++
					continue
				}
				created := time.Unix(int64(post.CreatedUTC), 0).UTC()
				if created.Before(cutoff) {
					continue
				}

				res.Signals = append(res.Signals, signal.Signal{
					Source:     signal.SourceReddit,
					ExternalID: post.ID,
					Title:      post.Title,
					Body:       post.Selftext,
					URL:        redditBaseURL + post.Permalink,
					Author:     post.Author,
					CreatedAt:  created,
					Engagement: post.Score + 2*post.NumComments,
					FetchedAt:  now,
				})
			}
		}
	}

	if okRequests == 0 && lastErr != nil {
		return Result{}, lastErr
	}
	return res, nil
}
