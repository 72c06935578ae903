package sources

import (
	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/signal"
)

// queryCap bounds how many keyword queries one adapter issues per scan.
const queryCap = 4

// Enabled builds the fixed adapter set from config. Adapters are
// enumerated here, never discovered dynamically.
func Enabled(cfg *config.Config) []Source {
	var srcs []Source
	if cfg.Sources.HackerNews.Enabled {
		srcs = append(srcs, NewHackerNews(cfg.Sources.HackerNews))
	}
	if cfg.Sources.Reddit.Enabled {
		srcs = append(srcs, NewReddit(cfg.Sources.Reddit))
	}
	if cfg.Sources.Twitter.Enabled {
		srcs = append(srcs, NewTwitter(cfg.Sources.Twitter))
	}
	return srcs
}

// Queries returns the keyword queries for a source type, falling back
// to the ICP keywords when the adapter has none configured.
func Queries(t signal.SourceType, cfg *config.Config) []string {
	var configured []string
	switch t {
	case signal.SourceHackerNews:
		configured = cfg.Sources.HackerNews.Queries
	case signal.SourceReddit:
		configured = cfg.Sources.Reddit.Queries
	case signal.SourceTwitter:
		configured = cfg.Sources.Twitter.Queries
	}
	return config.QueriesFor(configured, cfg.ICP.Keywords, queryCap)
}
