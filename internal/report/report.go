// Package report renders scan output as a markdown report and a JSON
// lead export.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/signal"
)

// topLeadCount is how many leads get a detailed section before the
// report falls back to a table.
const topLeadCount = 20

// leadExport is the envelope written to the JSON leads file.
type leadExport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Count       int           `json:"count"`
	Leads       []signal.Lead `json:"leads"`
}

// WriteLeadsJSON writes the full lead list to path, creating parent
// directories as needed.
func WriteLeadsJSON(leads []signal.Lead, path string) error {
	data, err := json.MarshalIndent(leadExport{
		GeneratedAt: time.Now().UTC(),
		Count:       len(leads),
		Leads:       leads,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(path, data); err != nil {
		return err
	}
	logging.Info("Leads exported", "path", path, "count", len(leads))
	return nil
}

// WriteMarkdown renders the lead report to path. Leads are expected
// in display order (best first).
func WriteMarkdown(leads []signal.Lead, cfg *config.Config, path string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# 🔍 SignalScout Report\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "**ICP:** %s\n", cfg.ICP.Description)
	fmt.Fprintf(&b, "**Total Leads Found:** %d\n\n---\n\n", len(leads))

	writeSummary(&b, leads)
	writeTopLeads(&b, leads)
	writeLeadTable(&b, leads)

	if err := writeFile(path, []byte(b.String())); err != nil {
		return err
	}
	logging.Info("Report written", "path", path, "leads", len(leads))
	return nil
}

func writeSummary(b *strings.Builder, leads []signal.Lead) {
	counts := make(map[signal.SourceType]int)
	for _, l := range leads {
		counts[l.Source]++
	}
	b.WriteString("## 📊 Summary\n")
	for _, src := range []signal.SourceType{signal.SourceHackerNews, signal.SourceReddit, signal.SourceTwitter} {
		if n := counts[src]; n > 0 {
			fmt.Fprintf(b, "- **%s:** %d signals\n", src, n)
		}
	}
	b.WriteString("\n")
}

func writeTopLeads(b *strings.Builder, leads []signal.Lead) {
	top := leads
	if len(top) > topLeadCount {
		top = top[:topLeadCount]
	}
	if len(top) == 0 {
		return
	}

	b.WriteString("## 🏆 Top Leads\n\n")
	for i, lead := range top {
		fmt.Fprintf(b, "### %d. %s [%s](%s)\n", i+1, scoreMarker(lead.Score.Total),
			truncate(lead.Title, 80), lead.URL)
		fmt.Fprintf(b, "**Score:** %d/10 | **Source:** %s | **Author:** %s\n",
			lead.Score.Total, lead.Source, lead.Author)
		bd := lead.Score
		fmt.Fprintf(b, "*Keyword: %.2f | Pain: %.2f | Recency: %.2f | Engagement: %.2f*\n",
			bd.KeywordMatch, bd.PainPoints, bd.Recency, bd.Engagement)
		if bd.SuggestedReply != "" {
			fmt.Fprintf(b, "**Suggested reply:** %s\n", bd.SuggestedReply)
		}
		if preview := truncate(strings.ReplaceAll(lead.Body, "\n", " "), 200); preview != "" {
			fmt.Fprintf(b, "> %s\n", preview)
		}
		b.WriteString("\n")
	}
}

func writeLeadTable(b *strings.Builder, leads []signal.Lead) {
	if len(leads) <= topLeadCount {
		return
	}
	b.WriteString("## 📋 All Leads\n\n")
	b.WriteString("| # | Score | Source | Status | Title |\n")
	b.WriteString("|---|-------|--------|--------|-------|\n")
	for i, lead := range leads {
		fmt.Fprintf(b, "| %d | %d | %s | %s | %s |\n",
			i+1, lead.Score.Total, lead.Source, lead.Status, truncate(lead.Title, 60))
	}
	b.WriteString("\n")
}

func scoreMarker(score int) string {
	switch {
	case score >= 7:
		return "🔥"
	case score >= 5:
		return "⭐"
	default:
		return "📌"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
