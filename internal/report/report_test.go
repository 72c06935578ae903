package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/signal"
)

func sampleLeads(n int) []signal.Lead {
	now := time.Now().UTC()
	leads := make([]signal.Lead, n)
	for i := range leads {
		leads[i] = signal.Lead{
			ID:         "hackernews:" + string(rune('a'+i)),
			Source:     signal.SourceHackerNews,
			ExternalID: string(rune('a' + i)),
			Title:      "Looking for a billing tool",
			URL:        "https://example.com",
			Author:     "someone",
			CreatedAt:  now,
			Score: signal.ScoreBreakdown{
				Total:        9 - i%7,
				Category:     signal.CategoryForScore(9 - i%7),
				KeywordMatch: 0.5,
			},
			Status:      signal.StatusNew,
			FirstSeenAt: now,
			LastSeenAt:  now,
		}
	}
	return leads
}

func TestWriteMarkdown(t *testing.T) {
	cfg := config.Default()
	cfg.ICP.Description = "Indie SaaS founders"
	path := filepath.Join(t.TempDir(), "out", "report.md")

	if err := WriteMarkdown(sampleLeads(3), cfg, path); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"# 🔍 SignalScout Report",
		"**ICP:** Indie SaaS founders",
		"**Total Leads Found:** 3",
		"## 🏆 Top Leads",
		"**Score:** 9/10",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(out, "## 📋 All Leads") {
		t.Error("table section should only appear past the top-lead cutoff")
	}
}

func TestWriteMarkdownLargeListGetsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := WriteMarkdown(sampleLeads(25), config.Default(), path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "## 📋 All Leads") {
		t.Error("expected the full table for more than 20 leads")
	}
}

func TestWriteLeadsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "leads.json")
	if err := WriteLeadsJSON(sampleLeads(2), path); err != nil {
		t.Fatalf("WriteLeadsJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	var export struct {
		GeneratedAt time.Time     `json:"generated_at"`
		Count       int           `json:"count"`
		Leads       []signal.Lead `json:"leads"`
	}
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if export.Count != 2 || len(export.Leads) != 2 {
		t.Errorf("count = %d with %d leads, want 2/2", export.Count, len(export.Leads))
	}
	if export.Leads[0].Score.Total != 9 {
		t.Errorf("score lost in export: %+v", export.Leads[0].Score)
	}
}
