// Command scout runs one scan: fetch signals from every enabled
// source, score them against the ICP, persist leads, and write the
// markdown report and JSON export.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/intent"
	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/report"
	"github.com/abelbrown/signalscout/internal/scan"
	"github.com/abelbrown/signalscout/internal/sources"
	"github.com/abelbrown/signalscout/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "", "database path (overrides config)")
	noReport := flag.Bool("no-report", false, "skip report and JSON export")
	flag.Parse()

	// Optional .env for ANTHROPIC_API_KEY and friends.
	godotenv.Load()

	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "scout: logging init failed: %v\n", err)
	}
	defer logging.Close()

	if err := run(*configPath, *dbPath, !*noReport); err != nil {
		logging.Error("Scan failed", "error", err)
		fmt.Fprintf(os.Stderr, "scout: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string, writeOutput bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	orch := scan.New(cfg, st, sources.Enabled(cfg), intent.FromConfig(cfg))
	result, err := orch.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Scan %s: %s\n", result.ID, result.Status)
	for src, stats := range result.Sources {
		line := fmt.Sprintf("  %-12s fetched %d, new %d, duplicates %d, filtered %d",
			src, stats.Fetched, stats.NewLeads, stats.Duplicates, stats.Filtered)
		if stats.Err != "" {
			line += " (error: " + stats.Err + ")"
		}
		fmt.Println(line)
	}

	if !writeOutput {
		return nil
	}

	leads, err := st.ListLeads(store.LeadFilter{
		MinScore: cfg.Scoring.MinScore,
		Limit:    cfg.Output.MaxLeads,
	})
	if err != nil {
		return err
	}
	if err := report.WriteMarkdown(leads, cfg, cfg.Output.ReportFile); err != nil {
		return err
	}
	if err := report.WriteLeadsJSON(leads, cfg.Output.LeadsFile); err != nil {
		return err
	}

	fmt.Printf("%d leads (%d new this scan) -> %s\n",
		len(leads), result.TotalNewLeads(), cfg.Output.ReportFile)
	return nil
}
