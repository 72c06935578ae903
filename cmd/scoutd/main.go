// Command scoutd serves the SignalScout dashboard API. Scans are
// triggered over HTTP and run in the background; Ctrl-C shuts the
// server down gracefully.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/intent"
	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/scan"
	"github.com/abelbrown/signalscout/internal/sources"
	"github.com/abelbrown/signalscout/internal/store"
	"github.com/abelbrown/signalscout/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	godotenv.Load()

	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "scoutd: logging init failed: %v\n", err)
	}
	defer logging.Close()

	if err := run(*configPath, *addr); err != nil {
		logging.Error("Server failed", "error", err)
		fmt.Fprintf(os.Stderr, "scoutd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	orch := scan.New(cfg, st, sources.Enabled(cfg), intent.FromConfig(cfg))
	srv := web.New(cfg, st, orch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("scoutd listening on %s\n", cfg.Server.Addr)
	return srv.ListenAndServe(ctx)
}
