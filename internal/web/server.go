// Package web serves the dashboard JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abelbrown/signalscout/internal/config"
	"github.com/abelbrown/signalscout/internal/logging"
	"github.com/abelbrown/signalscout/internal/scan"
	"github.com/abelbrown/signalscout/internal/signal"
	"github.com/abelbrown/signalscout/internal/store"
)

// Server exposes leads, scans, and stats over HTTP.
type Server struct {
	cfg    *config.Config
	store  *store.Store
	orch   *scan.Orchestrator
	router chi.Router
}

// New builds the dashboard server.
func New(cfg *config.Config, st *store.Store, orch *scan.Orchestrator) *Server {
	s := &Server{cfg: cfg, store: st, orch: orch}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/leads", s.handleListLeads)
		r.Get("/leads/{id}", s.handleGetLead)
		r.Patch("/leads/{id}", s.handleUpdateLead)
		r.Post("/scan", s.handleTriggerScan)
		r.Get("/scans", s.handleListScans)
		r.Get("/scan/status", s.handleScanStatus)
		r.Get("/stats", s.handleStats)
		r.Get("/config", s.handleConfig)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("Dashboard listening", "addr", s.cfg.Server.Addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LeadFilter{
		Status:   signal.LeadStatus(q.Get("status")),
		Source:   signal.SourceType(q.Get("source")),
		Category: signal.IntentCategory(q.Get("category")),
		Limit:    100,
	}
	if v := q.Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_score must be an integer")
			return
		}
		filter.MinScore = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		filter.Limit = n
	}

	leads, err := s.store.ListLeads(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type leadUpdate struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	var upd leadUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if upd.Status == nil && upd.Notes == nil {
		writeError(w, http.StatusBadRequest, "no updates provided")
		return
	}

	id := chi.URLParam(r, "id")
	var lead signal.Lead
	var err error

	if upd.Status != nil {
		lead, err = s.store.UpdateStatus(id, signal.LeadStatus(*upd.Status))
		if errors.Is(err, signal.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if upd.Notes != nil {
		lead, err = s.store.UpdateNotes(id, *upd.Notes)
		if err != nil {
			writeStoreError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	if s.orch.Running() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "already_running",
			"message": "a scan is already in progress",
		})
		return
	}

	go func() {
		// Detached from the request so the scan survives client
		// disconnects.
		if _, err := s.orch.Run(context.Background()); err != nil && !errors.Is(err, scan.ErrScanRunning) {
			logging.Error("Background scan failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "scan started in background",
	})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.store.ListScans(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.orch.Running()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleConfig returns the active configuration with the API key
// masked.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"icp": s.cfg.ICP,
		"scoring": map[string]any{
			"mode":            s.cfg.Scoring.Mode,
			"weights":         s.cfg.Scoring.Weights,
			"min_score":       s.cfg.Scoring.MinScore,
			"ai_model":        s.cfg.Scoring.AIModel,
			"ai_api_key":      maskKey(s.cfg.Scoring.AIAPIKey),
			"ai_threshold":    s.cfg.Scoring.AIThreshold,
			"max_ai_per_scan": s.cfg.Scoring.MaxAIPerScan,
		},
	})
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) > 8 {
		return key[:8] + "..."
	}
	return "***"
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
