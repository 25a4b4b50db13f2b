package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ai-trading-arena/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIServer exposes the cycle trigger and read-only arena state over HTTP.
type APIServer struct {
	server *http.Server
	engine *Engine
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer on the configured port.
func NewAPIServer(engine *Engine, logger *zap.Logger) *APIServer {
	addr := fmt.Sprintf(":%d", engine.cfg.Server.Port)

	s := &APIServer{
		engine: engine,
		logger: logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/cycle", s.cycleHandler)
	mux.HandleFunc("/leaderboard", s.leaderboardHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

// cycleHandler triggers one trade cycle. A request arriving while a cycle is
// in flight is rejected with 409 rather than queued.
func (s *APIServer) cycleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	interval := time.Duration(s.engine.cfg.Arena.CycleInterval) * time.Second
	ctx, cancel := context.WithTimeout(r.Context(), cycleDeadline(interval))
	defer cancel()

	summary, err := s.engine.TryRunCycle(ctx)
	if errors.Is(err, ErrCycleInFlight) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.Error("Manual cycle trigger failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, summary)
}

type leaderboardEntry struct {
	Rank int `json:"rank"`
	models.Trader
}

// leaderboardHandler returns all traders ranked by profit/loss as of the
// last leaderboard refresh.
func (s *APIServer) leaderboardHandler(w http.ResponseWriter, r *http.Request) {
	var traders []models.Trader
	if err := s.engine.db.Order("profit_loss_percentage desc").Find(&traders).Error; err != nil {
		s.logger.Error("Failed to load traders", zap.Error(err))
		http.Error(w, "failed to load traders", http.StatusInternalServerError)
		return
	}

	entries := make([]leaderboardEntry, len(traders))
	for i, t := range traders {
		entries[i] = leaderboardEntry{Rank: i + 1, Trader: t}
	}

	s.writeJSON(w, entries)
}

// metricsHandler returns performance metrics for one trader, looked up by
// name.
func (s *APIServer) metricsHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("trader")
	if name == "" {
		http.Error(w, "missing trader parameter", http.StatusBadRequest)
		return
	}

	var trader models.Trader
	if err := s.engine.db.Where("name = ?", name).First(&trader).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "trader not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to load trader", zap.Error(err))
		http.Error(w, "failed to load trader", http.StatusInternalServerError)
		return
	}

	var trades []models.Trade
	if err := s.engine.db.Where("trader_id = ?", trader.ID).Order("timestamp asc").Find(&trades).Error; err != nil {
		s.logger.Error("Failed to load trades", zap.Error(err))
		http.Error(w, "failed to load trades", http.StatusInternalServerError)
		return
	}

	// Cash balance history reconstructed from the trade log.
	history := []float64{trader.InitialBalance}
	balance := trader.InitialBalance
	for _, t := range trades {
		switch t.Action {
		case models.ActionBuy:
			balance -= t.Amount * t.Price
		case models.ActionSell:
			balance += t.Amount * t.Price
		default:
			continue
		}
		history = append(history, balance)
	}

	s.writeJSON(w, TraderMetrics(trades, history))
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		StartTime string `json:"start_time"`
		Uptime    string `json:"uptime"`
	}{
		StartTime: s.engine.StartTime.Format(time.RFC3339),
		Uptime:    time.Since(s.engine.StartTime).String(),
	}
	s.writeJSON(w, status)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
