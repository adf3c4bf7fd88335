// Package metrics implements the metrics/status HTTP server.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusFunc produces a JSON-serializable snapshot for the /status
// endpoint. It must be safe to call concurrently with the receive
// pipeline.
type StatusFunc func() any

// Admin exposes the manual block operations over the admin endpoints.
// The security registry implements it.
type Admin interface {
	BlockIP(addr netip.Addr, d time.Duration, now time.Time)
	UnblockIP(addr netip.Addr, now time.Time)
}

// Server is the HTTP server for Prometheus metrics, status queries and
// admin operations.
type Server struct {
	addr   string
	path   string
	status StatusFunc
	admin  Admin
	server *http.Server
}

// NewServer creates a new metrics server. status and admin may be nil, in
// which case the corresponding endpoints are not registered.
func NewServer(addr, path string, status StatusFunc, admin Admin) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		addr:   addr,
		path:   path,
		status: status,
		admin:  admin,
	}
}

// Start starts the metrics HTTP server.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())
	if s.status != nil {
		mux.HandleFunc("/status", s.handleStatus)
	}
	if s.admin != nil {
		mux.HandleFunc("/admin/block", s.handleBlock)
		mux.HandleFunc("/admin/unblock", s.handleUnblock)
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting metrics server", "addr", s.addr, "path", s.path)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		slog.Error("status encoding failed", "error", err)
	}
}

// handleBlock manually blocks a source address:
// POST /admin/block?ip=10.0.0.9&duration=300s (duration optional).
func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	addr, err := netip.ParseAddr(r.URL.Query().Get("ip"))
	if err != nil {
		http.Error(w, "invalid ip", http.StatusBadRequest)
		return
	}
	var d time.Duration
	if raw := r.URL.Query().Get("duration"); raw != "" {
		d, err = time.ParseDuration(raw)
		if err != nil || d <= 0 {
			http.Error(w, "invalid duration", http.StatusBadRequest)
			return
		}
	}
	s.admin.BlockIP(addr, d, time.Now())
	slog.Info("address blocked via admin endpoint", "addr", addr, "duration", d)
	w.WriteHeader(http.StatusNoContent)
}

// handleUnblock lifts a block: POST /admin/unblock?ip=10.0.0.9.
func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	addr, err := netip.ParseAddr(r.URL.Query().Get("ip"))
	if err != nil {
		http.Error(w, "invalid ip", http.StatusBadRequest)
		return
	}
	s.admin.UnblockIP(addr, time.Now())
	slog.Info("address unblocked via admin endpoint", "addr", addr)
	w.WriteHeader(http.StatusNoContent)
}

// Stop gracefully stops the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	slog.Info("stopping metrics server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	return nil
}
