// Package status exposes the manager's state over HTTP for operators
// and Prometheus.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the last completed control-loop observation.
type Snapshot struct {
	Temperature uint8     `json:"temperature"`
	Level       int       `json:"level"`
	FanSpeed    uint8     `json:"fan_speed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Server serves /healthz, /status and /metrics on a dedicated bind.
type Server struct {
	lg       *slog.Logger
	snapshot func() Snapshot
	http     *http.Server
}

// NewServer return a status server; snapshot is polled on every
// /status request.
func NewServer(bind string, snapshot func() Snapshot, lg *slog.Logger) *Server {
	s := &Server{lg: lg, snapshot: snapshot}
	s.http = &http.Server{
		Addr:              bind,
		Handler:           handlers.LoggingHandler(os.Stdout, s.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.getHealth).Methods("GET")
	r.HandleFunc("/status", s.getStatus).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshot())
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.lg.Info("status server starting", "bind", s.http.Addr)
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	s.lg.Info("status server stopping")
	return s.http.Shutdown(ctx)
}
