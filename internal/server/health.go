package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/scoped-messaging/pkg/jsoncodec"
)

// HealthChecks reports each dependency the daemon relies on.
type HealthChecks struct {
	Comms    bool   `json:"comms"`
	Database bool   `json:"database"`
	Store    string `json:"store"`
}

// HealthOutput is the /health response body.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Scopes    []string     `json:"scopes"`
	Timestamp string       `json:"timestamp"`
}

// Health checks NATS and, when configured, the database.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Status:    "healthy",
		Scopes:    s.registry.Scopes(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	out.Checks.Comms = s.commsConnected != nil && s.commsConnected()

	out.Checks.Store = "memory"
	out.Checks.Database = true
	if s.pingDatabase != nil {
		out.Checks.Store = "postgres"
		out.Checks.Database = s.pingDatabase(ctx) == nil
	}

	if !out.Checks.Comms || !out.Checks.Database {
		out.Status = "unhealthy"
	}
	return out
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", s.handleReady())
	if s.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.Health(ctx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		jsoncodec.Encode(w, h)
	}
}

func (s *Server) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ready"
		if !s.ready.Load() {
			status = "starting"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		jsoncodec.Encode(w, map[string]string{"status": status})
	}
}
