// Package httpstatus exposes the engine's internal status surface:
// liveness, last-sync timestamps per tracked source, and circuit-breaker
// state. It is not the read API — that surface is out of scope here.
package httpstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/orgnr/bolagsdata/internal/breaker"
)

// SyncTracker is the subset of *batchsync-driven state the status surface
// reports on: the last time each tracked source finished a sync pass, and
// whether that pass succeeded.
type SyncTracker struct {
	mu    sync.Mutex
	state map[string]SourceStatus
}

// SourceStatus is one tracked source's last-sync outcome.
type SourceStatus struct {
	LastSyncAt time.Time `json:"last_sync_at"`
	LastError  string    `json:"last_error,omitempty"`
}

func NewSyncTracker() *SyncTracker {
	return &SyncTracker{state: make(map[string]SourceStatus)}
}

// RecordSync updates source's last-sync outcome; err is nil on success.
func (t *SyncTracker) RecordSync(source string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := SourceStatus{LastSyncAt: time.Now()}
	if err != nil {
		s.LastError = err.Error()
	}
	t.state[source] = s
}

// Snapshot returns a copy of every source's last recorded status.
func (t *SyncTracker) Snapshot() map[string]SourceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]SourceStatus, len(t.state))
	for k, v := range t.state {
		out[k] = v
	}
	return out
}

// Server is the internal status HTTP surface, serving /health, /status/sync
// and /status/breakers on its own port, separate from any public API.
type Server struct {
	breakers   *breaker.Registry
	sync       *SyncTracker
	httpServer *http.Server
}

// New builds a status Server listening on addr (e.g. ":8090").
func New(addr string, breakers *breaker.Registry, sync *SyncTracker) *Server {
	r := mux.NewRouter()
	s := &Server{breakers: breakers, sync: sync}

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/status/sync", s.handleSyncStatus).Methods("GET")
	r.HandleFunc("/status/breakers", s.handleBreakerStatus).Methods("GET")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.sync.Snapshot())
}

func (s *Server) handleBreakerStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.breakers.Snapshot())
}

// Start runs the status surface until the process exits or Shutdown is
// called; ErrServerClosed is the expected return on a clean shutdown.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
