package httpstatus

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orgnr/bolagsdata/internal/breaker"
)

func newTestServer() (*Server, *SyncTracker) {
	tracker := NewSyncTracker()
	registry := breaker.NewRegistry(breaker.DefaultConfig())
	return New(":0", registry, tracker), tracker
}

func TestHandleHealthReturnsOK(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %+v, want status=ok", body)
	}
}

func TestHandleSyncStatusReflectsRecordedSyncs(t *testing.T) {
	t.Parallel()

	s, tracker := newTestServer()
	tracker.RecordSync("registry", nil)
	tracker.RecordSync("scraper", errors.New("timeout"))

	req := httptest.NewRequest(http.MethodGet, "/status/sync", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	var body map[string]SourceStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["registry"].LastError != "" {
		t.Fatalf("registry LastError = %q, want empty", body["registry"].LastError)
	}
	if body["scraper"].LastError != "timeout" {
		t.Fatalf("scraper LastError = %q, want timeout", body["scraper"].LastError)
	}
}

func TestHandleBreakerStatusReportsEachSource(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer()
	s.breakers.For("registry").RecordFailure()
	s.breakers.For("scraper").RecordSuccess()

	req := httptest.NewRequest(http.MethodGet, "/status/breakers", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	var body map[string]breaker.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["registry"]; !ok {
		t.Fatal("missing registry breaker stats")
	}
	if _, ok := body["scraper"]; !ok {
		t.Fatal("missing scraper breaker stats")
	}
}
