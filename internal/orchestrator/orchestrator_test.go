package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/orgnr/bolagsdata/internal/breaker"
	"github.com/orgnr/bolagsdata/internal/httpgateway"
	"github.com/orgnr/bolagsdata/internal/models"
	"github.com/orgnr/bolagsdata/internal/oauth2token"
	"github.com/orgnr/bolagsdata/internal/providers/registry"
	"github.com/orgnr/bolagsdata/internal/providers/scraper"
	"github.com/orgnr/bolagsdata/internal/ratelimit"
	"github.com/orgnr/bolagsdata/internal/repository"
	"github.com/orgnr/bolagsdata/internal/retrypolicy"
)

// fakeStore is an in-memory stand-in for *repository.Repository so the
// Orchestrator's merge and re-read behavior can be tested without a
// database.
type fakeStore struct {
	mu        sync.Mutex
	companies map[string]*models.Company
	fresh     map[string]bool
	lastInput *repository.StoreCompanyInput
}

func newFakeStore() *fakeStore {
	return &fakeStore{companies: map[string]*models.Company{}, fresh: map[string]bool{}}
}

func (f *fakeStore) GetCompany(ctx context.Context, orgnr string) (*models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[orgnr]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) IsCacheFresh(ctx context.Context, orgnr string, ttlHours int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fresh[orgnr], nil
}

func (f *fakeStore) StoreCompanyComplete(ctx context.Context, in repository.StoreCompanyInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *in.Company
	f.companies[in.Company.Orgnr] = &cp
	f.fresh[in.Company.Orgnr] = true
	inCopy := in
	f.lastInput = &inCopy
	return nil
}

func newTestGateway() *httpgateway.Gateway {
	return httpgateway.New(
		breaker.NewRegistry(breaker.DefaultConfig()),
		ratelimit.New(ratelimit.PerDomain(nil, 0)),
		2*time.Second, 2*time.Second,
	)
}

func TestNormalizeOrgnrStripsPunctuation(t *testing.T) {
	cases := map[string]string{
		"556000-1234": "5560001234",
		"556000 1234": "5560001234",
		"5560001234":  "5560001234",
	}
	for in, want := range cases {
		if got := normalizeOrgnr(in); got != want {
			t.Errorf("normalizeOrgnr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetCompanyMergesRegistryIdentityAndScraperLists(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	}))
	defer tokenSrv.Close()

	registrySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"FORETAGSNAMN": "Acme AB"})
	}))
	defer registrySrv.Close()

	scraperSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><script id="__NEXT_DATA__" type="application/json">
			{"props":{"pageProps":{"company":{"orgnr":"5560001234","namn":"Acme AB","roles":{"roleGroups":[
				{"name":"Styrelse","roles":[{"name":"Jane Doe","type":"STYRELSELEDAMOT","role":"Ledamot"}]}
			]}}}}}
		</script></html>`))
	}))
	defer scraperSrv.Close()

	gw := newTestGateway()
	tokens := oauth2token.New(tokenSrv.URL, "id", "secret", "scope")
	regAdapter := registry.New(gw, tokens, registrySrv.URL, retrypolicy.Default)
	scrAdapter := scraper.New(gw, scraperSrv.URL, retrypolicy.Default)
	store := newFakeStore()

	orch := New(store, regAdapter, scrAdapter, 24)

	got, err := orch.GetCompany(context.Background(), "556000-1234", false)
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if got == nil {
		t.Fatal("expected a merged company")
	}
	if got.Name != "Acme AB" {
		t.Fatalf("got name %q", got.Name)
	}
	if got.SourceBasic == nil || *got.SourceBasic != "registry" {
		t.Fatalf("got source_basic %v, want registry", got.SourceBasic)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.lastInput == nil || len(store.lastInput.Roles) != 1 {
		t.Fatalf("expected scraper roles to be persisted, got %+v", store.lastInput)
	}
}

func TestGetCompanyReturnsCachedRecordWithoutFetching(t *testing.T) {
	store := newFakeStore()
	store.companies["5560001234"] = &models.Company{Orgnr: "5560001234", Name: "Cached AB"}
	store.fresh["5560001234"] = true

	// Adapters pointed at servers that always fail; a fresh cache hit must
	// never reach them.
	failSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failSrv.Close()

	gw := newTestGateway()
	tokens := oauth2token.New(failSrv.URL, "id", "secret", "scope")
	regAdapter := registry.New(gw, tokens, failSrv.URL, retrypolicy.Default)
	scrAdapter := scraper.New(gw, failSrv.URL, retrypolicy.Default)

	orch := New(store, regAdapter, scrAdapter, 24)

	got, err := orch.GetCompany(context.Background(), "5560001234", false)
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if got == nil || !got.FromCache {
		t.Fatalf("got %+v, want a cached hit", got)
	}
}

func TestGetCompanyReturnsNilWhenNeitherProviderHasAName(t *testing.T) {
	notFoundSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFoundSrv.Close()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	}))
	defer tokenSrv.Close()

	gw := newTestGateway()
	tokens := oauth2token.New(tokenSrv.URL, "id", "secret", "scope")
	regAdapter := registry.New(gw, tokens, notFoundSrv.URL, retrypolicy.Default)
	scrAdapter := scraper.New(gw, notFoundSrv.URL, retrypolicy.Default)
	store := newFakeStore()

	orch := New(store, regAdapter, scrAdapter, 24)

	got, err := orch.GetCompany(context.Background(), "5560009999", false)
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}
