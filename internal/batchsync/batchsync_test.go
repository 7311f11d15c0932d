package batchsync

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/orgnr/bolagsdata/internal/models"
	"github.com/orgnr/bolagsdata/internal/providers/registry"
	"github.com/orgnr/bolagsdata/internal/repository"
)

type fakeEnricher struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeEnricher) GetCompany(ctx context.Context, orgnr string, forceRefresh bool) (*models.Company, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail[orgnr] {
		return nil, errors.New("boom")
	}
	return &models.Company{Orgnr: orgnr, Name: "Company " + orgnr}, nil
}

func TestEnrichBatchCapturesPerItemResults(t *testing.T) {
	enricher := &fakeEnricher{fail: map[string]bool{"2": true}}
	orgnrs := []string{"1", "2", "3"}

	var progressCount int
	var mu sync.Mutex
	results := EnrichBatch(context.Background(), enricher, orgnrs, 2, false, func(r EnrichResult) {
		mu.Lock()
		progressCount++
		mu.Unlock()
	})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if progressCount != 3 {
		t.Fatalf("got %d progress callbacks, want 3", progressCount)
	}

	byOrgnr := map[string]EnrichResult{}
	for _, r := range results {
		byOrgnr[r.Orgnr] = r
	}
	if byOrgnr["2"].Err == nil {
		t.Fatal("expected orgnr 2 to have failed")
	}
	if byOrgnr["1"].Company == nil || byOrgnr["1"].Company.Name != "Company 1" {
		t.Fatalf("got %+v", byOrgnr["1"])
	}
}

type fakeStore struct {
	mu      sync.Mutex
	reports map[string]*models.AnnualReport
	tracked []string
}

func reportKey(orgnr string, fiscalYear int) string {
	return orgnr + ":" + strconv.Itoa(fiscalYear)
}

func newFakeStore(tracked []string) *fakeStore {
	return &fakeStore{reports: map[string]*models.AnnualReport{}, tracked: tracked}
}

func (f *fakeStore) ListTrackedOrgnrs(ctx context.Context) ([]string, error) {
	return f.tracked, nil
}

func (f *fakeStore) GetAnnualReport(ctx context.Context, orgnr string, fiscalYear int) (*models.AnnualReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports[reportKey(orgnr, fiscalYear)], nil
}

func (f *fakeStore) StoreAnnualReport(ctx context.Context, report *models.AnnualReport, facts []models.XBRLFact, extras repository.AnnualReportExtras) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *report
	f.reports[reportKey(report.Orgnr, report.FiscalYear)] = &cp
	return nil
}

type fakePipeline struct {
	docs     []registry.DocumentMeta
	archives map[string][]byte
	listErr  error
}

func (f *fakePipeline) ListDocuments(ctx context.Context, orgnr string) ([]registry.DocumentMeta, error) {
	return f.docs, f.listErr
}

func (f *fakePipeline) DownloadDocument(ctx context.Context, documentID string) ([]byte, error) {
	data, ok := f.archives[documentID]
	if !ok {
		return nil, errors.New("no such document")
	}
	return data, nil
}

func buildArchive(t *testing.T, document string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	f, err := w.Create("report.xhtml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(document)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const minimalReport = `<html><body>
<xbrli:context id="period0"><xbrli:period><xbrli:startDate>2023-01-01</xbrli:startDate><xbrli:endDate>2023-12-31</xbrli:endDate></xbrli:period></xbrli:context>
<ix:nonFraction name="se-gen-base:Nettoomsattning" contextRef="period0" scale="3">1 000</ix:nonFraction>
</body></html>`

func TestSyncCompanyProcessesDocumentsWithinYearWindow(t *testing.T) {
	docs := []registry.DocumentMeta{
		{DocumentID: "doc-2023", RapporteringsperiodTom: "2023-12-31"},
		{DocumentID: "doc-2015", RapporteringsperiodTom: "2015-12-31"},
	}
	pipeline := &fakePipeline{docs: docs, archives: map[string][]byte{
		"doc-2023": buildArchive(t, minimalReport),
		"doc-2015": buildArchive(t, minimalReport),
	}}
	store := newFakeStore(nil)

	errs := SyncCompany(context.Background(), store, pipeline, "5560001234", 3, false, 2024)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}

	report, err := store.GetAnnualReport(context.Background(), "5560001234", 2023)
	if err != nil {
		t.Fatal(err)
	}
	if report == nil || report.ProcessingStatus != models.ProcessingProcessed {
		t.Fatalf("got %+v, want a processed 2023 report", report)
	}

	old, err := store.GetAnnualReport(context.Background(), "5560001234", 2015)
	if err != nil {
		t.Fatal(err)
	}
	if old != nil {
		t.Fatalf("expected 2015 document to be skipped as outside the window, got %+v", old)
	}
}

func TestSyncCompanySkipsAlreadyProcessedWithoutForce(t *testing.T) {
	docs := []registry.DocumentMeta{{DocumentID: "doc-2023", RapporteringsperiodTom: "2023-12-31"}}
	pipeline := &fakePipeline{docs: docs, archives: map[string][]byte{"doc-2023": buildArchive(t, minimalReport)}}
	store := newFakeStore(nil)
	store.reports[reportKey("5560001234", 2023)] = &models.AnnualReport{
		Orgnr: "5560001234", FiscalYear: 2023, ProcessingStatus: models.ProcessingProcessed,
	}

	pipeline.archives = map[string][]byte{} // if the pipeline is called at all, this test fails
	errs := SyncCompany(context.Background(), store, pipeline, "5560001234", 3, false, 2024)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestSyncCompanyCapturesPerDocumentErrors(t *testing.T) {
	docs := []registry.DocumentMeta{{DocumentID: "doc-missing", RapporteringsperiodTom: "2023-12-31"}}
	pipeline := &fakePipeline{docs: docs, archives: map[string][]byte{}}
	store := newFakeStore(nil)

	errs := SyncCompany(context.Background(), store, pipeline, "5560001234", 3, false, 2024)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
}
