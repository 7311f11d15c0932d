// Package batchsync walks the tracked-company set, driving the
// Orchestrator and the XBRL pipeline under per-source concurrency caps.
package batchsync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/orgnr/bolagsdata/internal/models"
	"github.com/orgnr/bolagsdata/internal/providers/registry"
	"github.com/orgnr/bolagsdata/internal/repository"
	"github.com/orgnr/bolagsdata/internal/xbrl"
)

const (
	defaultMaxWorkers = 5
	defaultBatchSize  = 10
	maxErrorsPerBatch = 10
	maxErrorsPerRun   = 100
	interBatchPause   = 1 * time.Second
)

// Store is the subset of repository.Repository batchsync depends on.
type Store interface {
	ListTrackedOrgnrs(ctx context.Context) ([]string, error)
	GetAnnualReport(ctx context.Context, orgnr string, fiscalYear int) (*models.AnnualReport, error)
	StoreAnnualReport(ctx context.Context, report *models.AnnualReport, facts []models.XBRLFact, extras repository.AnnualReportExtras) error
}

// Enricher is the subset of *orchestrator.Orchestrator EnrichBatch
// depends on.
type Enricher interface {
	GetCompany(ctx context.Context, orgnr string, forceRefresh bool) (*models.Company, error)
}

// EnrichResult is one orgnr's outcome from EnrichBatch.
type EnrichResult struct {
	Orgnr   string
	Company *models.Company
	Err     error
}

// ProgressFunc is invoked once per completed item; completion ordering
// across the batch is not guaranteed.
type ProgressFunc func(EnrichResult)

// EnrichBatch runs Orchestrator.GetCompany over orgnrs under a semaphore
// of size maxWorkers (default 5 if <= 0), capturing per-item failures
// into the returned slice rather than aborting the batch.
func EnrichBatch(ctx context.Context, orch Enricher, orgnrs []string, maxWorkers int, forceRefresh bool, onProgress ProgressFunc) []EnrichResult {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}

	results := make([]EnrichResult, len(orgnrs))
	sem := semaphore.NewWeighted(int64(maxWorkers))

	for i, orgnr := range orgnrs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = EnrichResult{Orgnr: orgnr, Err: err}
			continue
		}

		idx, id := i, orgnr
		go func() {
			defer sem.Release(1)
			company, err := orch.GetCompany(ctx, id, forceRefresh)
			res := EnrichResult{Orgnr: id, Company: company, Err: err}
			results[idx] = res
			if onProgress != nil {
				onProgress(res)
			}
		}()
	}

	// Acquiring the full weight waits for every in-flight goroutine to
	// release, the same drain idiom as a WaitGroup without a second type.
	if err := sem.Acquire(ctx, int64(maxWorkers)); err == nil {
		sem.Release(int64(maxWorkers))
	}

	return results
}

// Pipeline is the subset of *xbrl pipeline operations a sync run needs,
// narrowed so batchsync doesn't depend on the registry adapter's full
// surface.
type Pipeline interface {
	ListDocuments(ctx context.Context, orgnr string) ([]registry.DocumentMeta, error)
	DownloadDocument(ctx context.Context, documentID string) ([]byte, error)
}

// DocError is one document's processing failure within SyncCompany.
type DocError struct {
	Orgnr      string
	DocumentID string
	Err        error
}

// SyncCompany lists orgnr's annual-report documents, filters to fiscal
// years within the last `years`, skips documents already processed
// unless force is set, and runs the ZIP/iXBRL pipeline on each remaining
// document. Per-document errors are captured and the loop continues until
// maxErrorsPerBatch errors have been collected; the remaining documents
// are then skipped.
func SyncCompany(ctx context.Context, store Store, provider Pipeline, orgnr string, years int, force bool, currentYear int) []DocError {
	docs, err := provider.ListDocuments(ctx, orgnr)
	if err != nil {
		return []DocError{{Orgnr: orgnr, Err: fmt.Errorf("batchsync: list documents: %w", err)}}
	}

	var errs []DocError
	cutoff := currentYear - years

	for _, doc := range docs {
		fiscalYear, ok := doc.FiscalYear()
		if !ok || fiscalYear < cutoff {
			continue
		}

		if !force {
			existing, err := store.GetAnnualReport(ctx, orgnr, fiscalYear)
			if err != nil {
				errs = append(errs, DocError{Orgnr: orgnr, DocumentID: doc.DocumentID, Err: err})
				continue
			}
			if existing != nil && existing.ProcessingStatus == models.ProcessingProcessed {
				continue
			}
		}

		if err := syncDocument(ctx, store, provider, orgnr, fiscalYear, doc.DocumentID); err != nil {
			errs = append(errs, DocError{Orgnr: orgnr, DocumentID: doc.DocumentID, Err: err})
		}

		if len(errs) >= maxErrorsPerBatch {
			break
		}
	}

	return errs
}

func syncDocument(ctx context.Context, store Store, provider Pipeline, orgnr string, fiscalYear int, documentID string) error {
	zipData, err := provider.DownloadDocument(ctx, documentID)
	if err != nil {
		return markFailed(ctx, store, orgnr, fiscalYear, documentID, err)
	}

	result, err := xbrl.Process(zipData, orgnr, fiscalYear)
	if err != nil {
		return markFailed(ctx, store, orgnr, fiscalYear, documentID, err)
	}

	namespaces := uniqueNamespaces(result.Facts)
	report := &models.AnnualReport{
		Orgnr:               orgnr,
		DocumentID:          documentID,
		FiscalYear:          fiscalYear,
		TotalFactsExtracted: len(result.Facts),
		NamespacesUsed:      namespaces,
		IsAudited:           result.Audit != nil,
		ProcessingStatus:    models.ProcessingProcessed,
	}

	extras := repository.AnnualReportExtras{
		Audit:      result.Audit,
		Board:      result.Board,
		Financials: result.Financials,
	}

	if err := store.StoreAnnualReport(ctx, report, result.Facts, extras); err != nil {
		return fmt.Errorf("batchsync: store annual report %s/%d: %w", orgnr, fiscalYear, err)
	}
	return nil
}

// markFailed records a failed report so a later sync run can tell "tried
// and failed" apart from "never attempted", unless the report had never
// been stored, in which case the failure is silently skipped per §4.7's
// failure semantics.
func markFailed(ctx context.Context, store Store, orgnr string, fiscalYear int, documentID string, cause error) error {
	existing, getErr := store.GetAnnualReport(ctx, orgnr, fiscalYear)
	if getErr != nil || existing == nil {
		return cause
	}
	existing.ProcessingStatus = models.ProcessingFailed
	_ = store.StoreAnnualReport(ctx, existing, nil, repository.AnnualReportExtras{})
	return cause
}

func uniqueNamespaces(facts []models.XBRLFact) []string {
	seen := map[string]bool{}
	var namespaces []string
	for _, f := range facts {
		if f.Namespace == "" || seen[f.Namespace] {
			continue
		}
		seen[f.Namespace] = true
		namespaces = append(namespaces, f.Namespace)
	}
	return namespaces
}

// SyncAllTrackedCompanies fetches the full tracked-orgnr list from the
// Store and drives SyncCompany over it in batches of batchSize (default
// 10), with XBRL concurrency hard-capped at 1 within each batch — the
// document endpoints must be called sequentially — relying on the Rate
// Limiter's own pacing rather than an additional fixed delay per call.
// The document endpoints are on the Registry host, so that pacing is the
// Registry host's interval.
// Between batches there is a 1s pause. Error lists are truncated per
// batch (<=10) and per run (<=100).
func SyncAllTrackedCompanies(ctx context.Context, store Store, provider Pipeline, years, batchSize int, force bool, currentYear int) []DocError {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	orgnrs, err := store.ListTrackedOrgnrs(ctx)
	if err != nil {
		return []DocError{{Err: fmt.Errorf("batchsync: list tracked orgnrs: %w", err)}}
	}

	var allErrs []DocError
	sem := semaphore.NewWeighted(1)

	for start := 0; start < len(orgnrs); start += batchSize {
		end := start + batchSize
		if end > len(orgnrs) {
			end = len(orgnrs)
		}
		batch := orgnrs[start:end]
		batchErrs := 0

		for _, orgnr := range batch {
			if err := sem.Acquire(ctx, 1); err != nil {
				allErrs = append(allErrs, DocError{Orgnr: orgnr, Err: err})
				continue
			}
			errs := SyncCompany(ctx, store, provider, orgnr, years, force, currentYear)
			sem.Release(1)

			if room := maxErrorsPerBatch - batchErrs; len(errs) > room {
				errs = errs[:room]
			}
			batchErrs += len(errs)
			allErrs = append(allErrs, errs...)
			if len(allErrs) >= maxErrorsPerRun {
				return allErrs[:maxErrorsPerRun]
			}
		}

		if end < len(orgnrs) {
			select {
			case <-time.After(interBatchPause):
			case <-ctx.Done():
				return allErrs
			}
		}
	}

	return allErrs
}
