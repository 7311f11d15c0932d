// Command ingestd is the ingestion engine's entry point: it wires the
// Rate Limiter, Circuit Breaker registry, HTTP Gateway, Token Manager,
// both provider adapters, the Store, the Orchestrator, the batch
// scheduler, and the internal status surface, then runs until SIGINT or
// SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/orgnr/bolagsdata/internal/batchsync"
	"github.com/orgnr/bolagsdata/internal/breaker"
	"github.com/orgnr/bolagsdata/internal/config"
	"github.com/orgnr/bolagsdata/internal/httpgateway"
	"github.com/orgnr/bolagsdata/internal/httpstatus"
	"github.com/orgnr/bolagsdata/internal/oauth2token"
	"github.com/orgnr/bolagsdata/internal/orchestrator"
	"github.com/orgnr/bolagsdata/internal/providers/registry"
	"github.com/orgnr/bolagsdata/internal/providers/scraper"
	"github.com/orgnr/bolagsdata/internal/ratelimit"
	"github.com/orgnr/bolagsdata/internal/repository"
	"github.com/orgnr/bolagsdata/internal/retrypolicy"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config overlay")
	syncYears := flag.Int("sync-years", 3, "how many fiscal years back SyncAllTrackedCompanies covers")
	syncIntervalMin := flag.Int("sync-interval-minutes", 60, "minutes between SyncAllTrackedCompanies runs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := repository.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("repository: connect: %v", err)
	}
	defer repo.Close()

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.CircuitFailureThresh,
		RecoveryTimeout:  cfg.CircuitRecovery,
		SuccessThreshold: 2,
	})

	limiter := ratelimit.New(ratelimit.PerDomain(perDomainIntervals(cfg), cfg.RegistryRateInterval))
	gateway := httpgateway.New(breakers, limiter, cfg.ConnectTimeout, cfg.RequestTimeout)

	defaultPolicy := retrypolicy.Policy{
		Base:       cfg.RetryBackoffBase,
		Multiplier: 2.0,
		Cap:        cfg.RetryBackoffMax,
		MaxRetries: cfg.MaxRetries,
		Jitter:     cfg.RetryJitter,
	}

	tokens := oauth2token.New(cfg.RegistryTokenEndpoint, cfg.RegistryClientID, cfg.RegistryClientSecret, cfg.RegistryScope)
	registryAPI := registry.New(gateway, tokens, cfg.RegistryBaseURL, defaultPolicy)
	scraperAPI := scraper.New(gateway, cfg.ScraperBaseURL, defaultPolicy)

	orch := orchestrator.New(repo, registryAPI, scraperAPI, cfg.CacheTTLHours)

	syncTracker := httpstatus.NewSyncTracker()
	statusServer := httpstatus.New(":"+cfg.StatusPort, breakers, syncTracker)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("status surface listening on :%s", cfg.StatusPort)
		if err := statusServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("status surface: %v", err)
		}
	}()

	wg.Add(1)
	go runSyncLoop(ctx, &wg, repo, registryAPI, orch, syncTracker, *syncYears, *syncIntervalMin, cfg.BatchParallelWorkers)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("status surface shutdown: %v", err)
	}
	cancel()
	wg.Wait()
}

// runSyncLoop drives the Orchestrator's enrichment pass followed by
// SyncAllTrackedCompanies's XBRL pass on a fixed interval until ctx is
// cancelled, recording each pass's outcome on the status surface.
func runSyncLoop(ctx context.Context, wg *sync.WaitGroup, repo *repository.Repository, provider *registry.Adapter, orch *orchestrator.Orchestrator, tracker *httpstatus.SyncTracker, years, intervalMin, parallelWorkers int) {
	defer wg.Done()

	currentYear := func() int {
		return time.Now().Year()
	}

	runEnrich := func() {
		orgnrs, err := repo.ListTrackedOrgnrs(ctx)
		if err != nil {
			log.Printf("batchsync: list tracked orgnrs: %v", err)
			tracker.RecordSync("company_enrich", err)
			return
		}

		var lastErr error
		var failed int
		batchsync.EnrichBatch(ctx, orch, orgnrs, parallelWorkers, false, func(r batchsync.EnrichResult) {
			if r.Err != nil {
				failed++
				lastErr = r.Err
			}
		})
		if failed > 0 {
			log.Printf("batchsync: enrich pass completed with %d failure(s), last: %v", failed, lastErr)
		}
		tracker.RecordSync("company_enrich", lastErr)
	}

	runSync := func() {
		errs := batchsync.SyncAllTrackedCompanies(ctx, repo, provider, years, parallelWorkers, false, currentYear())
		var last error
		if len(errs) > 0 {
			last = errs[len(errs)-1].Err
			log.Printf("batchsync: run completed with %d error(s), last: %v", len(errs), last)
		}
		tracker.RecordSync("xbrl_sync", last)
	}

	runOnce := func() {
		runEnrich()
		runSync()
	}

	runOnce()

	ticker := time.NewTicker(time.Duration(intervalMin) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// perDomainIntervals maps each configured upstream's hostname to its
// dedicated rate-limit interval, so the shared Limiter paces the Registry
// API and the Scraper independently even though they share one Gateway.
// XBRL document listing and download calls go to the Registry host, so
// they share its bucket and interval; cfg.XBRLDocRateInterval is not used.
func perDomainIntervals(cfg *config.Config) map[string]time.Duration {
	intervals := map[string]time.Duration{}
	if host := hostOf(cfg.RegistryBaseURL); host != "" {
		intervals[host] = cfg.RegistryRateInterval
	}
	if host := hostOf(cfg.ScraperBaseURL); host != "" {
		intervals[host] = cfg.ScraperRateInterval
	}
	return intervals
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
