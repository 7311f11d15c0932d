// Package orchestrator fans a company lookup out to both provider
// adapters, merges their partial records under a fixed precedence, and
// persists the result through the Store.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orgnr/bolagsdata/internal/models"
	"github.com/orgnr/bolagsdata/internal/providers"
	"github.com/orgnr/bolagsdata/internal/providers/registry"
	"github.com/orgnr/bolagsdata/internal/providers/scraper"
	"github.com/orgnr/bolagsdata/internal/repository"
)

// defaultCacheTTLHours is used when the caller doesn't override it via
// CACHE_TTL_HOURS.
const defaultCacheTTLHours = 24

// Store is the subset of repository.Repository the Orchestrator depends
// on, narrowed to ease substitution in tests.
type Store interface {
	GetCompany(ctx context.Context, orgnr string) (*models.Company, error)
	IsCacheFresh(ctx context.Context, orgnr string, ttlHours int) (bool, error)
	StoreCompanyComplete(ctx context.Context, in repository.StoreCompanyInput) error
}

// Orchestrator coordinates the Registry and Scraper adapters against the
// Store.
type Orchestrator struct {
	store        Store
	registryAPI  *registry.Adapter
	scraperAPI   *scraper.Adapter
	cacheTTLHour int
}

func New(store Store, registryAPI *registry.Adapter, scraperAPI *scraper.Adapter, cacheTTLHours int) *Orchestrator {
	if cacheTTLHours <= 0 {
		cacheTTLHours = defaultCacheTTLHours
	}
	return &Orchestrator{store: store, registryAPI: registryAPI, scraperAPI: scraperAPI, cacheTTLHour: cacheTTLHours}
}

// normalizeOrgnr strips everything but digits, giving the canonical form
// used as the Store's primary key regardless of which provider-specific
// punctuation (hyphens, spaces) the caller supplied.
func normalizeOrgnr(orgnr string) string {
	var b strings.Builder
	for _, r := range orgnr {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GetCompany returns orgnr's consolidated record, serving a fresh cache
// entry directly or re-fetching from both providers otherwise.
// forceRefresh bypasses the cache-freshness check entirely.
func (o *Orchestrator) GetCompany(ctx context.Context, orgnr string, forceRefresh bool) (*models.Company, error) {
	orgnr = normalizeOrgnr(orgnr)
	if orgnr == "" {
		return nil, fmt.Errorf("orchestrator: empty orgnr")
	}

	if !forceRefresh {
		fresh, err := o.store.IsCacheFresh(ctx, orgnr, o.cacheTTLHour)
		if err != nil {
			return nil, err
		}
		if fresh {
			existing, err := o.store.GetCompany(ctx, orgnr)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				existing.FromCache = true
				return existing, nil
			}
		}
	}

	existing, err := o.store.GetCompany(ctx, orgnr)
	if err != nil {
		return nil, err
	}

	// A failing provider is logged and treated as having found nothing, so
	// the other provider's record is still merged and stored.
	var registryRecord, scraperRecord *providers.PartialRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := o.registryAPI.GetCompany(gctx, orgnr)
		if err != nil {
			log.Printf("orchestrator: registry fetch %s: %v", orgnr, err)
			return nil
		}
		registryRecord = rec
		return nil
	})
	g.Go(func() error {
		rec, err := o.scraperAPI.GetCompany(gctx, orgnr)
		if err != nil {
			log.Printf("orchestrator: scraper fetch %s: %v", orgnr, err)
			return nil
		}
		scraperRecord = rec
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := merge(orgnr, registryRecord, scraperRecord)
	if merged == nil || merged.Company == nil || merged.Company.Name == "" {
		return nil, nil
	}

	input := repository.StoreCompanyInput{
		Company:       merged.Company,
		Roles:         merged.Roles,
		Financials:    merged.Financials,
		Industries:    merged.Industries,
		Trademarks:    merged.Trademarks,
		Related:       merged.Related,
		Announcements: merged.Announcements,
		SnapshotFirst: existing != nil,
		CacheSource:   "orchestrator",
	}
	if err := o.store.StoreCompanyComplete(ctx, input); err != nil {
		return nil, err
	}

	result, err := o.store.GetCompany(ctx, orgnr)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// merge combines both providers' partial records under a fixed
// precedence: the Registry wins identity fields (name, orgnr, status,
// addresses, industry classification), the Scraper contributes roles,
// financials, and group-structure data. List fields are concatenated,
// never overwritten, so a provider that found nothing doesn't erase what
// the other found.
func merge(orgnr string, reg, scr *providers.PartialRecord) *providers.PartialRecord {
	if reg == nil && scr == nil {
		return nil
	}

	out := &providers.PartialRecord{}
	now := time.Now()

	switch {
	case reg != nil && reg.Company != nil:
		c := *reg.Company
		if scr != nil && scr.Company != nil {
			c.IsGroup = scr.Company.IsGroup
			c.ParentOrgnr = scr.Company.ParentOrgnr
			c.ParentName = scr.Company.ParentName
			c.CompaniesInGroup = scr.Company.CompaniesInGroup
		}
		out.Company = &c
		basic := "registry"
		out.Company.SourceBasic = &basic
	case scr != nil && scr.Company != nil:
		c := *scr.Company
		out.Company = &c
		basic := "scraper"
		out.Company.SourceBasic = &basic
	default:
		return out
	}
	out.Company.Orgnr = orgnr
	out.Company.UpdatedAt = now
	if out.Company.CreatedAt.IsZero() {
		out.Company.CreatedAt = now
	}

	if reg != nil {
		out.Industries = append(out.Industries, reg.Industries...)
		out.Announcements = append(out.Announcements, reg.Announcements...)
	}
	if scr != nil {
		if scr.Roles != nil {
			out.Roles = append([]models.Role{}, scr.Roles...)
		}
		out.Financials = append(out.Financials, scr.Financials...)
		out.Trademarks = append(out.Trademarks, scr.Trademarks...)
		if scr.Related != nil {
			out.Related = append([]models.RelatedCompany{}, scr.Related...)
		}
		if len(scr.Roles) > 0 {
			board := "scraper"
			out.Company.SourceBoard = &board
		}
		if len(scr.Financials) > 0 {
			fin := "scraper"
			out.Company.SourceFinancials = &fin
		}
	}

	return out
}
