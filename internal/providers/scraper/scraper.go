// Package scraper implements the Scraper adapter: fetches a company's
// summary and group-structure pages, extracts the embedded JSON payload,
// and returns a providers.PartialRecord.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/orgnr/bolagsdata/internal/httpgateway"
	"github.com/orgnr/bolagsdata/internal/models"
	"github.com/orgnr/bolagsdata/internal/providers"
	"github.com/orgnr/bolagsdata/internal/retrypolicy"
)

const source = "scraper"

// Adapter is the HTML-scraping client.
type Adapter struct {
	gateway *httpgateway.Gateway
	baseURL string
	policy  retrypolicy.Policy
}

// New builds a Scraper adapter. baseURL has no trailing slash.
func New(gateway *httpgateway.Gateway, baseURL string, policy retrypolicy.Policy) *Adapter {
	return &Adapter{gateway: gateway, baseURL: strings.TrimRight(baseURL, "/"), policy: policy}
}

// GetCompany fetches the summary and group-structure pages for orgnr in
// parallel, merges their payloads, and returns a PartialRecord. Returns
// (nil, nil) if the summary page is not found.
func (a *Adapter) GetCompany(ctx context.Context, orgnr string) (*providers.PartialRecord, error) {
	var summaryHTML, groupHTML string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		html, err := a.fetchPage(gctx, "/"+orgnr)
		if errors.Is(err, httpgateway.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		summaryHTML = html
		return nil
	})
	g.Go(func() error {
		html, err := a.fetchPage(gctx, "/"+orgnr+"/organisation")
		if errors.Is(err, httpgateway.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		groupHTML = html
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scraper: get company %s: %w", orgnr, err)
	}
	if summaryHTML == "" {
		return nil, nil
	}

	summary, err := extractEmbeddedJSON(summaryHTML)
	if err != nil {
		return nil, fmt.Errorf("scraper: extract summary payload %s: %w", orgnr, err)
	}
	if summary == nil {
		return nil, nil
	}

	var group *pageProps
	if groupHTML != "" {
		group, err = extractEmbeddedJSON(groupHTML)
		if err != nil {
			group = nil // group page is supplementary; a bad payload there doesn't fail the lookup
		}
	}

	return toPartialRecord(orgnr, summary, group), nil
}

// Search queries /sok?q=… and returns up to limit summary entries.
func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]providers.PartialRecord, error) {
	html, err := a.fetchPage(ctx, "/sok?q="+strings.TrimSpace(query))
	if err != nil {
		return nil, fmt.Errorf("scraper: search %q: %w", query, err)
	}

	payload, err := extractEmbeddedJSON(html)
	if err != nil || payload == nil {
		return nil, err
	}

	var results []providers.PartialRecord
	for i, hit := range payload.SearchResults {
		if i >= limit {
			break
		}
		results = append(results, providers.PartialRecord{
			Company: &models.Company{Orgnr: hit.Orgnr, Name: hit.Name},
		})
	}
	return results, nil
}

func (a *Adapter) fetchPage(ctx context.Context, path string) (string, error) {
	resp, err := a.gateway.Do(ctx, httpgateway.Request{
		Source: source,
		Method: http.MethodGet,
		URL:    a.baseURL + path,
		Policy: a.policy,
	})
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

