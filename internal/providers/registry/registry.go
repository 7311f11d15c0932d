// Package registry implements the Registry API adapter: an
// OAuth2/JSON client for the Bolagsverket-style organisation registry,
// returning a providers.PartialRecord per orgnr.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/orgnr/bolagsdata/internal/httpgateway"
	"github.com/orgnr/bolagsdata/internal/models"
	"github.com/orgnr/bolagsdata/internal/oauth2token"
	"github.com/orgnr/bolagsdata/internal/providers"
	"github.com/orgnr/bolagsdata/internal/retrypolicy"
)

const source = "registry_api"

// Adapter is the Registry API client.
type Adapter struct {
	gateway       *httpgateway.Gateway
	tokens        *oauth2token.Manager
	baseURL       string
	defaultPolicy retrypolicy.Policy
}

// New builds a Registry API adapter. baseURL has no trailing slash.
// defaultPolicy governs the generic /organisationer lookup; the stricter
// retrypolicy.XBRLDocuments policy always applies to the listing and
// download endpoints, which are unusually punitive about rate limiting.
func New(gateway *httpgateway.Gateway, tokens *oauth2token.Manager, baseURL string, defaultPolicy retrypolicy.Policy) *Adapter {
	return &Adapter{gateway: gateway, tokens: tokens, baseURL: strings.TrimRight(baseURL, "/"), defaultPolicy: defaultPolicy}
}

// GetCompany fetches one organisation by orgnr. It returns (nil, nil) if
// the registry has no record for orgnr.
func (a *Adapter) GetCompany(ctx context.Context, orgnr string) (*providers.PartialRecord, error) {
	body, err := a.postWithTokenRetry(ctx, "/organisationer", map[string]string{
		"identitetsbeteckning": formatOrgnr(orgnr),
	}, a.defaultPolicy)
	if errors.Is(err, httpgateway.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get company %s: %w", orgnr, err)
	}

	var payload organisationResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("registry: decode organisation %s: %w", orgnr, err)
	}

	return payload.toPartialRecord(orgnr), nil
}

// ListDocuments lists XBRL annual-report document metadata for orgnr,
// reused by the XBRL pipeline since it is the same upstream, token, and
// breaker as GetCompany. Applies the stricter retrypolicy.XBRLDocuments
// 429 backoff, same as DownloadDocument, since both are XBRL endpoints.
func (a *Adapter) ListDocuments(ctx context.Context, orgnr string) ([]DocumentMeta, error) {
	body, err := a.postWithTokenRetry(ctx, "/dokumentlista", map[string]string{
		"identitetsbeteckning": formatOrgnr(orgnr),
	}, retrypolicy.XBRLDocuments)
	if errors.Is(err, httpgateway.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: list documents %s: %w", orgnr, err)
	}

	var payload documentListResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("registry: decode document list %s: %w", orgnr, err)
	}
	return payload.Dokument, nil
}

// zipMagic is the four-byte signature a ZIP archive starts with.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// ErrNotAZip is returned when a downloaded document doesn't carry the
// ZIP magic bytes.
var ErrNotAZip = errors.New("registry: document does not have a zip signature")

// DownloadDocument fetches one annual-report archive by document id. The
// same upstream, token, and breaker as GetCompany/ListDocuments; verifies
// the ZIP magic bytes before returning so a malformed or HTML error page
// is rejected before it reaches the ZIP reader.
func (a *Adapter) DownloadDocument(ctx context.Context, documentID string) ([]byte, error) {
	resp, err := a.getWithTokenRetry(ctx, "/dokument/"+documentID)
	if err != nil {
		return nil, fmt.Errorf("registry: download document %s: %w", documentID, err)
	}
	if !bytes.HasPrefix(resp, zipMagic) {
		return nil, fmt.Errorf("%w: document %s", ErrNotAZip, documentID)
	}
	return resp, nil
}

// postWithTokenRetry POSTs a JSON body with a Bearer token, invalidating
// and retrying exactly once on a 401 per the Token Manager's contract.
func (a *Adapter) postWithTokenRetry(ctx context.Context, path string, body map[string]string, policy retrypolicy.Policy) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("registry: encode request: %w", err)
	}

	resp, err := a.post(ctx, path, payload, policy)
	var statusErr *httpgateway.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		a.tokens.Invalidate()
		resp, err = a.post(ctx, path, payload, policy)
	}
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// getWithTokenRetry mirrors postWithTokenRetry's 401 invalidate-and-retry
// behavior for the document-download GET endpoint.
func (a *Adapter) getWithTokenRetry(ctx context.Context, path string) ([]byte, error) {
	resp, err := a.get(ctx, path)
	var statusErr *httpgateway.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		a.tokens.Invalidate()
		resp, err = a.get(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a *Adapter) get(ctx context.Context, path string) (*httpgateway.Response, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: acquire token: %w", err)
	}

	headers := http.Header{}
	headers.Set("Accept", "application/zip")
	headers.Set("Authorization", "Bearer "+token)

	resp, err := a.gateway.Do(ctx, httpgateway.Request{
		Source:  source,
		Method:  http.MethodGet,
		URL:     a.baseURL + path,
		Headers: headers,
		Policy:  retrypolicy.XBRLDocuments,
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *Adapter) post(ctx context.Context, path string, payload []byte, policy retrypolicy.Policy) (*httpgateway.Response, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: acquire token: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Authorization", "Bearer "+token)

	return a.gateway.Do(ctx, httpgateway.Request{
		Source:  source,
		Method:  http.MethodPost,
		URL:     a.baseURL + path,
		Headers: headers,
		Body:    payload,
		Policy:  policy,
	})
}

// formatOrgnr hyphenates a 10-digit organization number as NNNNNN-NNNN.
// A 12-digit personal-number form is passed through verbatim.
func formatOrgnr(orgnr string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, orgnr)
	if len(digits) == 10 {
		return digits[:6] + "-" + digits[6:]
	}
	return digits
}
