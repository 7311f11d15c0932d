package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/orgnr/bolagsdata/internal/models"
)

const maxSearchInputLen = 100

// sanitizeSearchInput applies the Store's fixed cleanup order: truncate to
// at most maxSearchInputLen characters, strip control characters, then
// escape LIKE metacharacters backslash, percent, and underscore — in that
// order, so the escaping itself is never re-mangled by a later step.
func sanitizeSearchInput(s string) string {
	if r := []rune(s); len(r) > maxSearchInputLen {
		s = string(r[:maxSearchInputLen])
	}

	var stripped strings.Builder
	stripped.Grow(len(s))
	for _, r := range s {
		if r == 0x7F || (r >= 0x00 && r <= 0x1F) {
			continue
		}
		stripped.WriteRune(r)
	}

	escaped := stripped.String()
	escaped = strings.ReplaceAll(escaped, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `%`, `\%`)
	escaped = strings.ReplaceAll(escaped, `_`, `\_`)
	return escaped
}

// SearchCompanies performs a contains-match search over company names.
func (r *Repository) SearchCompanies(ctx context.Context, query string, limit int) ([]models.Company, error) {
	pattern := "%" + sanitizeSearchInput(query) + "%"

	rows, err := r.db.Query(ctx, `
		SELECT orgnr, name, COALESCE(status, '')
		FROM app.companies
		WHERE name ILIKE $1 ESCAPE '\'
		ORDER BY name
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: search companies: %w", err)
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.Orgnr, &c.Name, &c.Status); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchCompanyRegistry searches the read-only registry lookup table,
// attempting a prefix match first and falling back to a contains match
// when the prefix match returns nothing.
func (r *Repository) SearchCompanyRegistry(ctx context.Context, query string, limit int) ([]models.RegistryEntry, error) {
	clean := sanitizeSearchInput(query)

	prefixResults, err := r.queryRegistry(ctx, clean+"%", limit)
	if err != nil {
		return nil, err
	}
	if len(prefixResults) > 0 {
		return prefixResults, nil
	}
	return r.queryRegistry(ctx, "%"+clean+"%", limit)
}

func (r *Repository) queryRegistry(ctx context.Context, pattern string, limit int) ([]models.RegistryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT orgnr, name, COALESCE(org_form, '')
		FROM app.company_registry
		WHERE name ILIKE $1 ESCAPE '\'
		ORDER BY name
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: search company registry: %w", err)
	}
	defer rows.Close()

	var out []models.RegistryEntry
	for rows.Next() {
		var e models.RegistryEntry
		if err := rows.Scan(&e.Orgnr, &e.Name, &e.OrgForm); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
