// Package repository implements the Store: persistence of canonical
// company records, their related entities, history snapshots, cache
// metadata, and XBRL annual-report facts, on top of PostgreSQL via pgx.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/orgnr/bolagsdata/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Store. It wraps a connection pool; all methods are
// safe for concurrent use.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository opens a pool against dbURL. Pool sizing can be overridden
// via DB_MAX_OPEN_CONNS / DB_MAX_IDLE_CONNS for operators tuning a
// specific deployment; both are optional.
func NewRepository(ctx context.Context, dbURL string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("repository: parse db url: %w", err)
	}

	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConns = int32(n)
		}
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinConns = int32(n)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("repository: connect: %w", err)
	}
	return &Repository{db: pool}, nil
}

// Migrate applies the schema script at schemaPath. The script is written
// to be idempotent (CREATE TABLE IF NOT EXISTS, …) so this is safe to run
// on every startup.
func (r *Repository) Migrate(ctx context.Context, schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("repository: read schema: %w", err)
	}
	if _, err := r.db.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("repository: apply schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (r *Repository) Close() {
	r.db.Close()
}

// GetCompany loads the Company row for orgnr. It returns (nil, nil) if
// no row exists.
func (r *Repository) GetCompany(ctx context.Context, orgnr string) (*models.Company, error) {
	return r.getCompany(ctx, r.db, orgnr)
}

func (r *Repository) getCompany(ctx context.Context, q queryer, orgnr string) (*models.Company, error) {
	var c models.Company
	err := q.QueryRow(ctx, `
		SELECT
			orgnr, name, COALESCE(company_type, ''), COALESCE(status, ''),
			COALESCE(postal_address, ''), COALESCE(postal_city, ''), COALESCE(postal_zip, ''),
			COALESCE(visiting_address, ''), COALESCE(visiting_city, ''), COALESCE(visiting_zip, ''),
			COALESCE(phone, ''), COALESCE(email, ''), COALESCE(website, ''),
			COALESCE(municipality, ''), COALESCE(county, ''), COALESCE(lei_code, ''),
			share_capital, is_group, COALESCE(parent_orgnr, ''), COALESCE(parent_name, ''),
			COALESCE(companies_in_group, 0),
			source_basic, source_board, source_financials,
			created_at, updated_at
		FROM app.companies
		WHERE orgnr = $1
	`, orgnr).Scan(
		&c.Orgnr, &c.Name, &c.CompanyType, &c.Status,
		&c.PostalAddress, &c.PostalCity, &c.PostalZip,
		&c.VisitingAddress, &c.VisitingCity, &c.VisitingZip,
		&c.Phone, &c.Email, &c.Website,
		&c.Municipality, &c.County, &c.LEICode,
		&c.ShareCapital, &c.IsGroup, &c.ParentOrgnr, &c.ParentName,
		&c.CompaniesInGroup,
		&c.SourceBasic, &c.SourceBoard, &c.SourceFinancials,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get company %s: %w", orgnr, err)
	}
	return &c, nil
}

func (r *Repository) upsertCompany(ctx context.Context, q queryer, c *models.Company) error {
	_, err := q.Exec(ctx, `
		INSERT INTO app.companies (
			orgnr, name, company_type, status,
			postal_address, postal_city, postal_zip,
			visiting_address, visiting_city, visiting_zip,
			phone, email, website, municipality, county, lei_code,
			share_capital, is_group, parent_orgnr, parent_name, companies_in_group,
			source_basic, source_board, source_financials,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, now(), now()
		)
		ON CONFLICT (orgnr) DO UPDATE SET
			name = EXCLUDED.name,
			company_type = EXCLUDED.company_type,
			status = EXCLUDED.status,
			postal_address = EXCLUDED.postal_address,
			postal_city = EXCLUDED.postal_city,
			postal_zip = EXCLUDED.postal_zip,
			visiting_address = EXCLUDED.visiting_address,
			visiting_city = EXCLUDED.visiting_city,
			visiting_zip = EXCLUDED.visiting_zip,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			website = EXCLUDED.website,
			municipality = EXCLUDED.municipality,
			county = EXCLUDED.county,
			lei_code = EXCLUDED.lei_code,
			share_capital = EXCLUDED.share_capital,
			is_group = EXCLUDED.is_group,
			parent_orgnr = EXCLUDED.parent_orgnr,
			parent_name = EXCLUDED.parent_name,
			companies_in_group = EXCLUDED.companies_in_group,
			source_basic = EXCLUDED.source_basic,
			source_board = EXCLUDED.source_board,
			source_financials = EXCLUDED.source_financials,
			updated_at = now()
	`,
		c.Orgnr, c.Name, nullIfEmpty(c.CompanyType), nullIfEmpty(string(c.Status)),
		nullIfEmpty(c.PostalAddress), nullIfEmpty(c.PostalCity), nullIfEmpty(c.PostalZip),
		nullIfEmpty(c.VisitingAddress), nullIfEmpty(c.VisitingCity), nullIfEmpty(c.VisitingZip),
		nullIfEmpty(c.Phone), nullIfEmpty(c.Email), nullIfEmpty(c.Website),
		nullIfEmpty(c.Municipality), nullIfEmpty(c.County), nullIfEmpty(c.LEICode),
		c.ShareCapital, c.IsGroup, nullIfEmpty(c.ParentOrgnr), nullIfEmpty(c.ParentName), c.CompaniesInGroup,
		c.SourceBasic, c.SourceBoard, c.SourceFinancials,
	)
	if err != nil {
		return fmt.Errorf("repository: upsert company %s: %w", c.Orgnr, err)
	}
	return nil
}

// snapshotCompany inserts a CompanyHistorySnapshot and a RolesHistorySnapshot
// row holding the full prior state, before any mutation is applied. It is a
// no-op if the company does not yet exist.
func (r *Repository) snapshotCompany(ctx context.Context, tx pgx.Tx, orgnr string) error {
	existing, err := r.getCompany(ctx, tx, orgnr)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	companyJSON, err := marshalJSON(existing)
	if err != nil {
		return fmt.Errorf("repository: marshal company snapshot: %w", err)
	}
	roles, err := r.listRoles(ctx, tx, orgnr)
	if err != nil {
		return err
	}
	rolesJSON, err := marshalJSON(roles)
	if err != nil {
		return fmt.Errorf("repository: marshal roles snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO app.company_history (orgnr, snapshot, snapshot_date)
		VALUES ($1, $2, now())
	`, orgnr, companyJSON); err != nil {
		return fmt.Errorf("repository: snapshot company %s: %w", orgnr, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO app.roles_history (orgnr, snapshot, snapshot_date)
		VALUES ($1, $2, now())
	`, orgnr, rolesJSON); err != nil {
		return fmt.Errorf("repository: snapshot roles %s: %w", orgnr, err)
	}
	return nil
}

// StoreCompanyComplete is the Store's composite write path, run inside a
// single transaction: snapshot the prior state, upsert the Company row,
// clear-and-replace every provided child list, then touch cache metadata.
// Nil list arguments are left untouched (the caller did not run that
// provider's section); a non-nil-but-empty Roles slice still triggers a
// clear, per the adapter's explicit "no roles found" signal.
func (r *Repository) StoreCompanyComplete(ctx context.Context, in StoreCompanyInput) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if in.SnapshotFirst {
		if err := r.snapshotCompany(ctx, tx, in.Company.Orgnr); err != nil {
			return err
		}
	}

	if err := r.upsertCompany(ctx, tx, in.Company); err != nil {
		return err
	}

	if in.Roles != nil {
		if err := r.replaceRoles(ctx, tx, in.Company.Orgnr, in.Roles); err != nil {
			return err
		}
	}
	if in.Financials != nil {
		if err := r.upsertFinancials(ctx, tx, in.Company.Orgnr, in.Financials); err != nil {
			return err
		}
	}
	if in.Industries != nil {
		if err := r.replaceIndustries(ctx, tx, in.Company.Orgnr, in.Industries); err != nil {
			return err
		}
	}
	if in.Trademarks != nil {
		if err := r.replaceTrademarks(ctx, tx, in.Company.Orgnr, in.Trademarks); err != nil {
			return err
		}
	}
	if in.Related != nil {
		if err := r.replaceRelated(ctx, tx, in.Company.Orgnr, in.Related); err != nil {
			return err
		}
	}
	if in.Announcements != nil {
		if err := r.replaceAnnouncements(ctx, tx, in.Company.Orgnr, in.Announcements); err != nil {
			return err
		}
	}

	if err := r.updateCacheMetadata(ctx, tx, in.Company.Orgnr, in.CacheSource); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: commit store %s: %w", in.Company.Orgnr, err)
	}
	return nil
}

// StoreCompanyInput bundles a company write plus every optionally-provided
// child list for StoreCompanyComplete.
type StoreCompanyInput struct {
	Company       *models.Company
	Roles         []models.Role
	Financials    []models.FinancialPeriod
	Industries    []models.Industry
	Trademarks    []models.Trademark
	Related       []models.RelatedCompany
	Announcements []models.Announcement
	SnapshotFirst bool
	CacheSource   string
}

// IsCacheFresh reports whether orgnr's cache metadata was refreshed within
// ttlHours.
func (r *Repository) IsCacheFresh(ctx context.Context, orgnr string, ttlHours int) (bool, error) {
	var lastRefresh time.Time
	err := r.db.QueryRow(ctx, `
		SELECT last_refresh FROM app.cache_metadata WHERE orgnr = $1
	`, orgnr).Scan(&lastRefresh)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repository: cache freshness %s: %w", orgnr, err)
	}
	return time.Since(lastRefresh) < time.Duration(ttlHours)*time.Hour, nil
}

func (r *Repository) updateCacheMetadata(ctx context.Context, tx pgx.Tx, orgnr, source string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO app.cache_metadata (orgnr, last_refresh, source)
		VALUES ($1, now(), $2)
		ON CONFLICT (orgnr) DO UPDATE SET last_refresh = now(), source = EXCLUDED.source
	`, orgnr, nullIfEmpty(source))
	if err != nil {
		return fmt.Errorf("repository: touch cache metadata %s: %w", orgnr, err)
	}
	return nil
}

// ListTrackedOrgnrs returns every orgnr the Store has a Company row for,
// used by Batch Sync to drive syncAllTrackedCompanies.
func (r *Repository) ListTrackedOrgnrs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT orgnr FROM app.companies ORDER BY orgnr`)
	if err != nil {
		return nil, fmt.Errorf("repository: list tracked orgnrs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var orgnr string
		if err := rows.Scan(&orgnr); err != nil {
			return nil, err
		}
		out = append(out, orgnr)
	}
	return out, rows.Err()
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting read
// helpers run either standalone or inside a snapshot transaction.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
