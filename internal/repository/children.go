package repository

import (
	"context"
	"fmt"

	"github.com/orgnr/bolagsdata/internal/models"

	"github.com/jackc/pgx/v5"
)

func (r *Repository) listRoles(ctx context.Context, q queryer, orgnr string) ([]models.Role, error) {
	rows, err := q.Query(ctx, `
		SELECT company_orgnr, name, birth_year, role_type, role_category, source
		FROM app.roles WHERE company_orgnr = $1 ORDER BY name
	`, orgnr)
	if err != nil {
		return nil, fmt.Errorf("repository: list roles %s: %w", orgnr, err)
	}
	defer rows.Close()

	var out []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.CompanyOrgnr, &role.Name, &role.BirthYear, &role.RoleType, &role.RoleCategory, &role.Source); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// replaceRoles clears-and-reinserts app.roles for orgnr. Per the Open
// Questions resolution, the caller is responsible for only passing a
// non-nil slice when the adapter actually ran its roles section — a nil
// slice must never reach here (StoreCompanyComplete already guards on nil,
// but an explicitly empty, non-nil slice here still clears the table).
func (r *Repository) replaceRoles(ctx context.Context, tx pgx.Tx, orgnr string, roles []models.Role) error {
	if _, err := tx.Exec(ctx, `DELETE FROM app.roles WHERE company_orgnr = $1`, orgnr); err != nil {
		return fmt.Errorf("repository: clear roles %s: %w", orgnr, err)
	}
	for _, role := range roles {
		_, err := tx.Exec(ctx, `
			INSERT INTO app.roles (company_orgnr, name, birth_year, role_type, role_category, source)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orgnr, role.Name, role.BirthYear, role.RoleType, role.RoleCategory, role.Source)
		if err != nil {
			return fmt.Errorf("repository: insert role %s/%s: %w", orgnr, role.Name, err)
		}
	}
	return nil
}

func (r *Repository) replaceIndustries(ctx context.Context, tx pgx.Tx, orgnr string, industries []models.Industry) error {
	if _, err := tx.Exec(ctx, `DELETE FROM app.industries WHERE orgnr = $1`, orgnr); err != nil {
		return fmt.Errorf("repository: clear industries %s: %w", orgnr, err)
	}
	for _, ind := range industries {
		_, err := tx.Exec(ctx, `
			INSERT INTO app.industries (orgnr, sni_code, sni_description, is_primary)
			VALUES ($1, $2, $3, $4)
		`, orgnr, ind.SNICode, nullIfEmpty(ind.SNIDescription), ind.IsPrimary)
		if err != nil {
			return fmt.Errorf("repository: insert industry %s/%s: %w", orgnr, ind.SNICode, err)
		}
	}
	return nil
}

func (r *Repository) replaceTrademarks(ctx context.Context, tx pgx.Tx, orgnr string, trademarks []models.Trademark) error {
	if _, err := tx.Exec(ctx, `DELETE FROM app.trademarks WHERE orgnr = $1`, orgnr); err != nil {
		return fmt.Errorf("repository: clear trademarks %s: %w", orgnr, err)
	}
	for _, tm := range trademarks {
		_, err := tx.Exec(ctx, `
			INSERT INTO app.trademarks (orgnr, name, registration_no, registered_at, status)
			VALUES ($1, $2, $3, $4, $5)
		`, orgnr, tm.Name, nullIfEmpty(tm.RegistrationNo), tm.RegisteredAt, nullIfEmpty(tm.Status))
		if err != nil {
			return fmt.Errorf("repository: insert trademark %s/%s: %w", orgnr, tm.Name, err)
		}
	}
	return nil
}

func (r *Repository) replaceRelated(ctx context.Context, tx pgx.Tx, orgnr string, related []models.RelatedCompany) error {
	if _, err := tx.Exec(ctx, `DELETE FROM app.related_companies WHERE orgnr = $1`, orgnr); err != nil {
		return fmt.Errorf("repository: clear related companies %s: %w", orgnr, err)
	}
	for _, rel := range related {
		_, err := tx.Exec(ctx, `
			INSERT INTO app.related_companies (orgnr, related_orgnr, related_name, relationship)
			VALUES ($1, $2, $3, $4)
		`, orgnr, rel.RelatedOrgnr, rel.RelatedName, nullIfEmpty(rel.Relationship))
		if err != nil {
			return fmt.Errorf("repository: insert related company %s/%s: %w", orgnr, rel.RelatedOrgnr, err)
		}
	}
	return nil
}

func (r *Repository) replaceAnnouncements(ctx context.Context, tx pgx.Tx, orgnr string, announcements []models.Announcement) error {
	if _, err := tx.Exec(ctx, `DELETE FROM app.announcements WHERE orgnr = $1`, orgnr); err != nil {
		return fmt.Errorf("repository: clear announcements %s: %w", orgnr, err)
	}
	for _, a := range announcements {
		_, err := tx.Exec(ctx, `
			INSERT INTO app.announcements (orgnr, title, body, published_at, source)
			VALUES ($1, $2, $3, $4, $5)
		`, orgnr, a.Title, nullIfEmpty(a.Body), a.PublishedAt, a.Source)
		if err != nil {
			return fmt.Errorf("repository: insert announcement %s/%s: %w", orgnr, a.Title, err)
		}
	}
	return nil
}
