package repository

import (
	"context"
	"fmt"

	"github.com/orgnr/bolagsdata/internal/models"

	"github.com/jackc/pgx/v5"
)

// upsertFinancials upserts each period keyed by (orgnr, period_year,
// is_consolidated, source) — per the merge-race resolution, both
// providers' rows are kept side by side rather than one overwriting the
// other. Duplicate keys within the input itself are deduplicated,
// last-one-wins.
func (r *Repository) upsertFinancials(ctx context.Context, tx pgx.Tx, orgnr string, periods []models.FinancialPeriod) error {
	type key struct {
		year           int
		isConsolidated bool
		source         string
	}
	deduped := make(map[key]models.FinancialPeriod, len(periods))
	order := make([]key, 0, len(periods))
	for _, p := range periods {
		k := key{p.PeriodYear, p.IsConsolidated, p.Source}
		if _, seen := deduped[k]; !seen {
			order = append(order, k)
		}
		deduped[k] = p
	}

	for _, k := range order {
		p := deduped[k]
		_, err := tx.Exec(ctx, `
			INSERT INTO app.financial_periods (
				orgnr, period_year, is_consolidated, source,
				revenue, operating_result, net_profit, total_assets, total_equity,
				key_ratios, employee_count, source_annual_report_id, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
			ON CONFLICT (orgnr, period_year, is_consolidated, source) DO UPDATE SET
				revenue = EXCLUDED.revenue,
				operating_result = EXCLUDED.operating_result,
				net_profit = EXCLUDED.net_profit,
				total_assets = EXCLUDED.total_assets,
				total_equity = EXCLUDED.total_equity,
				key_ratios = EXCLUDED.key_ratios,
				employee_count = EXCLUDED.employee_count,
				source_annual_report_id = EXCLUDED.source_annual_report_id,
				updated_at = now()
		`,
			orgnr, p.PeriodYear, p.IsConsolidated, p.Source,
			p.Revenue, p.OperatingResult, p.NetProfit, p.TotalAssets, p.TotalEquity,
			keyRatiosJSON(p.KeyRatios), p.EmployeeCount, p.SourceAnnualReportID,
		)
		if err != nil {
			return fmt.Errorf("repository: upsert financial period %s/%d: %w", orgnr, p.PeriodYear, err)
		}
	}
	return nil
}

// GetFinancials returns one row per (period_year, is_consolidated),
// preferring the most-recently-updated source row when more than one
// provider has written that period.
func (r *Repository) GetFinancials(ctx context.Context, orgnr string) ([]models.FinancialPeriod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (period_year, is_consolidated)
			orgnr, period_year, is_consolidated, source,
			revenue, operating_result, net_profit, total_assets, total_equity,
			key_ratios, employee_count, source_annual_report_id
		FROM app.financial_periods
		WHERE orgnr = $1
		ORDER BY period_year DESC, is_consolidated, updated_at DESC
	`, orgnr)
	if err != nil {
		return nil, fmt.Errorf("repository: get financials %s: %w", orgnr, err)
	}
	defer rows.Close()

	var out []models.FinancialPeriod
	for rows.Next() {
		var p models.FinancialPeriod
		var ratios []byte
		if err := rows.Scan(
			&p.Orgnr, &p.PeriodYear, &p.IsConsolidated, &p.Source,
			&p.Revenue, &p.OperatingResult, &p.NetProfit, &p.TotalAssets, &p.TotalEquity,
			&ratios, &p.EmployeeCount, &p.SourceAnnualReportID,
		); err != nil {
			return nil, err
		}
		p.KeyRatios = parseKeyRatios(ratios)
		out = append(out, p)
	}
	return out, rows.Err()
}

func keyRatiosJSON(ratios map[string]float64) []byte {
	if len(ratios) == 0 {
		return nil
	}
	b, err := marshalJSON(ratios)
	if err != nil {
		return nil
	}
	return b
}

func parseKeyRatios(raw []byte) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]float64
	if err := unmarshalJSON(raw, &out); err != nil {
		return nil
	}
	return out
}
