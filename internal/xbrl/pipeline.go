package xbrl

import (
	"math"

	"github.com/orgnr/bolagsdata/internal/models"
)

// Result is everything the pipeline extracted from one annual-report
// archive, ready for Store.StoreAnnualReport.
type Result struct {
	Facts      []models.XBRLFact
	Financials []models.FinancialPeriod
	Audit      *models.AuditHistory
	Board      []models.BoardHistory
}

// Process runs the full pipeline over one downloaded archive: ZIP
// extraction, encoding fallback, iXBRL parsing, and field mapping into
// the canonical shapes stored against orgnr/fiscalYear.
func Process(zipData []byte, orgnr string, fiscalYear int) (*Result, error) {
	doc, err := ExtractDocument(zipData)
	if err != nil {
		return nil, err
	}

	text, _ := decodeDocument(doc)

	parsed, err := Parse([]byte(text))
	if err != nil {
		return nil, err
	}

	return mapFacts(parsed, orgnr, fiscalYear), nil
}

func mapFacts(parsed *ParseResult, orgnr string, fiscalYear int) *Result {
	result := &Result{}
	periods := make(map[periodKey]*models.FinancialPeriod)
	boardPercentages := make(map[string]float64)
	audit := &models.AuditHistory{Orgnr: orgnr, FiscalYear: fiscalYear}
	sawAuditFact := false

	for _, f := range parsed.Facts {
		ctx, ok := parsed.Contexts[f.ContextRef]
		periodType := models.PeriodUnknown
		if ok {
			periodType = resolvePeriod(ctx, fiscalYear)
		}

		fact := models.XBRLFact{
			Orgnr:        orgnr,
			XBRLName:     f.Name,
			Namespace:    f.Namespace,
			LocalName:    f.LocalName,
			ContextRef:   f.ContextRef,
			PeriodType:   periodType,
			ValueNumeric: f.ValueNumeric,
			ValueText:    f.ValueText,
			UnitRef:      f.UnitRef,
			Decimals:     f.Decimals,
			Scale:        f.Scale,
			Category:     categoryFor(f),
			Availability: availabilityForFact(f.Name, f.Namespace),
			RawValue:     f.RawValue,
		}
		result.Facts = append(result.Facts, fact)

		if f.Namespace == auditNamespace {
			applyAuditFact(audit, f)
			sawAuditFact = true
			continue
		}

		if isBoardDistributionFact(f) && f.ValueNumeric != nil {
			boardPercentages[f.LocalName] = *f.ValueNumeric
			continue
		}

		periodYear, isConsolidated := periodToYear(periodType, fiscalYear, f.Namespace)
		if periodYear == 0 {
			continue
		}
		field, ok := conceptMapping[f.Name]
		if !ok || f.ValueNumeric == nil {
			continue
		}

		key := periodKey{year: periodYear, consolidated: isConsolidated}
		p, exists := periods[key]
		if !exists {
			p = &models.FinancialPeriod{
				Orgnr:          orgnr,
				PeriodYear:     periodYear,
				IsConsolidated: isConsolidated,
				Source:         "xbrl",
			}
			periods[key] = p
		}
		applyCanonicalField(p, field, *f.ValueNumeric)
	}

	for _, p := range periods {
		result.Financials = append(result.Financials, *p)
	}

	if sawAuditFact {
		result.Audit = audit
	}
	for dimension, pct := range boardPercentages {
		result.Board = append(result.Board, models.BoardHistory{
			Orgnr:      orgnr,
			FiscalYear: fiscalYear,
			Dimension:  "styrelse",
			Category:   dimension,
			Percentage: pct,
		})
	}

	return result
}

type periodKey struct {
	year         int
	consolidated bool
}

// periodToYear converts a PeriodType relative to fiscalYear into an
// absolute calendar year. isConsolidated is derived from the namespace:
// se-bol-base facts are parent-company-only (unconsolidated); everything
// else defaults to consolidated, matching how Swedish group filings tag
// their base taxonomy.
func periodToYear(pt models.PeriodType, fiscalYear int, namespace string) (year int, isConsolidated bool) {
	isConsolidated = namespace != "se-bol-base"
	switch pt {
	case models.PeriodCurrent:
		return fiscalYear, isConsolidated
	case models.PeriodPrevious:
		return fiscalYear - 1, isConsolidated
	case models.PeriodTwoYears:
		return fiscalYear - 2, isConsolidated
	case models.PeriodThreeYear:
		return fiscalYear - 3, isConsolidated
	default:
		return 0, isConsolidated
	}
}

// applyCanonicalField writes a cleaned value into its FinancialPeriod
// column, rounding to the nearest integer as required for all monetary
// and count fields; employee count stores as int rather than int64.
func applyCanonicalField(p *models.FinancialPeriod, field canonicalField, value float64) {
	rounded := int64(math.Round(value))
	switch field {
	case fieldRevenue:
		p.Revenue = &rounded
	case fieldOperatingResult:
		p.OperatingResult = &rounded
	case fieldNetProfit:
		p.NetProfit = &rounded
	case fieldTotalAssets:
		p.TotalAssets = &rounded
	case fieldTotalEquity:
		p.TotalEquity = &rounded
	case fieldEmployeeCount:
		count := int(rounded)
		p.EmployeeCount = &count
	}
}

func applyAuditFact(audit *models.AuditHistory, f Fact) {
	if f.ValueText == nil {
		return
	}
	switch f.LocalName {
	case "RevisorsFornamn":
		audit.FirstName = *f.ValueText
	case "RevisorsEfternamn":
		audit.LastName = *f.ValueText
	case "RevisionsbolagNamn":
		audit.Firm = *f.ValueText
	case "RevisionsberattelseTillstyrkerEjAnsvarsfrihet",
		"RevisionsberattelseTillstyrkerFastsallandeAvResultatrakning",
		"RevisionsberattelseUttalande":
		audit.Opinion = *f.ValueText
	}
}
