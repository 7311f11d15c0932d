package xbrl

import (
	"regexp"
	"time"

	"github.com/orgnr/bolagsdata/internal/models"
)

var contextIDPattern = regexp.MustCompile(`^(period|balans)(\d+)$`)

// classifyContextID maps a context id such as "period0" or "balans2" to
// its PeriodType. Context ids that don't follow the period{N}/balans{N}
// convention (custom ids some filers emit) return PeriodUnknown; callers
// fall back to resolving the period from the context's own date range.
func classifyContextID(id string) models.PeriodType {
	m := contextIDPattern.FindStringSubmatch(id)
	if m == nil {
		return models.PeriodUnknown
	}
	switch m[2] {
	case "0":
		return models.PeriodCurrent
	case "1":
		return models.PeriodPrevious
	case "2":
		return models.PeriodTwoYears
	case "3":
		return models.PeriodThreeYear
	default:
		return models.PeriodUnknown
	}
}

// isInstant reports whether a context defines a point-in-time (balance
// sheet) date rather than a duration.
func (c ContextDefinition) isInstant() bool {
	return c.Instant != ""
}

// resolvePeriod determines the PeriodType for a fact's contextRef,
// preferring the period{N}/balans{N} naming convention and falling back
// to comparing the context's end/instant year against the report's
// fiscal year.
func resolvePeriod(ctx ContextDefinition, fiscalYear int) models.PeriodType {
	if p := classifyContextID(ctx.ID); p != models.PeriodUnknown {
		return p
	}

	dateStr := ctx.End
	if ctx.isInstant() {
		dateStr = ctx.Instant
	}
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return models.PeriodUnknown
	}

	switch fiscalYear - t.Year() {
	case 0:
		return models.PeriodCurrent
	case 1:
		return models.PeriodPrevious
	case 2:
		return models.PeriodTwoYears
	case 3:
		return models.PeriodThreeYear
	default:
		return models.PeriodUnknown
	}
}
