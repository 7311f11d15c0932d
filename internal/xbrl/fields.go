package xbrl

import (
	"strings"

	"github.com/orgnr/bolagsdata/internal/models"
)

// canonicalField names the FinancialPeriod column a given XBRL concept
// feeds. Concepts absent from conceptMapping feed no column; they are
// kept only as XBRLFact rows.
type canonicalField string

const (
	fieldRevenue         canonicalField = "revenue"
	fieldOperatingResult canonicalField = "operating_result"
	fieldNetProfit       canonicalField = "net_profit"
	fieldTotalAssets     canonicalField = "total_assets"
	fieldTotalEquity     canonicalField = "total_equity"
	fieldEmployeeCount   canonicalField = "employee_count"
	fieldNone            canonicalField = ""
)

// conceptMapping maps a fully-qualified XBRL concept name to the
// FinancialPeriod column it feeds. Its keys are also the fixed core set
// that availabilityForFact classifies as AvailabilityCore.
var conceptMapping = map[string]canonicalField{
	"se-gen-base:Nettoomsattning":        fieldRevenue,
	"se-gen-base:RorelseresultatEfterAvskrivningar": fieldOperatingResult,
	"se-gen-base:AretsResultat":          fieldNetProfit,
	"se-gen-base:Tillgangar":             fieldTotalAssets,
	"se-gen-base:EgetKapital":            fieldTotalEquity,
	"se-gen-base:MedelantaletAnstallda":  fieldEmployeeCount,
}

// namespacePrefixes classifies namespaces by how commonly they appear
// across filers, used to set FactAvailability for a concept outside the
// fixed core set (conceptMapping). Order matters: first match wins.
var namespacePrefixes = []struct {
	prefix       string
	availability models.FactAvailability
}{
	{"se-gen-base", models.AvailabilityCommon},
	{"se-ar-base", models.AvailabilityOptional},
}

// availabilityForFact computes a fact's availability class: the fixed
// core set (concepts in conceptMapping) first, then namespace prefix
// rules, defaulting to extended for anything else.
func availabilityForFact(name, namespace string) models.FactAvailability {
	if _, ok := conceptMapping[name]; ok {
		return models.AvailabilityCore
	}
	for _, np := range namespacePrefixes {
		if strings.EqualFold(np.prefix, namespace) {
			return np.availability
		}
	}
	return models.AvailabilityExtended
}

// categoryPrefixes classifies a namespace into a FactCategory. Checked
// after the concept-specific overrides below.
var categoryPrefixes = map[string]models.FactCategory{
	"se-gen-base": models.CategoryFinancial,
	"se-bol-base": models.CategoryFinancial,
	"se-ar-base":  models.CategoryAudit,
	"se-mem-base": models.CategoryCompany,
}

// conceptCategoryOverrides covers namespaces that are mostly one
// category but carry a handful of concepts belonging to another, e.g.
// se-gen-base's board-composition distribution facts.
var conceptCategoryOverrides = map[string]models.FactCategory{
	"se-gen-base:FordelningKonStyrelse": models.CategoryCompliance,
	"se-gen-base:FordelningAlderStyrelse": models.CategoryCompliance,
}

func categoryFor(f Fact) models.FactCategory {
	if c, ok := conceptCategoryOverrides[f.Name]; ok {
		return c
	}
	if c, ok := categoryPrefixes[f.Namespace]; ok {
		return c
	}
	return models.CategoryOther
}

// auditNamespace identifies se-ar-base:* facts that feed AuditHistory
// rather than being stored as a generic XBRLFact/FinancialPeriod value.
const auditNamespace = "se-ar-base"

// boardDistributionPrefix identifies se-gen-base:Fordelning* concepts
// that feed BoardHistory rows.
const boardDistributionPrefix = "Fordelning"

func isBoardDistributionFact(f Fact) bool {
	return strings.HasPrefix(f.LocalName, boardDistributionPrefix)
}
