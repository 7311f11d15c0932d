// Package providers holds the shared result shape both provider adapters
// (Registry API, Scraper) return to the Orchestrator.
package providers

import "github.com/orgnr/bolagsdata/internal/models"

// PartialRecord is one provider's contribution to a company lookup. Any
// field a provider didn't populate is left at its zero value; list fields
// left nil mean "this provider didn't run this section" (as opposed to an
// empty, non-nil slice, which means "ran and found nothing").
type PartialRecord struct {
	Company       *models.Company
	Roles         []models.Role
	Financials    []models.FinancialPeriod
	Industries    []models.Industry
	Trademarks    []models.Trademark
	Related       []models.RelatedCompany
	Announcements []models.Announcement
}
