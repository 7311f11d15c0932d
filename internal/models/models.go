// Package models defines the canonical entities persisted by the Store,
// keyed by Swedish organization number (orgnr).
package models

import (
	"encoding/json"
	"time"
)

// CompanyStatus is the normalized operating status of a Company.
type CompanyStatus string

const (
	StatusActive       CompanyStatus = "ACTIVE"
	StatusInactive     CompanyStatus = "INACTIVE"
	StatusDeregistered CompanyStatus = "DEREGISTERED"
	StatusBankruptcy   CompanyStatus = "BANKRUPTCY"
	StatusLiquidation  CompanyStatus = "LIQUIDATION"
)

// RoleCategory buckets a Role's provider-specific role_type into a fixed set.
type RoleCategory string

const (
	RoleCategoryBoard      RoleCategory = "BOARD"
	RoleCategoryManagement RoleCategory = "MANAGEMENT"
	RoleCategoryAuditor    RoleCategory = "AUDITOR"
	RoleCategoryOther      RoleCategory = "OTHER"
)

// ProcessingStatus is the lifecycle state of an AnnualReport.
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingProcessed ProcessingStatus = "processed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// PeriodType is inferred from an XBRL context identifier.
type PeriodType string

const (
	PeriodCurrent   PeriodType = "current"
	PeriodPrevious  PeriodType = "previous"
	PeriodTwoYears  PeriodType = "two_years"
	PeriodThreeYear PeriodType = "three_years"
	PeriodUnknown   PeriodType = "unknown"
)

// FactCategory classifies an XBRLFact by subject matter.
type FactCategory string

const (
	CategoryFinancial  FactCategory = "financial"
	CategoryAudit      FactCategory = "audit"
	CategoryCompany    FactCategory = "company"
	CategoryCompliance FactCategory = "compliance"
	CategoryLegal      FactCategory = "legal"
	CategoryMisc       FactCategory = "misc"
	CategoryOther      FactCategory = "other"
)

// FactAvailability classifies how broadly an XBRL namespace is used.
type FactAvailability string

const (
	AvailabilityCore     FactAvailability = "core"
	AvailabilityCommon   FactAvailability = "common"
	AvailabilityExtended FactAvailability = "extended"
	AvailabilityOptional FactAvailability = "optional"
)

// Company is the canonical identity record for one orgnr.
type Company struct {
	Orgnr            string        `json:"orgnr"`
	Name             string        `json:"name"`
	CompanyType      string        `json:"company_type,omitempty"`
	Status           CompanyStatus `json:"status,omitempty"`
	PostalAddress    string        `json:"postal_address,omitempty"`
	PostalCity       string        `json:"postal_city,omitempty"`
	PostalZip        string        `json:"postal_zip,omitempty"`
	VisitingAddress  string        `json:"visiting_address,omitempty"`
	VisitingCity     string        `json:"visiting_city,omitempty"`
	VisitingZip      string        `json:"visiting_zip,omitempty"`
	Phone            string        `json:"phone,omitempty"`
	Email            string        `json:"email,omitempty"`
	Website          string        `json:"website,omitempty"`
	Municipality     string        `json:"municipality,omitempty"`
	County           string        `json:"county,omitempty"`
	LEICode          string        `json:"lei_code,omitempty"`
	ShareCapital     *float64      `json:"share_capital,omitempty"`
	IsGroup          bool          `json:"is_group"`
	ParentOrgnr      string        `json:"parent_orgnr,omitempty"`
	ParentName       string        `json:"parent_name,omitempty"`
	CompaniesInGroup int           `json:"companies_in_group,omitempty"`
	SourceBasic      *string       `json:"source_basic,omitempty"`
	SourceBoard      *string       `json:"source_board,omitempty"`
	SourceFinancials *string       `json:"source_financials,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`

	// FromCache is set by the Orchestrator when the record was served
	// directly from a fresh cache entry rather than re-fetched.
	FromCache bool `json:"from_cache,omitempty"`
}

// Role is a person or entity holding a position at a company.
type Role struct {
	CompanyOrgnr string       `json:"company_orgnr"`
	Name         string       `json:"name"`
	BirthYear    *int         `json:"birth_year,omitempty"`
	RoleType     string       `json:"role_type"`
	RoleCategory RoleCategory `json:"role_category"`
	Source       string       `json:"source"`
}

// FinancialPeriod is one (orgnr, period_year, is_consolidated) row.
type FinancialPeriod struct {
	Orgnr                string             `json:"orgnr"`
	PeriodYear           int                `json:"period_year"`
	IsConsolidated       bool               `json:"is_consolidated"`
	Revenue              *int64             `json:"revenue,omitempty"`
	OperatingResult      *int64             `json:"operating_result,omitempty"`
	NetProfit            *int64             `json:"net_profit,omitempty"`
	TotalAssets          *int64             `json:"total_assets,omitempty"`
	TotalEquity          *int64             `json:"total_equity,omitempty"`
	KeyRatios            map[string]float64 `json:"key_ratios,omitempty"`
	EmployeeCount        *int               `json:"employee_count,omitempty"`
	Source               string             `json:"source"`
	SourceAnnualReportID *int64             `json:"source_annual_report_id,omitempty"`
}

// Industry is an (orgnr, sni_code) classification row.
type Industry struct {
	Orgnr          string `json:"orgnr"`
	SNICode        string `json:"sni_code"`
	SNIDescription string `json:"sni_description,omitempty"`
	IsPrimary      bool   `json:"is_primary"`
}

// Trademark is cleared-and-replaced on every refresh.
type Trademark struct {
	Orgnr          string     `json:"orgnr"`
	Name           string     `json:"name"`
	RegistrationNo string     `json:"registration_no,omitempty"`
	RegisteredAt   *time.Time `json:"registered_at,omitempty"`
	Status         string     `json:"status,omitempty"`
}

// RelatedCompany is a group-structure link, cleared-and-replaced on refresh.
type RelatedCompany struct {
	Orgnr        string `json:"orgnr"`
	RelatedOrgnr string `json:"related_orgnr"`
	RelatedName  string `json:"related_name"`
	Relationship string `json:"relationship,omitempty"`
}

// Announcement is a legal notice attached to a company, cleared-and-replaced.
type Announcement struct {
	Orgnr       string    `json:"orgnr"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
}

// AnnualReport is one (orgnr, fiscal_year) XBRL annual report.
type AnnualReport struct {
	ID                  int64            `json:"id"`
	Orgnr               string           `json:"orgnr"`
	DocumentID          string           `json:"document_id"`
	FiscalYear          int              `json:"fiscal_year"`
	FiscalYearStart     *time.Time       `json:"fiscal_year_start,omitempty"`
	FiscalYearEnd       *time.Time       `json:"fiscal_year_end,omitempty"`
	TotalFactsExtracted int              `json:"total_facts_extracted"`
	NamespacesUsed      []string         `json:"namespaces_used,omitempty"`
	IsAudited           bool             `json:"is_audited"`
	ProcessingStatus    ProcessingStatus `json:"processing_status"`
	AuditFirstName      string           `json:"audit_first_name,omitempty"`
	AuditLastName       string           `json:"audit_last_name,omitempty"`
	AuditFirm           string           `json:"audit_firm,omitempty"`
	AuditCompletionDate *time.Time       `json:"audit_completion_date,omitempty"`
	AuditOpinion        string           `json:"audit_opinion,omitempty"`
}

// AuditHistory is one historical audit record derived from an AnnualReport's
// se-ar-base:* facts, kept separate from AnnualReport so a company's audit
// trail across fiscal years can be queried without touching the report row.
type AuditHistory struct {
	ID             int64      `json:"id"`
	Orgnr          string     `json:"orgnr"`
	AnnualReportID int64      `json:"annual_report_id"`
	FiscalYear     int        `json:"fiscal_year"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	Firm           string     `json:"firm,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	Opinion        string     `json:"opinion,omitempty"`
}

// BoardHistory is one board-composition percentage derived from an
// AnnualReport's se-gen-base:Fordelning… facts (e.g. gender or age-band
// distribution), one row per dimension/category pair per report.
type BoardHistory struct {
	ID             int64   `json:"id"`
	Orgnr          string  `json:"orgnr"`
	AnnualReportID int64   `json:"annual_report_id"`
	FiscalYear     int     `json:"fiscal_year"`
	Dimension      string  `json:"dimension"`
	Category       string  `json:"category"`
	Percentage     float64 `json:"percentage"`
}

// XBRLFact is one extracted fact, deleted and re-inserted wholesale per report.
type XBRLFact struct {
	AnnualReportID int64            `json:"annual_report_id"`
	Orgnr          string           `json:"orgnr"`
	XBRLName       string           `json:"xbrl_name"`
	Namespace      string           `json:"namespace"`
	LocalName      string           `json:"local_name"`
	ContextRef     string           `json:"context_ref"`
	PeriodType     PeriodType       `json:"period_type"`
	ValueNumeric   *float64         `json:"value_numeric,omitempty"`
	ValueText      *string          `json:"value_text,omitempty"`
	ValueBoolean   *bool            `json:"value_boolean,omitempty"`
	UnitRef        string           `json:"unit_ref,omitempty"`
	Decimals       *int             `json:"decimals,omitempty"`
	Scale          *int             `json:"scale,omitempty"`
	Category       FactCategory     `json:"category"`
	Availability   FactAvailability `json:"availability"`
	RawValue       string           `json:"raw_value,omitempty"`
}

// CompanyHistorySnapshot is an append-only copy of a Company's prior state.
type CompanyHistorySnapshot struct {
	Orgnr        string          `json:"orgnr"`
	Snapshot     json.RawMessage `json:"snapshot"`
	SnapshotDate time.Time       `json:"snapshot_date"`
}

// RolesHistorySnapshot is an append-only copy of a company's prior Roles list.
type RolesHistorySnapshot struct {
	Orgnr        string          `json:"orgnr"`
	Snapshot     json.RawMessage `json:"snapshot"`
	SnapshotDate time.Time       `json:"snapshot_date"`
}

// CacheMetadata tracks freshness per orgnr.
type CacheMetadata struct {
	Orgnr       string    `json:"orgnr"`
	LastRefresh time.Time `json:"last_refresh"`
	Source      string    `json:"source,omitempty"`
}

// RegistryEntry is a read-only name-lookup row, independent of Company.
type RegistryEntry struct {
	Orgnr   string `json:"orgnr"`
	Name    string `json:"name"`
	OrgForm string `json:"org_form,omitempty"`
}
