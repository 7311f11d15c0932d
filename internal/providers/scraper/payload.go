package scraper

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/orgnr/bolagsdata/internal/models"
	"github.com/orgnr/bolagsdata/internal/providers"
)

// pageProps is the decode target for the embedded JSON payload, covering
// both the summary and group-structure pages. It is decoded in a single
// json.Unmarshal pass; a field whose JSON shape does not match its Go type
// fails the decode of the whole payload rather than being skipped.
type pageProps struct {
	Company       *companyPayload `json:"company"`
	CompanyOrg    *companyPayload `json:"companyOverview"`
	SearchResults []searchHit     `json:"searchResults"`
}

type companyPayload struct {
	Orgnr             string           `json:"orgnr"`
	Name              string           `json:"namn"`
	CompanyAccounts   []accountPeriod  `json:"companyAccounts"`
	CorporateAccounts []accountPeriod  `json:"corporateAccounts"`
	Roles             *rolesPayload    `json:"roles"`
	Trademarks        []trademarkEntry `json:"trademarks"`
	Dotterbolag       []relatedEntry   `json:"dotterbolag"`
	RelatedCompanies  []relatedEntry   `json:"relatedCompanies"`
	Koncern           bool             `json:"koncern"`
	AntalKoncernbolag *int             `json:"antalKoncernbolag"`
	Moderbolag        *parentEntry     `json:"moderbolag"`
}

// parentEntry is the group page's parent-company reference (moderbolag).
type parentEntry struct {
	Orgnr string `json:"orgnr"`
	Name  string `json:"namn"`
}

type accountPeriod struct {
	Year    string          `json:"year"`
	Length  string          `json:"length"`
	Accounts []accountEntry `json:"accounts"`
}

type accountEntry struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
}

type rolesPayload struct {
	RoleGroups []roleGroup `json:"roleGroups"`
}

type roleGroup struct {
	Name  string      `json:"name"`
	Roles []roleEntry `json:"roles"`
}

type roleEntry struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Role      string `json:"role"`
	BirthDate string `json:"birthDate"`
}

type trademarkEntry struct {
	Name           string `json:"name"`
	RegistrationNo string `json:"registrationNumber"`
	Status         string `json:"status"`
}

type relatedEntry struct {
	Orgnr        string `json:"orgnr"`
	Name         string `json:"namn"`
	Relationship string `json:"relationship"`
}

type searchHit struct {
	Orgnr string `json:"orgnr"`
	Name  string `json:"namn"`
}

var errNoEmbeddedPayload = errors.New("scraper: no embedded JSON payload found")

var nextDataScriptPattern = regexp.MustCompile(`(?s)<script\s+id="__NEXT_DATA__"[^>]*>(.*?)</script>`)
var initialDataScriptPattern = regexp.MustCompile(`(?s)window\.__INITIAL_DATA__\s*=\s*(\{.*?\});`)

// extractEmbeddedJSON locates the page's embedded JSON payload inside a
// <script id="__NEXT_DATA__"> tag, falling back to a
// window.__INITIAL_DATA__ assignment. Parsing is purely structural on the
// decoded JSON; no DOM walking.
func extractEmbeddedJSON(html string) (*pageProps, error) {
	if m := nextDataScriptPattern.FindStringSubmatch(html); m != nil {
		var wrapper struct {
			Props struct {
				PageProps pageProps `json:"pageProps"`
			} `json:"props"`
		}
		if err := json.Unmarshal([]byte(m[1]), &wrapper); err != nil {
			return nil, err
		}
		return &wrapper.Props.PageProps, nil
	}

	if m := initialDataScriptPattern.FindStringSubmatch(html); m != nil {
		var props pageProps
		if err := json.Unmarshal([]byte(m[1]), &props); err != nil {
			return nil, err
		}
		return &props, nil
	}

	return nil, errNoEmbeddedPayload
}

// noMultiplyCodes are account codes whose value is already in its final
// unit (a count or a percentage) and must not be scaled by 1000.
var noMultiplyCodes = map[string]bool{
	"ANT": true, "EKA": true, "RG": true, "RPE": true,
	"avk_eget_kapital": true, "avk_totalt_kapital": true, "kassalikviditet": true,
}

// roleCategoryByType maps a role's Swedish type string to a RoleCategory.
var roleCategoryByType = map[string]models.RoleCategory{
	"Styrelseledamot": models.RoleCategoryBoard, "Styrelsesuppleant": models.RoleCategoryBoard,
	"Styrelseordförande": models.RoleCategoryBoard, "Ledamot": models.RoleCategoryBoard,
	"Suppleant": models.RoleCategoryBoard, "Ordförande": models.RoleCategoryBoard,
	"Verkställande direktör": models.RoleCategoryManagement, "Vice verkställande direktör": models.RoleCategoryManagement,
	"Extern verkställande direktör": models.RoleCategoryManagement, "VD": models.RoleCategoryManagement,
	"Revisor": models.RoleCategoryAuditor, "Revisorssuppleant": models.RoleCategoryAuditor,
	"Huvudansvarig revisor": models.RoleCategoryAuditor, "Lekmannarevisor": models.RoleCategoryAuditor,
	"Bolagsman": models.RoleCategoryOther, "Komplementär": models.RoleCategoryOther, "Likvidator": models.RoleCategoryOther,
	"Extern firmatecknare": models.RoleCategoryOther,
}

// roleCategoryByGroup is the fallback used when a role's type string isn't
// in roleCategoryByType.
var roleCategoryByGroup = map[string]models.RoleCategory{
	"Management": models.RoleCategoryManagement,
	"Board":      models.RoleCategoryBoard,
	"Revision":   models.RoleCategoryAuditor,
	"Other":      models.RoleCategoryOther,
}

func mapRoleCategory(groupName, roleType string) models.RoleCategory {
	if cat, ok := roleCategoryByType[roleType]; ok {
		return cat
	}
	if cat, ok := roleCategoryByGroup[groupName]; ok {
		return cat
	}
	return models.RoleCategoryOther
}

func toPartialRecord(orgnr string, summary, group *pageProps) *providers.PartialRecord {
	company := summary.Company
	if company == nil {
		return nil
	}
	if company.Name == "" {
		return nil
	}

	record := &providers.PartialRecord{
		Company: &models.Company{Orgnr: orgnr, Name: company.Name},
	}

	record.Financials = parseFinancials(orgnr, company)
	record.Roles = parseRoles(company.Roles)
	record.Trademarks = parseTrademarks(orgnr, company.Trademarks)

	if group != nil {
		related := group.CompanyOrg
		if related == nil {
			related = group.Company
		}
		if related != nil {
			record.Related = parseRelated(orgnr, related)
			applyGroupInfo(record.Company, related)
		}
	}

	return record
}

// applyGroupInfo populates the group/parent fields on company from the
// group-structure page's payload: the explicit koncern/moderbolag fields
// when present, falling back to inferring group membership from a
// non-empty subsidiary (dotterbolag) list when the flag is absent.
func applyGroupInfo(company *models.Company, c *companyPayload) {
	company.IsGroup = c.Koncern || len(c.Dotterbolag) > 0
	if c.AntalKoncernbolag != nil {
		company.CompaniesInGroup = *c.AntalKoncernbolag
	}
	if c.Moderbolag != nil {
		company.ParentOrgnr = c.Moderbolag.Orgnr
		company.ParentName = c.Moderbolag.Name
	}
}

func parseFinancials(orgnr string, c *companyPayload) []models.FinancialPeriod {
	var out []models.FinancialPeriod
	out = append(out, parseAccountPeriods(orgnr, c.CompanyAccounts, false)...)
	out = append(out, parseAccountPeriods(orgnr, c.CorporateAccounts, true)...)
	return out
}

func parseAccountPeriods(orgnr string, periods []accountPeriod, isConsolidated bool) []models.FinancialPeriod {
	var out []models.FinancialPeriod
	for _, period := range periods {
		year, err := strconv.Atoi(strings.TrimSpace(period.Year))
		if err != nil {
			continue
		}

		fp := models.FinancialPeriod{
			Orgnr:          orgnr,
			PeriodYear:     year,
			IsConsolidated: isConsolidated,
			Source:         "scraper",
		}

		for _, acc := range period.Accounts {
			amount, err := strconv.ParseFloat(strings.TrimSpace(acc.Amount), 64)
			if err != nil {
				continue
			}
			if !noMultiplyCodes[acc.Code] {
				amount *= 1000
			}
			applyAccountCode(&fp, acc.Code, amount)
		}

		out = append(out, fp)
	}
	return out
}

func applyAccountCode(fp *models.FinancialPeriod, code string, amount float64) {
	whole := int64(amount)
	switch code {
	case "SDI":
		fp.Revenue = &whole
	case "RR":
		fp.OperatingResult = &whole
	case "DR":
		fp.NetProfit = &whole
	case "SGE":
		fp.TotalAssets = &whole
	case "SEK":
		fp.TotalEquity = &whole
	case "ANT":
		n := int(whole)
		fp.EmployeeCount = &n
	case "EKA", "RG", "RPE", "avk_eget_kapital", "avk_totalt_kapital", "kassalikviditet":
		if fp.KeyRatios == nil {
			fp.KeyRatios = make(map[string]float64)
		}
		fp.KeyRatios[code] = amount
	}
}

func parseRoles(roles *rolesPayload) []models.Role {
	if roles == nil {
		return nil
	}

	out := make([]models.Role, 0)
	for _, group := range roles.RoleGroups {
		for _, entry := range group.Roles {
			if entry.Type == "Company" {
				continue
			}
			out = append(out, models.Role{
				Name:         entry.Name,
				BirthYear:    parseBirthYear(entry.BirthDate),
				RoleType:     entry.Role,
				RoleCategory: mapRoleCategory(group.Name, entry.Role),
				Source:       "scraper",
			})
		}
	}
	return out
}

func parseBirthYear(birthDate string) *int {
	if len(birthDate) < 4 {
		return nil
	}
	year, err := strconv.Atoi(birthDate[:4])
	if err != nil {
		return nil
	}
	return &year
}

func parseTrademarks(orgnr string, entries []trademarkEntry) []models.Trademark {
	if entries == nil {
		return nil
	}
	out := make([]models.Trademark, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.Trademark{
			Orgnr:          orgnr,
			Name:           e.Name,
			RegistrationNo: e.RegistrationNo,
			Status:         e.Status,
		})
	}
	return out
}

func parseRelated(orgnr string, c *companyPayload) []models.RelatedCompany {
	entries := c.Dotterbolag
	if len(entries) == 0 {
		entries = c.RelatedCompanies
	}
	if len(entries) == 0 {
		return nil
	}
	out := make([]models.RelatedCompany, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.RelatedCompany{
			Orgnr:        orgnr,
			RelatedOrgnr: e.Orgnr,
			RelatedName:  e.Name,
			Relationship: e.Relationship,
		})
	}
	return out
}
