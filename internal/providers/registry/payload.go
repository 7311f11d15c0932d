package registry

import (
	"encoding/json"

	"github.com/orgnr/bolagsdata/internal/models"
	"github.com/orgnr/bolagsdata/internal/providers"
)

// organisationResponse is the tagged-variant decode target for
// POST /organisationer: fields whose exact shape varies by registry
// version are held as json.RawMessage and decoded on demand in
// toPartialRecord, skipping gracefully on mismatch rather than failing
// the whole record.
type organisationResponse struct {
	Namn                 json.RawMessage `json:"FORETAGSNAMN"`
	VerksamOrganisation  *verksamhet     `json:"verksamOrganisation"`
	Avregistreringsdatum string          `json:"avregistreringsdatum"`
	Procedure            string          `json:"forfarandekod"`
	PostAdress           *postadress     `json:"postadress"`
	Industries           []industri      `json:"naringsgrenar"`
	RegistreringsDatum   string          `json:"registreringsdatum"`
	Bolagsform           string          `json:"bolagsformKlartext"`
}

type verksamhet struct {
	Kod string `json:"kod"`
}

type postadress struct {
	CoAdress string `json:"coAdress"`
	Utdelningsadress string `json:"utdelningsadress"`
	PostNr           string `json:"postnummer"`
	Postort          string `json:"postort"`
}

type industri struct {
	SNIKod        string `json:"sniKod"`
	SNIBeskrivning string `json:"sniBeskrivning"`
}

// namePayload is one possible shape of the FORETAGSNAMN field: either a
// single object or a list of name records with a "typ" discriminator.
type namePayload struct {
	Typ  string `json:"typ"`
	Namn string `json:"namn"`
}

const nameTypeForetagsnamn = "FORETAGSNAMN"

// procedureStatus maps §4.6.1's procedure codes. KK (konkurs) and LI
// (likvidation) override the activity/deregistration-derived status.
var procedureStatus = map[string]models.CompanyStatus{
	"KK": models.StatusBankruptcy,
	"LI": models.StatusLiquidation,
}

func (p organisationResponse) toPartialRecord(orgnr string) *providers.PartialRecord {
	name := selectName(p.Namn)
	if name == "" {
		return nil
	}

	company := &models.Company{
		Orgnr:         orgnr,
		Name:          name,
		Status:        deriveStatus(p),
		Municipality:  "",
		CompanyType:   p.Bolagsform,
		PostalAddress: "",
	}

	if p.PostAdress != nil {
		company.PostalAddress = p.PostAdress.Utdelningsadress
		company.PostalCity = p.PostAdress.Postort
		company.PostalZip = p.PostAdress.PostNr
	}

	record := &providers.PartialRecord{Company: company}

	if len(p.Industries) > 0 {
		industries := make([]models.Industry, 0, len(p.Industries))
		for i, ind := range p.Industries {
			industries = append(industries, models.Industry{
				Orgnr:          orgnr,
				SNICode:        ind.SNIKod,
				SNIDescription: ind.SNIBeskrivning,
				IsPrimary:      i == 0,
			})
		}
		record.Industries = industries
	}

	return record
}

// selectName picks the FORETAGSNAMN entry from a name list that may be
// encoded as a single object or an array; falls back to the first entry
// if no FORETAGSNAMN-typed entry is present.
func selectName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var single namePayload
	if err := json.Unmarshal(raw, &single); err == nil && single.Namn != "" {
		return single.Namn
	}

	var list []namePayload
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		for _, n := range list {
			if n.Typ == nameTypeForetagsnamn {
				return n.Namn
			}
		}
		return list[0].Namn
	}

	// Fall back to a bare string value.
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	return ""
}

func deriveStatus(p organisationResponse) models.CompanyStatus {
	status := models.StatusInactive
	if p.VerksamOrganisation != nil && p.VerksamOrganisation.Kod == "JA" {
		status = models.StatusActive
	}
	if p.Avregistreringsdatum != "" {
		status = models.StatusDeregistered
	}
	if override, ok := procedureStatus[p.Procedure]; ok {
		status = override
	}
	return status
}

// documentListResponse is the decode target for POST /dokumentlista.
type documentListResponse struct {
	Dokument []DocumentMeta `json:"dokument"`
}

// DocumentMeta is one XBRL annual-report document's listing metadata.
type DocumentMeta struct {
	DocumentID                 string `json:"dokumentId"`
	Name                       string `json:"dokumentnamn"`
	RapporteringsperiodTom     string `json:"rapporteringsperiodTom"`
	RapporteringsperiodFrom    string `json:"rapporteringsperiodFrom"`
	RakenskapsarSlut           string `json:"rakenskapsarSlut"`
	RakenskapsarStart          string `json:"rakenskapsarStart"`
	PeriodEnd                  string `json:"periodEnd"`
	PeriodStart                string `json:"periodStart"`
}

// FiscalYear infers the document's fiscal year per §4.7's precedence:
// rapporteringsperiodTom → rapporteringsperiodFrom → rakenskapsarSlut →
// rakenskapsarStart → English synonyms → a regex scan of name/id.
func (d DocumentMeta) FiscalYear() (int, bool) {
	candidates := []string{
		d.RapporteringsperiodTom,
		d.RapporteringsperiodFrom,
		d.RakenskapsarSlut,
		d.RakenskapsarStart,
		d.PeriodEnd,
		d.PeriodStart,
	}
	for _, c := range candidates {
		if year, ok := yearPrefix(c); ok {
			return year, true
		}
	}
	if year, ok := scanYear(d.Name); ok {
		return year, true
	}
	return scanYear(d.DocumentID)
}

func yearPrefix(s string) (int, bool) {
	if len(s) < 4 {
		return 0, false
	}
	return parseYear(s[:4])
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	year := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		year = year*10 + int(r-'0')
	}
	if year < 1900 || year > 2100 {
		return 0, false
	}
	return year, true
}

func scanYear(s string) (int, bool) {
	for i := 0; i+4 <= len(s); i++ {
		if s[i] == '2' && s[i+1] == '0' {
			if year, ok := parseYear(s[i : i+4]); ok {
				return year, true
			}
		}
	}
	return 0, false
}
