package xbrl

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/orgnr/bolagsdata/internal/models"
)

const pipelineDocument = `<html><body>
<xbrli:context id="period0"><xbrli:period><xbrli:startDate>2023-01-01</xbrli:startDate><xbrli:endDate>2023-12-31</xbrli:endDate></xbrli:period></xbrli:context>
<xbrli:context id="period1"><xbrli:period><xbrli:startDate>2022-01-01</xbrli:startDate><xbrli:endDate>2022-12-31</xbrli:endDate></xbrli:period></xbrli:context>
<ix:nonFraction name="se-gen-base:Nettoomsattning" contextRef="period0" unitRef="SEK" scale="3">5 000</ix:nonFraction>
<ix:nonFraction name="se-gen-base:Nettoomsattning" contextRef="period1" unitRef="SEK" scale="3">4 500</ix:nonFraction>
<ix:nonFraction name="se-gen-base:MedelantaletAnstallda" contextRef="period0">12</ix:nonFraction>
<ix:nonNumeric name="se-ar-base:RevisorsFornamn" contextRef="period0">Anna</ix:nonNumeric>
<ix:nonNumeric name="se-ar-base:RevisorsEfternamn" contextRef="period0">Svensson</ix:nonNumeric>
<ix:nonFraction name="se-gen-base:FordelningKonStyrelse" contextRef="period0">0.4</ix:nonFraction>
</body></html>`

func buildPipelineZip(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	f, err := w.Create("report.xhtml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := f.Write([]byte(pipelineDocument)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestProcessMapsFinancialPeriodsByYear(t *testing.T) {
	result, err := Process(buildPipelineZip(t), "5560000000", 2023)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Financials) != 2 {
		t.Fatalf("got %d financial periods, want 2", len(result.Financials))
	}

	byYear := map[int]models.FinancialPeriod{}
	for _, p := range result.Financials {
		byYear[p.PeriodYear] = p
	}

	current, ok := byYear[2023]
	if !ok || current.Revenue == nil || *current.Revenue != 5_000_000 {
		t.Fatalf("got %+v for 2023", current)
	}
	if current.EmployeeCount == nil || *current.EmployeeCount != 12 {
		t.Fatalf("got employee count %+v", current.EmployeeCount)
	}

	previous, ok := byYear[2022]
	if !ok || previous.Revenue == nil || *previous.Revenue != 4_500_000 {
		t.Fatalf("got %+v for 2022", previous)
	}
}

func TestProcessBuildsAuditHistoryFromArBaseFacts(t *testing.T) {
	result, err := Process(buildPipelineZip(t), "5560000000", 2023)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Audit == nil {
		t.Fatal("expected audit history to be populated")
	}
	if result.Audit.FirstName != "Anna" || result.Audit.LastName != "Svensson" {
		t.Fatalf("got %+v", result.Audit)
	}
}

func TestProcessBuildsBoardHistoryFromDistributionFacts(t *testing.T) {
	result, err := Process(buildPipelineZip(t), "5560000000", 2023)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Board) != 1 {
		t.Fatalf("got %d board rows, want 1", len(result.Board))
	}
	if result.Board[0].Percentage != 0.4 {
		t.Fatalf("got %v", result.Board[0].Percentage)
	}
}

func TestProcessIncludesAllFactsRegardlessOfMapping(t *testing.T) {
	result, err := Process(buildPipelineZip(t), "5560000000", 2023)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Facts) != 6 {
		t.Fatalf("got %d facts, want 6", len(result.Facts))
	}
}
