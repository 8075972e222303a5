package export

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

func sampleArtifact() artifact.Artifact {
	return artifact.Artifact{
		CompanyName:     "Northwind Logistics Inc.",
		ConfidenceScore: 78,
		Revenue:         "C$16.1m",
		EBITDA:          artifact.NotDisclosed,
		CIMPages:        42,
		Financials: artifact.FinancialTable{
			Years: []string{"FY2024E", "FY2025E"},
			Rows: []artifact.Row{
				{Label: "Revenue", Values: []string{"C$16.1m", "C$17.9m"}, IsHighlight: true},
				{Label: "EBITDA Margin", Values: []string{"15%", "N/D"}},
			},
			Insights: []artifact.Insight{{Label: "Revenue CAGR", Value: "8.8%", Note: "Organic."}},
		},
		Thesis: artifact.Thesis{
			Comps: []artifact.Comp{{Name: "TFI / Acme", EVEBITDA: "9.1x", EVRevenue: "1.2x", Year: "2022"}},
		},
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "northwind.xlsx")
	require.NoError(t, Save(path, sampleArtifact()))

	rows, err := ReadSheet(path, SheetFinancials)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Metric", "FY2024E", "FY2025E"}, rows[0])
	assert.Equal(t, []string{"Revenue", "C$16.1m", "C$17.9m"}, rows[1])
	assert.Equal(t, []string{"EBITDA Margin", "15%", "N/D"}, rows[2])

	summary, err := ReadSheet(path, SheetSummary)
	require.NoError(t, err)
	assert.Contains(t, summary, []string{"Company", "Northwind Logistics Inc."})
	assert.Contains(t, summary, []string{"EBITDA", "N/D"})
	assert.Contains(t, summary, []string{"CIM Pages", "42"})

	comps, err := ReadSheet(path, SheetComps)
	require.NoError(t, err)
	assert.Equal(t, []string{"TFI / Acme", "9.1x", "1.2x", "2022"}, comps[1])

	insights, err := ReadSheet(path, SheetInsights)
	require.NoError(t, err)
	assert.Equal(t, []string{"Revenue CAGR", "8.8%", "Organic."}, insights[1])
}

func TestWorkbook_HighlightRowsBold(t *testing.T) {
	f, err := Workbook(sampleArtifact())
	require.NoError(t, err)
	sheet := f.Sheet[SheetFinancials]
	require.NotNil(t, sheet)

	assert.True(t, sheet.Rows[0].Cells[0].GetStyle().Font.Bold)
	assert.True(t, sheet.Rows[1].Cells[1].GetStyle().Font.Bold)
	assert.False(t, sheet.Rows[2].Cells[1].GetStyle().Font.Bold)
}

func TestWorkbook_EmptyArtifact(t *testing.T) {
	wb, err := Workbook(artifact.Artifact{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 4)
	assert.Len(t, f.Sheet[SheetFinancials].Rows, 1)
}

func TestReadSheet_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.xlsx")
	require.NoError(t, Save(path, sampleArtifact()))

	_, err := ReadSheet(path, "Nope")
	assert.Error(t, err)

	_, err = ReadSheet(filepath.Join(t.TempDir(), "missing.xlsx"), SheetSummary)
	assert.Error(t, err)
}
