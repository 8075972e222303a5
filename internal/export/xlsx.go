// Package export writes analysis artifacts to spreadsheet workbooks.
package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

// Sheet names written by Workbook.
const (
	SheetSummary    = "Summary"
	SheetFinancials = "Financials"
	SheetInsights   = "Insights"
	SheetComps      = "Comps"
)

// Workbook builds a workbook for one artifact: a summary of headline
// fields, the financial table with one column per year, the insights and
// the comparable transactions.
func Workbook(a artifact.Artifact) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add summary sheet")
	}
	addRow(summary, true, "Field", "Value")
	for _, kv := range [][2]string{
		{"Company", a.CompanyName},
		{"Industry", a.Industry},
		{"Deal Type", a.DealType},
		{"Confidence", strconv.Itoa(a.ConfidenceScore)},
		{"Enterprise Value", a.EnterpriseValue},
		{"Revenue", a.Revenue},
		{"EBITDA", a.EBITDA},
		{"EV / EBITDA", a.EVEBITDAMultiple},
		{"Sponsor", a.Sponsor},
		{"Headquarters", a.Headquarters},
		{"Employees", a.Employees},
		{"Founded", a.Founded},
		{"Website", a.Website},
		{"CIM Pages", strconv.Itoa(a.CIMPages)},
	} {
		addRow(summary, false, kv[0], kv[1])
	}

	fin, err := f.AddSheet(SheetFinancials)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add financials sheet")
	}
	addRow(fin, true, append([]string{"Metric"}, a.Financials.Years...)...)
	for _, r := range a.Financials.Rows {
		addRow(fin, r.IsHighlight, append([]string{r.Label}, r.Values...)...)
	}

	ins, err := f.AddSheet(SheetInsights)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add insights sheet")
	}
	addRow(ins, true, "Label", "Value", "Note")
	for _, in := range a.Financials.Insights {
		addRow(ins, false, in.Label, in.Value, in.Note)
	}

	comps, err := f.AddSheet(SheetComps)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add comps sheet")
	}
	addRow(comps, true, "Transaction", "EV / EBITDA", "EV / Revenue", "Year")
	for _, c := range a.Thesis.Comps {
		addRow(comps, false, c.Name, c.EVEBITDA, c.EVRevenue, c.Year)
	}

	return f, nil
}

// Save writes the workbook for a to path.
func Save(path string, a artifact.Artifact) error {
	f, err := Workbook(a)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

// ReadSheet returns every row of the named sheet as strings.
func ReadSheet(path, name string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func addRow(sheet *xlsx.Sheet, bold bool, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		cell.SetString(v)
		if bold {
			cell.GetStyle().Font.Bold = true
		}
	}
}
