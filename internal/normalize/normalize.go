// Package normalize brings an artifact's figures onto one convention:
// millions with an "m" suffix, a single currency prefix, projected years
// where available, and risks ordered by severity.
//
// Normalize is pure and idempotent: Normalize(Normalize(a)) == Normalize(a).
package normalize

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

// Report describes what a normalization pass changed.
type Report struct {
	// Currency is the prefix applied to monetary figures, "" when none.
	Currency string
	// Rescaled counts figures converted from thousands or billions.
	Rescaled int
	// DroppedYears lists historical columns removed in favor of projections.
	DroppedYears []string
	// Warnings are conditions normalization could not resolve.
	Warnings []string
}

// Normalize returns a normalized copy of a.
func Normalize(a artifact.Artifact) artifact.Artifact {
	out, _ := NormalizeWithReport(a)
	return out
}

// NormalizeWithReport is Normalize plus a description of the changes.
func NormalizeWithReport(a artifact.Artifact) (artifact.Artifact, Report) {
	out := a.Clone()
	var rep Report

	for _, p := range displayFields(&out) {
		*p = canonicalSentinel(cleanText(*p))
	}

	rows := scanRows(out.Financials.Rows)
	rep.DroppedYears = preferProjected(&out.Financials)
	normalizeMoney(&out, rows, &rep)

	slices.SortStableFunc(out.Risks, func(x, y artifact.Risk) int {
		return x.Severity.Rank() - y.Severity.Rank()
	})
	return out, rep
}

// displayFields are the short figure and label strings. Memo prose is not
// touched.
func displayFields(a *artifact.Artifact) []*string {
	fields := []*string{
		&a.EnterpriseValue, &a.Revenue, &a.EBITDA, &a.EVEBITDAMultiple,
		&a.Sponsor, &a.Headquarters, &a.Employees, &a.Founded, &a.Website,
	}
	for i := range a.Financials.Rows {
		for j := range a.Financials.Rows[i].Values {
			fields = append(fields, &a.Financials.Rows[i].Values[j])
		}
	}
	for i := range a.Financials.Insights {
		fields = append(fields, &a.Financials.Insights[i].Value)
	}
	for i := range a.Thesis.Comps {
		c := &a.Thesis.Comps[i]
		fields = append(fields, &c.EVEBITDA, &c.EVRevenue, &c.Year)
	}
	return fields
}

// cleanText applies NFKC and collapses whitespace.
func cleanText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "−", "-")
	return strings.Join(strings.Fields(s), " ")
}

// canonicalSentinel rewrites "n/d", "N / D" and similar to the sentinel.
func canonicalSentinel(s string) string {
	if strings.EqualFold(strings.ReplaceAll(s, " ", ""), artifact.NotDisclosed) {
		return artifact.NotDisclosed
	}
	return s
}

type moneyField struct {
	ptr *string
	m   money
}

// looksMonetary reports whether s states a currency, or carries a scale
// unit with nothing written after it.
func looksMonetary(s string) bool {
	m, ok := parseMoney(s)
	return ok && (m.currency != "" || (m.scale != scaleNone && m.suffix == ""))
}

// rowScan is what the financial rows state across every column, taken
// before historical years are dropped.
type rowScan struct {
	monetary []bool   // any value looks monetary
	currency []string // the row's one currency, "" when none or mixed
}

func scanRows(rows []artifact.Row) rowScan {
	scan := rowScan{monetary: make([]bool, len(rows)), currency: make([]string, len(rows))}
	for i, r := range rows {
		scan.monetary[i] = slices.ContainsFunc(r.Values, looksMonetary)
		var seen []string
		for _, v := range r.Values {
			if m, ok := parseMoney(v); ok {
				seen = append(seen, m.currency)
			}
		}
		scan.currency[i], _ = pickCurrency(seen)
	}
	return scan
}

// normalizeMoney rescales monetary figures to millions and applies one
// currency prefix. Valuation fields are always monetary, financial rows
// when the scan marked them, and insights when the value looks monetary.
// A bare figure in a row first takes that row's own currency.
func normalizeMoney(a *artifact.Artifact, rows rowScan, rep *Report) {
	var fields []moneyField
	add := func(p *string, implied bool, rowCurrency string) {
		m, ok := parseMoney(*p)
		if !ok {
			return
		}
		if m.currency == "" && !(implied && m.scale != scaleNone) {
			return
		}
		if m.currency == "" {
			m.currency = rowCurrency
		}
		fields = append(fields, moneyField{ptr: p, m: m})
	}

	add(&a.EnterpriseValue, true, "")
	add(&a.Revenue, true, "")
	add(&a.EBITDA, true, "")
	for i := range a.Financials.Rows {
		row := &a.Financials.Rows[i]
		monetary, currency := false, ""
		if i < len(rows.monetary) {
			monetary, currency = rows.monetary[i], rows.currency[i]
		}
		for j := range row.Values {
			add(&row.Values[j], monetary, currency)
		}
	}
	for i := range a.Financials.Insights {
		v := &a.Financials.Insights[i].Value
		add(v, looksMonetary(*v), "")
	}

	seen := make([]string, len(fields))
	for i, f := range fields {
		seen[i] = f.m.currency
	}
	rep.Currency = chooseCurrency(seen, rep)

	for _, f := range fields {
		m, rescaled := f.m.inMillions()
		if rescaled {
			rep.Rescaled++
		}
		if rep.Currency != "" && (m.currency == "" || m.currency == "$") {
			m.currency = rep.Currency
		}
		*f.ptr = m.String()
	}
}

// chooseCurrency picks the artifact's currency from the prefixes seen. When
// more than one currency is stated none is chosen, every prefix stays as
// found and a warning is recorded.
func chooseCurrency(seen []string, rep *Report) string {
	c, stated := pickCurrency(seen)
	if len(stated) > 1 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("mixed currencies %s; prefixes left unchanged",
			strings.Join(trimAll(stated), ", ")))
	}
	return c
}

// pickCurrency returns the one stated currency, or "$" when only plain
// dollars appear, along with every stated currency in order of appearance.
// "US$" counts as stated; a plain "$" does not.
func pickCurrency(seen []string) (string, []string) {
	var stated []string
	sawDollar := false
	for _, c := range seen {
		switch c {
		case "":
		case "$":
			sawDollar = true
		default:
			if !slices.Contains(stated, c) {
				stated = append(stated, c)
			}
		}
	}

	switch {
	case len(stated) > 1:
		return "", stated
	case len(stated) == 1:
		return stated[0], stated
	case sawDollar:
		return "$", stated
	default:
		return "", stated
	}
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
