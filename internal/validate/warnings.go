package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

// MaxPlausibleMillions is the largest figure, in millions, not flagged.
var MaxPlausibleMillions = decimal.NewFromInt(1_000_000)

var listConventions = []struct {
	path     string
	min, max int
	get      func(a artifact.Artifact) []string
}{
	{"memo.growthDrivers", 3, 6, func(a artifact.Artifact) []string { return a.Memo.GrowthDrivers }},
	{"memo.keyConcerns", 3, 5, func(a artifact.Artifact) []string { return a.Memo.KeyConcerns }},
	{"thesis.bullCase", 4, 5, func(a artifact.Artifact) []string { return a.Thesis.BullCase }},
	{"thesis.bearCase", 4, 5, func(a artifact.Artifact) []string { return a.Thesis.BearCase }},
}

func listLengthWarnings(a artifact.Artifact) []string {
	var out []string
	for _, c := range listConventions {
		if n := len(c.get(a)); n < c.min || n > c.max {
			out = append(out, fmt.Sprintf("%s has %d items, expected %d-%d", c.path, n, c.min, c.max))
		}
	}
	return out
}

var (
	millionsFigure = regexp.MustCompile(`(-?[\d,]+(?:\.\d+)?)\s*m\b`)
	thousandsUnit  = regexp.MustCompile(`(?i)\d\s*(?:thousands?|000s|k)\b`)
)

// Plausibility flags monetary figures that look wrong after normalization:
// magnitudes above MaxPlausibleMillions and values still in thousands.
func Plausibility(a artifact.Artifact) []string {
	var out []string
	check := func(path, v string) {
		if v == "" || artifact.IsNotDisclosed(v) {
			return
		}
		if m := millionsFigure.FindStringSubmatch(v); m != nil {
			if d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil && d.Abs().GreaterThan(MaxPlausibleMillions) {
				out = append(out, fmt.Sprintf("%s: implausible magnitude %q", path, v))
			}
		}
		if thousandsUnit.MatchString(v) {
			out = append(out, fmt.Sprintf("%s: figure still in thousands %q", path, v))
		}
	}

	check("enterpriseValue", a.EnterpriseValue)
	check("revenue", a.Revenue)
	check("ebitda", a.EBITDA)
	for i, r := range a.Financials.Rows {
		for j, v := range r.Values {
			check(fmt.Sprintf("financials.rows[%d].values[%d]", i, j), v)
		}
	}
	for i, in := range a.Financials.Insights {
		check(fmt.Sprintf("financials.insights[%d].value", i), in.Value)
	}
	return out
}
