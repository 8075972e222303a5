package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

func sample() artifact.Artifact {
	return artifact.Artifact{
		CompanyName:      "Northwind Logistics Inc.",
		ConfidenceScore:  80,
		EnterpriseValue:  "$185 million",
		Revenue:          "C$16,145 thousand",
		EBITDA:           "n / d",
		EVEBITDAMultiple: "8.6x",
		Sponsor:          "N/D",
		Employees:        "1,250",
		Financials: artifact.FinancialTable{
			Years: []string{"FY2022A", "FY2023A", "FY2024E", "FY2025E"},
			Rows: []artifact.Row{
				{Label: "Revenue", Values: []string{"C$12,010k", "C$13,180k", "C$14,230 thousand", "15,900k"}, IsHighlight: true},
				{Label: "Gross Margin", Values: []string{"31%", "32%", "33%", "n/d"}},
				{Label: "EBITDA", Values: []string{"(C$1,200k)", "$1.8m", "C$2.1m", "C$2.6m"}},
			},
			Insights: []artifact.Insight{
				{Label: "Revenue CAGR", Value: "8.8%"},
				{Label: "Net Debt", Value: "C$4,500 thousand"},
				{Label: "Margin Trend", Value: "+150bps"},
			},
		},
		Risks: []artifact.Risk{
			{Title: "Fuel", Severity: artifact.SeverityLow},
			{Title: "Concentration", Severity: artifact.SeverityHigh},
			{Title: "Labor", Severity: artifact.SeverityMedium},
			{Title: "Customer churn", Severity: artifact.SeverityHigh},
		},
		Thesis: artifact.Thesis{
			Comps: []artifact.Comp{{Name: "Comp", EVEBITDA: "9.1x", EVRevenue: "1.2x", Year: "2022"}},
		},
	}
}

func TestNormalize_ThousandsToMillions(t *testing.T) {
	out := Normalize(artifact.Artifact{Revenue: "C$16,145 thousand"})
	assert.Equal(t, "C$16.1m", out.Revenue)
}

func TestNormalize_Sample(t *testing.T) {
	out, rep := NormalizeWithReport(sample())

	assert.Equal(t, "C$", rep.Currency)
	assert.Equal(t, "C$185m", out.EnterpriseValue)
	assert.Equal(t, "C$16.1m", out.Revenue)
	assert.Equal(t, artifact.NotDisclosed, out.EBITDA)
	assert.Equal(t, "8.6x", out.EVEBITDAMultiple)
	assert.Equal(t, "1,250", out.Employees)

	assert.Equal(t, []string{"FY2024E", "FY2025E"}, out.Financials.Years)
	assert.Equal(t, []string{"FY2022A", "FY2023A"}, rep.DroppedYears)
	assert.Equal(t, []string{"C$14.2m", "C$15.9m"}, out.Financials.Rows[0].Values)
	assert.True(t, out.Financials.Rows[0].IsHighlight)
	assert.Equal(t, []string{"33%", artifact.NotDisclosed}, out.Financials.Rows[1].Values)
	assert.Equal(t, []string{"C$2.1m", "C$2.6m"}, out.Financials.Rows[2].Values)

	assert.Equal(t, "8.8%", out.Financials.Insights[0].Value)
	assert.Equal(t, "C$4.5m", out.Financials.Insights[1].Value)
	assert.Equal(t, "+150bps", out.Financials.Insights[2].Value)
	assert.Equal(t, "9.1x", out.Thesis.Comps[0].EVEBITDA)

	titles := make([]string, len(out.Risks))
	for i, r := range out.Risks {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"Concentration", "Customer churn", "Labor", "Fuel"}, titles)
	assert.Empty(t, rep.Warnings)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []artifact.Artifact{
		sample(),
		{Revenue: "€1.25bn", EBITDA: "(€120,400 thousand)", EnterpriseValue: "EUR 2.1 billion"},
		{Revenue: "C$10m", EBITDA: "£4m"},
		{Revenue: "C$10m", EBITDA: "US$4m", EnterpriseValue: "USD 50m"},
		{Revenue: "C$40 thousand", EBITDA: "$950"},
		{
			Revenue: "C$16.1m",
			Financials: artifact.FinancialTable{
				Years: []string{"FY2023A", "FY2024E"},
				Rows:  []artifact.Row{{Label: "Revenue", Values: []string{"£12,010k", "15,900 thousand"}}},
			},
		},
		{},
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := sample()
	_ = Normalize(in)
	assert.Equal(t, sample(), in)
}

func TestNormalize_NotDisclosedVariants(t *testing.T) {
	for _, v := range []string{"N/D", "n/d", "N / D", " n/D "} {
		out := Normalize(artifact.Artifact{Revenue: v, Sponsor: v})
		assert.Equal(t, artifact.NotDisclosed, out.Revenue, "%q", v)
		assert.Equal(t, artifact.NotDisclosed, out.Sponsor, "%q", v)
	}
}

func TestNormalize_Scales(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"$16.1m", "$16.1m"},
		{"$16.1 million", "$16.1m"},
		{"$16.1 Millions", "$16.1m"},
		{"$16.1MM", "$16.1m"},
		{"$16.1M", "$16.1m"},
		{"$1.2bn", "$1,200.0m"},
		{"$1.25 billion", "$1,250.0m"},
		{"$950k", "$1.0m"},
		{"$16,145 000s", "$16.1m"},
		{"($1,200k)", "($1.2m)"},
		{"-$400k", "-$0.4m"},
		{"US$ 40m", "US$40m"},
		{"USD 40m", "US$40m"},
		{"$ 12.5m (est.)", "$12.5m (est.)"},
		{"12.5%", "12.5%"},
		{"9.1x", "9.1x"},
		{"185", "185"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			out := Normalize(artifact.Artifact{Revenue: tt.in})
			assert.Equal(t, tt.want, out.Revenue)
		})
	}
}

func TestNormalize_CurrencyApplied(t *testing.T) {
	out, rep := NormalizeWithReport(artifact.Artifact{
		EnterpriseValue: "$185m",
		Revenue:         "CAD 142.3m",
		EBITDA:          "21.4m",
	})
	assert.Equal(t, "C$", rep.Currency)
	assert.Equal(t, "C$185m", out.EnterpriseValue)
	assert.Equal(t, "C$142.3m", out.Revenue)
	assert.Equal(t, "C$21.4m", out.EBITDA)
}

func TestNormalize_ISOCodeWithoutSymbol(t *testing.T) {
	out := Normalize(artifact.Artifact{Revenue: "CHF 12,500 thousand", EBITDA: "$2m"})
	assert.Equal(t, "CHF 12.5m", out.Revenue)
	assert.Equal(t, "CHF 2m", out.EBITDA)
}

func TestNormalize_MixedCurrencies(t *testing.T) {
	out, rep := NormalizeWithReport(artifact.Artifact{
		Revenue:         "C$10,000k",
		EBITDA:          "£4m",
		EnterpriseValue: "$50m",
	})
	assert.Equal(t, "", rep.Currency)
	assert.Equal(t, "C$10.0m", out.Revenue)
	assert.Equal(t, "£4m", out.EBITDA)
	assert.Equal(t, "$50m", out.EnterpriseValue)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "mixed currencies C$, £")
}

func TestNormalize_ExplicitUSDollarsKeptBesideOtherCurrency(t *testing.T) {
	out, rep := NormalizeWithReport(artifact.Artifact{
		Revenue:         "C$10m",
		EBITDA:          "US$4m",
		EnterpriseValue: "USD 50m",
	})
	assert.Equal(t, "", rep.Currency)
	assert.Equal(t, "C$10m", out.Revenue)
	assert.Equal(t, "US$4m", out.EBITDA)
	assert.Equal(t, "US$50m", out.EnterpriseValue)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "mixed currencies US$, C$")
}

func TestNormalize_ExplicitUSDollarsApplied(t *testing.T) {
	out, rep := NormalizeWithReport(artifact.Artifact{
		Revenue:         "USD 40m",
		EBITDA:          "$5m",
		EnterpriseValue: "120 million",
	})
	assert.Equal(t, "US$", rep.Currency)
	assert.Equal(t, "US$40m", out.Revenue)
	assert.Equal(t, "US$5m", out.EBITDA)
	assert.Equal(t, "US$120m", out.EnterpriseValue)
	assert.Empty(t, rep.Warnings)
}

func TestNormalize_ScaledRowsWithoutSymbol(t *testing.T) {
	out, rep := NormalizeWithReport(artifact.Artifact{
		Revenue: "C$16.1m",
		Financials: artifact.FinancialTable{
			Years: []string{"FY2024E", "FY2025E"},
			Rows: []artifact.Row{
				{Label: "Revenue", Values: []string{"16,145 thousand", "17,900 thousand"}},
				{Label: "Trucks", Values: []string{"1.2k trucks", "1.4k trucks"}},
				{Label: "Headcount", Values: []string{"1,250", "1,310"}},
			},
			Insights: []artifact.Insight{
				{Label: "Net Debt", Value: "4,500 thousand"},
				{Label: "Fleet", Value: "1.2k trucks"},
			},
		},
	})
	assert.Equal(t, []string{"C$16.1m", "C$17.9m"}, out.Financials.Rows[0].Values)
	assert.Equal(t, []string{"1.2k trucks", "1.4k trucks"}, out.Financials.Rows[1].Values)
	assert.Equal(t, []string{"1,250", "1,310"}, out.Financials.Rows[2].Values)
	assert.Equal(t, "C$4.5m", out.Financials.Insights[0].Value)
	assert.Equal(t, "1.2k trucks", out.Financials.Insights[1].Value)
	assert.Equal(t, 3, rep.Rescaled)
}

func TestNormalize_MonetaryRowSurvivesDroppedYears(t *testing.T) {
	out, rep := NormalizeWithReport(artifact.Artifact{
		Financials: artifact.FinancialTable{
			Years: []string{"FY2023A", "FY2024E"},
			Rows: []artifact.Row{
				{Label: "Revenue", Values: []string{"C$12,010k", "15,900k"}},
				{Label: "Units", Values: []string{"1,200", "1,350"}},
			},
		},
	})
	assert.Equal(t, []string{"FY2023A"}, rep.DroppedYears)
	assert.Equal(t, "C$", rep.Currency)
	assert.Equal(t, []string{"C$15.9m"}, out.Financials.Rows[0].Values)
	assert.Equal(t, []string{"1,350"}, out.Financials.Rows[1].Values)
}

func TestNormalize_SmallFiguresKeepPrecision(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"C$40 thousand", "C$0.04m"},
		{"C$45k", "C$0.045m"},
		{"(C$12k)", "(C$0.012m)"},
		{"C$0.4k", "C$0.0004m"},
		{"C$400 thousand", "C$0.4m"},
		{"C$0 thousand", "C$0.0m"},
		{"C$0.04m", "C$0.04m"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			out := Normalize(artifact.Artifact{Revenue: tt.in})
			assert.Equal(t, tt.want, out.Revenue)
			assert.Equal(t, out, Normalize(out))
		})
	}
}

func TestNormalize_FullWidthText(t *testing.T) {
	out := Normalize(artifact.Artifact{Revenue: "＄16.1m"})
	assert.Equal(t, "$16.1m", out.Revenue)

	out = Normalize(artifact.Artifact{Revenue: "C$\u00a02.5\u00a0m"})
	assert.Equal(t, "C$2.5m", out.Revenue)
}

func TestNormalize_YearsUnchangedWhenNotMixed(t *testing.T) {
	hist := artifact.FinancialTable{
		Years: []string{"FY2021", "FY2022", "FY2023"},
		Rows:  []artifact.Row{{Label: "Revenue", Values: []string{"$1m", "$2m", "$3m"}}},
	}
	out := Normalize(artifact.Artifact{Financials: hist})
	assert.Equal(t, hist.Years, out.Financials.Years)

	proj := artifact.FinancialTable{
		Years: []string{"2025 Budget", "2026P", "2027 Forecast"},
		Rows:  []artifact.Row{{Label: "Revenue", Values: []string{"$1m", "$2m", "$3m"}}},
	}
	out = Normalize(artifact.Artifact{Financials: proj})
	assert.Equal(t, proj.Years, out.Financials.Years)
}

func TestProjectedLabel(t *testing.T) {
	for _, y := range []string{"FY2024E", "2025F", "FY26P", "2025B", "FY2025 Budget", "2026 Forecast", "2025 Projected", "FY2025 Est."} {
		assert.True(t, projectedLabel.MatchString(y), y)
	}
	for _, y := range []string{"FY2023", "FY2023A", "2022", "LTM", "FY 2021"} {
		assert.False(t, projectedLabel.MatchString(y), y)
	}
}
