// Package artifact defines the analysis artifact produced for one CIM.
//
// Field order in every struct is the JSON key order of the external interface.
package artifact

// NotDisclosed is the sentinel for any figure absent from the source document.
const NotDisclosed = "N/D"

// Severity ranks a risk flag.
type Severity string

// Severity values. Only these lowercase forms are valid.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank orders severities from most to least severe. Unknown values sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// Artifact is the validated, normalized analysis of a single document.
type Artifact struct {
	CompanyName     string `json:"companyName"`
	Industry        string `json:"industry"`
	DealType        string `json:"dealType"`
	ConfidenceScore int    `json:"confidenceScore" validate:"min=0,max=100"`

	EnterpriseValue  string `json:"enterpriseValue"`
	Revenue          string `json:"revenue"`
	EBITDA           string `json:"ebitda"`
	EVEBITDAMultiple string `json:"evEbitdaMultiple"`

	Sponsor      string `json:"sponsor"`
	Headquarters string `json:"headquarters"`
	Employees    string `json:"employees"`
	Founded      string `json:"founded"`
	Website      string `json:"website"`
	CIMPages     int    `json:"cimPages" validate:"min=0"`
	AnalysisTime string `json:"analysisTime"`

	Memo       Memo           `json:"memo"`
	Financials FinancialTable `json:"financials"`
	Risks      []Risk         `json:"risks" validate:"dive"`
	Thesis     Thesis         `json:"thesis"`
}

// Memo is the prose investment memo.
type Memo struct {
	ExecutiveSummary string   `json:"executiveSummary"`
	BusinessOverview string   `json:"businessOverview"`
	GrowthDrivers    []string `json:"growthDrivers"`
	KeyConcerns      []string `json:"keyConcerns"`
	Recommendation   string   `json:"recommendation"`
}

// FinancialTable holds one column per year label and one row per line item.
type FinancialTable struct {
	Years    []string  `json:"years"`
	Rows     []Row     `json:"rows"`
	Insights []Insight `json:"insights"`
}

// Row is a line item. len(Values) must equal len(FinancialTable.Years).
type Row struct {
	Label       string   `json:"label"`
	Values      []string `json:"values"`
	IsHighlight bool     `json:"isHighlight,omitempty"`
}

// Insight is a headline metric with a short explanation.
type Insight struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Note  string `json:"note"`
}

// Risk is a single diligence risk flag.
type Risk struct {
	Title       string   `json:"title"`
	Severity    Severity `json:"severity" validate:"oneof=high medium low"`
	Description string   `json:"description"`
	Mitigation  string   `json:"mitigation"`
}

// Thesis captures the bull, bear and base cases plus trading comps.
type Thesis struct {
	BullCase []string `json:"bullCase"`
	BearCase []string `json:"bearCase"`
	BaseCase string   `json:"baseCase"`
	Comps    []Comp   `json:"comps"`
}

// Comp is a comparable transaction.
type Comp struct {
	Name      string `json:"name"`
	EVEBITDA  string `json:"evEbitda"`
	EVRevenue string `json:"evRevenue"`
	Year      string `json:"year"`
}

// IsNotDisclosed reports whether v is exactly the sentinel.
func IsNotDisclosed(v string) bool {
	return v == NotDisclosed
}

// Clone returns a deep copy so callers can transform without aliasing slices.
func (a Artifact) Clone() Artifact {
	out := a
	out.Memo.GrowthDrivers = cloneStrings(a.Memo.GrowthDrivers)
	out.Memo.KeyConcerns = cloneStrings(a.Memo.KeyConcerns)
	out.Financials.Years = cloneStrings(a.Financials.Years)
	if a.Financials.Rows != nil {
		out.Financials.Rows = make([]Row, len(a.Financials.Rows))
		for i, r := range a.Financials.Rows {
			r.Values = cloneStrings(r.Values)
			out.Financials.Rows[i] = r
		}
	}
	if a.Financials.Insights != nil {
		out.Financials.Insights = append([]Insight(nil), a.Financials.Insights...)
	}
	if a.Risks != nil {
		out.Risks = append([]Risk(nil), a.Risks...)
	}
	out.Thesis.BullCase = cloneStrings(a.Thesis.BullCase)
	out.Thesis.BearCase = cloneStrings(a.Thesis.BearCase)
	if a.Thesis.Comps != nil {
		out.Thesis.Comps = append([]Comp(nil), a.Thesis.Comps...)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
