package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

// walker decodes a gjson document into an Artifact, recording a violation
// for every field that is missing or has the wrong JSON type. Display
// strings accept numbers verbatim; arrays are never synthesized from scalars.
type walker struct {
	violations []Violation
	warnings   []string
}

func (w *walker) fail(path, format string, args ...any) {
	w.violations = append(w.violations, Violation{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (w *walker) failedPaths() []string {
	out := make([]string, len(w.violations))
	for i, v := range w.violations {
		out[i] = v.Path
	}
	return out
}

func (w *walker) artifact(root gjson.Result) artifact.Artifact {
	var a artifact.Artifact
	a.CompanyName = w.str(root, "", "companyName")
	a.Industry = w.str(root, "", "industry")
	a.DealType = w.str(root, "", "dealType")
	a.ConfidenceScore = w.integer(root, "", "confidenceScore", false)
	a.EnterpriseValue = w.str(root, "", "enterpriseValue")
	a.Revenue = w.str(root, "", "revenue")
	a.EBITDA = w.str(root, "", "ebitda")
	a.EVEBITDAMultiple = w.str(root, "", "evEbitdaMultiple")
	a.Sponsor = w.str(root, "", "sponsor")
	a.Headquarters = w.str(root, "", "headquarters")
	a.Employees = w.str(root, "", "employees")
	a.Founded = w.str(root, "", "founded")
	a.Website = w.str(root, "", "website")
	a.CIMPages = w.integer(root, "", "cimPages", true)
	a.AnalysisTime = w.str(root, "", "analysisTime")

	if memo, path, ok := w.object(root, "", "memo"); ok {
		a.Memo = artifact.Memo{
			ExecutiveSummary: w.str(memo, path, "executiveSummary"),
			BusinessOverview: w.str(memo, path, "businessOverview"),
			GrowthDrivers:    w.strList(memo, path, "growthDrivers"),
			KeyConcerns:      w.strList(memo, path, "keyConcerns"),
			Recommendation:   w.str(memo, path, "recommendation"),
		}
	}

	if fin, path, ok := w.object(root, "", "financials"); ok {
		a.Financials.Years = w.strList(fin, path, "years")
		a.Financials.Rows = objects(w, fin, path, "rows", func(el gjson.Result, p string) artifact.Row {
			return artifact.Row{
				Label:       w.str(el, p, "label"),
				Values:      w.strList(el, p, "values"),
				IsHighlight: w.optBool(el, p, "isHighlight"),
			}
		})
		a.Financials.Insights = objects(w, fin, path, "insights", func(el gjson.Result, p string) artifact.Insight {
			return artifact.Insight{
				Label: w.str(el, p, "label"),
				Value: w.str(el, p, "value"),
				Note:  w.str(el, p, "note"),
			}
		})
	}

	a.Risks = objects(w, root, "", "risks", func(el gjson.Result, p string) artifact.Risk {
		return artifact.Risk{
			Title:       w.str(el, p, "title"),
			Severity:    artifact.Severity(w.str(el, p, "severity")),
			Description: w.str(el, p, "description"),
			Mitigation:  w.str(el, p, "mitigation"),
		}
	})

	if th, path, ok := w.object(root, "", "thesis"); ok {
		a.Thesis.BullCase = w.strList(th, path, "bullCase")
		a.Thesis.BearCase = w.strList(th, path, "bearCase")
		a.Thesis.BaseCase = w.str(th, path, "baseCase")
		a.Thesis.Comps = objects(w, th, path, "comps", func(el gjson.Result, p string) artifact.Comp {
			return artifact.Comp{
				Name:      w.str(el, p, "name"),
				EVEBITDA:  w.str(el, p, "evEbitda"),
				EVRevenue: w.str(el, p, "evRevenue"),
				Year:      w.str(el, p, "year"),
			}
		})
	}
	return a
}

func (w *walker) str(obj gjson.Result, parent, key string) string {
	path := join(parent, key)
	v := obj.Get(key)
	return w.scalarString(v, path)
}

func (w *walker) scalarString(v gjson.Result, path string) string {
	switch {
	case !v.Exists():
		w.fail(path, "is required")
	case v.Type == gjson.String:
		return v.Str
	case v.Type == gjson.Number:
		return v.Raw
	default:
		w.fail(path, "must be a string, got %s", kindOf(v))
	}
	return ""
}

// integer reads a whole number. When allowND is set the sentinel is accepted
// as unknown and decoded as 0.
func (w *walker) integer(obj gjson.Result, parent, key string, allowND bool) int {
	path := join(parent, key)
	v := obj.Get(key)
	switch {
	case !v.Exists():
		w.fail(path, "is required")
	case v.Type == gjson.Number:
		if v.Num != math.Trunc(v.Num) || math.Abs(v.Num) > math.MaxInt32 {
			w.fail(path, "must be an integer, got %s", v.Raw)
			return 0
		}
		return int(v.Num)
	case v.Type == gjson.String && allowND && isNotDisclosed(v.Str):
		w.warnings = append(w.warnings, path+" not disclosed")
	default:
		w.fail(path, "must be an integer, got %s", kindOf(v))
	}
	return 0
}

func (w *walker) optBool(obj gjson.Result, parent, key string) bool {
	v := obj.Get(key)
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return false
	case v.Type == gjson.True || v.Type == gjson.False:
		return v.Bool()
	default:
		w.fail(join(parent, key), "must be a boolean, got %s", kindOf(v))
		return false
	}
}

func (w *walker) object(obj gjson.Result, parent, key string) (gjson.Result, string, bool) {
	path := join(parent, key)
	v := obj.Get(key)
	switch {
	case !v.Exists():
		w.fail(path, "is required")
	case !v.IsObject():
		w.fail(path, "must be an object, got %s", kindOf(v))
	default:
		return v, path, true
	}
	return gjson.Result{}, path, false
}

func (w *walker) array(obj gjson.Result, parent, key string) ([]gjson.Result, string, bool) {
	path := join(parent, key)
	v := obj.Get(key)
	switch {
	case !v.Exists():
		w.fail(path, "is required")
	case !v.IsArray():
		w.fail(path, "must be an array, got %s", kindOf(v))
	default:
		return v.Array(), path, true
	}
	return nil, path, false
}

func (w *walker) strList(obj gjson.Result, parent, key string) []string {
	items, path, ok := w.array(obj, parent, key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for i, el := range items {
		out = append(out, w.scalarString(el, index(path, i)))
	}
	return out
}

// objects decodes an array of objects. Elements that are not objects are
// reported and left as zero values so indexes stay aligned with the document.
func objects[T any](w *walker, obj gjson.Result, parent, key string, decode func(el gjson.Result, path string) T) []T {
	items, path, ok := w.array(obj, parent, key)
	if !ok {
		return nil
	}
	out := make([]T, len(items))
	for i, el := range items {
		p := index(path, i)
		if !el.IsObject() {
			w.fail(p, "must be an object, got %s", kindOf(el))
			continue
		}
		out[i] = decode(el, p)
	}
	return out
}

func join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func kindOf(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Null:
		return "null"
	default:
		if v.IsArray() {
			return "array"
		}
		return "object"
	}
}

// isNotDisclosed matches the sentinel in any case or spacing, e.g. "n / d".
func isNotDisclosed(s string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(s), ""), artifact.NotDisclosed)
}
