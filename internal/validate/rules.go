package validate

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

// constraints is read-only after init and safe for concurrent use.
var constraints = newConstraints()

// fieldRank maps a dotted field path (indexes removed) to its position
// among its siblings in the artifact's JSON order.
var fieldRank = buildFieldRank(reflect.TypeOf(artifact.Artifact{}), "", map[string]int{})

func newConstraints() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(rowWidthRule, artifact.FinancialTable{})
	return v
}

// rowWidthRule requires one value per year in every row.
func rowWidthRule(sl validator.StructLevel) {
	t := sl.Current().Interface().(artifact.FinancialTable)
	for i, r := range t.Rows {
		if len(r.Values) != len(t.Years) {
			sl.ReportError(r.Values, fmt.Sprintf("rows[%d].values", i), "Values", "row_width", strconv.Itoa(len(t.Years)))
		}
	}
}

// yearsPath is the financial table's year list. When it fails the shape
// walk the table has no years, so row widths are not checked.
const yearsPath = "financials.years"

// constraintViolations runs the struct tag rules. Paths that already failed
// the shape walk, or sit beneath one, are skipped.
func constraintViolations(a artifact.Artifact, failed []string) []Violation {
	err := constraints.Struct(a)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Violation{{Path: "", Message: err.Error()}}
	}

	skipWidths := slices.Contains(failed, yearsPath)
	var out []Violation
	for _, fe := range verrs {
		if skipWidths && fe.Tag() == "row_width" {
			continue
		}
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		if coveredBy(path, failed) {
			continue
		}
		out = append(out, Violation{Path: path, Message: constraintMessage(fe)})
	}
	return out
}

func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of %s, got %q", strings.Join(strings.Fields(fe.Param()), ", "), fmt.Sprint(fe.Value()))
	case "min":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "row_width":
		n := 0
		if vals, ok := fe.Value().([]string); ok {
			n = len(vals)
		}
		return fmt.Sprintf("has %d values, want %s (one per year)", n, fe.Param())
	default:
		return fmt.Sprintf("failed %s constraint", fe.Tag())
	}
}

func coveredBy(path string, failed []string) bool {
	for _, f := range failed {
		if path == f || strings.HasPrefix(path, f+".") || strings.HasPrefix(path, f+"[") {
			return true
		}
	}
	return false
}

// sortViolations orders violations by position in the artifact schema,
// array elements by index.
func sortViolations(vs []Violation) {
	slices.SortStableFunc(vs, func(a, b Violation) int {
		return slices.Compare(pathKey(a.Path), pathKey(b.Path))
	})
}

func pathKey(path string) []int {
	var key []int
	var prefix string
	for _, seg := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(seg, "[")
		prefix = join(prefix, name)
		rank, ok := fieldRank[prefix]
		if !ok {
			rank = len(fieldRank)
		}
		key = append(key, rank)
		for rest != "" {
			idx, after, _ := strings.Cut(rest, "]")
			n, _ := strconv.Atoi(idx)
			key = append(key, n)
			rest = strings.TrimPrefix(after, "[")
		}
	}
	return key
}

func buildFieldRank(t reflect.Type, prefix string, ranks map[string]int) map[string]int {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		key := join(prefix, name)
		ranks[key] = i

		ft := f.Type
		if ft.Kind() == reflect.Slice {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			buildFieldRank(ft, key, ranks)
		}
	}
	return ranks
}
