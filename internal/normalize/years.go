package normalize

import (
	"regexp"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

// projectedLabel matches year labels for forecasts, e.g. "FY2025E",
// "2026P", "FY25 Budget", "2025 Forecast".
var projectedLabel = regexp.MustCompile(`(?i)(\d{2,4}\s*[EFPB]\b|\b(forecast|projected|projection|budget|est|estimated?)\b)`)

// preferProjected keeps only projected columns when the table mixes
// historical and projected years. Rows of the wrong width are left alone.
// It returns the dropped year labels.
func preferProjected(t *artifact.FinancialTable) []string {
	var keep []int
	var dropped []string
	for i, y := range t.Years {
		if projectedLabel.MatchString(y) {
			keep = append(keep, i)
		} else {
			dropped = append(dropped, y)
		}
	}
	if len(keep) == 0 || len(dropped) == 0 {
		return nil
	}

	width := len(t.Years)
	t.Years = pick(t.Years, keep)
	for i := range t.Rows {
		if len(t.Rows[i].Values) == width {
			t.Rows[i].Values = pick(t.Rows[i].Values, keep)
		}
	}
	return dropped
}

func pick(in []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = in[j]
	}
	return out
}
