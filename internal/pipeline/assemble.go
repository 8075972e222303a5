package pipeline

import (
	"strings"
	"time"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

// analysisTimePlaceholder is what the engine writes when asked for the
// analysis time it cannot know.
const analysisTimePlaceholder = "AI Analysis"

// AssembleMeta carries facts measured outside the engine.
type AssembleMeta struct {
	// Pages is the counted page total; 0 when unknown.
	Pages   int
	Elapsed time.Duration
}

// Assemble finalizes an artifact for the caller: every list is non-nil so
// it serializes as [], the counted page total replaces the engine's, and a
// placeholder analysis time is replaced with the measured one.
func Assemble(a artifact.Artifact, meta AssembleMeta) artifact.Artifact {
	out := a.Clone()

	out.Memo.GrowthDrivers = nonNil(out.Memo.GrowthDrivers)
	out.Memo.KeyConcerns = nonNil(out.Memo.KeyConcerns)
	out.Financials.Years = nonNil(out.Financials.Years)
	if out.Financials.Rows == nil {
		out.Financials.Rows = []artifact.Row{}
	}
	for i := range out.Financials.Rows {
		out.Financials.Rows[i].Values = nonNil(out.Financials.Rows[i].Values)
	}
	if out.Financials.Insights == nil {
		out.Financials.Insights = []artifact.Insight{}
	}
	if out.Risks == nil {
		out.Risks = []artifact.Risk{}
	}
	out.Thesis.BullCase = nonNil(out.Thesis.BullCase)
	out.Thesis.BearCase = nonNil(out.Thesis.BearCase)
	if out.Thesis.Comps == nil {
		out.Thesis.Comps = []artifact.Comp{}
	}

	if meta.Pages > 0 {
		out.CIMPages = meta.Pages
	}
	if t := strings.TrimSpace(out.AnalysisTime); t == "" || strings.EqualFold(t, analysisTimePlaceholder) {
		out.AnalysisTime = elapsedLabel(meta.Elapsed)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func elapsedLabel(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	return d.Round(time.Second).String()
}
