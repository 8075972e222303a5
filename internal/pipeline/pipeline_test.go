package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cim-analyzer/internal/artifact"
	"github.com/sells-group/cim-analyzer/internal/contract"
	"github.com/sells-group/cim-analyzer/internal/ingest"
	"github.com/sells-group/cim-analyzer/internal/reasoning"
	"github.com/sells-group/cim-analyzer/pkg/anthropic"
)

const engineReply = `{
  "companyName": "Northwind Logistics Inc.",
  "industry": "Transportation & Logistics",
  "dealType": "Platform Acquisition",
  "confidenceScore": 78,
  "enterpriseValue": "C$185m",
  "revenue": "C$16,145 thousand",
  "ebitda": "N/D",
  "evEbitdaMultiple": "8.6x",
  "sponsor": "N/D",
  "headquarters": "Toronto, ON",
  "employees": "1,250",
  "founded": "1998",
  "website": "northwind.example",
  "cimPages": 0,
  "analysisTime": "AI Analysis",
  "memo": {
    "executiveSummary": "Summary.",
    "businessOverview": "Overview.",
    "growthDrivers": ["Cross-border volume", "Cold chain", "Pricing"],
    "keyConcerns": ["Customer concentration", "Fuel costs", "Driver turnover"],
    "recommendation": "Proceed with conditions."
  },
  "financials": {
    "years": ["FY2023A", "FY2024E", "FY2025E"],
    "rows": [
      {"label": "Revenue", "values": ["C$14,010 thousand", "C$16,145 thousand", "C$17,900 thousand"], "isHighlight": true},
      {"label": "EBITDA Margin", "values": ["14%", "15%", "N/D"]}
    ],
    "insights": [
      {"label": "Revenue CAGR", "value": "8.8%", "note": "Organic."}
    ]
  },
  "risks": [
    {"title": "Fuel", "severity": "low", "description": "Pass-through lag.", "mitigation": "Check surcharges."},
    {"title": "Concentration", "severity": "high", "description": "Top customer 22%.", "mitigation": "Review contracts."}
  ],
  "thesis": {
    "bullCase": ["a", "b", "c", "d"],
    "bearCase": ["a", "b", "c", "d"],
    "baseCase": "Base case.",
    "comps": []
  }
}`

func makePDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Cell(40, 10, fmt.Sprintf("Confidential Information Memorandum, page %d", i+1))
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, api anthropic.Client) *Pipeline {
	t.Helper()
	k, err := contract.Default()
	require.NoError(t, err)
	return New(ingest.New(0), reasoning.New(api, reasoning.Options{}), k, nil)
}

func pipelineError(t *testing.T, err error) *Error {
	t.Helper()
	var pe *Error
	require.True(t, errors.As(err, &pe), "want *pipeline.Error, got %v", err)
	return pe
}

func TestRun_EndToEnd(t *testing.T) {
	api := &mockAnthropicClient{}
	api.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 && len(req.Messages[0].Documents) == 1
	})).Return(textReply(engineReply), nil).Once()

	p := newTestPipeline(t, api)
	out, err := p.Run(context.Background(), Document{Name: "northwind.pdf", Data: makePDF(t, 2), MediaType: "application/pdf"})
	require.NoError(t, err)

	a := out.Artifact
	assert.Equal(t, 2, a.CIMPages)
	assert.Equal(t, "C$16.1m", a.Revenue)
	assert.Equal(t, artifact.NotDisclosed, a.EBITDA)
	assert.NotEqual(t, "AI Analysis", a.AnalysisTime)
	assert.NotEmpty(t, a.AnalysisTime)
	assert.Equal(t, []string{"FY2024E", "FY2025E"}, a.Financials.Years)
	assert.Equal(t, []string{"C$16.1m", "C$17.9m"}, a.Financials.Rows[0].Values)
	assert.Equal(t, artifact.SeverityHigh, a.Risks[0].Severity)
	assert.NotNil(t, a.Thesis.Comps)

	assert.Equal(t, "cim-v1", out.ContractVersion)
	assert.Equal(t, "claude-opus-4-6", out.Model)
	assert.Equal(t, int64(48000), out.Usage.InputTokens)
	assert.Greater(t, out.CostUSD, 0.0)
	assert.Empty(t, out.Warnings)
	api.AssertExpectations(t)
}

func TestRun_LogsEveryStage(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	api := &mockAnthropicClient{}
	api.On("CreateMessage", mock.Anything, mock.Anything).Return(textReply(engineReply), nil).Once()

	_, err := newTestPipeline(t, api).Run(context.Background(), Document{Name: "northwind.pdf", Data: makePDF(t, 1), MediaType: "application/pdf"})
	require.NoError(t, err)

	var stages []string
	for _, e := range logs.FilterMessage("pipeline: stage complete").All() {
		stages = append(stages, e.ContextMap()["stage"].(string))
	}
	assert.Equal(t, []string{"ingest", "reasoning", "extract", "validate", "normalize", "assemble"}, stages)
	assert.Zero(t, logs.FilterMessage("pipeline: stage failed").Len())
}

func TestRun_FencedReplyWithProse(t *testing.T) {
	api := &mockAnthropicClient{}
	api.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textReply("Here is the analysis:\n```json\n"+engineReply+"\n```"), nil)

	out, err := newTestPipeline(t, api).Run(context.Background(), Document{Data: makePDF(t, 1)})
	require.NoError(t, err)
	assert.Equal(t, "Northwind Logistics Inc.", out.Artifact.CompanyName)
	assert.Equal(t, 1, out.Artifact.CIMPages)
}

func TestRun_MalformedReplyKeepsRaw(t *testing.T) {
	api := &mockAnthropicClient{}
	api.On("CreateMessage", mock.Anything, mock.Anything).Return(textReply("not json at all"), nil)

	_, err := newTestPipeline(t, api).Run(context.Background(), Document{Data: makePDF(t, 1)})
	pe := pipelineError(t, err)
	assert.Equal(t, StageValidate, pe.Stage)
	assert.Equal(t, KindMalformedJSON, pe.Kind)
	assert.Equal(t, "not json at all", pe.Raw)
	assert.False(t, pe.InvalidInput())
}

func TestRun_SchemaViolation(t *testing.T) {
	reply, err := sjson.SetRaw(engineReply, "financials.rows.0.values", `["C$1m"]`)
	require.NoError(t, err)

	api := &mockAnthropicClient{}
	api.On("CreateMessage", mock.Anything, mock.Anything).Return(textReply(reply), nil)

	_, err = newTestPipeline(t, api).Run(context.Background(), Document{Data: makePDF(t, 1)})
	pe := pipelineError(t, err)
	assert.Equal(t, KindSchemaViolation, pe.Kind)
	require.Len(t, pe.Violations, 1)
	assert.True(t, strings.HasPrefix(pe.Violations[0].Path, "financials.rows[0]"))
	assert.Equal(t, reply, pe.Raw)
}

func TestRun_EmptyReply(t *testing.T) {
	api := &mockAnthropicClient{}
	api.On("CreateMessage", mock.Anything, mock.Anything).Return(textReply("  "), nil)

	_, err := newTestPipeline(t, api).Run(context.Background(), Document{Data: makePDF(t, 1)})
	pe := pipelineError(t, err)
	assert.Equal(t, StageExtract, pe.Stage)
	assert.Equal(t, KindEmptyExtraction, pe.Kind)
	assert.Equal(t, "  ", pe.Raw)
}

func TestRun_InvalidInputNeverCallsEngine(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		kind Kind
	}{
		{"empty", Document{Name: "empty.pdf"}, KindEmptyDocument},
		{"text", Document{Data: []byte("plain text"), MediaType: "text/plain"}, KindUnsupportedMediaType},
		{"sniffed text", Document{Data: []byte("plain text")}, KindUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAnthropicClient{}
			_, err := newTestPipeline(t, api).Run(context.Background(), tt.doc)
			pe := pipelineError(t, err)
			assert.Equal(t, StageIngest, pe.Stage)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.True(t, pe.InvalidInput())
			api.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
		})
	}
}

func TestRun_DocumentTooLarge(t *testing.T) {
	k, err := contract.Default()
	require.NoError(t, err)
	api := &mockAnthropicClient{}
	p := New(ingest.New(16), reasoning.New(api, reasoning.Options{}), k, nil)

	_, err = p.Run(context.Background(), Document{Data: makePDF(t, 1)})
	pe := pipelineError(t, err)
	assert.Equal(t, KindDocumentTooLarge, pe.Kind)
}

func TestRun_UpstreamRejected(t *testing.T) {
	api := &mockAnthropicClient{}
	api.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, &anthropic.APIError{StatusCode: 400, Body: `{"error":{"message":"bad pdf"}}`})

	_, err := newTestPipeline(t, api).Run(context.Background(), Document{Data: makePDF(t, 1)})
	pe := pipelineError(t, err)
	assert.Equal(t, StageReasoning, pe.Stage)
	assert.Equal(t, KindUpstreamRejected, pe.Kind)
	assert.Equal(t, 400, pe.StatusCode)
	assert.Contains(t, pe.Detail, "bad pdf")
	assert.Empty(t, pe.Raw)
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	api := &mockAnthropicClient{}
	api.On("CreateMessage", mock.Anything, mock.Anything).Return(textReply(engineReply), nil)
	p := newTestPipeline(t, api)

	docs := [][]byte{makePDF(t, 1), makePDF(t, 2), makePDF(t, 3), makePDF(t, 4)}
	pages := make([]int, len(docs))

	var g errgroup.Group
	for i, data := range docs {
		g.Go(func() error {
			out, err := p.Run(context.Background(), Document{Name: fmt.Sprintf("doc-%d", i), Data: data})
			if err != nil {
				return err
			}
			pages[i] = out.Artifact.CIMPages
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, []int{1, 2, 3, 4}, pages)
}
