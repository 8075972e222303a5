// Package pipeline turns one document into a validated, normalized analysis
// artifact. Stages run strictly in order: ingest, reasoning, extract,
// validate, normalize, assemble. A Pipeline holds no per-request state and
// is safe for concurrent use.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/cim-analyzer/internal/artifact"
	"github.com/sells-group/cim-analyzer/internal/contract"
	"github.com/sells-group/cim-analyzer/internal/cost"
	"github.com/sells-group/cim-analyzer/internal/extract"
	"github.com/sells-group/cim-analyzer/internal/ingest"
	"github.com/sells-group/cim-analyzer/internal/normalize"
	"github.com/sells-group/cim-analyzer/internal/reasoning"
	"github.com/sells-group/cim-analyzer/internal/validate"
	"github.com/sells-group/cim-analyzer/pkg/anthropic"
)

// Engine produces the raw reply for a document.
type Engine interface {
	Analyze(ctx context.Context, payload *ingest.Payload, k *contract.Contract) (*reasoning.Reply, error)
}

// Document is one submission.
type Document struct {
	Name      string
	Data      []byte
	MediaType string
}

// Outcome is a successful analysis.
type Outcome struct {
	Artifact        artifact.Artifact
	Warnings        []string
	Usage           anthropic.TokenUsage
	CostUSD         float64
	Model           string
	ContractVersion string
	Duration        time.Duration
}

// Pipeline wires the stages together.
type Pipeline struct {
	ingestor *ingest.Ingestor
	engine   Engine
	contract *contract.Contract
	costCalc *cost.Calculator
}

// New creates a Pipeline. A nil calculator uses the default rates.
func New(ingestor *ingest.Ingestor, engine Engine, k *contract.Contract, calc *cost.Calculator) *Pipeline {
	if ingestor == nil {
		ingestor = ingest.New(0)
	}
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	return &Pipeline{ingestor: ingestor, engine: engine, contract: k, costCalc: calc}
}

// Contract returns the active instruction contract.
func (p *Pipeline) Contract() *contract.Contract {
	return p.contract
}

// Run analyzes doc. Every failure is a *Error naming the stage.
func (p *Pipeline) Run(ctx context.Context, doc Document) (*Outcome, error) {
	start := time.Now()
	log := zap.L().With(
		zap.String("document", doc.Name),
		zap.String("contract", p.contract.Version),
		zap.String("fingerprint", p.contract.Fingerprint()),
	)
	log.Info("pipeline: starting analysis", zap.Int("bytes", len(doc.Data)))

	stageComplete := func(stage Stage, since time.Time) {
		log.Info("pipeline: stage complete",
			zap.String("stage", string(stage)),
			zap.Int64("duration_ms", time.Since(since).Milliseconds()),
		)
	}
	trackStage := func(stage Stage, fn func() *Error) *Error {
		stageStart := time.Now()
		err := fn()
		if err != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", string(stage)),
				zap.String("kind", string(err.Kind)),
				zap.Int64("duration_ms", time.Since(stageStart).Milliseconds()),
				zap.Error(err.Err),
			)
			if err.Raw != "" {
				log.Debug("pipeline: raw reply", zap.String("raw", err.Raw))
			}
			return err
		}
		stageComplete(stage, stageStart)
		return nil
	}

	var (
		payload  *ingest.Payload
		pages    int
		reply    *reasoning.Reply
		cand     string
		valid    *validate.Result
		warnings []string
	)

	// Stage 2: ingest
	if err := trackStage(StageIngest, func() *Error {
		var ingErr error
		payload, ingErr = p.ingestor.Ingest(doc.Data, doc.MediaType)
		if ingErr != nil {
			return ingestError(ingErr)
		}
		n, countErr := ingest.CountPages(doc.Data)
		if countErr != nil {
			log.Warn("pipeline: page count unavailable", zap.Error(countErr))
		} else {
			pages = n
		}
		return nil
	}); err != nil {
		return nil, err
	}

	// Stage 3: reasoning
	if err := trackStage(StageReasoning, func() *Error {
		var engErr error
		reply, engErr = p.engine.Analyze(ctx, payload, p.contract)
		if engErr != nil {
			return reasoningError(engErr)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	model := reply.Model
	if model == "" {
		model = p.contract.Model
	}
	costUSD := p.costCalc.Usage(model, reply.Usage)
	reply.Usage.LogUsage(model, "analyze", costUSD)

	// Stage 4: extract
	if err := trackStage(StageExtract, func() *Error {
		var exErr error
		cand, exErr = extract.Extract(reply.Text)
		if exErr != nil {
			return extractError(exErr, reply.Text)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	// Stage 5: validate
	if err := trackStage(StageValidate, func() *Error {
		var valErr error
		valid, valErr = validate.Validate(cand)
		if valErr != nil {
			return validateError(valErr, reply.Text)
		}
		warnings = append(warnings, valid.Warnings...)
		return nil
	}); err != nil {
		return nil, err
	}

	// Stage 6: normalize. Normalization and assembly cannot fail.
	normStart := time.Now()
	norm, rep := normalize.NormalizeWithReport(valid.Artifact)
	warnings = append(warnings, rep.Warnings...)
	warnings = append(warnings, validate.Plausibility(norm)...)
	if len(rep.DroppedYears) > 0 || rep.Rescaled > 0 {
		log.Debug("pipeline: normalized figures",
			zap.String("currency", rep.Currency),
			zap.Int("rescaled", rep.Rescaled),
			zap.Strings("dropped_years", rep.DroppedYears),
		)
	}
	stageComplete(StageNormalize, normStart)

	// Stage 7: assemble
	elapsed := time.Since(start)
	assembleStart := time.Now()
	final := Assemble(norm, AssembleMeta{Pages: pages, Elapsed: elapsed})
	stageComplete(StageAssemble, assembleStart)

	for _, w := range warnings {
		log.Warn("pipeline: artifact warning", zap.String("warning", w))
	}
	log.Info("pipeline: analysis complete",
		zap.String("company", final.CompanyName),
		zap.Int("pages", final.CIMPages),
		zap.Int("warnings", len(warnings)),
		zap.Duration("elapsed", elapsed),
	)

	return &Outcome{
		Artifact:        final,
		Warnings:        warnings,
		Usage:           reply.Usage,
		CostUSD:         costUSD,
		Model:           model,
		ContractVersion: p.contract.Version,
		Duration:        elapsed,
	}, nil
}
