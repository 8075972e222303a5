package pipeline

import (
	"errors"
	"fmt"

	"github.com/sells-group/cim-analyzer/internal/extract"
	"github.com/sells-group/cim-analyzer/internal/ingest"
	"github.com/sells-group/cim-analyzer/internal/reasoning"
	"github.com/sells-group/cim-analyzer/internal/validate"
)

// Stage names a step of the analysis.
type Stage string

// Stages in execution order.
const (
	StageIngest    Stage = "ingest"
	StageReasoning Stage = "reasoning"
	StageExtract   Stage = "extract"
	StageValidate  Stage = "validate"
	StageNormalize Stage = "normalize"
	StageAssemble  Stage = "assemble"
)

// Kind classifies a failure.
type Kind string

// Failure kinds.
const (
	KindEmptyDocument        Kind = "empty_document"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindDocumentTooLarge     Kind = "document_too_large"
	KindUpstreamUnavailable  Kind = "upstream_unavailable"
	KindUpstreamTimeout      Kind = "upstream_timeout"
	KindUpstreamRejected     Kind = "upstream_rejected"
	KindEmptyExtraction      Kind = "empty_extraction"
	KindMalformedJSON        Kind = "malformed_json"
	KindSchemaViolation      Kind = "schema_violation"
	KindInternal             Kind = "internal"
)

// Error is a failed analysis. Raw holds the engine reply whenever one was
// received, so the failure can be diagnosed.
type Error struct {
	Stage      Stage
	Kind       Kind
	Raw        string
	Violations []validate.Violation
	Detail     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline: %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidInput reports whether the caller supplied a bad document.
func (e *Error) InvalidInput() bool {
	switch e.Kind {
	case KindEmptyDocument, KindUnsupportedMediaType, KindDocumentTooLarge:
		return true
	default:
		return false
	}
}

func ingestError(err error) *Error {
	kind := KindInternal
	switch {
	case errors.Is(err, ingest.ErrEmptyDocument):
		kind = KindEmptyDocument
	case errors.Is(err, ingest.ErrUnsupportedMediaType):
		kind = KindUnsupportedMediaType
	case errors.Is(err, ingest.ErrDocumentTooLarge):
		kind = KindDocumentTooLarge
	}
	return &Error{Stage: StageIngest, Kind: kind, Detail: err.Error(), Err: err}
}

func reasoningError(err error) *Error {
	out := &Error{Stage: StageReasoning, Kind: KindUpstreamUnavailable, Err: err}
	var re *reasoning.Error
	if errors.As(err, &re) {
		out.Detail = re.Detail
		out.StatusCode = re.StatusCode
		switch re.Kind {
		case reasoning.KindTimeout:
			out.Kind = KindUpstreamTimeout
		case reasoning.KindRejected:
			out.Kind = KindUpstreamRejected
		}
	} else {
		out.Detail = err.Error()
	}
	return out
}

func extractError(err error, raw string) *Error {
	kind := KindInternal
	if errors.Is(err, extract.ErrEmptyExtraction) {
		kind = KindEmptyExtraction
	}
	return &Error{Stage: StageExtract, Kind: kind, Raw: raw, Err: err}
}

func validateError(err error, raw string) *Error {
	out := &Error{Stage: StageValidate, Kind: KindInternal, Raw: raw, Err: err}
	var me *validate.MalformedJSONError
	var ve *validate.ViolationsError
	switch {
	case errors.As(err, &me):
		out.Kind = KindMalformedJSON
		out.Detail = me.Cause.Error()
	case errors.As(err, &ve):
		out.Kind = KindSchemaViolation
		out.Violations = ve.Violations
	}
	return out
}
