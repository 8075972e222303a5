package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/cim-analyzer/internal/pipeline"
	"github.com/sells-group/cim-analyzer/internal/validate"
)

const (
	msgNoFile          = "No file provided"
	msgInvalidDocument = "Invalid document"
	msgUpstream        = "Anthropic API failed"
	msgParse           = "Failed to parse AI response"
	msgInternal        = "Internal server error"
	msgRateLimited     = "Too many requests"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error      string               `json:"error"`
	Raw        string               `json:"raw,omitempty"`
	Detail     string               `json:"detail,omitempty"`
	Violations []validate.Violation `json:"violations,omitempty"`
	Stage      string               `json:"stage,omitempty"`
}

// errorResponse maps a pipeline failure to a status and body.
func errorResponse(err error) (int, errorBody) {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, errorBody{Error: msgInternal}
	}

	body := errorBody{Stage: string(pe.Stage), Raw: pe.Raw}
	switch pe.Stage {
	case pipeline.StageIngest:
		body.Error = msgInvalidDocument
		body.Detail = pe.Detail
	case pipeline.StageReasoning:
		body.Error = msgUpstream
		body.Detail = pe.Detail
	case pipeline.StageExtract, pipeline.StageValidate:
		body.Error = msgParse
		body.Detail = pe.Detail
		body.Violations = pe.Violations
	default:
		body.Error = msgInternal
	}

	if pe.InvalidInput() {
		return http.StatusBadRequest, body
	}
	return http.StatusInternalServerError, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}
