// Package validate checks a candidate reply against the artifact schema and
// decodes it. Shape errors and value constraint errors are collected in one
// pass and reported together.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/cim-analyzer/internal/artifact"
)

// WarnRepaired is recorded when a truncated object had to be closed.
const WarnRepaired = "repaired truncated JSON"

// Violation is one schema failure at a JSON path such as financials.rows[0].values.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Path + ": " + v.Message
}

// ViolationsError lists every schema failure found in a candidate.
type ViolationsError struct {
	Violations []Violation
}

func (e *ViolationsError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("validate: %d schema violation(s): %s", len(e.Violations), strings.Join(parts, "; "))
}

// MalformedJSONError is returned when the candidate is not a JSON object.
// Raw is the candidate exactly as received.
type MalformedJSONError struct {
	Raw   string
	Cause error
}

func (e *MalformedJSONError) Error() string {
	return "validate: malformed JSON: " + e.Cause.Error()
}

func (e *MalformedJSONError) Unwrap() error {
	return e.Cause
}

// Result is a schema-conformant artifact plus soft warnings.
type Result struct {
	Artifact artifact.Artifact
	Warnings []string
}

// Validate parses candidate, checks it against the schema and returns the
// decoded artifact. Errors are *MalformedJSONError or *ViolationsError.
func Validate(candidate string) (*Result, error) {
	root, warnings, err := parse(candidate)
	if err != nil {
		return nil, err
	}

	w := &walker{}
	a := w.artifact(root)

	violations := w.violations
	violations = append(violations, constraintViolations(a, w.failedPaths())...)
	if len(violations) > 0 {
		sortViolations(violations)
		return nil, &ViolationsError{Violations: violations}
	}

	warnings = append(warnings, w.warnings...)
	warnings = append(warnings, listLengthWarnings(a)...)
	return &Result{Artifact: a, Warnings: warnings}, nil
}

func parse(candidate string) (gjson.Result, []string, error) {
	text := strings.TrimSpace(candidate)
	if gjson.Valid(text) {
		root := gjson.Parse(text)
		if !root.IsObject() {
			return gjson.Result{}, nil, &MalformedJSONError{
				Raw:   candidate,
				Cause: eris.Errorf("top-level value is %s, want object", kindOf(root)),
			}
		}
		return root, nil, nil
	}

	cause := syntaxError(text)
	if strings.HasPrefix(text, "{") {
		if repaired, err := jsonrepair.RepairJSON(text); err == nil && gjson.Valid(repaired) {
			if root := gjson.Parse(repaired); root.IsObject() {
				return root, []string{WarnRepaired}, nil
			}
		}
	}
	return gjson.Result{}, nil, &MalformedJSONError{Raw: candidate, Cause: cause}
}

// syntaxError describes why text is not valid JSON, with the byte offset.
func syntaxError(text string) error {
	if text == "" {
		return eris.New("empty input")
	}
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return eris.Wrap(err, "parse")
	}
	return eris.New("invalid JSON")
}
