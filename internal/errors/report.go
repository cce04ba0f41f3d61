package errors

import (
	"encoding/json"
	"errors"

	"github.com/sd-lang/sdcore/internal/ast"
)

// SchemaV1 identifies the wire shape of a Report for forward-compatible
// decoding by tooling that only understands some report fields.
const SchemaV1 = "sdcore.error/v1"

// Report is the canonical structured error type for the simulation core.
// Every static or runtime diagnostic produced by the parser, analyzer,
// compiler, VM or loop analyzer is a *Report.
type Report struct {
	Schema  string         `json:"schema"`
	Code    string         `json:"code"`  // e.g. DIM002, SIM001
	Phase   string         `json:"phase"` // "parse", "analyze", "compile", "sim", "loop"
	Message string         `json:"message"`
	Model   string         `json:"model,omitempty"`
	Var     string         `json:"variable,omitempty"`
	Span    *ast.Span      `json:"span,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Fix     *Fix           `json:"fix,omitempty"`
}

// Fix is a suggested remediation attached to a Report.
type Fix struct {
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

// ReportError wraps a Report so it survives errors.As() unwrapping while
// a Go error chain passes through ordinary function returns.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport extracts a *Report from an error chain, if present.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// WrapReport wraps a Report as an error for normal Go error propagation.
func WrapReport(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// ToJSON renders a Report as JSON, indented unless compact is requested.
func (r *Report) ToJSON(compact bool) (string, error) {
	if compact {
		data, err := json.Marshal(r)
		return string(data), err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	return string(data), err
}

// New builds a Report with the given code/phase/message, defaulting
// Schema to SchemaV1.
func New(code, phase, message string) *Report {
	return &Report{Schema: SchemaV1, Code: code, Phase: phase, Message: message}
}

func (r *Report) WithVar(model, v string) *Report {
	r.Model = model
	r.Var = v
	return r
}

func (r *Report) WithSpan(s ast.Span) *Report {
	r.Span = &s
	return r
}

func (r *Report) WithData(k string, v any) *Report {
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	r.Data[k] = v
	return r
}

func (r *Report) WithFix(suggestion string, confidence float64) *Report {
	r.Fix = &Fix{Suggestion: suggestion, Confidence: confidence}
	return r
}
