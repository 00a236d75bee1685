package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// jsonOutput is set by --json.
var jsonOutput bool

// Response is the envelope every --json invocation writes to stdout, exactly
// once.
type Response struct {
	OK       bool        `json:"ok"`
	Data     interface{} `json:"data,omitempty"`
	Error    *ErrorInfo  `json:"error,omitempty"`
	Warnings []Warning   `json:"warnings,omitempty"`
	Meta     *Meta       `json:"meta,omitempty"`
}

// ErrorInfo is the envelope's error object. Code is one of the Err* codes.
type ErrorInfo struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Warning flags a plan that compiled but will not yield what the user likely
// expects.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Plan    string `json:"plan,omitempty"`
}

const (
	WarnRootPruned = "ROOT_PRUNED"
	WarnNoPaths    = "NO_PATHS"
)

// Meta carries result counts and wall time.
type Meta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

// exitError is returned after an error envelope was written, so main exits
// non-zero without printing the error a second time.
type exitError struct{ code string }

func (e *exitError) Error() string { return e.code }

// IsReported reports whether err was already written as a JSON envelope.
func IsReported(err error) bool {
	var ee *exitError
	return errors.As(err, &ee)
}

func isJSONOutput() bool { return jsonOutput }

func writeEnvelope(resp Response) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "sqlgraph: encode response: %v\n", err)
	}
}

func outputSuccess(data interface{}, meta *Meta) {
	outputSuccessWithWarnings(data, nil, meta)
}

func outputSuccessWithWarnings(data interface{}, warnings []Warning, meta *Meta) {
	writeEnvelope(Response{OK: true, Data: data, Warnings: warnings, Meta: meta})
}

// handleError reports err under code. With --json the envelope is written and
// an *exitError returned; otherwise err comes back, with the suggestion
// appended after a blank line, for cobra to print.
func handleError(code string, err error, suggestion string) error {
	if !jsonOutput {
		if suggestion == "" {
			return err
		}
		return fmt.Errorf("%w\n\n%s", err, suggestion)
	}
	writeEnvelope(Response{Error: &ErrorInfo{Code: code, Message: err.Error(), Suggestion: suggestion}})
	return &exitError{code: code}
}

func handleErrorMsg(code, message, suggestion string) error {
	return handleError(code, errors.New(message), suggestion)
}
