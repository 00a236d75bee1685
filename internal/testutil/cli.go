package testutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

var (
	buildOnce sync.Once
	binary    string
	buildErr  error
)

// CLIResult is one sqlgraph invocation with its JSON envelope decoded.
type CLIResult struct {
	OK       bool
	Data     map[string]interface{}
	Error    *CLIError
	Warnings []CLIWarning
	Meta     *CLIMeta
	RawJSON  string
	ExitCode int
}

// CLIError mirrors the envelope's error object.
type CLIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
}

// CLIWarning mirrors one envelope warning.
type CLIWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Plan    string `json:"plan,omitempty"`
}

// CLIMeta mirrors the envelope's meta object.
type CLIMeta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

// BuildCLI compiles ./cmd/sqlgraph once per test binary and returns its path.
func BuildCLI(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		root, err := moduleRoot()
		if err != nil {
			buildErr = err
			return
		}
		dir, err := os.MkdirTemp("", "sqlgraph-cli-*")
		if err != nil {
			buildErr = err
			return
		}
		name := "sqlgraph"
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		out := filepath.Join(dir, name)
		cmd := exec.Command("go", "build", "-o", out, "./cmd/sqlgraph")
		cmd.Dir = root
		if output, err := cmd.CombinedOutput(); err != nil {
			buildErr = fmt.Errorf("go build: %w\n%s", err, output)
			return
		}
		binary = out
	})
	if buildErr != nil {
		t.Fatalf("failed to build CLI: %v", buildErr)
	}
	return binary
}

// moduleRoot locates go.mod relative to this source file, so tests work from
// any package directory.
func moduleRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("cannot locate testutil source")
	}
	root := filepath.Join(filepath.Dir(file), "..", "..")
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		return "", fmt.Errorf("go.mod not found above %s: %w", file, err)
	}
	return root, nil
}

// RunCLI runs sqlgraph against the graph with --json, --db, --schema and a
// per-graph --config prepended to args.
func (g *TestGraph) RunCLI(args ...string) *CLIResult {
	g.t.Helper()

	full := append([]string{
		"--config", g.File("config.toml"),
		"--dialect", "sqlite",
		"--db", g.DBPath(),
		"--schema", g.File("topology.yaml"),
		"--json",
	}, args...)

	cmd := exec.Command(BuildCLI(g.t), full...)
	cmd.Dir = g.Path
	output, err := cmd.Output()

	r := &CLIResult{RawJSON: string(output)}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		r.ExitCode = exitErr.ExitCode()
	case err != nil:
		r.ExitCode = -1
	}

	var env struct {
		OK       bool                   `json:"ok"`
		Data     map[string]interface{} `json:"data"`
		Error    *CLIError              `json:"error"`
		Warnings []CLIWarning           `json:"warnings"`
		Meta     *CLIMeta               `json:"meta"`
	}
	if err := json.Unmarshal(output, &env); err != nil {
		r.Error = &CLIError{
			Code:    "PARSE_ERROR",
			Message: "output is not a JSON envelope: " + err.Error(),
			Details: map[string]interface{}{"raw": string(output)},
		}
		return r
	}
	r.OK, r.Data, r.Error, r.Warnings, r.Meta = env.OK, env.Data, env.Error, env.Warnings, env.Meta
	return r
}

// MustSucceed fails the test unless the envelope reports ok.
func (r *CLIResult) MustSucceed(t *testing.T) *CLIResult {
	t.Helper()
	if !r.OK {
		msg := "no error in envelope"
		if r.Error != nil {
			msg = r.Error.Code + ": " + r.Error.Message
		}
		t.Fatalf("expected success, got %s\nRaw output: %s", msg, r.RawJSON)
	}
	return r
}

// MustFail fails the test unless the command failed with code.
func (r *CLIResult) MustFail(t *testing.T, code string) *CLIResult {
	t.Helper()
	switch {
	case r.OK:
		t.Fatalf("expected failure %s, command succeeded\nRaw output: %s", code, r.RawJSON)
	case r.Error == nil:
		t.Fatalf("expected failure %s, envelope has no error\nRaw output: %s", code, r.RawJSON)
	case r.Error.Code != code:
		t.Fatalf("expected failure %s, got %s: %s", code, r.Error.Code, r.Error.Message)
	}
	return r
}

// MustFailWithMessage fails the test unless the command failed; a non-empty
// substr must appear in the message or suggestion.
func (r *CLIResult) MustFailWithMessage(t *testing.T, substr string) *CLIResult {
	t.Helper()
	if r.OK {
		t.Fatalf("expected failure, command succeeded\nRaw output: %s", r.RawJSON)
	}
	if substr != "" && r.Error != nil &&
		!strings.Contains(r.Error.Message, substr) && !strings.Contains(r.Error.Suggestion, substr) {
		t.Errorf("expected error mentioning %q, got %s (suggestion: %s)", substr, r.Error.Message, r.Error.Suggestion)
	}
	return r
}

// DataList returns data[key] as a list, or nil.
func (r *CLIResult) DataList(key string) []interface{} {
	list, _ := r.Data[key].([]interface{})
	return list
}

// DataString returns data[key] as a string, or "".
func (r *CLIResult) DataString(key string) string {
	s, _ := r.Data[key].(string)
	return s
}

// Plan returns the entry of data.plans named name.
func (r *CLIResult) Plan(t *testing.T, name string) map[string]interface{} {
	t.Helper()
	for _, item := range r.DataList("plans") {
		if p, ok := item.(map[string]interface{}); ok && p["name"] == name {
			return p
		}
	}
	t.Fatalf("plan %q not in output\nRaw: %s", name, r.RawJSON)
	return nil
}
