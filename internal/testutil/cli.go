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
	buildOnce  sync.Once
	binaryPath string
	buildErr   error
)

// CLIResult represents the result of running a CLI command.
type CLIResult struct {
	OK       bool
	Data     map[string]any
	Error    *CLIError
	Warnings []CLIWarning
	Meta     *CLIMeta
	RawJSON  string
	ExitCode int
}

// CLIError represents a structured error from the CLI.
type CLIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
}

// CLIWarning represents a warning from the CLI.
type CLIWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// CLIMeta contains metadata from the response.
type CLIMeta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

// BuildCLI compiles ./cmd/mtgls on first use and returns the binary path.
// Every later call in the process reuses that result.
func BuildCLI(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		binaryPath, buildErr = buildBinary()
	})
	if buildErr != nil {
		t.Fatalf("building mtgls: %v", buildErr)
	}
	return binaryPath
}

func buildBinary() (string, error) {
	root, err := moduleRoot()
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp("", "mtgls-bin-*")
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, "mtgls")
	if runtime.GOOS == "windows" {
		out += ".exe"
	}
	cmd := exec.Command("go", "build", "-o", out, "./cmd/mtgls")
	cmd.Dir = root
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w\n%s", err, output)
	}
	return out, nil
}

// moduleRoot is the nearest ancestor of the working directory holding go.mod.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for ; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return "", fmt.Errorf("no go.mod above %s", dir)
		}
	}
}

// Workspace is a scratch directory with a config file pointing the CLI at
// a FakeAPI.
type Workspace struct {
	t    *testing.T
	API  *FakeAPI
	Dir  string
	Data string
}

// NewWorkspace creates a workspace whose config disables retries and rate
// limiting.
func NewWorkspace(t *testing.T, api *FakeAPI) *Workspace {
	t.Helper()
	dir := t.TempDir()
	w := &Workspace{t: t, API: api, Dir: dir, Data: filepath.Join(dir, "data")}
	w.WriteFile("config.toml", "requests_per_second = 0\nmax_retries = 0\n")
	return w
}

// WriteFile writes content relative to the workspace and returns its path.
func (w *Workspace) WriteFile(name, content string) string {
	w.t.Helper()
	path := filepath.Join(w.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		w.t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		w.t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// RunCLI executes the built binary inside the workspace with --json and
// returns the parsed envelope.
func (w *Workspace) RunCLI(args ...string) *CLIResult {
	w.t.Helper()
	binary := BuildCLI(w.t)

	cmdArgs := []string{
		"--config", filepath.Join(w.Dir, "config.toml"),
		"--env-file", filepath.Join(w.Dir, ".env"),
		"--data-dir", w.Data,
		"--api-base-url", w.API.URL(),
		"--json",
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.Command(binary, cmdArgs...)
	cmd.Dir = w.Dir
	cmd.Env = cleanEnv()
	// Logs go to stderr; only stdout carries the envelope.
	output, err := cmd.Output()

	result := &CLIResult{RawJSON: string(output)}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
	}

	var resp struct {
		OK       bool           `json:"ok"`
		Data     map[string]any `json:"data,omitempty"`
		Error    *CLIError      `json:"error,omitempty"`
		Warnings []CLIWarning   `json:"warnings,omitempty"`
		Meta     *CLIMeta       `json:"meta,omitempty"`
	}
	if err := json.Unmarshal(output, &resp); err != nil {
		result.OK = false
		result.Error = &CLIError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse JSON output: " + err.Error(),
			Details: map[string]any{"raw": string(output)},
		}
		return result
	}

	result.OK = resp.OK
	result.Data = resp.Data
	result.Error = resp.Error
	result.Warnings = resp.Warnings
	result.Meta = resp.Meta
	return result
}

// cleanEnv drops MTGLS_* variables so the host environment cannot leak
// into a run.
func cleanEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "MTGLS_") {
			env = append(env, kv)
		}
	}
	return env
}

// MustSucceed fails the test if the CLI command did not succeed.
func (r *CLIResult) MustSucceed(t *testing.T) *CLIResult {
	t.Helper()
	if !r.OK {
		errMsg := "unknown error"
		if r.Error != nil {
			errMsg = r.Error.Code + ": " + r.Error.Message
		}
		t.Fatalf("expected command to succeed, got error: %s\nRaw output: %s", errMsg, r.RawJSON)
	}
	return r
}

// MustFail fails the test if the CLI command did not fail with the expected code.
func (r *CLIResult) MustFail(t *testing.T, expectedCode string) *CLIResult {
	t.Helper()
	if r.OK {
		t.Fatalf("expected command to fail with code %s, but it succeeded\nRaw output: %s", expectedCode, r.RawJSON)
	}
	if r.Error == nil {
		t.Fatalf("expected error with code %s, but error is nil\nRaw output: %s", expectedCode, r.RawJSON)
	}
	if r.Error.Code != expectedCode {
		t.Fatalf("expected error code %s, got %s: %s\nRaw output: %s", expectedCode, r.Error.Code, r.Error.Message, r.RawJSON)
	}
	if r.ExitCode == 0 {
		t.Fatalf("expected a non-zero exit code for %s", expectedCode)
	}
	return r
}

// DataList extracts a list from the Data field.
func (r *CLIResult) DataList(key string) []any {
	if r.Data == nil {
		return nil
	}
	if list, ok := r.Data[key].([]any); ok {
		return list
	}
	return nil
}
