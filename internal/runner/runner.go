// Package runner executes generated test artifacts and classifies their
// failures. A failing test is a normal, non-exceptional result; only an
// unusable interpreter is an error.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// ErrRunnerUnavailable marks an environment where the test runner itself
// cannot be invoked (missing python/pytest), as opposed to a failing test.
var ErrRunnerUnavailable = errors.New("test runner unavailable")

// Result captures one execution of a test artifact.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Passed reports whether the run exited cleanly.
func (r *Result) Passed() bool { return r.ExitCode == 0 }

// CombinedOutput returns stderr followed by stdout, the order the
// classifier and repair prompts consume.
func (r *Result) CombinedOutput() string {
	return r.Stderr + r.Stdout
}

// Runner invokes pytest against generated artifacts with the module search
// path rooted at the project under watch.
type Runner struct {
	// Python is the interpreter to launch; defaults to "python3".
	Python string
}

// New returns a Runner using the default interpreter, honoring a
// GHOST_PYTHON override for projects with dedicated virtualenvs.
func New() *Runner {
	python := os.Getenv("GHOST_PYTHON")
	if python == "" {
		python = "python3"
	}
	return &Runner{Python: python}
}

// Run executes the artifact at artifactPath via `python -m pytest` with
// PYTHONPATH set to projectRoot, so generated tests can import the modules
// under test. A non-zero exit code is returned as a normal Result; the
// error return is reserved for a runner that cannot be invoked at all.
func (r *Runner) Run(ctx context.Context, artifactPath, projectRoot string) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.Python, "-m", "pytest", artifactPath)
	cmd.Dir = projectRoot
	cmd.Env = append(os.Environ(), "PYTHONPATH="+projectRoot)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The test ran and failed. Normal outcome.
			result.ExitCode = exitErr.ExitCode()
			slog.Debug("test run failed",
				"artifact", artifactPath, "exit_code", result.ExitCode)
			return result, nil
		}
		// Interpreter missing, not executable, or killed before exec.
		return nil, fmt.Errorf("%w: %s: %w", ErrRunnerUnavailable, r.Python, err)
	}

	return result, nil
}
