// Package heal drives the bounded generate → execute → classify → heal
// pipeline behind every qualified change. The orchestrator composes the
// rate-limited completion generator, the test runner, and the error
// classifier into one healing state machine per session.
package heal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ghosttest/ghost/internal/ai"
	"github.com/ghosttest/ghost/internal/console"
	"github.com/ghosttest/ghost/internal/runner"
	"github.com/ghosttest/ghost/internal/scanner"
	"github.com/ghosttest/ghost/internal/storage"
	"github.com/ghosttest/ghost/internal/watcher"
)

// Completion is the slice of the AI generator the orchestrator drives.
// Satisfied by *ai.Generator; substitutable in tests.
type Completion interface {
	GenerateTest(ctx context.Context, req *ai.GenerationRequest) (string, error)
	RepairTest(ctx context.Context, req *ai.GenerationRequest) (string, error)
	Judge(ctx context.Context, req *ai.GenerationRequest) (ai.Verdict, error)
}

// TestRunner executes one artifact against the project root. Satisfied by
// *runner.Runner.
type TestRunner interface {
	Run(ctx context.Context, artifactPath, projectRoot string) (*runner.Result, error)
}

// ContextKeeper maintains the project context summary. Satisfied by
// *scanner.Scanner.
type ContextKeeper interface {
	UpdateFile(path string) error
	RemoveFile(filename string) error
}

// Config wires the orchestrator's collaborators.
type Config struct {
	ProjectRoot string
	OutputDir   string
	Framework   string
	IgnoreDirs  []string

	MaxHealAttempts int
	AutoHeal        bool
	UseJudge        bool

	// MaxConcurrentSessions caps pipelines running at once across distinct
	// paths. 0 means the default of 4.
	MaxConcurrentSessions int64

	Generator Completion
	Runner    TestRunner
	Registry  *watcher.Registry
	Scanner   ContextKeeper
	Console   *console.Console

	// Store is optional; when present every session is recorded.
	Store *storage.Store
}

// Orchestrator consumes qualified changes and runs one healing session per
// change, never two concurrently for the same path.
type Orchestrator struct {
	cfg Config
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New validates the wiring and returns an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.MaxHealAttempts < 1 {
		cfg.MaxHealAttempts = 3
	}
	if cfg.MaxConcurrentSessions <= 0 {
		cfg.MaxConcurrentSessions = 4
	}
	if cfg.Console == nil {
		cfg.Console = console.New()
	}

	return &Orchestrator{
		cfg: cfg,
		sem: semaphore.NewWeighted(cfg.MaxConcurrentSessions),
	}, nil
}

// Run consumes the change stream until it closes or ctx is canceled, then
// joins every outstanding session.
func (o *Orchestrator) Run(ctx context.Context, changes <-chan watcher.QualifiedChange) {
	for {
		select {
		case <-ctx.Done():
			o.wg.Wait()
			return
		case change, ok := <-changes:
			if !ok {
				o.wg.Wait()
				return
			}
			o.dispatch(ctx, change)
		}
	}
}

// GenerateOnce runs a single healing session for an explicit source path,
// outside the watcher loop. The path is claimed in the registry for the
// duration so a concurrent watcher cannot start a second session for it.
func (o *Orchestrator) GenerateOnce(ctx context.Context, path string) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if filepath.Ext(abs) != ".py" {
		return nil, fmt.Errorf("%s: only Python source files are supported", path)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if !o.cfg.Registry.Admit(abs, 0, false) {
		return nil, fmt.Errorf("%s already has a session in flight", path)
	}
	defer o.cfg.Registry.Complete(abs)

	return o.runSession(ctx, watcher.QualifiedChange{
		Path:          abs,
		Kind:          watcher.Modified,
		SourceContent: string(content),
	}), nil
}

// dispatch routes one qualified change. Deletes are handled inline (context
// cleanup only, no session); creates and modifies spawn a pipeline.
func (o *Orchestrator) dispatch(ctx context.Context, change watcher.QualifiedChange) {
	name := filepath.Base(change.Path)
	o.cfg.Console.FileChanged(name, change.Kind.String())

	if change.Kind == watcher.Deleted {
		if o.cfg.Scanner != nil {
			if err := o.cfg.Scanner.RemoveFile(name); err != nil {
				slog.Warn("context cleanup failed", "path", change.Path, "error", err)
			}
		}
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		// In-flight was claimed at admission; release it on every exit
		// path so a crashed session cannot permanently block the path.
		defer o.cfg.Registry.Complete(change.Path)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("session panicked", "path", change.Path, "panic", r)
				o.cfg.Console.Error("internal error while processing %s: %v", name, r)
			}
		}()

		if err := o.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer o.sem.Release(1)

		o.runSession(ctx, change)
	}()
}

// runSession executes the full healing state machine for one change and
// returns the terminal session.
func (o *Orchestrator) runSession(ctx context.Context, change watcher.QualifiedChange) *Session {
	name := filepath.Base(change.Path)
	testPath := o.ArtifactPath(change.Path)
	session := newSession(change.Path, testPath, o.cfg.MaxHealAttempts)

	o.recordStart(ctx, session, change.Kind.String())
	defer func() { o.recordFinish(ctx, session) }()

	// Keep the context summary current before prompting.
	if o.cfg.Scanner != nil {
		if err := o.cfg.Scanner.UpdateFile(change.Path); err != nil {
			slog.Warn("context update failed", "path", change.Path, "error", err)
		}
	}

	req := &ai.GenerationRequest{
		SourceContent:  change.SourceContent,
		SourcePath:     change.Path,
		SourceFilename: name,
		ProjectRoot:    o.cfg.ProjectRoot,
		ProjectTree:    runner.ProjectTree(o.cfg.ProjectRoot, o.cfg.IgnoreDirs),
		ProjectContext: scanner.Load(o.cfg.ProjectRoot),
		Framework:      o.cfg.Framework,
		TestPath:       testPath,
	}

	// IDLE → GENERATING
	session.transition(StateGenerating)
	o.cfg.Console.Generating(name)

	testCode, err := o.cfg.Generator.GenerateTest(ctx, req)
	if err != nil {
		o.fatal(session, fmt.Errorf("generating test for %s: %w", name, err))
		return session
	}
	if err := o.writeArtifact(testPath, testCode); err != nil {
		o.fatal(session, err)
		return session
	}
	o.cfg.Console.Success("tests generated for %s", name)

	// EXECUTING loop. Each iteration runs the artifact once and either
	// terminates or regenerates it against the shared attempt bound.
	for {
		session.transition(StateExecuting)
		result, err := o.cfg.Runner.Run(ctx, testPath, o.cfg.ProjectRoot)
		if err != nil {
			o.fatal(session, fmt.Errorf("running tests for %s: %w", name, err))
			return session
		}

		if result.Passed() {
			session.AttemptCount = 0
			session.finish(OutcomePassed, "")
			o.cfg.Console.Success("%s passed", filepath.Base(testPath))
			return session
		}

		session.transition(StateClassifying)
		class := runner.Classify(result.Stderr, result.Stdout)
		slog.Info("test run failed",
			"path", name, "exit_code", result.ExitCode, "class", class.String())

		if !o.cfg.AutoHeal {
			session.finish(OutcomeAttemptsExhausted, "auto-heal disabled")
			o.cfg.Console.Warning("%s failed (%s); auto-heal is disabled", name, class)
			return session
		}

		req.PriorTest = o.readArtifact(testPath)
		req.ErrorOutput = fmt.Sprintf("return_code: %d\nstderr: %s\nstdout: %s",
			result.ExitCode, result.Stderr, result.Stdout)

		switch class {
		case runner.ClassSyntax:
			// Malformed or hallucinated test; repair without arbitration.
			session.transition(StateHealing)
			if !o.regenerate(ctx, session, req, name) {
				return session
			}

		case runner.ClassLogic:
			if !o.judge(ctx, session, req, name) {
				return session
			}

		default:
			session.finish(OutcomeAttemptsExhausted,
				"unrecognized failure signature: "+firstLine(result.CombinedOutput()))
			o.cfg.Console.Error("no known bug signature found in %s output", name)
			return session
		}
	}
}

// judge arbitrates a logic failure. Returns true when the loop should
// continue with a regenerated artifact.
func (o *Orchestrator) judge(ctx context.Context, session *Session, req *ai.GenerationRequest, name string) bool {
	if !o.cfg.UseJudge {
		// Arbitration disabled: treat the failure like a test defect.
		session.transition(StateRegenerating)
		return o.regenerate(ctx, session, req, name)
	}

	session.transition(StateJudging)
	o.cfg.Console.Judging(name)

	verdict, err := o.cfg.Generator.Judge(ctx, req)
	if err != nil {
		o.fatal(session, fmt.Errorf("consulting the judge about %s: %w", name, err))
		return false
	}

	switch verdict {
	case ai.VerdictBugInCode:
		session.transition(StateRegenerating)
		return o.regenerate(ctx, session, req, name)

	case ai.VerdictFixTest:
		// The artifact stays byte-identical and the source untouched;
		// rewriting the test here would silently mask a real defect.
		session.finish(OutcomeSourceBugFlagged, "judge blamed the source code")
		o.cfg.Console.SourceBug(session.Path)
		return false

	default:
		o.fatal(session, fmt.Errorf("judge returned an inconclusive verdict for %s", name))
		return false
	}
}

// regenerate claims an attempt slot and rewrites the artifact with repair
// context. Returns false when the session terminated (bound spent or
// provider failure).
func (o *Orchestrator) regenerate(ctx context.Context, session *Session, req *ai.GenerationRequest, name string) bool {
	if !session.nextAttempt() {
		session.finish(OutcomeAttemptsExhausted,
			fmt.Sprintf("heal attempts exhausted after %d tries", session.MaxAttempts))
		o.cfg.Console.Error("giving up on %s after %d heal attempts", name, session.MaxAttempts)
		return false
	}
	o.cfg.Console.Healing(name, session.AttemptCount, session.MaxAttempts)

	testCode, err := o.cfg.Generator.RepairTest(ctx, req)
	if err != nil {
		o.fatal(session, fmt.Errorf("repairing test for %s: %w", name, err))
		return false
	}
	if err := o.writeArtifact(session.TestPath, testCode); err != nil {
		o.fatal(session, err)
		return false
	}
	o.cfg.Console.Success("test healed (attempt %d/%d)", session.AttemptCount, session.MaxAttempts)
	return true
}

// fatal parks the session in FATAL_ERROR and surfaces the diagnostic.
func (o *Orchestrator) fatal(session *Session, err error) {
	session.finish(OutcomeFatalError, err.Error())
	o.cfg.Console.Error("%v", err)
}

// ArtifactPath computes the one path a session may ever write:
// <project_root>/<output_dir>/test_<source_filename>.
func (o *Orchestrator) ArtifactPath(sourcePath string) string {
	return filepath.Join(o.cfg.ProjectRoot, o.cfg.OutputDir,
		"test_"+filepath.Base(sourcePath))
}

func (o *Orchestrator) writeArtifact(testPath, content string) error {
	if err := os.MkdirAll(filepath.Dir(testPath), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(testPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", testPath, err)
	}
	return nil
}

func (o *Orchestrator) readArtifact(testPath string) string {
	content, err := os.ReadFile(testPath)
	if err != nil {
		return ""
	}
	return string(content)
}

func (o *Orchestrator) recordStart(ctx context.Context, session *Session, kind string) {
	if o.cfg.Store == nil {
		return
	}
	err := o.cfg.Store.RecordStart(ctx, &storage.SessionRecord{
		ID:        session.ID,
		Path:      session.Path,
		Kind:      kind,
		Outcome:   string(OutcomePending),
		StartedAt: session.StartedAt,
	})
	if err != nil {
		slog.Warn("failed to record session start", "session", session.ID, "error", err)
	}
}

func (o *Orchestrator) recordFinish(ctx context.Context, session *Session) {
	if o.cfg.Store == nil {
		return
	}
	// Sessions that panicked never reached finish; don't leave them PENDING.
	outcome := session.Outcome
	if outcome == OutcomePending {
		outcome = OutcomeFatalError
	}
	// The terminal row still gets written when shutdown canceled the session.
	ctx = context.WithoutCancel(ctx)
	err := o.cfg.Store.RecordFinish(ctx, &storage.SessionRecord{
		ID:         session.ID,
		Outcome:    string(outcome),
		Attempts:   session.AttemptCount,
		Diagnostic: session.Diagnostic,
		FinishedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("failed to record session finish", "session", session.ID, "error", err)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
		if i > 200 {
			return s[:i]
		}
	}
	return s
}
