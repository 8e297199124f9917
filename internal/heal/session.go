package heal

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// State is a position in the healing state machine.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateExecuting
	StateClassifying
	StateHealing
	StateJudging
	StateRegenerating
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateGenerating:
		return "GENERATING"
	case StateExecuting:
		return "EXECUTING"
	case StateClassifying:
		return "CLASSIFYING"
	case StateHealing:
		return "HEALING"
	case StateJudging:
		return "JUDGING"
	case StateRegenerating:
		return "REGENERATING"
	case StateTerminal:
		return "TERMINAL"
	default:
		return "UNKNOWN"
	}
}

// Outcome is a terminal result of a healing session.
type Outcome string

const (
	// OutcomePassed: the artifact executed with exit code 0.
	OutcomePassed Outcome = "PASSED"

	// OutcomeSourceBugFlagged: the arbiter blamed the source; the test was
	// deliberately left alone and the source untouched.
	OutcomeSourceBugFlagged Outcome = "SOURCE_BUG_FLAGGED"

	// OutcomeAttemptsExhausted: the shared attempt bound was reached, or
	// the failure signature was unrecognized.
	OutcomeAttemptsExhausted Outcome = "ATTEMPTS_EXHAUSTED"

	// OutcomeFatalError: a non-retryable technical failure ended the
	// session (provider auth, unusable runner, panic).
	OutcomeFatalError Outcome = "FATAL_ERROR"

	// OutcomePending: the session is still running.
	OutcomePending Outcome = "PENDING"
)

// Session is one bounded generate/execute/classify/judge cycle for a single
// path. Created when a qualified change enters the orchestrator, destroyed
// at a terminal state.
type Session struct {
	ID           string
	Path         string
	TestPath     string
	AttemptCount int
	MaxAttempts  int
	State        State
	Outcome      Outcome
	Diagnostic   string
	StartedAt    time.Time
}

func newSession(path, testPath string, maxAttempts int) *Session {
	return &Session{
		ID:          uuid.New().String(),
		Path:        path,
		TestPath:    testPath,
		MaxAttempts: maxAttempts,
		State:       StateIdle,
		Outcome:     OutcomePending,
		StartedAt:   time.Now(),
	}
}

// transition advances the state machine, logging the edge.
func (s *Session) transition(next State) {
	slog.Debug("session transition",
		"session", s.ID,
		"path", filepath.Base(s.Path),
		"from", s.State.String(),
		"to", next.String(),
		"attempts", s.AttemptCount)
	s.State = next
}

// finish parks the session in a terminal state.
func (s *Session) finish(outcome Outcome, diagnostic string) {
	s.transition(StateTerminal)
	s.Outcome = outcome
	s.Diagnostic = diagnostic
	slog.Info("session finished",
		"session", s.ID,
		"path", filepath.Base(s.Path),
		"outcome", string(outcome),
		"attempts", s.AttemptCount,
		"diagnostic", diagnostic)
}

// nextAttempt claims one regeneration slot against the shared bound.
// Returns false when the bound is already spent; syntax and logic branches
// draw from the same counter, which guarantees termination.
func (s *Session) nextAttempt() bool {
	if s.AttemptCount+1 > s.MaxAttempts {
		return false
	}
	s.AttemptCount++
	return true
}
