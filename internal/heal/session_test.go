package heal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextAttemptEnforcesBound(t *testing.T) {
	s := newSession("/p/app.py", "/p/tests/test_app.py", 3)

	require.True(t, s.nextAttempt())
	require.True(t, s.nextAttempt())
	require.True(t, s.nextAttempt())
	assert.Equal(t, 3, s.AttemptCount)

	// The bound is spent; further claims fail without incrementing.
	assert.False(t, s.nextAttempt())
	assert.Equal(t, 3, s.AttemptCount)
}

func TestFinishParksTerminal(t *testing.T) {
	s := newSession("/p/app.py", "/p/tests/test_app.py", 3)
	s.transition(StateGenerating)

	s.finish(OutcomeSourceBugFlagged, "judge blamed the source code")

	assert.Equal(t, StateTerminal, s.State)
	assert.Equal(t, OutcomeSourceBugFlagged, s.Outcome)
	assert.Equal(t, "judge blamed the source code", s.Diagnostic)
}

func TestNewSessionDefaults(t *testing.T) {
	s := newSession("/p/app.py", "/p/tests/test_app.py", 3)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, OutcomePending, s.Outcome)
	assert.Equal(t, 0, s.AttemptCount)
	assert.False(t, s.StartedAt.IsZero())
}
