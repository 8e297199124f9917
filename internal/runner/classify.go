package runner

import "strings"

// ErrorClass is the coarse taxonomy of test-run failures the healer
// understands.
type ErrorClass int

const (
	// ClassUnknown: no recognized failure signature. Terminal; no
	// automated action is attempted.
	ClassUnknown ErrorClass = iota

	// ClassSyntax: the test itself is malformed or hallucinated
	// (unresolved import, bad indentation, phantom attribute). Safe to
	// regenerate without arbitration.
	ClassSyntax

	// ClassLogic: an assertion disagreed with the source's behavior.
	// Requires arbitration before any repair.
	ClassLogic
)

func (c ErrorClass) String() string {
	switch c {
	case ClassSyntax:
		return "SYNTAX"
	case ClassLogic:
		return "LOGIC"
	default:
		return "UNKNOWN"
	}
}

// syntaxMarkers are checked before logicMarkers: an unresolved import masks
// the true behavioral outcome of any assertion, so a syntax match always
// takes precedence even when an assertion marker co-occurs.
var syntaxMarkers = []string{
	"ModuleNotFoundError",
	"ImportError",
	"IndentationError",
	"AttributeError",
}

var logicMarkers = []string{
	"AssertionError",
}

// Classify maps captured process output to an ErrorClass. Pure function
// over the concatenated output; priority is fixed: syntax, then logic,
// then unknown.
func Classify(stderr, stdout string) ErrorClass {
	combined := stderr + stdout

	for _, marker := range syntaxMarkers {
		if strings.Contains(combined, marker) {
			return ClassSyntax
		}
	}
	for _, marker := range logicMarkers {
		if strings.Contains(combined, marker) {
			return ClassLogic
		}
	}
	return ClassUnknown
}
