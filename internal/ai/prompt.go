package ai

import (
	"fmt"
	"strings"
	"time"
)

const generateSystemPrompt = "You are a code generator. Output only valid Python code. No markdown, no explanations."

const judgeSystemPrompt = "You are a code defect analyzer. Output only one of these two strings: 'BUG_IN_CODE' or 'FIX_TEST'. No other text."

// pathHeader is the bootstrap block every generated test must start with so
// pytest can import the module under test from the project root.
const pathHeader = `import sys
import os
sys.path.append(os.path.abspath(os.path.join(os.path.dirname(__file__), '..')))`

func buildGeneratePrompt(req *GenerationRequest, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, `ROLE:
You are a deterministic, automated QA agent specialized in Python test generation.
The code you generate will reside at %s.
It tests the source file %s.

PRIMARY OBJECTIVE:
Generate a COMPLETE, EXECUTABLE Python test file using the testing framework: %s.
The output must be immediately runnable without modification.

`, req.TestPath, req.SourceFilename, req.Framework)

	fmt.Fprintf(&b, `IMPORT BOOTSTRAP (MANDATORY):
1. The very top of the file, before any other imports, MUST contain:

%s

2. After that block, import the module under test normally (e.g. 'from app import main').
3. Do NOT use relative imports.

`, pathHeader)

	fmt.Fprintf(&b, `ABSOLUTE OUTPUT CONSTRAINTS:
1. Output ONLY valid Python source code.
2. No markdown, backticks, explanations, or conversational text.
3. Explicitly import the testing framework: import %s
4. No placeholder code, TODOs, or pseudocode.
5. Do not modify, rewrite, or inline the source code under test.
6. Do not reference files, modules, or symbols absent from the GLOBAL CONTEXT.
7. Tests must be deterministic, repeatable, and isolated.

FILE HEADER (MANDATORY):
The first line of the file must be exactly this comment:
# Generated at: %s | Source: %s

TEST CONSTRUCTION RULES:
- Use the idiomatic style of %s, including fixtures and parameterization where appropriate.
- Follow %s naming conventions for automatic test discovery.
- Assert behavior explicitly; validate return values, side effects, and raised exceptions.
- Cover expected behavior, edge cases, and failure paths.
- Mock ALL external dependencies: filesystem, network, environment, time, randomness, subprocesses.

`, req.Framework, now.Format("02-01-2006 15:04:05"), req.SourcePath, req.Framework, req.Framework)

	writeProjectSections(&b, req)

	fmt.Fprintf(&b, `SOURCE CODE UNDER TEST:
%s

FINAL ENFORCEMENT:
Return ONLY raw Python code. Any additional text makes the response invalid.
`, req.SourceContent)

	return b.String()
}

func buildRepairPrompt(req *GenerationRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are an expert Python test engineer. Fix the errors in a previously generated test file.

IMPORT BOOTSTRAP (MANDATORY):
1. The very top of the file, before any other imports, MUST contain:

%s

2. After that block, import the module under test normally.
3. Do NOT use relative imports.

CRITICAL: Output ONLY valid Python code. No markdown, no backticks, no explanations.

## Context
- Test file: %s
- Source file: %s
- Framework: %s

`, pathHeader, req.TestPath, req.SourceFilename, req.Framework)

	writeProjectSections(&b, req)

	fmt.Fprintf(&b, `## Previous Code (with errors)
%s

## Errors to Fix
%s

## Requirements
- Fix ALL syntax errors, import errors, and runtime issues.
- Verify every import against the project structure above; no wildcard imports.
- Keep existing test logic unless it is the source of the errors.
- Maintain coverage of normal cases, edge cases, and error conditions.
- Mock external dependencies with %s-compatible mechanisms.

OUTPUT: Return only the corrected Python code, ready to save as %s
`, req.PriorTest, req.ErrorOutput, req.Framework, req.TestPath)

	return b.String()
}

func buildJudgePrompt(req *GenerationRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, `A unit test failed with an assertion error. Determine the root cause: is the source code buggy, or is the test incorrect?

## Context
- Test file: %s
- Source file: %s

`, req.TestPath, req.SourceFilename)

	writeProjectSections(&b, req)

	fmt.Fprintf(&b, `## Source Code Being Tested
%s

## Failed Test Code
%s

## Error Output
%s

## Analysis Task
Compare the source code logic against the test expectations.

If the source code has a defect (wrong logic, incorrect calculation, bug in implementation):
-> Output: BUG_IN_CODE

If the source code is correct but the test has wrong expectations or flawed assertions:
-> Output: FIX_TEST

OUTPUT EXACTLY ONE OF THESE TWO STRINGS. NO EXPLANATION.
`, req.SourceContent, req.PriorTest, req.ErrorOutput)

	return b.String()
}

// writeProjectSections emits the project map and global context blocks
// shared by every prompt.
func writeProjectSections(b *strings.Builder, req *GenerationRequest) {
	if req.ProjectTree != "" {
		fmt.Fprintf(b, "## Project Structure\n%s\n", req.ProjectTree)
	}
	if req.ProjectContext != "" {
		fmt.Fprintf(b, "## Available Modules\n%s\n\n", req.ProjectContext)
	}
}
