// Package console renders Ghost's user-facing terminal output. Structured
// diagnostics go through slog; this package only handles the human lines.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	green   = color.New(color.FgGreen).SprintFunc()
	cyan    = color.New(color.FgCyan).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	red     = color.New(color.FgRed).SprintFunc()
	boldRed = color.New(color.FgRed, color.Bold).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
	gray    = color.New(color.FgHiBlack).SprintFunc()
)

// Console writes colorized status lines. A zero value writes to stdout.
type Console struct {
	Out io.Writer
}

// New returns a console writing to stdout.
func New() *Console {
	return &Console{Out: os.Stdout}
}

func (c *Console) w() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

// Banner prints the startup header.
func (c *Console) Banner() {
	fmt.Fprintf(c.w(), "\n%s %s\n\n", magenta("👻 Ghost"), gray("— AI QA agent"))
}

// Section prints a titled divider.
func (c *Console) Section(title string) {
	fmt.Fprintf(c.w(), "\n%s %s\n", gray("──"), cyan(title))
}

// Success prints a green check line.
func (c *Console) Success(format string, args ...any) {
	fmt.Fprintf(c.w(), "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

// Info prints a neutral status line.
func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.w(), "%s %s\n", gray("→"), fmt.Sprintf(format, args...))
}

// Warning prints a yellow warning line.
func (c *Console) Warning(format string, args ...any) {
	fmt.Fprintf(c.w(), "%s %s\n", yellow("!"), yellow(fmt.Sprintf(format, args...)))
}

// Error prints a red failure line.
func (c *Console) Error(format string, args ...any) {
	fmt.Fprintf(c.w(), "%s %s\n", red("✗"), red(fmt.Sprintf(format, args...)))
}

// FileChanged announces a qualified change.
func (c *Console) FileChanged(name, kind string) {
	fmt.Fprintf(c.w(), "%s %s %s\n", cyan("●"), name, gray(kind))
}

// Generating announces the start of test synthesis for a file.
func (c *Console) Generating(name string) {
	fmt.Fprintf(c.w(), "%s generating tests for %s\n", magenta("✦"), cyan(name))
}

// Healing announces a syntax-repair attempt.
func (c *Console) Healing(name string, attempt, max int) {
	fmt.Fprintf(c.w(), "%s healing %s %s\n", magenta("✦"), cyan(name),
		gray(fmt.Sprintf("(attempt %d/%d)", attempt, max)))
}

// Judging announces logic arbitration.
func (c *Console) Judging(name string) {
	fmt.Fprintf(c.w(), "%s consulting the judge about %s\n", yellow("⚖"), cyan(name))
}

// SourceBug reports the one outcome that must never look like a technical
// failure: the test disagreed with the source and the arbiter blamed the
// source. Ghost declines to touch either file.
func (c *Console) SourceBug(path string) {
	out := c.w()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s\n", boldRed("CRITICAL:"), boldRed("BUG DETECTED IN SOURCE CODE!"))
	fmt.Fprintf(out, "  The test found a discrepancy in %s, and the judge believes the code is at fault.\n", cyan(path))
	fmt.Fprintf(out, "  %s\n", yellow("Ghost will NOT update the test to match buggy code."))
	fmt.Fprintln(out)
}
