// Package fake provides a scripted toolchain.Runner so checks can be
// tested without a compiler on the machine.
package fake

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/petsc/confprobe/internal/toolchain"
)

// Call is one command seen by the Runner. Source holds the conftest
// program the command was run on, if any.
type Call struct {
	Cmd    toolchain.Cmd
	Source string
}

// Linking reports whether the call is the link step of a link check.
func (c Call) Linking() bool {
	for _, a := range c.Cmd.Args {
		if a == "-c" || a == "-E" {
			return false
		}
	}
	for _, a := range c.Cmd.Args {
		if a == "conftest.o" {
			return true
		}
	}
	return false
}

// Preprocessing reports whether the call runs the preprocessor.
func (c Call) Preprocessing() bool {
	for _, a := range c.Cmd.Args {
		if a == "-E" {
			return true
		}
	}
	return false
}

// HasArg reports whether arg is one of the command's arguments.
func (c Call) HasArg(arg string) bool {
	for _, a := range c.Cmd.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// Cmdline returns the command line.
func (c Call) Cmdline() string {
	return c.Cmd.String()
}

type rule struct {
	match  func(Call) bool
	result toolchain.Result
}

// Runner answers each command with the result of the first matching
// rule, or a zero exit status when none matches. Calls are recorded.
type Runner struct {
	rules []rule
	Calls []Call
}

var _ toolchain.Runner = (*Runner)(nil)

// On adds a rule.
func (r *Runner) On(match func(Call) bool, res toolchain.Result) *Runner {
	r.rules = append(r.rules, rule{match: match, result: res})
	return r
}

// Run implements toolchain.Runner.
func (r *Runner) Run(ctx context.Context, cmd toolchain.Cmd) toolchain.Result {
	c := Call{Cmd: cmd, Source: readSource(cmd)}
	r.Calls = append(r.Calls, c)
	for _, rl := range r.rules {
		if rl.match(c) {
			return rl.result
		}
	}
	return toolchain.Result{}
}

// Count returns how many recorded calls match.
func (r *Runner) Count(match func(Call) bool) int {
	n := 0
	for _, c := range r.Calls {
		if match(c) {
			n++
		}
	}
	return n
}

func readSource(cmd toolchain.Cmd) string {
	for _, a := range cmd.Args {
		if !strings.HasPrefix(a, "conftest.") || a == "conftest.o" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(cmd.Dir, a))
		if err == nil {
			return string(data)
		}
	}
	// link steps name only the object; the source is still on disk
	for _, ext := range []string{".c", ".cc", ".F"} {
		data, err := os.ReadFile(filepath.Join(cmd.Dir, "conftest"+ext))
		if err == nil {
			return string(data)
		}
	}
	return ""
}

// OK is a successful result with stdout out.
func OK(out string) toolchain.Result {
	return toolchain.Result{Stdout: out}
}

// Fail is a failed result with diagnostics diag on stderr.
func Fail(diag string) toolchain.Result {
	return toolchain.Result{Stderr: diag, Status: 1}
}

// SourceContains matches calls whose conftest source contains s.
func SourceContains(s string) func(Call) bool {
	return func(c Call) bool { return strings.Contains(c.Source, s) }
}

// CmdlineContains matches calls whose command line contains s.
func CmdlineContains(s string) func(Call) bool {
	return func(c Call) bool { return strings.Contains(c.Cmdline(), s) }
}

// Named matches calls running the program name.
func Named(name string) func(Call) bool {
	return func(c Call) bool { return c.Cmd.Name == name || filepath.Base(c.Cmd.Name) == name }
}

// LinkWith matches link steps whose source contains s.
func LinkWith(s string) func(Call) bool {
	return func(c Call) bool { return c.Linking() && strings.Contains(c.Source, s) }
}

// All matches when every m matches.
func All(ms ...func(Call) bool) func(Call) bool {
	return func(c Call) bool {
		for _, m := range ms {
			if !m(c) {
				return false
			}
		}
		return true
	}
}

// Not inverts m.
func Not(m func(Call) bool) func(Call) bool {
	return func(c Call) bool { return !m(c) }
}
