// Package toolchain runs the small compile, link, preprocess and shell
// checks that configuration decisions are made from.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Cmd is one external command a check runs.
type Cmd struct {
	Name    string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the captured outcome of a Cmd.
type Result struct {
	Stdout string
	Stderr string
	Status int
	// Err is set when the command could not be run at all or was killed
	// by its timeout.
	Err error
}

// OK reports whether the command ran and exited with status zero.
func (r Result) OK() bool {
	return r.Err == nil && r.Status == 0
}

// Output returns stdout followed by stderr.
func (r Result) Output() string {
	return r.Stdout + r.Stderr
}

// Runner executes commands. The exec implementation is used for real
// runs; tests substitute a scripted one.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) Result
}

// ErrTimeout is wrapped by Result.Err when a command exceeded its timeout.
var ErrTimeout = errors.New("timed out")

// ExecRunner runs commands with os/exec. When Log is set every command
// line and its output are copied to it.
type ExecRunner struct {
	Log io.Writer
}

var _ Runner = (*ExecRunner)(nil)

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Cmd) Result {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), c.Env)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.Status = -1
		res.Err = fmt.Errorf("%s: %w after %s", c.Name, ErrTimeout, c.Timeout)
	case errors.As(err, &exitErr):
		res.Status = exitErr.ExitCode()
	case err != nil:
		res.Status = -1
		res.Err = err
	}
	if r.Log != nil {
		fmt.Fprintf(r.Log, "Executing: %s\n", c)
		if out := res.Output(); out != "" {
			fmt.Fprintf(r.Log, "%s\n", strings.TrimRight(out, "\n"))
		}
		if !res.OK() {
			fmt.Fprintf(r.Log, "Exit status %d %v\n", res.Status, res.Err)
		}
	}
	return res
}

// Shell runs cmdline through /bin/sh.
func Shell(ctx context.Context, r Runner, cmdline string, timeout time.Duration) Result {
	return r.Run(ctx, Cmd{Name: "sh", Args: []string{"-c", cmdline}, Timeout: timeout})
}

func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
