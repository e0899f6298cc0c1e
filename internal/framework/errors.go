package framework

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoConvergence is returned when modules keep requesting restarts.
var ErrNoConvergence = errors.New("configuration did not converge")

// UnmetError is a fatal, unmet hard requirement such as a missing BLAS.
type UnmetError struct {
	Module string
	Reason string
}

func (e *UnmetError) Error() string {
	return e.Reason
}

// Unmet returns an UnmetError for module.
func Unmet(module, format string, args ...any) error {
	return &UnmetError{Module: module, Reason: fmt.Sprintf(format, args...)}
}

// BuildError reports a failed native build of a third-party package.
type BuildError struct {
	Package string
	Step    string
	Log     string
	Err     error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("Error running %s on %s: %v", e.Step, e.Package, e.Err)
	if e.Log != "" {
		msg += "\n" + e.Log
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// RestartRequest asks the sequencer to abandon the current pass and run
// again with Args merged into the command line. It is a control signal,
// not a failure.
type RestartRequest struct {
	Module string
	Args   map[string]string
}

func (r *RestartRequest) Error() string {
	keys := make([]string, 0, len(r.Args))
	for k := range r.Args {
		keys = append(keys, k+"="+r.Args[k])
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s requests a restart with %s", r.Module, strings.Join(keys, " "))
}

// Restart returns a RestartRequest for module.
func Restart(module string, args map[string]string) error {
	return &RestartRequest{Module: module, Args: args}
}

// CycleError reports a dependency cycle between modules.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "module dependency cycle: " + strings.Join(e.Path, " -> ")
}
