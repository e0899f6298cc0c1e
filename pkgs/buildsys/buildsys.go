// Package buildsys drives the native build systems of third-party
// packages (autotools, CMake, plain make.inc Makefiles) through a
// toolchain.Runner, each step bounded by a timeout.
package buildsys

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/petsc/confprobe/internal/toolchain"
)

// Default step timeouts.
const (
	ConfigureTimeout = 900 * time.Second
	BuildTimeout     = 2500 * time.Second
)

// Dep is an already configured dependency the build compiles against.
type Dep struct {
	Name    string
	Dir     string
	Include []string
	Lib     []string
}

// BuildSystem captures shared capabilities of build helpers (CMake, Autotools, etc).
type BuildSystem interface {
	// Use makes a configured dependency visible to the build.
	Use(dep Dep)

	// Basic paths.
	Source(dir string)
	InstallDir(dir string)

	// Environment helper.
	Env(key, val string)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error
	Install(ctx context.Context, args ...string) error

	// Where artifacts land.
	OutputDir() string
}

// StepError reports a failed build step together with its output.
type StepError struct {
	Step   string
	Cmd    string
	Output string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Cmd, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Run executes cmd and turns a failure into a *StepError for step.
func Run(ctx context.Context, r toolchain.Runner, step string, cmd toolchain.Cmd) error {
	res := r.Run(ctx, cmd)
	if res.OK() {
		return nil
	}
	err := res.Err
	if err == nil {
		err = fmt.Errorf("exit status %d", res.Status)
	}
	return &StepError{Step: step, Cmd: cmd.String(), Output: res.Output(), Err: err}
}

// AppendFlag appends a flag to a space separated variable in env.
func AppendFlag(env map[string]string, key, flag string) {
	env[key] = strings.TrimSpace(env[key] + " " + flag)
}

// PrependPath prepends a directory to a path list variable in env.
func PrependPath(env map[string]string, key, dir string) {
	if cur := env[key]; cur != "" {
		env[key] = dir + string(filepath.ListSeparator) + cur
		return
	}
	env[key] = dir
}

// UseDep adds dep's include and library flags to env the way both
// autotools and CMake builds pick them up.
func UseDep(env map[string]string, dep Dep) {
	if dep.Dir != "" {
		PrependPath(env, "CMAKE_PREFIX_PATH", dep.Dir)
		PrependPath(env, "PKG_CONFIG_PATH", filepath.Join(dep.Dir, "lib", "pkgconfig"))
	}
	for _, inc := range dep.Include {
		AppendFlag(env, "CPPFLAGS", "-I"+inc)
	}
	for _, lib := range dep.Lib {
		if dir := filepath.Dir(lib); filepath.IsAbs(lib) && dir != "" {
			AppendFlag(env, "LDFLAGS", "-L"+dir)
		}
	}
}
