package autotools

import (
	"context"
	"path/filepath"
	"time"

	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/buildsys"
)

// AutoTools runs ./configure, make and make install in the source tree.
type AutoTools struct {
	SourceDir string

	// ConfigureTimeout and BuildTimeout bound the configure and make steps.
	ConfigureTimeout time.Duration
	BuildTimeout     time.Duration

	runner     toolchain.Runner
	buildDir   string
	installDir string
	env        map[string]string
}

var _ buildsys.BuildSystem = (*AutoTools)(nil)

// New creates an AutoTools helper building sourceDir in place.
func New(r toolchain.Runner, sourceDir string) *AutoTools {
	return &AutoTools{
		SourceDir:        sourceDir,
		ConfigureTimeout: buildsys.ConfigureTimeout,
		BuildTimeout:     buildsys.BuildTimeout,
		runner:           r,
		installDir:       filepath.Join(sourceDir, "build"),
		env:              map[string]string{},
	}
}

func (a *AutoTools) Source(dir string) {
	a.SourceDir = dir
}

func (a *AutoTools) InstallDir(dir string) {
	a.installDir = dir
}

// BuildDir configures out of tree in dir.
func (a *AutoTools) BuildDir(dir string) {
	a.buildDir = dir
}

func (a *AutoTools) Env(key, value string) {
	a.env[key] = value
}

// Use adds dep's include and library directories to CPPFLAGS and LDFLAGS.
func (a *AutoTools) Use(dep buildsys.Dep) {
	buildsys.UseDep(a.env, dep)
}

func (a *AutoTools) workDir() string {
	if a.buildDir != "" {
		return a.buildDir
	}
	return a.SourceDir
}

// Configure runs the configure script with --prefix and args.
func (a *AutoTools) Configure(ctx context.Context, args ...string) error {
	exe := "./configure"
	if a.buildDir != "" {
		exe = filepath.Join(a.SourceDir, "configure")
	}
	var configArgs []string
	if a.installDir != "" {
		configArgs = append(configArgs, "--prefix="+a.installDir)
	}
	configArgs = append(configArgs, args...)
	return buildsys.Run(ctx, a.runner, "configure", toolchain.Cmd{
		Name: exe, Args: configArgs, Dir: a.workDir(), Env: a.env, Timeout: a.ConfigureTimeout,
	})
}

// Build runs make, or the given command.
func (a *AutoTools) Build(ctx context.Context, args ...string) error {
	cmdArgs := []string{"make"}
	if len(args) > 0 {
		cmdArgs = args
	}
	return buildsys.Run(ctx, a.runner, "make", toolchain.Cmd{
		Name: cmdArgs[0], Args: cmdArgs[1:], Dir: a.workDir(), Env: a.env, Timeout: a.BuildTimeout,
	})
}

// Install runs make install, or the given command.
func (a *AutoTools) Install(ctx context.Context, args ...string) error {
	cmdArgs := []string{"make", "install"}
	if len(args) > 0 {
		cmdArgs = args
	}
	return buildsys.Run(ctx, a.runner, "make install", toolchain.Cmd{
		Name: cmdArgs[0], Args: cmdArgs[1:], Dir: a.workDir(), Env: a.env, Timeout: a.BuildTimeout,
	})
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (a *AutoTools) OutputDir() string {
	if a.installDir != "" {
		return a.installDir
	}
	return a.workDir()
}
