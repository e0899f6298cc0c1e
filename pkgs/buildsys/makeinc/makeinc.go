// Package makeinc builds packages whose only configuration step is a
// hand-written make.inc included by their Makefile.
package makeinc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/buildsys"
)

// File is the name of the generated include file.
const File = "make.inc"

type variable struct {
	name  string
	value string
}

type installRule struct {
	pattern string
	subdir  string
}

// MakeInc writes make.inc, runs a make command line and copies the
// artifacts into the install directory.
type MakeInc struct {
	SourceDir    string
	BuildTimeout time.Duration

	runner     toolchain.Runner
	installDir string
	vars       []variable
	rules      []installRule
	env        map[string]string
}

var _ buildsys.BuildSystem = (*MakeInc)(nil)

// New creates a MakeInc helper for sourceDir.
func New(r toolchain.Runner, sourceDir string) *MakeInc {
	return &MakeInc{
		SourceDir:    sourceDir,
		BuildTimeout: buildsys.BuildTimeout,
		runner:       r,
		env:          map[string]string{},
	}
}

func (m *MakeInc) Source(dir string) {
	m.SourceDir = dir
}

func (m *MakeInc) InstallDir(dir string) {
	m.installDir = dir
}

func (m *MakeInc) Env(key, value string) {
	m.env[key] = value
}

// Use passes dep's flags through the environment; make.inc variables
// referring to dep are set by the caller.
func (m *MakeInc) Use(dep buildsys.Dep) {
	buildsys.UseDep(m.env, dep)
}

// Set assigns a make.inc variable. Variables are written in the order
// they were first set.
func (m *MakeInc) Set(name, value string) *MakeInc {
	for i := range m.vars {
		if m.vars[i].name == name {
			m.vars[i].value = value
			return m
		}
	}
	m.vars = append(m.vars, variable{name, value})
	return m
}

// Get returns the value of a make.inc variable.
func (m *MakeInc) Get(name string) string {
	for _, v := range m.vars {
		if v.name == name {
			return v.value
		}
	}
	return ""
}

// InstallFiles copies files matching the shell pattern (relative to the
// source directory) into subdir of the install directory on Install.
func (m *MakeInc) InstallFiles(pattern, subdir string) *MakeInc {
	m.rules = append(m.rules, installRule{pattern, subdir})
	return m
}

// Contents renders make.inc.
func (m *MakeInc) Contents() string {
	var b strings.Builder
	for _, v := range m.vars {
		fmt.Fprintf(&b, "%-12s = %s\n", v.name, v.value)
	}
	return b.String()
}

// Configure writes make.inc into the source directory. args are
// appended verbatim as extra lines.
func (m *MakeInc) Configure(ctx context.Context, args ...string) error {
	content := m.Contents()
	for _, a := range args {
		content += a + "\n"
	}
	if err := os.WriteFile(filepath.Join(m.SourceDir, File), []byte(content), 0o644); err != nil {
		return &buildsys.StepError{Step: "write " + File, Cmd: File, Err: err}
	}
	return nil
}

// Build runs the shell command line args, or "make" when none is given.
func (m *MakeInc) Build(ctx context.Context, args ...string) error {
	cmdline := "make"
	if len(args) > 0 {
		cmdline = strings.Join(args, " ")
	}
	return buildsys.Run(ctx, m.runner, "make", toolchain.Cmd{
		Name: "sh", Args: []string{"-c", cmdline}, Dir: m.SourceDir, Env: m.env, Timeout: m.BuildTimeout,
	})
}

// Install copies the artifacts registered with InstallFiles.
func (m *MakeInc) Install(ctx context.Context, args ...string) error {
	for _, r := range m.rules {
		dst := filepath.Join(m.OutputDir(), r.subdir)
		cmdline := fmt.Sprintf("mkdir -p %s && cp -f %s %s", dst, r.pattern, dst)
		if err := buildsys.Run(ctx, m.runner, "install", toolchain.Cmd{
			Name: "sh", Args: []string{"-c", cmdline}, Dir: m.SourceDir, Env: m.env,
		}); err != nil {
			return err
		}
	}
	return nil
}

// OutputDir returns the install dir if set, otherwise the source dir.
func (m *MakeInc) OutputDir() string {
	if m.installDir != "" {
		return m.installDir
	}
	return m.SourceDir
}
