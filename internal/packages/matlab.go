package packages

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/version"
)

var matlabVersionRe = regexp.MustCompile(`Version ([0-9]*\.[0-9]*)`)

// MinMatlabVersion is the oldest usable Matlab.
const MinMatlabVersion = "6.0"

// Matlab locates a Matlab installation for the Matlab engine bindings.
// Its defines and substitutions carry no prefix.
type Matlab struct {
	framework.Base

	Found   bool
	Dir     string
	Version string
	Arch    string
}

func newMatlab() framework.Module {
	return &Matlab{}
}

func (m *Matlab) SetupHelp(help *argdb.Help) {
	help.AddArgument("Matlab", "-with-matlab", argdb.Bool(true, "Activate Matlab"))
	help.AddArgument("Matlab", "-with-matlab-dir=<root dir>", argdb.Dir("Specify the root directory of the Matlab installation"))
}

func (m *Matlab) Configure(ctx context.Context) error {
	if !m.Args().Bool("with-matlab") {
		return nil
	}
	return m.ExecuteTest(ctx, "configure Matlab", m.configureLibrary)
}

func (m *Matlab) guesses() []string {
	if dir := m.Args().String("with-matlab-dir"); dir != "" {
		return []string{dir}
	}
	if exe, ok := toolchain.FindExecutable("matlab", ""); ok {
		if real, err := filepath.EvalSymlinks(exe); err == nil {
			exe = real
		}
		return []string{filepath.Dir(filepath.Dir(exe))}
	}
	return nil
}

func (m *Matlab) configureLibrary(ctx context.Context) error {
	log := framework.Logger(ctx)
	for _, dir := range m.guesses() {
		if m.try(ctx, dir) {
			break
		}
	}
	if !m.Found {
		if dir := m.Args().String("with-matlab-dir"); dir != "" {
			return framework.Unmet(m.Name(), "You set a value for --with-matlab-dir, but %s cannot be used", dir)
		}
		log.Info("configuring without Matlab")
		for _, name := range []string{"MATLAB_MEX", "MATLAB_CC", "MATLAB_COMMAND", "MATLAB_DIR", "MATLAB_DL", "MATLAB_ARCH"} {
			m.AddSubstitution(name, "")
		}
		return nil
	}
	log.Info("configuring with Matlab", "dir", m.Dir, "version", m.Version, "arch", m.Arch)
	m.AddDefine("HAVE_MATLAB", 1)
	m.AddSubstitution("MATLAB_MEX", filepath.Join(m.Dir, "bin", "mex"))
	m.AddSubstitution("MATLAB_CC", "${C_CC}")
	m.AddSubstitution("MATLAB_COMMAND", filepath.Join(m.Dir, "bin", "matlab"))
	m.AddSubstitution("MATLAB_DIR", m.Dir)
	if m.Arch == "mac" {
		m.AddSubstitution("MATLAB_DL", "-L"+filepath.Join(m.Dir, "sys", "os", "mac")+" -ldl")
	} else {
		m.AddSubstitution("MATLAB_DL", "")
	}
	m.AddSubstitution("MATLAB_ARCH", m.Arch)
	return nil
}

func (m *Matlab) try(ctx context.Context, dir string) bool {
	log := framework.Logger(ctx).With("dir", dir)
	interpreter := filepath.Join(dir, "bin", "matlab")
	res := m.Runner().Run(ctx, toolchain.Cmd{
		Name:    interpreter,
		Args:    []string{"-nojvm", "-nodisplay", "-r", "ver; exit"},
		Timeout: 5 * time.Minute,
	})
	if !res.OK() {
		log.Warn("found Matlab but unable to run it", "output", res.Output())
		return false
	}
	v := version.ExtractWith(matlabVersionRe, res.Output())
	if !version.AtLeast(v, MinMatlabVersion) {
		log.Warn("Matlab version must be at least 6", "version", v)
		return false
	}
	// an installation carries a single architecture
	entries, err := os.ReadDir(filepath.Join(dir, "extern", "lib"))
	if err != nil || len(entries) == 0 {
		log.Warn("Matlab installation has no extern/lib architecture", "error", err)
		return false
	}
	m.Found = true
	m.Dir = dir
	m.Version = v
	m.Arch = entries[0].Name()
	return true
}

func (m *Matlab) Summary() string {
	if !m.Found {
		return ""
	}
	return "Matlab: Using " + m.Dir + " (version " + m.Version + ")"
}
