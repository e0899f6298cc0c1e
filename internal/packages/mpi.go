package packages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/petsc/confprobe/internal/config"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/buildsys/autotools"
	"github.com/petsc/confprobe/pkgs/version"
)

// optional MPI-2 routines recorded as HAVE_<ROUTINE>
var mpiOptionalFunctions = []string{"MPI_Comm_f2c", "MPI_Comm_c2f", "MPI_Finalized", "MPI_Win_create"}

// MPI finds an MPI implementation, its version and launcher.
type MPI struct {
	Package

	Version string
	// Mpirun is the launcher command, if one was found.
	Mpirun string
}

func newMPI() framework.Module {
	m := &MPI{Package: newPackage("MPI", "mpi")}
	m.Required = true
	m.DownloadArg = "mpich"
	m.Download = []string{"http://ftp.mcs.anl.gov/pub/petsc/externalpackages/mpich2-1.0.8.tar.gz"}
	m.Functions = []string{"MPI_Init", "MPI_Comm_create"}
	m.Includes = []string{"mpi.h"}
	m.LibList = [][]string{
		{"libmpich.a", "libpmpich.a"},
		{"libmpich.a"},
		{"libmpi.a"},
		{"libmpi.a", "libmpi++.a"},
	}
	m.Installer = mpichInstaller{}
	m.SystemGuesses = m.systemGuesses
	m.Check = m.check
	return m
}

// systemGuesses tries the compiler alone first when it is an MPI
// wrapper such as mpicc.
func (m *MPI) systemGuesses() []Guess {
	var guesses []Guess
	if fields := strings.Fields(m.compilers.CC()); len(fields) > 0 {
		if cc := filepath.Base(fields[0]); strings.HasPrefix(cc, "mpi") {
			guesses = append(guesses, Guess{Name: "compiler wrapper " + cc})
		}
	}
	for _, set := range m.LibList {
		libs := make([]string, len(set))
		for i, l := range set {
			libs[i] = systemLib(l)
		}
		guesses = append(guesses, Guess{Name: "system", Lib: libs})
	}
	return guesses
}

func (m *MPI) bin(name string) string {
	if m.Dir == "" {
		return name
	}
	return filepath.Join(m.Dir, "bin", name)
}

func (m *MPI) check(ctx context.Context) error {
	log := framework.Logger(ctx)
	m.Version = version.Unknown
	for _, cmdline := range []string{m.bin("mpichversion"), m.bin("mpiexec") + " --version"} {
		res := toolchain.Shell(ctx, m.Runner(), cmdline, time.Minute)
		if res.OK() {
			m.Version = version.Extract(res.Output())
			break
		}
	}
	log.Info("MPI version", "version", m.Version)

	for _, name := range []string{"mpiexec", "mpirun"} {
		if m.Dir != "" {
			if p := m.bin(name); toolchain.FileExists(p) {
				m.Mpirun = p
				break
			}
			continue
		}
		if p, ok := toolchain.FindExecutable(name, ""); ok {
			m.Mpirun = p
			break
		}
	}
	m.AddSubstitution("MPIRUN", m.Mpirun)

	tc := m.Toolchain()
	for _, fn := range mpiOptionalFunctions {
		if tc.Link(ctx, fmt.Sprintf("char %s();\n", fn), fn+"()", config.ToStrings(m.Lib)...) {
			m.AddDefine("HAVE_"+strings.ToUpper(fn), 1)
		}
	}
	return nil
}

func (m *MPI) Summary() string {
	if !m.Found {
		return ""
	}
	s := fmt.Sprintf("MPI (version %s):\n  Includes: %s\n  Library: %s", m.Version, m.IncludeFlags(), m.LibFlags())
	if m.Mpirun != "" {
		s += "\n  mpirun: " + m.Mpirun
	}
	return s
}

type mpichInstaller struct{}

func (mpichInstaller) args(b *Build) []string {
	c := b.Package.compilers
	args := []string{"CC=" + c.CC(), "--disable-f90"}
	if c.CXX() != "" {
		args = append(args, "CXX="+c.CXX())
	} else {
		args = append(args, "--disable-cxx")
	}
	if c.FC() != "" {
		args = append(args, "F77="+c.FC())
	} else {
		args = append(args, "--disable-f77")
	}
	if c.SharedLibraries {
		args = append(args, "--enable-sharedlibs=gcc")
	}
	return args
}

func (i mpichInstaller) Config(ctx context.Context, b *Build) (string, error) {
	return strings.Join(i.args(b), " "), nil
}

func (i mpichInstaller) Install(ctx context.Context, b *Build) error {
	at := autotools.New(b.Runner, b.SourceDir)
	at.InstallDir(b.InstallDir)
	if err := at.Configure(ctx, i.args(b)...); err != nil {
		return err
	}
	if err := at.Build(ctx); err != nil {
		return err
	}
	return at.Install(ctx)
}
