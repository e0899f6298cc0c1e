package packages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/petsc/confprobe/internal/config"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/buildsys"
	"github.com/petsc/confprobe/pkgs/buildsys/autotools"
)

// ML is the algebraic multigrid preconditioner package.
type ML struct {
	Package

	blas *BlasLapack
	mpi  *MPI
}

func newML() framework.Module {
	m := &ML{Package: newPackage("ML", "ml")}
	m.Download = []string{"http://ftp.mcs.anl.gov/pub/petsc/externalpackages/ml-6.2.tar.gz"}
	m.Functions = []string{"ML_Set_PrintLevel"}
	m.Includes = []string{"ml_include.h"}
	m.LibList = [][]string{{"libml.a"}}
	m.Deps = []string{MPIName, BlasLapackName}
	m.NeedsCxx = true
	m.Requires32BitInt = true
	m.Installer = mlInstaller{m}
	m.Check = m.check
	return m
}

func (m *ML) SetupDependencies(fw *framework.Framework) error {
	if err := m.Package.SetupDependencies(fw); err != nil {
		return err
	}
	var err error
	if m.blas, err = framework.RequireAs[*BlasLapack](fw, BlasLapackName, m.Name()); err != nil {
		return err
	}
	m.mpi, err = framework.RequireAs[*MPI](fw, MPIName, m.Name())
	return err
}

// Configure links the C++ runtime along with libml.a since the C
// compiler does not pull it in.
func (m *ML) Configure(ctx context.Context) error {
	set := append([]string{"libml.a"}, m.compilers.CxxLibs...)
	m.LibList = [][]string{set}
	return m.Package.Configure(ctx)
}

func (m *ML) check(ctx context.Context) error {
	if !m.blas.CheckForRoutine(ctx, "dgels") {
		return framework.Unmet(m.Name(), "ML requires the LAPACK routine dgels(), the current Lapack libraries %v do not have it", m.blas.Lib)
	}
	framework.Logger(ctx).Debug("found dgels() in LAPACK as needed by ML")
	return nil
}

type mlInstaller struct {
	m *ML
}

func (i mlInstaller) args() ([]string, error) {
	m := i.m
	tc := m.Toolchain()
	if m.mpi.Dir == "" {
		return nil, fmt.Errorf("installing ML requires the root directory of MPI; run again with --with-mpi-dir=<root>")
	}
	args := []string{
		"--disable-ml-epetra",
		"--disable-ml-aztecoo",
		"--disable-ml-examples",
		"--disable-tests",
		"CC=" + m.compilers.CC(),
		"--with-cflags=" + strings.TrimSpace(tc.Flag("CFLAGS")+" -DMPICH_SKIP_MPICXX"),
		"CXX=" + m.compilers.CXX(),
		"--with-cxxflags=" + strings.TrimSpace(tc.Flag("CXXFLAGS")+" -DMPICH_SKIP_MPICXX"),
	}
	if fc := m.compilers.FC(); fc != "" {
		args = append(args, "F77="+fc, "--with-fflags="+tc.Flag(toolchain.FlagsKey(toolchain.FC)))
	} else {
		args = append(args, "F77=")
	}
	var mpiLibs []string
	for _, l := range m.mpi.Lib {
		mpiLibs = append(mpiLibs, systemLib(filepath.Base(l)))
	}
	args = append(args,
		"--with-mpi="+m.mpi.Dir,
		"--with-mpi-libs="+strings.Join(mpiLibs, " "),
		"--with-blas="+strings.Join(config.ToStrings(m.blas.Lib), " "),
	)
	return args, nil
}

func (i mlInstaller) Config(ctx context.Context, b *Build) (string, error) {
	args, err := i.args()
	if err != nil {
		return "", err
	}
	return strings.Join(args, " "), nil
}

func (i mlInstaller) Install(ctx context.Context, b *Build) error {
	args, err := i.args()
	if err != nil {
		return err
	}
	at := autotools.New(b.Runner, b.SourceDir)
	at.InstallDir(b.InstallDir)
	at.Env("ML_INSTALL_DIR", b.InstallDir)
	if err := at.Configure(ctx, args...); err != nil {
		return err
	}
	if err := at.Build(ctx, "make", "clean", "all"); err != nil {
		return err
	}
	if err := at.Install(ctx); err != nil {
		return err
	}
	ranlib := b.Substitution("RANLIB")
	if ranlib == "" {
		ranlib = "ranlib"
	}
	return buildsys.Run(ctx, b.Runner, "ranlib", toolchain.Cmd{
		Name:    "sh",
		Args:    []string{"-c", ranlib + " " + filepath.Join(b.InstallDir, "lib") + "/lib*.a"},
		Timeout: buildsys.BuildTimeout,
	})
}
