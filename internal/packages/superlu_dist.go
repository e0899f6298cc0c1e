package packages

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/petsc/confprobe/internal/config"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/buildsys/makeinc"
)

// SuperLUDist is the distributed memory sparse direct solver.
type SuperLUDist struct {
	Package

	blas *BlasLapack
	mpi  *MPI
	pm   *ParMetis
}

func newSuperLUDist() framework.Module {
	s := &SuperLUDist{Package: newPackage("SuperLU_DIST", "superlu_dist")}
	s.Download = []string{"http://ftp.mcs.anl.gov/pub/petsc/externalpackages/SuperLU_DIST_2.3-hg.tar.gz"}
	s.Functions = []string{"set_default_options_dist"}
	s.Includes = []string{"superlu_ddefs.h"}
	s.LibList = [][]string{{"libsuperlu_dist_2.3.a"}}
	s.Deps = []string{MPIName, BlasLapackName, ParMetisName}
	// ParMetis underneath has no 64-bit index support
	s.Requires32BitInt = true
	s.Installer = superluInstaller{s}
	s.Check = s.check
	return s
}

func (s *SuperLUDist) SetupDependencies(fw *framework.Framework) error {
	if err := s.Package.SetupDependencies(fw); err != nil {
		return err
	}
	var err error
	if s.blas, err = framework.RequireAs[*BlasLapack](fw, BlasLapackName, s.Name()); err != nil {
		return err
	}
	if s.mpi, err = framework.RequireAs[*MPI](fw, MPIName, s.Name()); err != nil {
		return err
	}
	s.pm, err = framework.RequireAs[*ParMetis](fw, ParMetisName, s.Name())
	return err
}

func (s *SuperLUDist) check(ctx context.Context) error {
	for _, routine := range []string{"slamch", "dlamch", "xerbla"} {
		if !s.blas.CheckForRoutine(ctx, routine) {
			return framework.Unmet(s.Name(), "SuperLU_DIST requires the BLAS routine %s()", routine)
		}
		framework.Logger(ctx).Debug("found BLAS routine needed by SuperLU_DIST", "routine", routine)
	}
	return nil
}

type superluInstaller struct {
	s *SuperLUDist
}

func (i superluInstaller) makeinc(b *Build) *makeinc.MakeInc {
	s := i.s
	tc := s.Toolchain()
	m := makeinc.New(b.Runner, b.SourceDir)
	m.InstallDir(b.InstallDir)
	m.Set("DSuperLUroot", b.SourceDir).
		Set("DSUPERLULIB", "$(DSuperLUroot)/libsuperlu_dist_2.3.a").
		Set("BLASDEF", "-DUSE_VENDOR_BLAS").
		Set("BLASLIB", strings.Join(config.ToStrings(s.blas.Lib), " ")).
		Set("IMPI", s.mpi.IncludeFlags()).
		Set("MPILIB", s.mpi.LibFlags()).
		Set("PMETISLIB", s.pm.LibFlags()).
		Set("LIBS", "$(DSUPERLULIB) $(BLASLIB) $(PMETISLIB) $(MPILIB)").
		Set("ARCH", b.Substitution("AR")).
		Set("ARCHFLAGS", b.Substitution("AR_FLAGS")).
		Set("RANLIB", b.Substitution("RANLIB")).
		Set("CC", s.compilers.CC()+" $(IMPI)").
		Set("CFLAGS", tc.Flag("CFLAGS")).
		Set("LOADER", s.compilers.CC()).
		Set("LOADOPTS", "")

	cdefs := "-DNoChange"
	switch s.blas.Mangling {
	case MangleUnderscore:
		cdefs = "-DAdd_"
	case MangleCaps:
		cdefs = "-DUpCase"
	}
	if s.Args().Bool("with-64-bit-indices") {
		cdefs += " -D_LONGINT"
	}
	m.Set("CDEFS", cdefs)
	if fc := s.compilers.FC(); fc != "" {
		m.Set("FORTRAN", fc).
			Set("FFLAGS", strings.TrimSpace(strings.ReplaceAll(tc.Flag(toolchain.FlagsKey(toolchain.FC)), "-Mfree", "")))
	}
	m.Set("NOOPTS", s.compilers.PICFlags[toolchain.C])
	m.InstallFiles("*.a", "lib").InstallFiles("SRC/*.h", "include")
	return m
}

func (i superluInstaller) Config(ctx context.Context, b *Build) (string, error) {
	return i.makeinc(b).Contents(), nil
}

func (i superluInstaller) Install(ctx context.Context, b *Build) error {
	m := i.makeinc(b)
	m.Env("SUPERLU_DIST_INSTALL_DIR", filepath.Join(b.InstallDir, "lib"))
	if err := m.Configure(ctx); err != nil {
		return err
	}
	if err := m.Build(ctx, "make clean;", `make lib LAAUX=""`); err != nil {
		return err
	}
	return m.Install(ctx)
}
