package packages

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/pkgs/buildsys/cmake"
)

// ParMetis is the parallel graph partitioner.
type ParMetis struct {
	Package
}

func newParMetis() framework.Module {
	p := &ParMetis{Package: newPackage("ParMetis", "parmetis")}
	p.Download = []string{"http://glaros.dtc.umn.edu/gkhome/fetch/sw/parmetis/parmetis-4.0.3.tar.gz"}
	p.Functions = []string{"ParMETIS_V3_PartKway"}
	p.Includes = []string{"parmetis.h"}
	p.LibList = [][]string{{"libparmetis.a", "libmetis.a"}}
	p.Deps = []string{MPIName}
	p.Requires32BitInt = true
	p.Installer = parmetisInstaller{}
	return p
}

type parmetisInstaller struct{}

func (parmetisInstaller) cmake(b *Build) *cmake.CMake {
	c := cmake.New(b.Runner, b.SourceDir)
	c.InstallDir(b.InstallDir)
	c.Define("CMAKE_C_COMPILER", b.Package.compilers.CC()).
		Define("GKLIB_PATH", filepath.Join(b.SourceDir, "metis", "GKlib")).
		Define("METIS_PATH", filepath.Join(b.SourceDir, "metis")).
		DefineBool("SHARED", b.Package.compilers.SharedLibraries)
	for _, dep := range b.Deps() {
		c.Use(dep)
	}
	return c
}

func (i parmetisInstaller) Config(ctx context.Context, b *Build) (string, error) {
	return strings.Join(i.cmake(b).DefineArgs(), " "), nil
}

func (i parmetisInstaller) Install(ctx context.Context, b *Build) error {
	c := i.cmake(b)
	if err := c.Configure(ctx); err != nil {
		return err
	}
	if err := c.Build(ctx); err != nil {
		return err
	}
	return c.Install(ctx)
}
