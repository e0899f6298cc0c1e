package packages

import (
	"context"
	"fmt"
	"strings"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/config"
	"github.com/petsc/confprobe/internal/framework"
)

// Fortran name manglings of BLAS/LAPACK symbols.
const (
	MangleUnderscore = "underscore"
	MangleNone       = "unchanged"
	MangleCaps       = "caps"
)

var manglings = []string{MangleUnderscore, MangleNone, MangleCaps}

// BlasLapack finds the BLAS and LAPACK libraries and the name mangling
// their Fortran symbols use.
type BlasLapack struct {
	Package

	// Mangling is one of the Mangle* constants once found.
	Mangling string
}

func newBlasLapack() framework.Module {
	b := &BlasLapack{Package: newPackage("BLAS/LAPACK", "blas-lapack")}
	b.Macro = "BLASLAPACK"
	b.Required = true
	b.LibList = [][]string{
		{"liblapack.a", "libblas.a"},
		{"libflapack.a", "libfblas.a"},
		{"libf2clapack.a", "libf2cblas.a"},
		{"libopenblas.a"},
	}
	b.UserGuess = b.userGuess
	b.Verify = b.verify
	b.Check = b.check
	return b
}

func (b *BlasLapack) SetupHelp(help *argdb.Help) {
	b.Package.SetupHelp(help)
	help.AddArgument(b.PkgName, "-with-blas-lib=<libraries: e.g. [/usr/lib/libblas.a]>", argdb.LibList("Indicate the library containing BLAS"))
	help.AddArgument(b.PkgName, "-with-lapack-lib=<libraries: e.g. [/usr/lib/liblapack.a]>", argdb.LibList("Indicate the library containing LAPACK"))
}

func (b *BlasLapack) userGuess() (Guess, bool) {
	args := b.Args()
	if !args.Has("with-blas-lib") && !args.Has("with-lapack-lib") {
		return Guess{}, false
	}
	libs := append(args.LibList("with-lapack-lib"), args.LibList("with-blas-lib")...)
	return Guess{Name: "user blas/lapack libraries", Lib: libs}, true
}

// Mangle returns routine as it appears in the library under mangling.
func Mangle(routine, mangling string) string {
	switch mangling {
	case MangleUnderscore:
		return routine + "_"
	case MangleCaps:
		return strings.ToUpper(routine)
	}
	return routine
}

func (b *BlasLapack) linkRoutine(ctx context.Context, libs []string, routine string) bool {
	prelude := fmt.Sprintf("char %s();\n", routine)
	return b.Toolchain().Link(ctx, prelude, routine+"()", config.ToStrings(libs)...)
}

// verify finds the mangling under which both ddot (BLAS) and dgetrs
// (LAPACK) resolve.
func (b *BlasLapack) verify(ctx context.Context, g Guess) bool {
	for _, m := range manglings {
		if b.linkRoutine(ctx, g.Lib, Mangle("ddot", m)) && b.linkRoutine(ctx, g.Lib, Mangle("dgetrs", m)) {
			framework.Logger(ctx).Debug("found BLAS/LAPACK", "mangling", m, "lib", g.Lib)
			b.Mangling = m
			return true
		}
	}
	return false
}

// CheckForRoutine reports whether the found libraries provide routine.
func (b *BlasLapack) CheckForRoutine(ctx context.Context, routine string) bool {
	if !b.Found {
		return false
	}
	return b.linkRoutine(ctx, b.Lib, Mangle(routine, b.Mangling))
}

func (b *BlasLapack) check(ctx context.Context) error {
	switch b.Mangling {
	case MangleUnderscore:
		b.AddDefine("HAVE_FORTRAN_UNDERSCORE", 1)
	case MangleCaps:
		b.AddDefine("HAVE_FORTRAN_CAPS", 1)
	}
	return nil
}

func (b *BlasLapack) Summary() string {
	if !b.Found {
		return ""
	}
	return fmt.Sprintf("BLAS/LAPACK: %s (%s mangling)", b.LibFlags(), b.Mangling)
}
