// Package recipe is the classfile framework of *_pkg.gox package
// recipes. A recipe describes an external package the same way the
// built-in packages do: where to download it, which headers and
// symbols prove it works, which library sets to try and which other
// packages it needs.
//
//	title "Hypre"
//	download "http://example.org/hypre-2.0.tar.gz"
//	includes "HYPRE.h"
//	functions "HYPRE_IJMatrixCreate"
//	libraries "libHYPRE.a"
//	requires "mpi", "blaslapack"
//	buildWith "autotools"
//
//	onCheck c => {
//		c.Define "HAVE_HYPRE_IJ", 1
//	}
package recipe

import (
	"slices"

	"github.com/qiniu/x/gsh"
)

const GopPackage = true

// -----------------------------------------------------------------------------

// PackageF is the class of a package recipe.
type PackageF struct {
	gsh.App

	fOnCheck func(c *Check)

	title            string
	download         []string
	includes         []string
	functions        []string
	libraries        [][]string
	requires         []string
	needsCxx         bool
	needsFortran     bool
	requires32BitInt bool
	buildSystem      string
	configureArgs    []string
}

func (p *PackageF) app() *gsh.App {
	return &p.App
}

// Title sets the human readable name of the package.
func (p *PackageF) Title(name string) {
	p.title = name
}

// Download adds source archive or repository locations.
func (p *PackageF) Download(urls ...string) {
	p.download = append(p.download, urls...)
}

// Includes adds headers that must preprocess.
func (p *PackageF) Includes(headers ...string) {
	p.includes = append(p.includes, headers...)
}

// Functions adds symbols that must link.
func (p *PackageF) Functions(names ...string) {
	p.functions = append(p.functions, names...)
}

// Libraries adds one candidate library set. Sets are tried in the
// order they are declared.
func (p *PackageF) Libraries(libs ...string) {
	p.libraries = append(p.libraries, slices.Clone(libs))
}

// Requires names packages that must be found first. A bare name such
// as "mpi" refers to a built-in package; a dotted name is used as a
// module name.
func (p *PackageF) Requires(names ...string) {
	p.requires = append(p.requires, names...)
}

// NeedsCxx marks the package as unusable without a C++ compiler.
func (p *PackageF) NeedsCxx(v bool) {
	p.needsCxx = v
}

// NeedsFortran marks the package as unusable without a Fortran compiler.
func (p *PackageF) NeedsFortran(v bool) {
	p.needsFortran = v
}

// Requires32BitInt marks the package as incompatible with 64-bit indices.
func (p *PackageF) Requires32BitInt(v bool) {
	p.requires32BitInt = v
}

// BuildWith names the build system of a downloaded source tree:
// "autotools" or "cmake". Without it the package cannot be downloaded.
func (p *PackageF) BuildWith(system string) {
	p.buildSystem = system
}

// ConfigureArgs adds arguments passed to the configure step of the
// build system.
func (p *PackageF) ConfigureArgs(args ...string) {
	p.configureArgs = append(p.configureArgs, args...)
}

// OnCheck event runs after the package was found, to add defines or
// reject the installation.
func (p *PackageF) OnCheck(f func(c *Check)) {
	p.fOnCheck = f
}

// -----------------------------------------------------------------------------

// Define is a header define requested by a recipe.
type Define struct {
	Name  string
	Value any
}

// Check is what an OnCheck handler sees of the found package.
type Check struct {
	Dir     string
	Include []string
	Lib     []string

	defines []Define
	reason  string
}

// Define asks for name to be defined in the generated header.
func (c *Check) Define(name string, value any) {
	c.defines = append(c.defines, Define{Name: name, Value: value})
}

// Fail rejects the installation that was found.
func (c *Check) Fail(reason string) {
	c.reason = reason
}

// Defines returns the requested defines in order.
func (c *Check) Defines() []Define {
	return slices.Clone(c.defines)
}

// Failed returns the reason given to Fail, if any.
func (c *Check) Failed() (string, bool) {
	return c.reason, c.reason != ""
}

// -----------------------------------------------------------------------------

// Gopt_PackageF_Main is main entry of this classfile.
func Gopt_PackageF_Main(this interface {
	app() *gsh.App
	MainEntry()
}) {
	this.MainEntry()
	gsh.InitApp(this.app())
}
