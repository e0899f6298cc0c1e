package packages

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/config"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
)

// Guess is one candidate installation of a package.
type Guess struct {
	// Name describes where the guess came from, for the log.
	Name    string
	Dir     string
	Include []string
	Lib     []string
}

// Package is the descriptor and detection logic shared by the
// library packages. Concrete packages embed it and fill in the
// descriptor fields in their constructor.
type Package struct {
	framework.Base

	// PkgName is the human readable name used in messages.
	PkgName string
	// ArgName names the with-<ArgName>* arguments.
	ArgName string
	// DownloadArg names the download-<DownloadArg> argument.
	DownloadArg string
	// Macro is the upper case name used for HAVE_<Macro> and the
	// <Macro>_LIB substitutions.
	Macro string

	Download  []string
	Functions []string
	Includes  []string
	// LibList holds the candidate library sets, tried in order.
	LibList  [][]string
	Required bool
	// Deps are module names of packages that must be found first.
	Deps []string

	NeedsCxx         bool
	NeedsFortran     bool
	Requires32BitInt bool

	// Installer builds a downloaded source tree; nil when the package
	// cannot be downloaded.
	Installer Installer
	// Check runs extra sanity checks after the package was found.
	Check func(ctx context.Context) error
	// Verify replaces the default header and symbol checks of a guess.
	Verify func(ctx context.Context, g Guess) bool
	// UserGuess supplies a guess from package specific arguments.
	UserGuess func() (Guess, bool)
	// SystemGuesses replaces the default guesses built from LibList.
	SystemGuesses func() []Guess

	Found   bool
	Dir     string
	Include []string
	Lib     []string

	compilers *config.Compilers
	deps      []*Package
}

func newPackage(name, arg string) Package {
	return Package{
		Base:        framework.Base{HeaderPrefix: "PETSC"},
		PkgName:     name,
		ArgName:     arg,
		DownloadArg: arg,
		Macro:       strings.ToUpper(strings.ReplaceAll(arg, "-", "_")),
	}
}

// New returns a bare package descriptor for PkgName name whose
// arguments are spelled with-<arg>. Callers fill in the descriptor
// before the framework sets the module up.
func New(name, arg string) *Package {
	p := newPackage(name, arg)
	return &p
}

// Pkg implements Provider.
func (p *Package) Pkg() *Package { return p }

func (p *Package) arg(suffix string) string {
	return "with-" + p.ArgName + suffix
}

func (p *Package) SetupHelp(help *argdb.Help) {
	section := p.PkgName
	help.AddArgument(section, "-"+p.arg("")+"=<bool>", argdb.Bool(p.Required, "Indicate if you wish to test for "+p.PkgName))
	help.AddArgument(section, "-"+p.arg("-dir")+"=<dir>", argdb.Dir("Indicate the root directory of the "+p.PkgName+" installation"))
	help.AddArgument(section, "-"+p.arg("-include")+"=<dir>", argdb.Dir("Indicate the directory of the "+p.PkgName+" include files"))
	help.AddArgument(section, "-"+p.arg("-lib")+"=<libraries: e.g. [/usr/lib/libfoo.a,...]>", argdb.LibList("Indicate the "+p.PkgName+" libraries"))
	if p.Installer != nil {
		help.AddArgument(section, "-download-"+p.DownloadArg+"=<no,yes,ifneeded,filename>", argdb.String("0", "Download and install "+p.PkgName))
		help.AddArgument("Packages", "-with-external-packages-dir=<dir>", argdb.String("", "Location to download and install packages"))
	}
}

func (p *Package) SetupDependencies(fw *framework.Framework) error {
	c, err := framework.RequireAs[*config.Compilers](fw, config.CompilersName, p.Name())
	if err != nil {
		return err
	}
	p.compilers = c
	p.deps = p.deps[:0]
	for _, name := range p.Deps {
		dep, err := framework.RequireAs[Provider](fw, name, p.Name())
		if err != nil {
			return err
		}
		p.deps = append(p.deps, dep.Pkg())
	}
	return nil
}

// downloadMode is the normalised value of the download argument: "" for
// no download, "yes", "ifneeded", or a URL or path.
func (p *Package) downloadMode() string {
	if p.Installer == nil {
		return ""
	}
	v := strings.TrimSpace(p.Args().String("download-" + p.DownloadArg))
	switch strings.ToLower(v) {
	case "", "0", "no", "false", "off":
		return ""
	case "1", "yes", "true", "on":
		return "yes"
	case "ifneeded":
		return "ifneeded"
	}
	return v
}

// explicit reports whether the user pointed at a specific installation.
func (p *Package) explicit() bool {
	args := p.Args()
	return args.Has(p.arg("-dir")) || args.Has(p.arg("-include")) || args.Has(p.arg("-lib"))
}

// Enabled reports whether the package should be looked for.
func (p *Package) Enabled() bool {
	if p.Args().Has(p.arg("")) {
		return p.Args().Bool(p.arg(""))
	}
	return p.Required || p.explicit() || p.downloadMode() != ""
}

func (p *Package) Configure(ctx context.Context) error {
	if !p.Enabled() {
		if p.Required {
			return framework.Unmet(p.Name(), "%s is required and cannot be disabled", p.PkgName)
		}
		framework.Logger(ctx).Info("package not requested", "package", p.PkgName)
		return nil
	}
	if err := p.checkRequirements(); err != nil {
		return err
	}
	return p.ExecuteTest(ctx, "configure library "+p.PkgName, p.ConfigureLibrary)
}

func (p *Package) checkRequirements() error {
	if p.NeedsCxx && p.compilers.CXX() == "" {
		return framework.Unmet(p.Name(), "%s requires a C++ compiler; none was found or --with-cxx=0 was given", p.PkgName)
	}
	if p.NeedsFortran && p.compilers.FC() == "" {
		return framework.Unmet(p.Name(), "%s requires a Fortran compiler; none was found or --with-fc=0 was given", p.PkgName)
	}
	if p.Requires32BitInt && p.Args().Bool("with-64-bit-indices") {
		return framework.Unmet(p.Name(), "%s cannot be used with --with-64-bit-indices", p.PkgName)
	}
	for _, dep := range p.deps {
		if !dep.Found {
			return framework.Unmet(p.Name(), "%s requires %s, which was not found", p.PkgName, dep.PkgName)
		}
	}
	return nil
}

// ConfigureLibrary tries the guesses in order until one passes the
// header and symbol checks, then runs the package's extra checks and
// records the result.
func (p *Package) ConfigureLibrary(ctx context.Context) error {
	log := framework.Logger(ctx)
	guesses, err := p.guesses(ctx)
	if err != nil {
		return err
	}
	found := p.tryGuesses(ctx, guesses)
	if !found && p.downloadMode() == "ifneeded" {
		dir, err := p.install(ctx)
		if err != nil {
			return err
		}
		found = p.tryGuesses(ctx, p.dirGuesses("download", dir))
	}
	if !found {
		if p.Required || p.explicit() || p.downloadMode() != "" {
			return framework.Unmet(p.Name(), "Could not find a functional %s. Use --%s=<root> to indicate its location%s",
				p.PkgName, p.arg("-dir"), p.downloadHint())
		}
		log.Info("package not found", "package", p.PkgName)
		return nil
	}
	log.Info("package found", "package", p.PkgName, "include", p.Include, "lib", p.Lib)
	if p.Check != nil {
		if err := p.Check(ctx); err != nil {
			return err
		}
	}
	p.output()
	return nil
}

func (p *Package) downloadHint() string {
	if p.Installer == nil {
		return ""
	}
	return " or --download-" + p.DownloadArg + "=1 to install it"
}

func (p *Package) tryGuesses(ctx context.Context, guesses []Guess) bool {
	log := framework.Logger(ctx)
	for _, g := range guesses {
		log.Debug("checking guess", "package", p.PkgName, "guess", g.Name, "include", g.Include, "lib", g.Lib)
		if p.verify(ctx, g) {
			p.Found = true
			p.Dir = g.Dir
			p.Include = g.Include
			p.Lib = g.Lib
			return true
		}
	}
	return false
}

// guesses returns the locations to try, most specific first. A user
// supplied location is tried alone; a forced download installs first.
func (p *Package) guesses(ctx context.Context) ([]Guess, error) {
	args := p.Args()
	if p.UserGuess != nil {
		if g, ok := p.UserGuess(); ok {
			return []Guess{g}, nil
		}
	}
	if args.Has(p.arg("-dir")) {
		return p.dirGuesses("user directory", args.String(p.arg("-dir"))), nil
	}
	if args.Has(p.arg("-include")) || args.Has(p.arg("-lib")) {
		g := Guess{Name: "user include/lib", Lib: args.LibList(p.arg("-lib"))}
		if inc := args.String(p.arg("-include")); inc != "" {
			g.Include = []string{inc}
		}
		return []Guess{g}, nil
	}
	switch mode := p.downloadMode(); mode {
	case "", "ifneeded":
	default:
		dir, err := p.install(ctx)
		if err != nil {
			return nil, err
		}
		return p.dirGuesses("download", dir), nil
	}
	if p.SystemGuesses != nil {
		return p.SystemGuesses(), nil
	}
	var guesses []Guess
	for _, set := range p.LibList {
		libs := make([]string, len(set))
		for i, l := range set {
			libs[i] = systemLib(l)
		}
		guesses = append(guesses, Guess{Name: "system", Lib: libs})
	}
	if len(guesses) == 0 {
		guesses = append(guesses, Guess{Name: "system"})
	}
	return guesses, nil
}

// dirGuesses returns one guess per library set rooted at dir.
func (p *Package) dirGuesses(name, dir string) []Guess {
	inc := []string{filepath.Join(dir, "include")}
	if len(p.LibList) == 0 {
		return []Guess{{Name: name, Dir: dir, Include: inc}}
	}
	guesses := make([]Guess, 0, len(p.LibList))
	for _, set := range p.LibList {
		libs := make([]string, len(set))
		for i, l := range set {
			if strings.HasPrefix(l, "-") {
				libs[i] = l
				continue
			}
			libs[i] = filepath.Join(dir, "lib", l)
		}
		guesses = append(guesses, Guess{Name: name, Dir: dir, Include: inc, Lib: libs})
	}
	return guesses
}

// systemLib turns a library file name into a linker flag: "libml.a"
// becomes "-lml".
func systemLib(l string) string {
	if strings.HasPrefix(l, "-") || strings.ContainsRune(l, filepath.Separator) {
		return l
	}
	name := strings.TrimPrefix(l, "lib")
	for _, ext := range []string{".a", ".so", ".dylib"} {
		name = strings.TrimSuffix(name, ext)
	}
	return "-l" + name
}

func (p *Package) verify(ctx context.Context, g Guess) bool {
	if p.Verify != nil {
		return p.Verify(ctx, g)
	}
	return p.checkIncludes(ctx, g) && p.checkFunctions(ctx, g)
}

func (p *Package) checkIncludes(ctx context.Context, g Guess) bool {
	dirs := append(slices.Clone(g.Include), p.depIncludes()...)
	for _, h := range p.Includes {
		if !p.Toolchain().Preprocess(ctx, fmt.Sprintf("#include \"%s\"\n", h), dirs...) {
			framework.Logger(ctx).Debug("header not usable", "package", p.PkgName, "header", h)
			return false
		}
	}
	return true
}

func (p *Package) checkFunctions(ctx context.Context, g Guess) bool {
	if len(p.Functions) == 0 {
		return true
	}
	var prelude, body strings.Builder
	for _, fn := range p.Functions {
		fmt.Fprintf(&prelude, "char %s();\n", fn)
		fmt.Fprintf(&body, "%s();\n", fn)
	}
	libs := append(config.ToStrings(g.Lib), p.depLibs()...)
	tc := p.Toolchain()
	tc.PushLanguage(toolchain.C)
	defer tc.PopLanguage()
	return tc.Link(ctx, prelude.String(), body.String(), libs...)
}

// depClosure returns every package p depends on, transitively, in an
// order suitable for linking: a package comes before the ones it needs.
func (p *Package) depClosure() []*Package {
	var pre []*Package
	var walk func(*Package)
	walk = func(q *Package) {
		for _, d := range q.deps {
			pre = append(pre, d)
			walk(d)
		}
	}
	walk(p)
	var out []*Package
	for i, d := range pre {
		if !slices.Contains(pre[i+1:], d) {
			out = append(out, d)
		}
	}
	return out
}

func (p *Package) depLibs() []string {
	var libs []string
	for _, d := range p.depClosure() {
		libs = append(libs, config.ToStrings(d.Lib)...)
	}
	return libs
}

func (p *Package) depIncludes() []string {
	var dirs []string
	for _, d := range p.depClosure() {
		for _, inc := range d.Include {
			if !slices.Contains(dirs, inc) {
				dirs = append(dirs, inc)
			}
		}
	}
	return dirs
}

// IncludeFlags returns the -I flags of the found package.
func (p *Package) IncludeFlags() string {
	flags := make([]string, len(p.Include))
	for i, inc := range p.Include {
		flags[i] = "-I" + inc
	}
	return strings.Join(flags, " ")
}

// LibFlags returns the linker arguments of the found package.
func (p *Package) LibFlags() string {
	return strings.Join(config.ToStrings(p.Lib), " ")
}

func (p *Package) output() {
	p.AddDefine("HAVE_"+p.Macro, 1)
	p.AddSubstitution(p.Macro+"_INCLUDE", p.IncludeFlags())
	p.AddSubstitution(p.Macro+"_LIB", p.LibFlags())
	p.AddMakeMacro(p.Macro+"_INCLUDE", p.IncludeFlags())
	p.AddMakeMacro(p.Macro+"_LIB", p.LibFlags())
}

func (p *Package) Summary() string {
	if !p.Found {
		return ""
	}
	return fmt.Sprintf("%s:\n  Includes: %s\n  Library: %s", p.PkgName, p.IncludeFlags(), p.LibFlags())
}
