package config

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/version"
)

var defaultCompilers = map[toolchain.Language][]string{
	toolchain.C:   {"gcc", "cc", "xlc", "icc"},
	toolchain.Cxx: {"g++", "c++", "CC", "xlC", "icpc"},
	toolchain.FC:  {"gfortran", "f77", "g77", "f90", "xlf", "ifort"},
}

var compilerArgs = map[toolchain.Language]string{
	toolchain.C:   "with-cc",
	toolchain.Cxx: "with-cxx",
	toolchain.FC:  "with-fc",
}

// Compilers selects the C, C++ and Fortran compilers and records what
// they can do.
type Compilers struct {
	framework.Base

	// Versions holds the version token of each found compiler.
	Versions map[toolchain.Language]string
	// Banners holds the first line of each compiler's --version output.
	Banners map[toolchain.Language]string
	// PICFlags holds the position independent code flag per language.
	PICFlags map[toolchain.Language]string

	// CxxLibs are the libraries needed to link C++ objects into a C
	// program, empty without a C++ compiler.
	CxxLibs []string

	SharedLibraries  bool
	DynamicLibraries bool
}

// cxxLibCandidates are tried in order when --with-cxxlibs is not given.
var cxxLibCandidates = [][]string{{"-lstdc++"}, {"-lc++"}}

func newCompilers() framework.Module {
	return &Compilers{
		Base:     framework.Base{HeaderPrefix: "PETSC"},
		Versions: make(map[toolchain.Language]string),
		Banners:  make(map[toolchain.Language]string),
		PICFlags: make(map[toolchain.Language]string),
	}
}

func (c *Compilers) SetupHelp(help *argdb.Help) {
	help.AddArgument("Compilers", "-with-cc=<prog>", argdb.String("", "Specify the C compiler"))
	help.AddArgument("Compilers", "-with-cxx=<prog>", argdb.String("", "Specify the C++ compiler, 0 for none"))
	help.AddArgument("Compilers", "-with-fc=<prog>", argdb.String("", "Specify the Fortran compiler, 0 for none"))
	help.AddArgument("Compilers", "-with-pic", argdb.Bool(true, "Compile with position independent code"))
	help.AddArgument("Compilers", "-with-cxxlibs=<libraries: e.g. [-lstdc++]>", argdb.LibList("Libraries needed to link C++ code from C"))
	for _, flags := range []string{"CPPFLAGS", "CFLAGS", "CXXFLAGS", "FFLAGS", "LDFLAGS", "LIBS"} {
		help.AddArgument("Compilers", "-"+flags+"=<string>", argdb.String("", "Specify "+flags))
	}
}

// CC returns the C compiler command.
func (c *Compilers) CC() string { return c.Toolchain().Compiler(toolchain.C) }

// CXX returns the C++ compiler command, or "" when there is none.
func (c *Compilers) CXX() string { return c.Toolchain().Compiler(toolchain.Cxx) }

// FC returns the Fortran compiler command, or "" when there is none.
func (c *Compilers) FC() string { return c.Toolchain().Compiler(toolchain.FC) }

// IsGNU reports whether the compiler for lang is a GNU compiler.
func (c *Compilers) IsGNU(lang toolchain.Language) bool {
	banner := c.Banners[lang]
	if strings.Contains(banner, "GCC") || strings.Contains(banner, "GNU") || strings.Contains(banner, "Free Software Foundation") {
		return true
	}
	name := c.Toolchain().Compiler(lang)
	for _, gnu := range []string{"gcc", "g++", "gfortran", "g77"} {
		if strings.Contains(name, gnu) {
			return true
		}
	}
	return false
}

func (c *Compilers) Configure(ctx context.Context) error {
	if err := c.ExecuteTest(ctx, "check C compiler", c.checkC); err != nil {
		return err
	}
	for _, lang := range []toolchain.Language{toolchain.Cxx, toolchain.FC} {
		if err := c.ExecuteTest(ctx, fmt.Sprintf("check %s compiler", lang), func(ctx context.Context) error {
			return c.checkOptional(ctx, lang)
		}); err != nil {
			return err
		}
	}
	if err := c.ExecuteTest(ctx, "check C++ libraries", c.checkCxxLibs); err != nil {
		return err
	}
	if err := c.ExecuteTest(ctx, "check compiler versions", c.checkVersions); err != nil {
		return err
	}
	if err := c.ExecuteTest(ctx, "check PIC flags", c.checkPIC); err != nil {
		return err
	}
	if err := c.ExecuteTest(ctx, "check shared libraries", c.checkSharedLibraries); err != nil {
		return err
	}
	if err := c.ExecuteTest(ctx, "check dynamic libraries", c.checkDynamicLibraries); err != nil {
		return err
	}
	c.output()
	return nil
}

// candidates returns the compilers to try for lang. A user choice is
// taken as given; defaults must be on $PATH.
func (c *Compilers) candidates(lang toolchain.Language) []string {
	if v := c.Args().String(compilerArgs[lang]); v != "" {
		return []string{v}
	}
	var found []string
	for _, name := range defaultCompilers[lang] {
		if _, ok := toolchain.FindExecutable(name, ""); ok {
			found = append(found, name)
		}
	}
	return found
}

func (c *Compilers) try(ctx context.Context, lang toolchain.Language) bool {
	tc := c.Toolchain()
	tc.PushLanguage(lang)
	defer tc.PopLanguage()
	for _, cmd := range c.candidates(lang) {
		tc.SetCompiler(lang, cmd)
		if tc.Compile(ctx, "", "") {
			framework.Logger(ctx).Debug("found compiler", "language", lang, "compiler", cmd)
			return true
		}
		framework.Logger(ctx).Debug("compiler does not work", "language", lang, "compiler", cmd)
	}
	tc.SetCompiler(lang, "")
	return false
}

func (c *Compilers) checkC(ctx context.Context) error {
	if !c.try(ctx, toolchain.C) {
		return framework.Unmet(c.Name(), "Could not locate a functional C compiler")
	}
	return nil
}

func (c *Compilers) checkOptional(ctx context.Context, lang toolchain.Language) error {
	key := compilerArgs[lang]
	requested := c.Args().String(key)
	if requested == "0" {
		return nil
	}
	if !c.try(ctx, lang) && requested != "" {
		return framework.Unmet(c.Name(), "%s compiler %s does not work", lang, requested)
	}
	return nil
}

// checkCxxLibs finds the C++ runtime libraries a C link needs when it
// pulls in C++ objects.
func (c *Compilers) checkCxxLibs(ctx context.Context) error {
	if libs := c.Args().LibList("with-cxxlibs"); len(libs) > 0 {
		c.CxxLibs = libs
		return nil
	}
	tc := c.Toolchain()
	if !tc.HasCompiler(toolchain.Cxx) {
		return nil
	}
	tc.PushLanguage(toolchain.C)
	defer tc.PopLanguage()
	for _, libs := range cxxLibCandidates {
		if tc.Link(ctx, "", "", libs...) {
			c.CxxLibs = slices.Clone(libs)
			framework.Logger(ctx).Debug("found C++ libraries", "libs", libs)
			return nil
		}
	}
	framework.Logger(ctx).Warn("could not link the C++ runtime from C; set --with-cxxlibs")
	return nil
}

func (c *Compilers) checkVersions(ctx context.Context) error {
	tc := c.Toolchain()
	for _, lang := range []toolchain.Language{toolchain.C, toolchain.Cxx, toolchain.FC} {
		if !tc.HasCompiler(lang) {
			continue
		}
		c.Versions[lang] = version.Unknown
		fields := strings.Fields(tc.Compiler(lang))
		for _, flag := range []string{"--version", "-V", "-v"} {
			res := c.Runner().Run(ctx, toolchain.Cmd{Name: fields[0], Args: append(slices.Clone(fields[1:]), flag)})
			if !res.OK() {
				continue
			}
			out := res.Output()
			first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
			c.Banners[lang] = first
			c.Versions[lang] = version.Extract(out)
			break
		}
	}
	return nil
}

// CheckFlag reports whether the compiler for lang accepts flag without
// complaint.
func (c *Compilers) CheckFlag(ctx context.Context, lang toolchain.Language, flag string) bool {
	tc := c.Toolchain()
	if !tc.HasCompiler(lang) {
		return false
	}
	tc.PushLanguage(lang)
	defer tc.PopLanguage()
	key := toolchain.FlagsKey(lang)
	restore := tc.SetFlag(key, strings.TrimSpace(tc.Flag(key)+" "+flag))
	defer restore()

	res, err := tc.OutputCompile(ctx, "", "")
	if err != nil || !res.OK() {
		return false
	}
	out := strings.ToLower(res.Output())
	for _, complaint := range []string{"unrecognized", "unknown option", "ignored", "not supported"} {
		if strings.Contains(out, complaint) {
			return false
		}
	}
	return true
}

var picFlags = map[toolchain.Language][]string{
	toolchain.C:   {"-fPIC", "-KPIC", "-PIC"},
	toolchain.Cxx: {"-fPIC", "-KPIC", "-PIC"},
	toolchain.FC:  {"-PIC", "-fPIC", "-KPIC"},
}

func (c *Compilers) checkPIC(ctx context.Context) error {
	if !c.Args().Bool("with-pic") {
		return nil
	}
	for _, lang := range []toolchain.Language{toolchain.C, toolchain.Cxx, toolchain.FC} {
		for _, flag := range picFlags[lang] {
			if c.CheckFlag(ctx, lang, flag) {
				c.PICFlags[lang] = flag
				break
			}
		}
	}
	return nil
}

func (c *Compilers) checkSharedLibraries(ctx context.Context) error {
	pic, ok := c.PICFlags[toolchain.C]
	if !ok {
		return nil
	}
	tc := c.Toolchain()
	restoreC := tc.SetFlag("CFLAGS", strings.TrimSpace(tc.Flag("CFLAGS")+" "+pic))
	defer restoreC()
	restoreLD := tc.SetFlag("LDFLAGS", strings.TrimSpace(tc.Flag("LDFLAGS")+" -shared"))
	defer restoreLD()
	c.SharedLibraries = tc.Link(ctx, "int foo(void) {return 1;}\n", "")
	return nil
}

func (c *Compilers) checkDynamicLibraries(ctx context.Context) error {
	if !c.SharedLibraries {
		return nil
	}
	const prelude = "#include <dlfcn.h>\nchar *libname;\n"
	const body = "dlopen(libname, RTLD_LAZY)"
	tc := c.Toolchain()
	c.DynamicLibraries = tc.Link(ctx, prelude, body) || tc.Link(ctx, prelude, body, "-ldl")
	return nil
}

func (c *Compilers) output() {
	tc := c.Toolchain()
	for _, lang := range []struct {
		lang toolchain.Language
		name string
	}{{toolchain.C, "CC"}, {toolchain.Cxx, "CXX"}, {toolchain.FC, "FC"}} {
		cmd := tc.Compiler(lang.lang)
		c.AddSubstitution(lang.name, cmd)
		c.AddMakeMacro(lang.name, cmd)
	}
	c.AddMakeMacro("CC_SHARED_OPT", c.PICFlags[toolchain.C])
	c.AddMakeMacro("LIBS", tc.Flag("LIBS"))
	if tc.HasCompiler(toolchain.Cxx) {
		c.AddDefine("HAVE_CXX", 1, "A C++ compiler is available")
	}
	if tc.HasCompiler(toolchain.FC) {
		c.AddDefine("HAVE_FORTRAN", 1, "A Fortran compiler is available")
	}
}

func (c *Compilers) Summary() string {
	var b strings.Builder
	tc := c.Toolchain()
	for _, lang := range []toolchain.Language{toolchain.C, toolchain.Cxx, toolchain.FC} {
		if !tc.HasCompiler(lang) {
			continue
		}
		fmt.Fprintf(&b, "%s Compiler: %s (version %s)\n", lang, tc.Compiler(lang), c.Versions[lang])
	}
	return strings.TrimRight(b.String(), "\n")
}
