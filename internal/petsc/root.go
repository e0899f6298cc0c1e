package petsc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/config"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/packages"
	"github.com/petsc/confprobe/internal/toolchain"
)

var headersC = []string{
	"dos.h", "endian.h", "fcntl.h", "io.h", "limits.h", "malloc.h", "pwd.h", "search.h", "strings.h",
	"stropts.h", "unistd.h", "machine/endian.h", "sys/param.h", "sys/procfs.h", "sys/resource.h",
	"sys/stat.h", "sys/systeminfo.h", "sys/times.h", "sys/utsname.h",
}

var functionsC = []string{
	"access", "_access", "clock", "drand48", "getcwd", "_getcwd", "getdomainname", "gethostname", "getpwuid",
	"gettimeofday", "getwd", "memalign", "memmove", "mkstemp", "popen", "PXFGETARG", "rand", "readlink",
	"realpath", "sigaction", "signal", "sigset", "sleep", "_sleep", "socket", "times", "uname",
}

// Substitution templates, relative to bmake/config, and the files they
// render to under bmake/<arch>.
var substitutionFiles = []string{"packages", "rules", "variables", "petscfix.h"}

// HeaderName is the generated define header under bmake/<arch>.
const HeaderName = "petscconf.h"

var flagLanguages = []struct {
	lang toolchain.Language
	name string
}{
	{toolchain.C, "C"},
	{toolchain.Cxx, "CXX"},
	{toolchain.FC, "F"},
}

// Root is the top of the module graph. It requires every other module
// and decides where the artifacts are written.
type Root struct {
	framework.Base
	generic

	// Dir is PETSC_DIR.
	Dir string
	// OutDir is bmake/<arch> under Dir.
	OutDir string

	arch  *Arch
	blas  *packages.BlasLapack
	mpi   *packages.MPI
	haveX bool
}

func newRoot() framework.Module {
	return &Root{Base: framework.Base{HeaderPrefix: "PETSC", SubstPrefix: "PETSC"}}
}

func (r *Root) SetupHelp(help *argdb.Help) {
	help.AddArgument("PETSc", "-PETSC_DIR=<root dir>", argdb.Dir("The root directory of the PETSc installation, defaults to the working directory"))
	help.AddArgument("PETSc", "-enable-debug", argdb.Bool(true, "Debugging flag"))
	help.AddArgument("PETSc", "-enable-log", argdb.Bool(true, "Logging flag"))
	help.AddArgument("PETSc", "-enable-stack", argdb.Bool(true, "Stack tracing flag"))
	help.AddArgument("PETSc", "-with-x", argdb.Bool(true, "Use the X Window System"))
	help.AddArgument("PETSc", "-with-x-include=<dir>", argdb.Dir("Directory holding X11/Xlib.h"))
	help.AddArgument("PETSc", "-with-x-lib=<dir>", argdb.Dir("Directory holding libX11"))
	help.AddArgument("Packages", "-with-recipes=<dir>", argdb.Dir("Directory of *_pkg.gox package recipes"))
	for _, f := range []string{"PETSCFLAGS", "COPTFLAGS", "CXXOPTFLAGS", "FOPTFLAGS"} {
		help.AddArgument("PETSc", "-"+f+"=<string>", argdb.String("", "Extra "+f))
	}
	for _, l := range flagLanguages {
		help.AddArgument("PETSc", "-PETSC_"+l.name+"FLAGS_g=<string>", argdb.String("", "Debugging flags for the "+string(l.lang)+" compiler"))
		help.AddArgument("PETSc", "-PETSC_"+l.name+"FLAGS_O=<string>", argdb.String("", "Optimization flags for the "+string(l.lang)+" compiler"))
	}
}

func (r *Root) SetupDependencies(fw *framework.Framework) error {
	if err := r.generic.require(fw, r.Name()); err != nil {
		return err
	}
	for _, name := range []string{config.TypesName, config.ProgramsName, SharedLibrariesName, MissingName, DebuggersName} {
		if _, err := fw.Require(name, r.Name()); err != nil {
			return err
		}
	}
	var err error
	if r.arch, err = framework.RequireAs[*Arch](fw, ArchName, r.Name()); err != nil {
		return err
	}
	if r.blas, err = framework.RequireAs[*packages.BlasLapack](fw, packages.BlasLapackName, r.Name()); err != nil {
		return err
	}
	if r.mpi, err = framework.RequireAs[*packages.MPI](fw, packages.MPIName, r.Name()); err != nil {
		return err
	}
	for _, name := range []string{packages.MatlabName, packages.ParMetisName, packages.SuperLUDistName, packages.MLName} {
		if _, err := fw.Require(name, r.Name()); err != nil {
			return err
		}
	}
	r.headers.Add(headersC...)
	r.functions.Add(functionsC...)
	r.libraries.Add("dl", "dlopen")
	return nil
}

func (r *Root) Configure(ctx context.Context) error {
	for _, step := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"check requirements", r.checkRequirements},
		{"configure directories", r.configureDirectories},
		{"configure library options", r.configureLibraryOptions},
		{"configure compiler flags", r.configureCompilerFlags},
		{"configure dynamic loading", r.configureDynamicLoading},
		{"configure missing prototypes", r.configureMissingPrototypes},
		{"configure X", r.configureX},
		{"configure machine info", r.configureMachineInfo},
		{"configure misc", r.configureMisc},
	} {
		if err := r.ExecuteTest(ctx, step.name, step.fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Root) checkRequirements(ctx context.Context) error {
	if !r.blas.Found {
		return framework.Unmet(r.Name(), "PETSc requires BLAS and LAPACK")
	}
	if !r.mpi.Found {
		return framework.Unmet(r.Name(), "Could not find MPI")
	}
	return nil
}

func (r *Root) configureDirectories(ctx context.Context) error {
	r.Dir = r.Args().String("PETSC_DIR")
	if r.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		r.Dir = wd
	}
	r.AddSubstitution("DIR", r.Dir)
	r.AddDefine("DIR", strconv.Quote(r.Dir), "The root directory of the PETSc installation")

	r.OutDir = filepath.Join(r.Dir, "bmake", r.arch.Arch)
	st := r.State()
	st.Header = filepath.Join(r.OutDir, HeaderName)
	for _, name := range substitutionFiles {
		st.AddSubstitutionFile(filepath.Join(r.Dir, "bmake", "config", name+".in"), filepath.Join(r.OutDir, name))
	}
	return nil
}

func (r *Root) configureLibraryOptions(ctx context.Context) error {
	args := r.Args()
	r.AddDefine("USE_DEBUG", args.Bool("enable-debug"), "Debugging flag")
	r.AddDefine("USE_LOG", args.Bool("enable-log"), "Logging flag")
	r.AddDefine("USE_STACK", args.Bool("enable-stack"), "Stack tracing flag")
	bopt := "O"
	if args.Bool("enable-debug") {
		bopt = "g"
	}
	r.AddMakeMacro("BOPT", bopt)
	return nil
}

// defaultFlags returns the debugging and optimization flags used when
// the user gave none.
func (r *Root) defaultFlags(lang toolchain.Language) (debug, opt string) {
	if r.compilers.IsGNU(lang) {
		return "-g3", "-O"
	}
	return "-g", "-O"
}

func (r *Root) configureCompilerFlags(ctx context.Context) error {
	tc := r.Toolchain()
	for _, l := range flagLanguages {
		var ver, debug, opt string
		if tc.HasCompiler(l.lang) {
			ver = r.compilers.Versions[l.lang]
			debug, opt = r.defaultFlags(l.lang)
			if v := r.Args().String("PETSC_" + l.name + "FLAGS_g"); v != "" {
				debug = v
			}
			if v := r.Args().String("PETSC_" + l.name + "FLAGS_O"); v != "" {
				opt = v
			}
		}
		r.State().SetSubstitution(framework.Substitution{Name: l.name + "_VERSION", Value: ver, Module: r.Name()})
		r.State().SetSubstitution(framework.Substitution{Name: l.name + "FLAGS_g", Value: debug, Module: r.Name()})
		r.State().SetSubstitution(framework.Substitution{Name: l.name + "FLAGS_O", Value: opt, Module: r.Name()})
	}
	for _, f := range []string{"PETSCFLAGS", "COPTFLAGS", "CXXOPTFLAGS", "FOPTFLAGS"} {
		r.State().SetSubstitution(framework.Substitution{Name: f, Value: r.Args().String(f), Module: r.Name()})
	}
	r.State().SetSubstitution(framework.Substitution{Name: "FC_SHARED_OPT", Value: r.compilers.PICFlags[toolchain.FC], Module: r.Name()})
	return nil
}

func (r *Root) configureDynamicLoading(ctx context.Context) error {
	if r.Toolchain().Link(ctx, "#include <dlfcn.h>\nchar *libname;\n", "dlopen(libname, RTLD_LAZY | RTLD_GLOBAL);\n", "-ldl") {
		r.AddDefine("HAVE_RTLD_GLOBAL", 1)
	}
	return nil
}

func (r *Root) configureMissingPrototypes(ctx context.Context) error {
	var externC string
	if r.arch.Family == "linux" {
		externC = "extern void *memalign(int, int);"
	}
	protos := r.State().Prototypes
	r.AddSubstitution("MISSING_PROTOTYPES", strings.Join(protos["C"], "\n"), "C compiler")
	r.AddSubstitution("MISSING_PROTOTYPES_CXX", strings.Join(protos["Cxx"], "\n"), "C++ compiler")
	if extra := protos["extern C"]; len(extra) > 0 {
		externC = strings.TrimSpace(externC + "\n" + strings.Join(extra, "\n"))
	}
	r.AddSubstitution("MISSING_PROTOTYPES_EXTERN_C", externC, "C compiler")
	return nil
}

func (r *Root) configureX(ctx context.Context) error {
	for _, name := range []string{"X_CFLAGS", "X_PRE_LIBS", "X_LIBS", "X_EXTRA_LIBS"} {
		r.State().SetSubstitution(framework.Substitution{Name: name, Module: r.Name()})
	}
	if !r.Args().Bool("with-x") {
		return nil
	}
	var includeDirs, libs []string
	var cflags string
	if dir := r.Args().String("with-x-include"); dir != "" {
		includeDirs = append(includeDirs, dir)
		cflags = "-I" + dir
	}
	if dir := r.Args().String("with-x-lib"); dir != "" {
		libs = append(libs, "-L"+dir)
	}
	if !r.headers.Check(ctx, "X11/Xlib.h", includeDirs...) {
		framework.Logger(ctx).Info("configuring without X11", "reason", "X11/Xlib.h not found")
		return nil
	}
	if !r.libraries.Check(ctx, "X11", "XOpenDisplay", libs...) {
		framework.Logger(ctx).Info("configuring without X11", "reason", "XOpenDisplay() not found in libX11")
		return nil
	}
	r.haveX = true
	r.AddDefine("HAVE_X11", 1)
	r.State().SetSubstitution(framework.Substitution{Name: "X_CFLAGS", Value: cflags, Module: r.Name()})
	r.State().SetSubstitution(framework.Substitution{Name: "X_LIBS", Value: strings.TrimSpace(strings.Join(libs, " ") + " -lX11"), Module: r.Name()})
	return nil
}

func (r *Root) configureMachineInfo(ctx context.Context) error {
	hostname, _ := os.Hostname()
	tc := r.Toolchain()
	info := fmt.Sprintf("Libraries compiled on %s on %s\nMachine characteristics: %s\n"+
		"-----------------------------------------\n"+
		"Using C compiler: %s %s\nC Compiler version: %s\n"+
		"Using C++ compiler: %s %s\nC++ Compiler version: %s\n"+
		"Using Fortran compiler: %s %s\nFortran Compiler version: %s\n"+
		"-----------------------------------------\n"+
		"Using PETSc flags: %s\n"+
		"-----------------------------------------\n"+
		"Using PETSc directory: %s\nUsing PETSc arch: %s\n",
		time.Now().Format(time.UnixDate), hostname, r.arch.Host,
		tc.Compiler(toolchain.C), r.Args().String("COPTFLAGS"), r.compilers.Versions[toolchain.C],
		tc.Compiler(toolchain.Cxx), r.Args().String("CXXOPTFLAGS"), r.compilers.Versions[toolchain.Cxx],
		tc.Compiler(toolchain.FC), r.Args().String("FOPTFLAGS"), r.compilers.Versions[toolchain.FC],
		r.Args().String("PETSCFLAGS"),
		r.Dir, r.arch.Arch)
	r.AddDefine("MACHINE_INFO", strconv.Quote(info), "Configuration data for bug reports")
	return nil
}

func (r *Root) configureMisc(ctx context.Context) error {
	r.State().SetSubstitution(framework.Substitution{Name: "LT_CC", Value: "${PETSC_LIBTOOL} ${LIBTOOL} --mode=compile", Module: r.Name()})
	r.State().SetSubstitution(framework.Substitution{Name: "CC_SHARED_OPT", Value: r.compilers.PICFlags[toolchain.C], Module: r.Name()})
	return nil
}

func (r *Root) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PETSc:\n  PETSC_ARCH: %s\n  PETSC_DIR: %s\n", r.arch.Arch, r.Dir)
	fmt.Fprintf(&b, "  debugging: %v\n  X11: %v", r.Args().Bool("enable-debug"), r.haveX)
	return b.String()
}
