package petsc

import (
	"context"
	"strings"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/config"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
)

// SharedLibraries decides whether the library is built shared and
// whether it is loaded dynamically.
type SharedLibraries struct {
	framework.Base

	UseShared  bool
	UseDynamic bool

	arch      *Arch
	compilers *config.Compilers
}

func newSharedLibraries() framework.Module {
	return &SharedLibraries{Base: framework.Base{HeaderPrefix: "PETSC"}}
}

func (s *SharedLibraries) SetupHelp(help *argdb.Help) {
	help.AddArgument("PETSc", "-with-shared-libraries", argdb.Bool(false, "Make PETSc libraries shared -- libpetsc.so (Unix/Linux) or libpetsc.dylib (Mac)"))
	help.AddArgument("PETSc", "-with-dynamic-loading", argdb.Bool(false, "Make PETSc libraries dynamic -- uses dlopen() to access libraries, rarely needed"))
}

func (s *SharedLibraries) SetupDependencies(fw *framework.Framework) error {
	var err error
	if s.arch, err = framework.RequireAs[*Arch](fw, ArchName, s.Name()); err != nil {
		return err
	}
	s.compilers, err = framework.RequireAs[*config.Compilers](fw, config.CompilersName, s.Name())
	return err
}

// Validate rejects contradictory library options before anything is
// checked.
func (s *SharedLibraries) Validate(args *argdb.DB) error {
	shared := args.Bool("with-shared-libraries")
	if args.Bool("with-dynamic-loading") && !shared {
		return &argdb.ArgumentError{Key: "with-dynamic-loading", Reason: "If you use --with-dynamic-loading you also need --with-shared-libraries"}
	}
	if shared && !args.Bool("with-pic") {
		return &argdb.ArgumentError{Key: "with-shared-libraries", Reason: "If you use --with-shared-libraries you cannot turn off pic with --with-pic=0"}
	}
	return nil
}

func (s *SharedLibraries) Configure(ctx context.Context) error {
	if err := s.ExecuteTest(ctx, "configure shared libraries", s.configureShared); err != nil {
		return err
	}
	return s.ExecuteTest(ctx, "configure dynamic libraries", s.configureDynamic)
}

func (s *SharedLibraries) configureShared(ctx context.Context) error {
	log := framework.Logger(ctx)
	requested := s.Args().Bool("with-shared-libraries")
	s.UseShared = requested && s.compilers.SharedLibraries
	if requested && !s.UseShared {
		log.Warn("shared libraries requested but the C compiler cannot build them")
	}
	if s.UseShared {
		target := "shared_" + s.arch.Family
		if s.arch.Family == "solaris" && s.compilers.IsGNU(toolchain.C) {
			target += "gnu"
		}
		s.AddMakeRule("shared_arch", target)
		s.AddMakeMacro("BUILDSHAREDLIB", "yes")
	} else {
		s.AddMakeRule("shared_arch", "")
		s.AddMakeMacro("BUILDSHAREDLIB", "no")
	}
	if s.compilers.SharedLibraries {
		s.AddDefine("HAVE_SHARED_LIBRARIES", 1)
	}
	if s.UseShared {
		s.AddDefine("USE_SHARED_LIBRARIES", 1)
	} else {
		log.Debug("shared libraries disabled")
	}
	return nil
}

func (s *SharedLibraries) configureDynamic(ctx context.Context) error {
	if s.compilers.DynamicLibraries {
		s.AddDefine("HAVE_DYNAMIC_LIBRARIES", 1)
	}
	s.UseDynamic = s.Args().Bool("with-dynamic-loading") && s.UseShared && s.compilers.DynamicLibraries
	if s.UseDynamic {
		s.AddDefine("USE_DYNAMIC_LIBRARIES", 1)
	} else {
		framework.Logger(ctx).Debug("dynamic libraries disabled")
	}
	return nil
}

func (s *SharedLibraries) Summary() string {
	var b strings.Builder
	if s.UseShared {
		b.WriteString("shared libraries: enabled\n")
	} else {
		b.WriteString("shared libraries: disabled\n")
	}
	if s.UseDynamic {
		b.WriteString("dynamic libraries: enabled")
	} else {
		b.WriteString("dynamic libraries: disabled")
	}
	return b.String()
}
