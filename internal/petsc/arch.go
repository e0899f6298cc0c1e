package petsc

import (
	"context"
	"strings"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/host"
)

// archCheck is a check that only applies to some architecture families.
type archCheck struct {
	name string
	run  func(ctx context.Context, a *Arch) error
}

var familyChecks = host.Dispatch[archCheck]{
	"linux":      {{"double aligned malloc", linuxMalloc}, {"fenv floating point traps", fenvTraps}},
	"irix":       {{"kbytes for size", irixSize}, {"IRIX floating point traps", irixTraps}},
	"solaris":    {{"Sun floating point traps", sunTraps}},
	"sunos":      {{"Sun floating point traps", sunTraps}},
	"aix":        {{"RS6000 floating point traps", rs6000Traps}},
	host.Generic: {{"fenv floating point traps", fenvTraps}},
}

// Arch decides PETSC_ARCH and runs the checks of the host's family.
type Arch struct {
	framework.Base
	generic

	// Host is the machine being configured for.
	Host host.Triple
	// Arch is the configuration name, PETSC_ARCH.
	Arch string
	// Family is the architecture family of Host, e.g. "irix".
	Family string
}

func newArch() framework.Module {
	return &Arch{Base: framework.Base{HeaderPrefix: "PETSC", SubstPrefix: "PETSC"}}
}

func (a *Arch) SetupHelp(help *argdb.Help) {
	help.AddArgument("PETSc", "-PETSC_ARCH=<string>", argdb.String("", "The configuration name, defaults to the host OS"))
	help.AddArgument("PETSc", "-host=<triple>", argdb.String("", "The cpu-vendor-os triple to configure for, instead of the detected one"))
}

func (a *Arch) SetupDependencies(fw *framework.Framework) error {
	return a.generic.require(fw, a.Name())
}

// Validate settles the host and PETSC_ARCH before any check runs so
// other modules can read PETSC_ARCH from the arguments.
func (a *Arch) Validate(args *argdb.DB) error {
	if h := args.String("host"); h != "" {
		a.Host = host.Parse(h)
	} else {
		a.Host = host.Detect()
	}
	a.Family = a.Host.Family()
	if a.Family == "" {
		a.Family = host.Generic
	}
	if !args.Has("PETSC_ARCH") {
		args.Set("PETSC_ARCH", a.Host.OS)
	}
	a.Arch = args.String("PETSC_ARCH")
	if a.Arch == "" || strings.ContainsAny(a.Arch, "/ \t") {
		return &argdb.ArgumentError{Key: "PETSC_ARCH", Value: a.Arch, Reason: "must be a non-empty name without slashes or spaces"}
	}
	return nil
}

func (a *Arch) Configure(ctx context.Context) error {
	if err := a.ExecuteTest(ctx, "configure architecture", a.configureArchitecture); err != nil {
		return err
	}
	for _, p := range familyChecks.For(a.Family) {
		if err := a.ExecuteTest(ctx, p.name, func(ctx context.Context) error {
			return p.run(ctx, a)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Arch) configureArchitecture(ctx context.Context) error {
	log := framework.Logger(ctx)
	if !strings.HasPrefix(a.Arch, a.Host.OS) {
		log.Warn("PETSC_ARCH does not start with the host OS", "arch", a.Arch, "host", a.Host.String())
	}
	base := host.Family(a.Arch)
	if base == "" {
		base = a.Family
	}
	log.Info("architecture", "host", a.Host.String(), "arch", a.Arch, "family", a.Family)
	a.AddSubstitution("ARCH", a.Arch)
	a.AddDefine("ARCH", base, "The primary architecture of this machine")
	a.AddDefine("ARCH_NAME", `"`+a.Arch+`"`, "The full architecture name for this machine")
	return nil
}

func linuxMalloc(ctx context.Context, a *Arch) error {
	a.AddDefine("HAVE_DOUBLE_ALIGN_MALLOC", 1)
	return nil
}

func irixSize(ctx context.Context, a *Arch) error {
	a.AddDefine("USE_KBYTES_FOR_SIZE", 1)
	return nil
}

func irixTraps(ctx context.Context, a *Arch) error {
	if a.headers.Check(ctx, "sigfpe.h") && a.functions.Check(ctx, "handle_sigfpes", "-lfpe") {
		a.AddDefine("HAVE_IRIX_STYLE_FPTRAP", 1)
	}
	return nil
}

func rs6000Traps(ctx context.Context, a *Arch) error {
	if !a.headers.Check(ctx, "fpxcp.h") || !a.headers.Check(ctx, "fptrap.h") {
		return nil
	}
	for _, fn := range []string{"fp_sh_trap_info", "fp_trap", "fp_enable", "fp_disable"} {
		if !a.functions.Check(ctx, fn) {
			return nil
		}
	}
	a.AddDefine("HAVE_RS6000_STYLE_FPTRAP", 1)
	return nil
}

func sunTraps(ctx context.Context, a *Arch) error {
	if !a.headers.Check(ctx, "floatingpoint.h") {
		return nil
	}
	if !a.functions.Check(ctx, "ieee_flags") || !a.functions.Check(ctx, "ieee_handler") {
		return nil
	}
	if a.headers.Check(ctx, "sunmath.h") {
		a.AddDefine("HAVE_SOLARIS_STYLE_FPTRAP", 1)
	} else {
		a.AddDefine("HAVE_SUN4_STYLE_FPTRAP", 1)
	}
	return nil
}

// fenvTraps looks for C99 floating point exception control; the header
// and function checks define HAVE_FENV_H and HAVE_FEENABLEEXCEPT.
func fenvTraps(ctx context.Context, a *Arch) error {
	if a.headers.Check(ctx, "fenv.h") && !a.functions.Check(ctx, "feenableexcept") {
		a.functions.Check(ctx, "feenableexcept", "-lm")
	}
	return nil
}
