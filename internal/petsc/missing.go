package petsc

import (
	"context"
	"slices"
	"strings"

	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
)

var signals = []string{
	"ABRT", "ALRM", "BUS", "CHLD", "CONT", "FPE", "HUP", "ILL", "INT", "KILL", "PIPE",
	"QUIT", "SEGV", "STOP", "SYS", "TERM", "TRAP", "TSTP", "URG", "USR1", "USR2",
}

var errnos = []string{"EINTR"}

// socketLibs are the libraries Solaris needs for socket().
var socketLibs = []string{"-lsocket", "-lnsl"}

// Missing fills in limits, signals, errno values and prototypes the
// system headers lack.
type Missing struct {
	framework.Base
	generic
}

func newMissing() framework.Module {
	return &Missing{Base: framework.Base{HeaderPrefix: "PETSC"}}
}

func (m *Missing) SetupDependencies(fw *framework.Framework) error {
	if err := m.generic.require(fw, m.Name()); err != nil {
		return err
	}
	m.headers.Add("limits.h", "float.h")
	m.functions.Add("socket", "getpwuid")
	m.libraries.Add("socket", "socket")
	m.libraries.Add("nsl", "gethostbyname")
	return nil
}

func (m *Missing) Configure(ctx context.Context) error {
	for _, step := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"configure missing defines", m.configureDefines},
		{"configure missing functions", m.configureFunctions},
		{"configure missing signals", m.configureSignals},
		{"configure missing errnos", m.configureErrnos},
		{"configure missing prototypes", m.configurePrototypes},
	} {
		if err := m.ExecuteTest(ctx, step.name, step.fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *Missing) include(header string) string {
	if m.headers.Have(header) {
		return "#include <" + header + ">\n"
	}
	return ""
}

func (m *Missing) configureDefines(ctx context.Context) error {
	tc := m.Toolchain()
	if !tc.Compile(ctx, m.include("limits.h"), "int i=INT_MAX;\n\nif (i);\n") {
		m.AddDefine("INT_MIN", "(-INT_MAX - 1)")
		m.AddDefine("INT_MAX", 2147483647)
	}
	if !tc.Compile(ctx, m.include("float.h"), "double d=DBL_MAX;\n\nif (d);\n") {
		m.AddDefine("DBL_MIN", "2.2250738585072014e-308")
		m.AddDefine("DBL_MAX", "1.7976931348623157e+308")
	}
	return nil
}

// configureFunctions looks for socket() in the Solaris socket libraries
// when the C library lacks it. Linking with them needs them in LIBS for
// every later check, so the pass is restarted with LIBS extended.
func (m *Missing) configureFunctions(ctx context.Context) error {
	if !m.functions.HaveFunction("socket") && m.libraries.HaveLib("socket") && m.libraries.HaveLib("nsl") {
		libs := strings.Fields(m.Toolchain().Flag("LIBS"))
		if m.functions.Check(ctx, "socket", socketLibs...) {
			if !slices.Contains(libs, "-lsocket") || !slices.Contains(libs, "-lnsl") {
				framework.Logger(ctx).Info("socket() needs extra libraries", "libs", socketLibs)
				return framework.Restart(m.Name(), map[string]string{"-LIBS": strings.Join(socketLibs, " ")})
			}
		}
	}
	if !m.functions.HaveFunction("socket") {
		m.AddDefine("MISSING_SOCKETS", 1)
	}
	if !m.functions.HaveFunction("getpwuid") {
		m.AddDefine("MISSING_GETPWUID", 1)
	}
	return nil
}

func (m *Missing) configureSignals(ctx context.Context) error {
	for _, sig := range signals {
		if !m.Toolchain().Compile(ctx, "#include <signal.h>\n", "int i=SIG"+sig+";\n\nif (i);\n") {
			m.AddDefine("MISSING_SIG"+sig, 1)
		}
	}
	return nil
}

func (m *Missing) configureErrnos(ctx context.Context) error {
	for _, e := range errnos {
		if !m.Toolchain().Compile(ctx, "#include <errno.h>\n", "int i="+e+";\n\nif (i);\n") {
			m.AddDefine("MISSING_ERRNO_"+e, 1)
		}
	}
	return nil
}

func (m *Missing) configurePrototypes(ctx context.Context) error {
	const (
		prelude = "#include <unistd.h>\n"
		body    = "char test[10]; int err = getdomainname(test,10);"
		proto   = "int getdomainname(char *, int);"
	)
	tc := m.Toolchain()
	if !tc.CheckPrototype(ctx, prelude, body) {
		m.AddPrototype(proto, "C")
	}
	if tc.HasCompiler(toolchain.Cxx) {
		tc.PushLanguage(toolchain.Cxx)
		defer tc.PopLanguage()
		if !tc.Link(ctx, prelude, body) {
			m.AddPrototype(proto, "extern C")
		}
	}
	return nil
}
