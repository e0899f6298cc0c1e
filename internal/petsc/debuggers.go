package petsc

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/version"
)

const debuggerTimeout = 30 * time.Second

// dbxAttach lists the ways dbx spells "attach to process", in the order
// they are tried.
var dbxAttach = []struct {
	flag   string
	define string
	help   string
}{
	{"-p", "USE_P_FOR_DEBUGGER", "Use -p to indicate a process to the debugger"},
	{"-a", "USE_A_FOR_DEBUGGER", "Use -a to indicate a process to the debugger"},
	{"-pid", "USE_PID_FOR_DEBUGGER", "Use -pid to indicate a process to the debugger"},
}

// Debuggers picks the default debugger and how to attach it to a
// running process.
type Debuggers struct {
	framework.Base

	// Found maps debugger names to their full paths.
	Found map[string]string
	// Default is the debugger selected, or "" when there is none.
	Default string
	// GDBVersion is the version of gdb when it was found.
	GDBVersion string
}

func newDebuggers() framework.Module {
	return &Debuggers{
		Base:  framework.Base{HeaderPrefix: "PETSC"},
		Found: make(map[string]string),
	}
}

func (d *Debuggers) SetupHelp(help *argdb.Help) {
	help.AddArgument("PETSc", "-with-debugger-path=<path>", argdb.String("", "Directories searched for debuggers instead of $PATH"))
}

func (d *Debuggers) Configure(ctx context.Context) error {
	return d.ExecuteTest(ctx, "configure debuggers", d.configureDebuggers)
}

func (d *Debuggers) configureDebuggers(ctx context.Context) error {
	path := d.Args().String("with-debugger-path")
	for _, name := range []string{"gdb", "dbx", "xdb"} {
		if p, ok := toolchain.FindExecutable(name, path); ok {
			d.Found[name] = p
		}
	}
	switch {
	case d.Found["gdb"] != "":
		d.Default = "gdb"
		d.AddDefine("USE_GDB_DEBUGGER", 1, "Use GDB as the default debugger")
		res := d.Runner().Run(ctx, toolchain.Cmd{Name: d.Found["gdb"], Args: []string{"--version"}, Timeout: debuggerTimeout})
		d.GDBVersion = version.Unknown
		if res.OK() {
			d.GDBVersion = version.Extract(res.Output())
		}
		framework.Logger(ctx).Debug("found gdb", "path", d.Found["gdb"], "version", d.GDBVersion)
	case d.Found["dbx"] != "":
		d.Default = "dbx"
		d.AddDefine("USE_DBX_DEBUGGER", 1, "Use DBX as the default debugger")
		return d.checkDbxAttach(ctx)
	case d.Found["xdb"] != "":
		d.Default = "xdb"
		d.AddDefine("USE_XDB_DEBUGGER", 1, "Use XDB as the default debugger")
		d.AddDefine("USE_LARGEP_FOR_DEBUGGER", 1, "Use -P to indicate a process to the debugger")
	default:
		framework.Logger(ctx).Info("no debugger found")
	}
	return nil
}

// checkDbxAttach asks dbx to attach to this process with each candidate
// flag and keeps the first one it acknowledges.
func (d *Debuggers) checkDbxAttach(ctx context.Context) error {
	dir := d.Toolchain().Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	script := filepath.Join(dir, "conftest.dbx")
	if err := os.WriteFile(script, []byte("quit\n"), 0o644); err != nil {
		return err
	}
	defer os.Remove(script)

	pid := strconv.Itoa(os.Getpid())
	attached := regexp.MustCompile(`(?m)^Process ` + pid + `\b`)
	for _, a := range dbxAttach {
		res := d.Runner().Run(ctx, toolchain.Cmd{
			Name:    d.Found["dbx"],
			Args:    []string{"-c", script, a.flag, pid},
			Dir:     dir,
			Timeout: debuggerTimeout,
		})
		if attached.MatchString(res.Output()) {
			d.AddDefine(a.define, 1, a.help)
			return nil
		}
	}
	framework.Logger(ctx).Warn("could not determine how dbx attaches to a process")
	return nil
}

func (d *Debuggers) Summary() string {
	switch d.Default {
	case "":
		return ""
	case "gdb":
		return "Debugger: gdb " + d.GDBVersion
	}
	return "Debugger: " + d.Default
}
