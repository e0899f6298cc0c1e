package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
)

type program struct {
	name   string
	subst  string
	path   string
	define string
	// fullPath substitutes the absolute path rather than the bare name.
	fullPath bool
}

var programs = []program{
	{name: "sh", subst: "SHELL", fullPath: true},
	{name: "sed", subst: "SED", fullPath: true},
	{name: "diff", subst: "DIFF", fullPath: true},
	{name: "ar", subst: "AR", fullPath: true},
	{name: "make", subst: "MAKE"},
	{name: "ranlib", subst: "RANLIB"},
	{name: "ps", subst: "UCBPS", path: "/usr/ucb:/usr/usb", define: "HAVE_UCBPS"},
}

// Programs locates the utilities the build needs.
type Programs struct {
	framework.Base

	// Found maps a substitution name to the program found for it.
	Found map[string]string
}

func newPrograms() framework.Module {
	return &Programs{
		Base:  framework.Base{HeaderPrefix: "PETSC"},
		Found: make(map[string]string),
	}
}

func (p *Programs) SetupHelp(help *argdb.Help) {
	help.AddArgument("Programs", "-with-make=<prog>", argdb.String("", "Specify the make utility"))
}

// Find looks name up in path, or $PATH when path is empty, and records
// the result as substitution subst.
func (p *Programs) Find(name, path, subst string, fullPath bool) (string, bool) {
	found, ok := toolchain.FindExecutable(name, path)
	if !ok {
		return "", false
	}
	if !fullPath {
		found = name
	}
	p.Found[subst] = found
	p.AddSubstitution(subst, found)
	return found, true
}

func (p *Programs) Configure(ctx context.Context) error {
	if err := p.ExecuteTest(ctx, "check mkdir", p.checkMkdir); err != nil {
		return err
	}
	return p.ExecuteTest(ctx, "check programs", func(ctx context.Context) error {
		for _, prog := range programs {
			if prog.name == "make" {
				if user := p.Args().String("with-make"); user != "" {
					p.Found["MAKE"] = user
					p.AddSubstitution("MAKE", user)
					continue
				}
			}
			if _, ok := p.Find(prog.name, prog.path, prog.subst, prog.fullPath); !ok {
				framework.Logger(ctx).Debug("program not found", "program", prog.name)
				continue
			}
			if prog.define != "" {
				p.AddDefine(prog.define, 1)
			}
		}
		p.AddSubstitution("AR_FLAGS", "cr")
		p.AddSubstitution("SET_MAKE", "", "Obsolete")
		p.AddSubstitution("LIBTOOL", "${SHELL} ${top_builddir}/libtool")
		return nil
	})
}

// checkMkdir finds mkdir and whether it creates intermediate directories
// with -p.
func (p *Programs) checkMkdir(ctx context.Context) error {
	mkdir, ok := p.Find("mkdir", "", "MKDIR", true)
	if !ok {
		return nil
	}
	dir := p.Toolchain().Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	scratch := filepath.Join(dir, ".conftest")
	defer os.RemoveAll(scratch)
	res := p.Runner().Run(ctx, toolchain.Cmd{Name: mkdir, Args: []string{"-p", filepath.Join(scratch, ".tmp")}})
	if fi, err := os.Stat(filepath.Join(scratch, ".tmp")); res.OK() && err == nil && fi.IsDir() {
		p.Found["MKDIR"] = mkdir + " -p"
		p.AddSubstitution("MKDIR", mkdir+" -p")
	}
	return nil
}
