package toolchain_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/internal/toolchain/fake"
)

type flags map[string]string

func (f flags) String(key string) string { return f[key] }

func newToolchain(t *testing.T, r toolchain.Runner, f flags) *toolchain.Toolchain {
	t.Helper()
	tc := toolchain.New(r, f, t.TempDir())
	tc.SetCompiler(toolchain.C, "gcc")
	return tc
}

func TestCheckPrototype(t *testing.T) {
	tests := []struct {
		name string
		diag string
		want bool
	}{
		{"declared", "", true},
		{"gcc implicit", "conftest.c:3: warning: implicit declaration of function 'getdomainname'", false},
		{"capitalised", "Implicit function declaration: getdomainname", false},
		{"unrelated warning", "conftest.c:1: warning: unused variable", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fake.Runner{}
			r.On(fake.SourceContains("getdomainname"), toolchain.Result{Stderr: tt.diag})
			tc := newToolchain(t, r, nil)
			got := tc.CheckPrototype(context.Background(), "#include <unistd.h>", "char test[10]; int err = getdomainname(test,10)")
			if got != tt.want {
				t.Errorf("CheckPrototype() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileCommand(t *testing.T) {
	r := &fake.Runner{}
	tc := newToolchain(t, r, flags{"CPPFLAGS": "-I/opt/include", "CFLAGS": "-g -O0"})
	tc.SetCompiler(toolchain.C, "cc -n32")

	if !tc.Compile(context.Background(), "#include <stdio.h>", "printf(\"\")") {
		t.Fatal("Compile() = false, want true")
	}
	if len(r.Calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(r.Calls))
	}
	c := r.Calls[0]
	if c.Cmd.Name != "cc" {
		t.Errorf("compiler = %q, want cc", c.Cmd.Name)
	}
	want := []string{"-n32", "-c", "-o", "conftest.o", "-I/opt/include", "-g", "-O0", "conftest.c"}
	if diff := cmp.Diff(want, c.Cmd.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	wantSrc := "#include <stdio.h>\nint main() {\nprintf(\"\")\n;\n  return 0;\n}\n"
	if c.Source != wantSrc {
		t.Errorf("source = %q, want %q", c.Source, wantSrc)
	}
	if m, _ := filepath.Glob(filepath.Join(tc.Dir(), "conftest*")); len(m) != 0 {
		t.Errorf("conftest files left behind: %v", m)
	}
}

func TestLinkAppendsLibraries(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.All(fake.LinkWith("dgemm_"), fake.Not(fake.CmdlineContains("-lblas"))), fake.Fail("undefined reference to `dgemm_'"))
	tc := newToolchain(t, r, flags{"LDFLAGS": "-L/usr/local/lib", "LIBS": "-lm"})
	ctx := context.Background()

	if tc.Link(ctx, "", "dgemm_()") {
		t.Error("Link() without -lblas = true, want false")
	}
	if !tc.Link(ctx, "", "dgemm_()", "-lblas") {
		t.Error("Link() with -lblas = false, want true")
	}
	last := r.Calls[len(r.Calls)-1]
	if !last.Linking() {
		t.Fatalf("last call %q is not a link step", last.Cmdline())
	}
	want := "gcc -o conftest conftest.o -L/usr/local/lib -lblas -lm"
	if got := last.Cmdline(); got != want {
		t.Errorf("link cmdline = %q, want %q", got, want)
	}
}

func TestLinkStopsOnCompileFailure(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.All(fake.CmdlineContains("-c"), fake.SourceContains("broken")), fake.Fail("syntax error"))
	tc := newToolchain(t, r, nil)
	res, err := tc.OutputLink(context.Background(), "", "broken(")
	if err != nil {
		t.Fatal(err)
	}
	if res.OK() {
		t.Error("OutputLink() succeeded on a compile failure")
	}
	if len(r.Calls) != 1 {
		t.Errorf("got %d calls, want only the compile step", len(r.Calls))
	}
}

func TestLanguageStack(t *testing.T) {
	r := &fake.Runner{}
	tc := newToolchain(t, r, flags{"FFLAGS": "-O"})
	ctx := context.Background()

	if tc.Language() != toolchain.C {
		t.Fatalf("default language = %s, want C", tc.Language())
	}
	tc.PushLanguage(toolchain.FC)
	if tc.Compile(ctx, "", "") {
		t.Error("Compile() without a Fortran compiler = true")
	}
	tc.SetCompiler(toolchain.FC, "f77")
	if !tc.Compile(ctx, "", "      call foo()") {
		t.Error("Compile() = false")
	}
	tc.PopLanguage()
	if tc.Language() != toolchain.C {
		t.Errorf("language after pop = %s, want C", tc.Language())
	}

	c := r.Calls[len(r.Calls)-1]
	if c.Cmd.Name != "f77" || !c.HasArg("conftest.F") || !c.HasArg("-O") {
		t.Errorf("unexpected Fortran command %q", c.Cmdline())
	}
	if !strings.HasPrefix(c.Source, "      program main\n") || !strings.HasSuffix(c.Source, "      end\n") {
		t.Errorf("unexpected Fortran source %q", c.Source)
	}
}

func TestPreprocessIncludeDirs(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.All(fake.SourceContains("mpi.h"), fake.Not(fake.CmdlineContains("-I/opt/mpi/include"))), fake.Fail("mpi.h: No such file"))
	tc := newToolchain(t, r, nil)
	ctx := context.Background()
	if tc.Preprocess(ctx, "#include <mpi.h>\n") {
		t.Error("Preprocess() without include dir = true")
	}
	if !tc.Preprocess(ctx, "#include <mpi.h>\n", "/opt/mpi/include") {
		t.Error("Preprocess() with include dir = false")
	}
}

func TestSetFlagRestore(t *testing.T) {
	tc := newToolchain(t, &fake.Runner{}, flags{"CFLAGS": "-g"})
	restore := tc.SetFlag("CFLAGS", "-g -fPIC")
	if got := tc.CompilerFlags(); got != "-g -fPIC" {
		t.Errorf("CompilerFlags() = %q", got)
	}
	restore()
	if got := tc.CompilerFlags(); got != "-g" {
		t.Errorf("CompilerFlags() after restore = %q, want -g", got)
	}
}

func TestFindExecutable(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "gdb")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	path := strings.Join([]string{t.TempDir(), dir}, string(os.PathListSeparator))

	if got, ok := toolchain.FindExecutable("gdb", path); !ok || got != exe {
		t.Errorf("FindExecutable(gdb) = %q, %v", got, ok)
	}
	if _, ok := toolchain.FindExecutable("notes", path); ok {
		t.Error("FindExecutable found a non-executable file")
	}
	if _, ok := toolchain.FindExecutable("dbx", path); ok {
		t.Error("FindExecutable found a missing program")
	}
}

func TestExecRunnerStatus(t *testing.T) {
	if _, ok := toolchain.FindExecutable("sh", ""); !ok {
		t.Skip("no sh")
	}
	var log strings.Builder
	r := &toolchain.ExecRunner{Log: &log}
	ctx := context.Background()

	res := toolchain.Shell(ctx, r, "echo hello; exit 3", 0)
	if res.Status != 3 || res.Err != nil {
		t.Errorf("status = %d, err = %v", res.Status, res.Err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if !strings.Contains(log.String(), "Executing: sh -c") {
		t.Errorf("log = %q", log.String())
	}
}
