package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/internal/toolchain/fake"
)

// user queues header, function and library checks like a project module.
type user struct {
	framework.Base
	headers   []string
	functions []string
	libraries []LibFunc
}

func (u *user) SetupDependencies(fw *framework.Framework) error {
	h, err := framework.RequireAs[*Headers](fw, HeadersName, u.Name())
	if err != nil {
		return err
	}
	f, err := framework.RequireAs[*Functions](fw, FunctionsName, u.Name())
	if err != nil {
		return err
	}
	l, err := framework.RequireAs[*Libraries](fw, LibrariesName, u.Name())
	if err != nil {
		return err
	}
	h.Add(u.headers...)
	f.Add(u.functions...)
	for _, lf := range u.libraries {
		l.Add(lf.Library, lf.Function)
	}
	return nil
}

func (u *user) Configure(ctx context.Context) error { return nil }

func configure(t *testing.T, r toolchain.Runner, roots []string, extra func(*framework.Registry), args ...string) (*framework.Framework, error) {
	t.Helper()
	reg := framework.NewRegistry()
	Register(reg)
	if extra != nil {
		extra(reg)
	}
	return framework.Run(context.Background(), args, framework.Options{
		Registry: reg,
		Roots:    roots,
		Runner:   r,
		WorkDir:  t.TempDir(),
	})
}

func define(fw *framework.Framework, name string) string {
	v, _ := fw.State.Define(name)
	return v
}

func TestCompilers(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.All(fake.Named("gcc"), fake.CmdlineContains("--version")), fake.OK("gcc (GCC) 12.2.0\nCopyright (C) 2022 Free Software Foundation, Inc.\n"))

	fw, err := configure(t, r, []string{CompilersName}, nil, "--with-cc=gcc", "--with-cxx=0", "--with-fc=0")
	if err != nil {
		t.Fatal(err)
	}
	m, _ := fw.Module(CompilersName)
	c := m.(*Compilers)
	if c.CC() != "gcc" || c.CXX() != "" || c.FC() != "" {
		t.Errorf("compilers = %q %q %q", c.CC(), c.CXX(), c.FC())
	}
	if got := c.Versions[toolchain.C]; got != "12.2" {
		t.Errorf("C version = %q, want 12.2", got)
	}
	if !c.IsGNU(toolchain.C) {
		t.Error("gcc not recognised as GNU")
	}
	if c.PICFlags[toolchain.C] != "-fPIC" {
		t.Errorf("PIC flag = %q, want -fPIC", c.PICFlags[toolchain.C])
	}
	if !c.SharedLibraries || !c.DynamicLibraries {
		t.Errorf("shared=%v dynamic=%v, want both", c.SharedLibraries, c.DynamicLibraries)
	}
	if v, _ := fw.State.Substitution("CC"); v != "gcc" {
		t.Errorf("CC substitution = %q", v)
	}
	if _, ok := fw.State.Define("PETSC_HAVE_CXX"); ok {
		t.Error("PETSC_HAVE_CXX defined with --with-cxx=0")
	}
}

func TestCompilersPICFallback(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.CmdlineContains("-fPIC"), toolchain.Result{Stderr: "cc: warning: option -fPIC ignored"})
	r.On(fake.CmdlineContains("-KPIC"), fake.Fail("unknown flag"))

	fw, err := configure(t, r, []string{CompilersName}, nil, "--with-cc=cc", "--with-cxx=0", "--with-fc=0")
	if err != nil {
		t.Fatal(err)
	}
	m, _ := fw.Module(CompilersName)
	if got := m.(*Compilers).PICFlags[toolchain.C]; got != "-PIC" {
		t.Errorf("PIC flag = %q, want -PIC", got)
	}
}

func TestCompilersCxxLibs(t *testing.T) {
	linking := func(c fake.Call) bool { return c.Linking() }
	tests := []struct {
		name  string
		rules func(r *fake.Runner)
		args  []string
		want  []string
	}{
		{"libstdc++", nil, []string{"--with-cxx=g++"}, []string{"-lstdc++"}},
		{"libc++ fallback", func(r *fake.Runner) {
			r.On(fake.All(linking, fake.CmdlineContains("-lstdc++")), fake.Fail("cannot find -lstdc++"))
		}, []string{"--with-cxx=clang++"}, []string{"-lc++"}},
		{"user choice", nil, []string{"--with-cxx=CC", "--with-cxxlibs=[-lCrun,-lCstd]"}, []string{"-lCrun", "-lCstd"}},
		{"no C++ compiler", nil, []string{"--with-cxx=0"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fake.Runner{}
			if tt.rules != nil {
				tt.rules(r)
			}
			args := append([]string{"--with-cc=gcc", "--with-fc=0"}, tt.args...)
			fw, err := configure(t, r, []string{CompilersName}, nil, args...)
			if err != nil {
				t.Fatal(err)
			}
			m, _ := fw.Module(CompilersName)
			got := m.(*Compilers).CxxLibs
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("CxxLibs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompilersMissingC(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.Named("badcc"), fake.Fail("badcc: not found"))

	_, err := configure(t, r, []string{CompilersName}, nil, "--with-cc=badcc", "--with-cxx=0", "--with-fc=0")
	var unmet *framework.UnmetError
	if !errors.As(err, &unmet) || !strings.Contains(unmet.Reason, "C compiler") {
		t.Fatalf("got %v, want missing C compiler", err)
	}
}

func TestHeadersFunctionsLibraries(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.All(fake.CmdlineContains("-E"), fake.SourceContains("sys/procfs.h")), fake.Fail("sys/procfs.h: No such file or directory"))
	r.On(fake.LinkWith("getdomainname"), fake.Fail("undefined reference to `getdomainname'"))
	r.On(func(c fake.Call) bool { return c.Linking() && c.HasArg("-lnsl") }, fake.Fail("cannot find -lnsl"))

	fw, err := configure(t, r, []string{"user"}, func(reg *framework.Registry) {
		reg.Register("user", func() framework.Module {
			return &user{
				headers:   []string{"unistd.h", "sys/procfs.h"},
				functions: []string{"gettimeofday", "getdomainname", "_access"},
				libraries: []LibFunc{{"dl", "dlopen"}, {"nsl", "gethostbyname"}},
			}
		})
	}, "--with-cc=gcc", "--with-cxx=0", "--with-fc=0")
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{
		"PETSC_HAVE_UNISTD_H":      true,
		"PETSC_HAVE_SYS_PROCFS_H":  false,
		"PETSC_HAVE_GETTIMEOFDAY":  true,
		"PETSC_HAVE_GETDOMAINNAME": false,
		"PETSC_HAVE__ACCESS":       true,
		"PETSC_HAVE_LIBDL":         true,
		"PETSC_HAVE_LIBNSL":        false,
	}
	for name, present := range want {
		if _, ok := fw.State.Define(name); ok != present {
			t.Errorf("%s defined = %v, want %v", name, ok, present)
		}
	}

	l, _ := fw.Module(LibrariesName)
	if !l.(*Libraries).HaveLib("-ldl") || l.(*Libraries).HaveLib("nsl") {
		t.Error("HaveLib disagrees with the checks")
	}
	h, _ := fw.Module(HeadersName)
	if !h.(*Headers).Have("unistd.h") {
		t.Error("Have(unistd.h) = false")
	}
}

func TestTypes(t *testing.T) {
	sizes := map[string]int{"char": 1, "void *": 8, "short": 2, "int": 4, "long": 8, "long long": 8, "float": 4, "double": 8}
	wrongSize := func(c fake.Call) bool {
		if !strings.Contains(c.Source, "test_array") {
			return false
		}
		for typ, n := range sizes {
			if strings.Contains(c.Source, fmt.Sprintf("(sizeof(%s) ==", typ)) {
				return !strings.Contains(c.Source, fmt.Sprintf("(sizeof(%s) == %d)", typ, n))
			}
		}
		return true
	}
	r := &fake.Runner{}
	r.On(wrongSize, fake.Fail("size of array is negative"))
	r.On(fake.SourceContains("ssize_t a;"), fake.Fail("unknown type name 'ssize_t'"))

	fw, err := configure(t, r, []string{TypesName}, nil, "--with-cc=gcc", "--with-cxx=0", "--with-fc=0", "--with-64-bit-indices")
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]string{
		"PETSC_SIZEOF_INT":        "4",
		"PETSC_SIZEOF_VOID_P":     "8",
		"PETSC_SIZEOF_LONG_LONG":  "8",
		"PETSC_BITS_PER_BYTE":     "8",
		"PETSC_HAVE_SIZE_T":       "1",
		"ssize_t":                 "int",
		"PETSC_USE_64BIT_INDICES": "1",
	} {
		if got := define(fw, name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestPrograms(t *testing.T) {
	realMkdir, err := exec.LookPath("mkdir")
	if err != nil {
		t.Skip("no mkdir")
	}
	dir := t.TempDir()
	if err := os.Symlink(realMkdir, filepath.Join(dir, "mkdir")); err != nil {
		t.Skip(err)
	}
	for _, name := range []string{"sed", "make"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", dir)

	fw, err := configure(t, &toolchain.ExecRunner{}, []string{ProgramsName}, nil)
	if err != nil {
		t.Fatal(err)
	}
	subst := fw.State.SubstitutionMap()
	if got, want := subst["MKDIR"], filepath.Join(dir, "mkdir")+" -p"; got != want {
		t.Errorf("MKDIR = %q, want %q", got, want)
	}
	if got, want := subst["SED"], filepath.Join(dir, "sed"); got != want {
		t.Errorf("SED = %q, want %q", got, want)
	}
	if got := subst["MAKE"]; got != "make" {
		t.Errorf("MAKE = %q, want make", got)
	}
	if _, ok := subst["AR"]; ok {
		t.Error("AR found on an empty PATH")
	}
	if subst["AR_FLAGS"] != "cr" {
		t.Errorf("AR_FLAGS = %q", subst["AR_FLAGS"])
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		fn   func(string) string
		in   string
		want string
	}{
		{HeaderDefine, "sys/param.h", "HAVE_SYS_PARAM_H"},
		{HeaderDefine, "machine/endian.h", "HAVE_MACHINE_ENDIAN_H"},
		{FunctionDefine, "_getcwd", "HAVE__GETCWD"},
		{FunctionDefine, "PXFGETARG", "HAVE_PXFGETARG"},
		{LibraryDefine, "/usr/lib/libdl.so", "HAVE_LIBDL"},
		{LibraryDefine, "-lsocket", "HAVE_LIBSOCKET"},
		{ToString, "m", "-lm"},
		{ToString, "-lblas", "-lblas"},
		{ToString, "/opt/lib/liblapack.a", "/opt/lib/liblapack.a"},
		{sizeofName, "void *", "VOID_P"},
		{sizeofName, "long long", "LONG_LONG"},
	}
	for _, tt := range tests {
		if got := tt.fn(tt.in); got != tt.want {
			t.Errorf("%q -> %q, want %q", tt.in, got, tt.want)
		}
	}
}
