package argdb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseForms(t *testing.T) {
	db, err := Parse([]string{
		"--with-cc=cc -n32",
		"--with-mpi",
		"--without-x",
		"--enable-debug=0",
		"--disable-log",
		"--download-ml=1",
		"-PETSC_ARCH=irix6.5",
		"-ignoreWarnings",
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := map[string]string{
		"with-cc":        "cc -n32",
		"with-mpi":       "1",
		"with-x":         "0",
		"enable-debug":   "0",
		"enable-log":     "0",
		"download-ml":    "1",
		"PETSC_ARCH":     "irix6.5",
		"ignoreWarnings": "1",
	}
	for k, v := range want {
		if got := db.String(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if diff := cmp.Diff([]string{"with-cc", "with-mpi", "with-x", "enable-debug", "enable-log", "download-ml", "PETSC_ARCH", "ignoreWarnings"}, db.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsPositional(t *testing.T) {
	_, err := Parse([]string{"gcc"})
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ArgumentError, got %v", err)
	}
}

func TestParseRejectsValueOnWithout(t *testing.T) {
	if _, err := Parse([]string{"--without-mpi=1"}); err == nil {
		t.Fatal("expected error for --without with a value")
	}
}

func TestDefaultsAndCoercion(t *testing.T) {
	db, err := Parse([]string{"--with-shared-libraries=yes", "--with-64-bit-indices=1"})
	if err != nil {
		t.Fatal(err)
	}
	h := NewHelp()
	h.AddArgument("PETSc", "-with-shared-libraries", Bool(false, "shared"))
	h.AddArgument("PETSc", "-with-dynamic-loading", Bool(false, "dynamic"))
	h.AddArgument("PETSc", "-with-pic", Bool(true, "pic"))
	h.AddArgument("PETSc", "-with-64-bit-indices", Bool(false, "64 bit"))
	h.AddArgument("PETSc", "-log-level", String("info", "level"))
	h.AddArgument("PETSc", "-passes", Int(3, "n"))
	db.Attach(h)

	if err := db.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !db.Bool("with-shared-libraries") {
		t.Error("with-shared-libraries should be true")
	}
	if db.Bool("with-dynamic-loading") {
		t.Error("with-dynamic-loading default should be false")
	}
	if !db.Bool("with-pic") {
		t.Error("with-pic default should be true")
	}
	if db.Has("with-pic") {
		t.Error("defaults must not count as explicitly set")
	}
	if got := db.String("log-level"); got != "info" {
		t.Errorf("log-level = %q", got)
	}
	if got := db.Int("passes"); got != 3 {
		t.Errorf("passes = %d", got)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	tests := []struct {
		arg  string
		typ  Type
		name string
	}{
		{"--with-shared-libraries=maybe", Bool(false, ""), "with-shared-libraries"},
		{"-passes=many", Int(1, ""), "passes"},
		{"--with-mpi-dir=/definitely/not/here", Dir(""), "with-mpi-dir"},
		{"--with-mpi-lib=[]", LibList(""), "with-mpi-lib"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Parse([]string{tt.arg})
			if err != nil {
				t.Fatal(err)
			}
			h := NewHelp()
			h.AddArgument("test", tt.name, tt.typ)
			db.Attach(h)
			var argErr *ArgumentError
			if err := db.Validate(); !errors.As(err, &argErr) {
				t.Fatalf("Validate = %v, want ArgumentError", err)
			}
			if argErr.Key != tt.name {
				t.Errorf("error key = %q, want %q", argErr.Key, tt.name)
			}
		})
	}
}

func TestLibList(t *testing.T) {
	db, err := Parse([]string{"--with-mpi-lib=[libmpi.a, libmpi++.a]", "--with-blas-lib=-L/opt/lib -lblas"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"libmpi.a", "libmpi++.a"}, db.LibList("with-mpi-lib")); diff != "" {
		t.Errorf("bracketed list (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-L/opt/lib", "-lblas"}, db.LibList("with-blas-lib")); diff != "" {
		t.Errorf("plain list (-want +got):\n%s", diff)
	}
}

func TestMergeRestart(t *testing.T) {
	args := []string{"--with-cc=gcc", "-LIBS=-lm"}
	got := MergeRestart(args, map[string]string{
		"-LIBS":     "-lsocket -lnsl",
		"-CPPFLAGS": "-I/opt/include",
	})
	want := []string{"--with-cc=gcc", "-LIBS=-lm -lsocket -lnsl", "-CPPFLAGS=-I/opt/include", "-logAppend=1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeRestart (-want +got):\n%s", diff)
	}
	if args[1] != "-LIBS=-lm" {
		t.Error("MergeRestart must not modify its input")
	}
	again := MergeRestart(got, map[string]string{"-LIBS": "-ldl"})
	if n := strings.Count(strings.Join(again, " "), "-logAppend=1"); n != 1 {
		t.Errorf("-logAppend=1 appears %d times", n)
	}
	db, err := Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if db.String("LIBS") != "-lm -lsocket -lnsl" {
		t.Errorf("LIBS after merge = %q", db.String("LIBS"))
	}
}

func TestMergeRestartMatchesParsedKey(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		extra map[string]string
		want  []string
		libs  string
	}{
		{
			name:  "double dash spelling",
			args:  []string{"--LIBS=-lm"},
			extra: map[string]string{"-LIBS": "-lsocket -lnsl"},
			want:  []string{"--LIBS=-lm -lsocket -lnsl", "-logAppend=1"},
			libs:  "-lm -lsocket -lnsl",
		},
		{
			name:  "longer key left alone",
			args:  []string{"-LIBSDIR=/x"},
			extra: map[string]string{"-LIBS": "-lsocket -lnsl"},
			want:  []string{"-LIBSDIR=/x", "-LIBS=-lsocket -lnsl", "-logAppend=1"},
			libs:  "-lsocket -lnsl",
		},
		{
			name:  "last occurrence extended",
			args:  []string{"-LIBS=-la", "-LIBS=-lb"},
			extra: map[string]string{"-LIBS": "-lc"},
			want:  []string{"-LIBS=-la", "-LIBS=-lb -lc", "-logAppend=1"},
			libs:  "-lb -lc",
		},
		{
			name:  "bare flag replaced",
			args:  []string{"-LIBS"},
			extra: map[string]string{"-LIBS": "-lsocket"},
			want:  []string{"-LIBS=-lsocket", "-logAppend=1"},
			libs:  "-lsocket",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeRestart(tt.args, tt.extra)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MergeRestart (-want +got):\n%s", diff)
			}
			db, err := Parse(got)
			if err != nil {
				t.Fatal(err)
			}
			if db.String("LIBS") != tt.libs {
				t.Errorf("LIBS = %q, want %q", db.String("LIBS"), tt.libs)
			}
		})
	}
}

func TestLoadOptionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irix.yaml")
	content := `arch: irix6.5
options:
  - --with-cc=cc -n32
  - --with-mpi-lib=[libmpi.a,libmpi++.a]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	args, err := LoadOptionsFile(path)
	if err != nil {
		t.Fatalf("LoadOptionsFile: %v", err)
	}
	want := []string{"-PETSC_ARCH=irix6.5", "--with-cc=cc -n32", "--with-mpi-lib=[libmpi.a,libmpi++.a]"}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("options (-want +got):\n%s", diff)
	}
}

func TestLoadOptionsFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"option without dash", "options:\n  - with-cc=gcc\n"},
		{"empty option", "options:\n  - \"\"\n"},
		{"arch with slash", "arch: linux/gnu\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "opts.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadOptionsFile(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestHelpWrite(t *testing.T) {
	h := NewHelp()
	h.AddArgument("MPI", "-with-mpi-dir=<root dir>", Dir("MPI root"))
	h.AddArgument("PETSc", "-with-shared-libraries", Bool(false, "Make shared libraries"))
	var sb strings.Builder
	h.Write(&sb)
	out := sb.String()
	for _, want := range []string{"MPI:", "-with-mpi-dir <directory>: MPI root", "PETSc:", "(default 0)"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q:\n%s", want, out)
		}
	}
}
