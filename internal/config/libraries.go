package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/petsc/confprobe/internal/framework"
)

// LibFunc pairs a library with a function that must resolve in it.
type LibFunc struct {
	Library  string
	Function string
}

// Libraries checks that libraries provide a function.
type Libraries struct {
	framework.Base

	libraries []LibFunc
	found     map[string]bool
}

func newLibraries() framework.Module {
	return &Libraries{
		Base:  framework.Base{HeaderPrefix: "PETSC"},
		found: make(map[string]bool),
	}
}

// Add queues a library check.
func (l *Libraries) Add(lib, fn string) {
	l.libraries = append(l.libraries, LibFunc{Library: lib, Function: fn})
}

// LibraryDefine returns the HAVE_LIB define of lib without prefix.
func LibraryDefine(lib string) string {
	return "HAVE_LIB" + sanitize(libName(lib))
}

func (l *Libraries) Configure(ctx context.Context) error {
	for _, lf := range l.libraries {
		if err := l.ExecuteTest(ctx, "check library "+lf.Library, func(ctx context.Context) error {
			l.Check(ctx, lf.Library, lf.Function)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// Check reports whether fn links against lib plus otherLibs. On success
// HAVE_LIB<LIB> is defined.
func (l *Libraries) Check(ctx context.Context, lib, fn string, otherLibs ...string) bool {
	prelude := fmt.Sprintf("/* Override any gcc2 internal prototype to avoid an error. */\nchar %s();\n", fn)
	libs := append([]string{ToString(lib)}, otherLibs...)
	ok := l.Toolchain().Link(ctx, prelude, fn+"()", libs...)
	if ok {
		l.found[libName(lib)] = true
		l.AddDefine(LibraryDefine(lib), 1)
	}
	return ok
}

// CheckAll reports whether every function in fns links against libs.
func (l *Libraries) CheckAll(ctx context.Context, libs []string, fns ...string) bool {
	var prelude, body strings.Builder
	for _, fn := range fns {
		fmt.Fprintf(&prelude, "char %s();\n", fn)
		fmt.Fprintf(&body, "%s();\n", fn)
	}
	args := make([]string, 0, len(libs))
	for _, lib := range libs {
		args = append(args, ToString(lib))
	}
	return l.Toolchain().Link(ctx, prelude.String(), body.String(), args...)
}

// HaveLib reports whether lib was found by a previous check.
func (l *Libraries) HaveLib(lib string) bool {
	return l.found[libName(lib)]
}

// ToString returns the linker argument for lib: paths and flags are kept,
// a bare name becomes -l<name>.
func ToString(lib string) string {
	switch {
	case strings.HasPrefix(lib, "-"), strings.ContainsRune(lib, filepath.Separator),
		strings.HasSuffix(lib, ".a"), strings.HasSuffix(lib, ".so"), strings.HasSuffix(lib, ".lib"):
		return lib
	}
	return "-l" + lib
}

// ToStrings applies ToString to each of libs.
func ToStrings(libs []string) []string {
	out := make([]string, len(libs))
	for i, lib := range libs {
		out[i] = ToString(lib)
	}
	return out
}

// libName returns the bare library name: "/usr/lib/libdl.so" and "-ldl"
// are both "dl".
func libName(lib string) string {
	if strings.HasPrefix(lib, "-l") {
		return lib[2:]
	}
	base := filepath.Base(lib)
	base = strings.TrimPrefix(base, "lib")
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func (l *Libraries) SetupDependencies(fw *framework.Framework) error {
	_, err := requireCompilers(fw, l.Name())
	return err
}
