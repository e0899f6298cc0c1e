package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/framework"
)

const typesPrelude = "#include <sys/types.h>\n#include <stdlib.h>\n#include <stddef.h>\n"

// typedefs that must exist, with the type standing in for a missing one.
var typedefs = []struct {
	name     string
	fallback string
}{
	{"size_t", "int"},
	{"ssize_t", "int"},
	{"off_t", "int"},
	{"pid_t", "int"},
	{"uid_t", "int"},
	{"gid_t", "int"},
	{"mode_t", "int"},
}

var sizedTypes = []string{"char", "void *", "short", "int", "long", "long long", "float", "double"}

// Types checks typedefs and the size of the basic C types.
type Types struct {
	framework.Base

	// Sizes holds sizeof for each of the basic C types that could be
	// determined.
	Sizes map[string]int
}

func newTypes() framework.Module {
	return &Types{
		Base:  framework.Base{HeaderPrefix: "PETSC"},
		Sizes: make(map[string]int),
	}
}

func (t *Types) SetupHelp(help *argdb.Help) {
	help.AddArgument("Types", "-with-64-bit-indices", argdb.Bool(false, "Use 64 bit integers for indices"))
}

func (t *Types) Configure(ctx context.Context) error {
	if err := t.ExecuteTest(ctx, "check typedefs", t.checkTypedefs); err != nil {
		return err
	}
	if err := t.ExecuteTest(ctx, "check sizes", t.checkSizes); err != nil {
		return err
	}
	return t.ExecuteTest(ctx, "check index size", func(ctx context.Context) error {
		if t.Args().Bool("with-64-bit-indices") {
			t.AddDefine("USE_64BIT_INDICES", 1, "Use 64 bit integers for indices")
		}
		return nil
	})
}

// Check reports whether typeName is declared by includes.
func (t *Types) Check(ctx context.Context, typeName, includes string) bool {
	return t.Toolchain().Compile(ctx, includes, typeName+" a;\nif (sizeof(a));")
}

func (t *Types) checkTypedefs(ctx context.Context) error {
	for _, td := range typedefs {
		if t.Check(ctx, td.name, typesPrelude) {
			t.AddDefine("HAVE_"+sanitize(td.name), 1)
			continue
		}
		// stand in for the missing typedef the way autoconf does
		t.State().SetDefine(framework.Define{Name: td.name, Value: td.fallback, Module: t.Name()})
	}
	return nil
}

// sizeOf finds sizeof(typeName) by compiling a static assertion for each
// candidate; nothing is run so it works for cross compilers.
func (t *Types) sizeOf(ctx context.Context, typeName string) (int, bool) {
	for _, n := range []int{1, 2, 4, 8, 16} {
		body := fmt.Sprintf("static int test_array[(sizeof(%s) == %d) ? 1 : -1];\ntest_array[0] = 0", typeName, n)
		if t.Toolchain().Compile(ctx, typesPrelude, body) {
			return n, true
		}
	}
	return 0, false
}

func (t *Types) checkSizes(ctx context.Context) error {
	for _, typ := range sizedTypes {
		n, ok := t.sizeOf(ctx, typ)
		if !ok {
			continue
		}
		t.Sizes[typ] = n
		t.AddDefine("SIZEOF_"+sizeofName(typ), n)
	}
	if t.Sizes["char"] != 0 {
		t.AddDefine("BITS_PER_BYTE", 8)
	}
	return nil
}

// sizeofName maps "void *" to VOID_P and "long long" to LONG_LONG.
func sizeofName(typ string) string {
	typ = strings.ReplaceAll(typ, "*", "p")
	return sanitize(strings.Join(strings.Fields(typ), "_"))
}

func (t *Types) SetupDependencies(fw *framework.Framework) error {
	_, err := requireCompilers(fw, t.Name())
	return err
}
