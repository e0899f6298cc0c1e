package config

import (
	"context"
	"fmt"
	"slices"

	"github.com/petsc/confprobe/internal/framework"
)

// Functions checks that library functions can be linked.
type Functions struct {
	framework.Base

	functions []string
	found     map[string]bool
}

func newFunctions() framework.Module {
	return &Functions{
		Base:  framework.Base{HeaderPrefix: "PETSC"},
		found: make(map[string]bool),
	}
}

// Add queues functions to be checked when the module runs.
func (f *Functions) Add(functions ...string) {
	for _, fn := range functions {
		if !slices.Contains(f.functions, fn) {
			f.functions = append(f.functions, fn)
		}
	}
}

// FunctionDefine returns the HAVE_ define of fn without prefix.
func FunctionDefine(fn string) string {
	return "HAVE_" + sanitize(fn)
}

func (f *Functions) Configure(ctx context.Context) error {
	for _, fn := range f.functions {
		if err := f.ExecuteTest(ctx, "check function "+fn, func(ctx context.Context) error {
			f.Check(ctx, fn)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// Check links a call to fn, declared with a dummy prototype so no header
// is needed, against libs. On success HAVE_<FN> is defined.
func (f *Functions) Check(ctx context.Context, fn string, libs ...string) bool {
	prelude := fmt.Sprintf("/* Override any gcc2 internal prototype to avoid an error. */\nchar %s();\n", fn)
	ok := f.Toolchain().Link(ctx, prelude, fn+"()", libs...)
	if ok {
		f.found[fn] = true
		f.AddDefine(FunctionDefine(fn), 1)
	}
	return ok
}

// HaveFunction reports whether fn was found.
func (f *Functions) HaveFunction(fn string) bool {
	return f.found[fn]
}

func (f *Functions) SetupDependencies(fw *framework.Framework) error {
	_, err := requireCompilers(fw, f.Name())
	return err
}
