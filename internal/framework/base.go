package framework

import (
	"context"
	"log/slog"
	"time"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/ctxlog"
	"github.com/petsc/confprobe/internal/toolchain"
)

// Module is a named unit of configuration logic. Its checks run after
// those of every module it required in SetupDependencies.
type Module interface {
	Name() string
	SetupHelp(help *argdb.Help)
	SetupDependencies(fw *Framework) error
	Configure(ctx context.Context) error
}

// Validator is implemented by modules that check argument combinations.
// Validate runs for every module before the first check of the pass.
type Validator interface {
	Validate(args *argdb.DB) error
}

// Summarizer is implemented by modules that contribute a line to the
// end-of-run report.
type Summarizer interface {
	Summary() string
}

type binder interface {
	bind(fw *Framework, name string)
}

// Base is embedded by modules. It carries the module's define and
// substitution prefixes and writes into the pass State through them.
type Base struct {
	Framework *Framework

	// HeaderPrefix is prepended with "_" to every define name.
	HeaderPrefix string
	// SubstPrefix is prepended with "_" to every substitution name.
	SubstPrefix string

	name string
}

func (b *Base) bind(fw *Framework, name string) {
	b.Framework = fw
	b.name = name
}

// Name returns the name the module was registered under.
func (b *Base) Name() string { return b.name }

// SetupHelp declares no arguments.
func (b *Base) SetupHelp(*argdb.Help) {}

// SetupDependencies requires nothing.
func (b *Base) SetupDependencies(*Framework) error { return nil }

// Args returns the argument store of the pass.
func (b *Base) Args() *argdb.DB { return b.Framework.Args }

// State returns the accumulator of the pass.
func (b *Base) State() *State { return b.Framework.State }

// Toolchain returns the toolchain of the pass.
func (b *Base) Toolchain() *toolchain.Toolchain { return b.Framework.Toolchain }

// Runner returns the command runner of the pass.
func (b *Base) Runner() toolchain.Runner { return b.Framework.Runner }

func prefixed(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// DefineName returns name with the module's header prefix.
func (b *Base) DefineName(name string) string { return prefixed(b.HeaderPrefix, name) }

// AddDefine records a define. value is formatted with bools as 1 and 0.
func (b *Base) AddDefine(name string, value any, comment ...string) {
	d := Define{Name: b.DefineName(name), Value: formatValue(value), Module: b.name}
	if len(comment) > 0 {
		d.Comment = comment[0]
	}
	b.Framework.State.SetDefine(d)
}

// Define returns the value of one of the module's own defines.
func (b *Base) Define(name string) (string, bool) {
	return b.Framework.State.Define(b.DefineName(name))
}

// HasDefine reports whether one of the module's own defines is set.
func (b *Base) HasDefine(name string) bool {
	_, ok := b.Define(name)
	return ok
}

// AddSubstitution records a substitution.
func (b *Base) AddSubstitution(name string, value any, comment ...string) {
	s := Substitution{Name: prefixed(b.SubstPrefix, name), Value: formatValue(value), Module: b.name}
	if len(comment) > 0 {
		s.Comment = comment[0]
	}
	b.Framework.State.SetSubstitution(s)
}

// Substitution returns the value of one of the module's substitutions.
func (b *Base) Substitution(name string) (string, bool) {
	return b.Framework.State.Substitution(prefixed(b.SubstPrefix, name))
}

// AddMakeMacro records a make variable.
func (b *Base) AddMakeMacro(name string, value any) {
	b.Framework.State.SetMakeMacro(MakeMacro{Name: name, Value: formatValue(value)})
}

// AddMakeRule records a make target.
func (b *Base) AddMakeRule(name, deps string, commands ...string) {
	b.Framework.State.SetMakeRule(MakeRule{Name: name, Deps: deps, Commands: commands})
}

// AddPrototype records a prototype for language.
func (b *Base) AddPrototype(proto, language string) {
	b.Framework.State.AddPrototype(proto, language)
}

// ExecuteTest runs one named check, logging its start, duration and
// outcome. An error from fn is returned unchanged.
func (b *Base) ExecuteTest(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	log := ctxlog.FromContext(ctx).With("test", name)
	log.Debug("TEST")
	start := time.Now()
	err := fn(ctxlog.WithLogger(ctx, log))
	elapsed := time.Since(start)
	if err != nil {
		log.Debug("test failed", "elapsed", elapsed, "error", err)
	} else {
		log.Debug("test done", "elapsed", elapsed)
	}
	b.Framework.Metrics.ObserveCheck(b.name, err == nil, elapsed)
	b.Framework.recordTest(b.name, name)
	return err
}

// Logger returns the module logger stored in ctx.
func Logger(ctx context.Context) *slog.Logger {
	return ctxlog.FromContext(ctx)
}
