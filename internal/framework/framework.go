// Package framework sequences configuration modules. Modules form a
// DAG through Require; one pass runs every module's checks once, in
// dependency order, accumulating defines, substitutions and make rules
// into a State. A module may abort the pass with a restart request, in
// which case Run starts a fresh pass with the merged arguments.
package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/ctxlog"
	"github.com/petsc/confprobe/internal/metrics"
	"github.com/petsc/confprobe/internal/toolchain"
)

// Factory creates a fresh, unconfigured module.
type Factory func() Module

// Registry maps module names to factories. Registration order is the
// order root modules are configured in.
type Registry struct {
	names     []string
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	if _, ok := r.factories[name]; !ok {
		r.names = append(r.names, name)
	}
	r.factories[name] = f
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Lookup returns the factory for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// TestRecord names one check that ran.
type TestRecord struct {
	Module string
	Test   string
}

// Framework is the context of one configuration pass. Modules reach the
// arguments, the accumulator and the toolchain only through it.
type Framework struct {
	Args      *argdb.DB
	Help      *argdb.Help
	State     *State
	Toolchain *toolchain.Toolchain
	Runner    toolchain.Runner
	Log       *slog.Logger
	WorkDir   string
	Pass      int
	// Metrics, when set, receives check timings.
	Metrics *metrics.Metrics

	registry  *Registry
	modules   map[string]Module
	order     []string
	deps      map[string][]string
	resolving []string
	done      map[string]bool
	executed  []string
	trace     []TestRecord
}

// New returns the framework of one pass over args.
func New(args *argdb.DB, registry *Registry, runner toolchain.Runner, workDir string, log *slog.Logger) *Framework {
	if log == nil {
		log = ctxlog.Discard()
	}
	return &Framework{
		Args:      args,
		Help:      args.Help(),
		State:     NewState(),
		Toolchain: toolchain.New(runner, args, workDir),
		Runner:    runner,
		Log:       log,
		WorkDir:   workDir,
		registry:  registry,
		modules:   make(map[string]Module),
		deps:      make(map[string][]string),
		done:      make(map[string]bool),
	}
}

// Require returns the module registered as name, creating it and
// resolving its own dependencies on first use. When requester is not
// empty the edge requester -> name orders name's checks first.
func (fw *Framework) Require(name, requester string) (Module, error) {
	if i := slices.Index(fw.resolving, name); i >= 0 {
		path := append(slices.Clone(fw.resolving[i:]), name)
		return nil, &CycleError{Path: path}
	}
	if requester != "" && !slices.Contains(fw.deps[requester], name) {
		fw.deps[requester] = append(fw.deps[requester], name)
	}
	if m, ok := fw.modules[name]; ok {
		return m, nil
	}
	f, ok := fw.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	m := f()
	if b, ok := m.(binder); ok {
		b.bind(fw, name)
	}
	fw.modules[name] = m
	fw.order = append(fw.order, name)

	fw.resolving = append(fw.resolving, name)
	err := m.SetupDependencies(fw)
	fw.resolving = fw.resolving[:len(fw.resolving)-1]
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RequireAs is Require with the module asserted to T.
func RequireAs[T Module](fw *Framework, name, requester string) (T, error) {
	var zero T
	m, err := fw.Require(name, requester)
	if err != nil {
		return zero, err
	}
	t, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("module %q is %T, not %T", name, m, zero)
	}
	return t, nil
}

// Module returns an already required module.
func (fw *Framework) Module(name string) (Module, bool) {
	m, ok := fw.modules[name]
	return m, ok
}

// Modules returns the required modules in the order they were created.
func (fw *Framework) Modules() []Module {
	mods := make([]Module, 0, len(fw.order))
	for _, name := range fw.order {
		mods = append(mods, fw.modules[name])
	}
	return mods
}

// Dependencies returns the modules name required.
func (fw *Framework) Dependencies(name string) []string {
	return slices.Clone(fw.deps[name])
}

// Setup requires roots, collects every module's argument declarations
// and validates the arguments. Nothing is checked.
func (fw *Framework) Setup(roots []string) error {
	for _, name := range roots {
		if _, err := fw.Require(name, ""); err != nil {
			return err
		}
	}
	for _, m := range fw.Modules() {
		m.SetupHelp(fw.Help)
	}
	fw.Args.Attach(fw.Help)
	if err := fw.Args.Validate(); err != nil {
		return err
	}
	for _, m := range fw.Modules() {
		if v, ok := m.(Validator); ok {
			if err := v.Validate(fw.Args); err != nil {
				return err
			}
		}
	}
	return nil
}

// Configure runs every required module once, dependencies first. The
// first error aborts the pass; modules depending on the failed one
// never run.
func (fw *Framework) Configure(ctx context.Context) error {
	for _, name := range fw.order {
		if err := fw.configure(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (fw *Framework) configure(ctx context.Context, name string) error {
	if fw.done[name] {
		return nil
	}
	fw.done[name] = true
	for _, dep := range fw.deps[name] {
		if err := fw.configure(ctx, dep); err != nil {
			return err
		}
	}

	log := fw.Log.With("module", name)
	log.Info("configuring")
	start := time.Now()
	err := fw.modules[name].Configure(ctxlog.WithLogger(ctx, log))
	fw.executed = append(fw.executed, name)
	if err != nil {
		log.Info("module stopped", "elapsed", time.Since(start), "error", err)
		return wrapModuleError(name, err)
	}
	log.Debug("module done", "elapsed", time.Since(start))
	return nil
}

func wrapModuleError(name string, err error) error {
	var (
		unmet   *UnmetError
		build   *BuildError
		restart *RestartRequest
		argErr  *argdb.ArgumentError
	)
	switch {
	case errors.As(err, &unmet), errors.As(err, &build), errors.As(err, &restart), errors.As(err, &argErr):
		return err
	}
	return fmt.Errorf("configuring %s: %w", name, err)
}

// Executed returns the modules whose Configure ran, in order.
func (fw *Framework) Executed() []string {
	return slices.Clone(fw.executed)
}

// Trace returns every check run through ExecuteTest, in order.
func (fw *Framework) Trace() []TestRecord {
	return slices.Clone(fw.trace)
}

func (fw *Framework) recordTest(module, test string) {
	fw.trace = append(fw.trace, TestRecord{Module: module, Test: test})
}

// Summaries returns the non-empty report lines of Summarizer modules.
func (fw *Framework) Summaries() []string {
	var lines []string
	for _, name := range fw.executed {
		if s, ok := fw.modules[name].(Summarizer); ok {
			if line := s.Summary(); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}
