package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/metrics"
	"github.com/petsc/confprobe/internal/toolchain"
)

// MaxPasses bounds the restart loop.
const MaxPasses = 10

// Options configure Run.
type Options struct {
	Registry *Registry
	// Roots are the modules to configure; all registered modules when
	// empty.
	Roots   []string
	Runner  toolchain.Runner
	WorkDir string
	Log     *slog.Logger
	// MaxPasses overrides the restart bound when positive.
	MaxPasses int
	Metrics   *metrics.Metrics
}

// Run configures the registered modules, restarting with merged
// arguments while a module requests it. The framework of the last pass
// is returned, also on failure, so its state can be reported.
func Run(ctx context.Context, args []string, opts Options) (*Framework, error) {
	max := opts.MaxPasses
	if max <= 0 {
		max = MaxPasses
	}
	roots := opts.Roots
	if len(roots) == 0 {
		roots = opts.Registry.Names()
	}
	var fw *Framework
	for pass := 1; pass <= max; pass++ {
		db, err := argdb.Parse(args)
		if err != nil {
			return nil, err
		}
		fw = New(db, opts.Registry, opts.Runner, opts.WorkDir, opts.Log)
		fw.Pass = pass
		fw.Metrics = opts.Metrics
		opts.Metrics.Pass()
		fw.Log.Info("starting configuration pass", "pass", pass, "args", args)

		if err := fw.Setup(roots); err != nil {
			return fw, err
		}
		err = fw.Configure(ctx)
		var restart *RestartRequest
		if errors.As(err, &restart) {
			fw.Log.Info("restarting configuration", "module", restart.Module, "args", restart.Args)
			opts.Metrics.Restart()
			args = argdb.MergeRestart(args, restart.Args)
			continue
		}
		return fw, err
	}
	return fw, fmt.Errorf("%w after %d passes", ErrNoConvergence, max)
}
