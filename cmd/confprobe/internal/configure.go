package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petsc/confprobe/internal/argdb"
	"github.com/petsc/confprobe/internal/cache"
	"github.com/petsc/confprobe/internal/ctxlog"
	"github.com/petsc/confprobe/internal/env"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/metrics"
	"github.com/petsc/confprobe/internal/petsc"
	"github.com/petsc/confprobe/internal/recipes"
	"github.com/petsc/confprobe/internal/render"
	"github.com/petsc/confprobe/internal/toolchain"
)

// Files written next to the generated configuration.
const (
	LogFile     = "configure.log"
	MetricsFile = "configure.prom"
	scratchDir  = ".confprobe"
)

// cliKeys are handled by the command itself and never reach the
// configure modules.
var cliKeys = []string{"force", "options-file", "help", "h"}

var configureCmd = &cobra.Command{
	Use:   "configure [options...]",
	Short: "Probe the system and write the PETSc configuration",
	Long: `Configure checks compilers, headers, functions and external packages, then
writes petscconf.h, the make fragments and the substituted files.

Options use the configure syntax: --with-<name>[=value], --without-<name>,
--enable-<name>, --disable-<name>, --download-<name>[=value] and -NAME=value.
--options-file=<file.yaml> prepends the options saved in a file, --force
ignores the snapshot of an earlier identical run and --help lists every
option the modules accept.`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := &configureRun{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
		return c.run(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

// configureRun is one invocation of the configure command.
type configureRun struct {
	out    io.Writer
	errOut io.Writer
	// runner replaces the exec runner, for tests.
	runner toolchain.Runner
}

// request is the parsed command line of a configure invocation.
type request struct {
	args        []string
	force       bool
	help        bool
	optionsFile string
}

func argKey(arg string) (string, error) {
	db, err := argdb.Parse([]string{arg})
	if err != nil {
		return "", err
	}
	return db.Keys()[0], nil
}

// parseRequest separates the command's own options from the configure
// options and expands an options file.
func parseRequest(raw []string) (*request, error) {
	req := &request{}
	for _, a := range raw {
		key, err := argKey(a)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(cliKeys, key) {
			req.args = append(req.args, a)
			continue
		}
		_, val, _ := strings.Cut(strings.TrimLeft(a, "-"), "=")
		switch key {
		case "force":
			req.force = val == "" || val == "1" || val == "yes" || val == "true"
		case "options-file":
			req.optionsFile = val
		default:
			req.help = true
		}
	}
	if req.optionsFile != "" {
		saved, err := argdb.LoadOptionsFile(req.optionsFile)
		if err != nil {
			return nil, err
		}
		req.args = append(saved, req.args...)
	}
	return req, nil
}

func (c *configureRun) registry(log *slog.Logger, logOut io.Writer, db *argdb.DB) (*framework.Registry, []string, error) {
	reg := petsc.NewRegistry()
	roots := []string{petsc.RootName}

	dir := db.String("with-recipes")
	if dir == "" {
		var err error
		if dir, err = env.RecipeDir(); err != nil {
			log.Debug("no recipe directory", "error", err)
			return reg, roots, nil
		}
	}
	loaded, err := recipes.LoadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading recipes from %s: %w", dir, err)
	}
	for _, r := range loaded {
		r.SetStdout(logOut)
		r.SetStderr(logOut)
		log.Info("loaded recipe", "recipe", r.Name, "dir", dir)
	}
	return reg, append(roots, recipes.Register(reg, loaded)...), nil
}

func (c *configureRun) run(ctx context.Context, raw []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := parseRequest(raw)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	db, err := argdb.Parse(req.args)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	dir := db.String("PETSC_DIR")
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return err
		}
	}
	if req.help {
		return c.printHelp(db, dir)
	}

	fingerprint := cache.Fingerprint(req.args, dir, Version)
	snapPath := cache.Path(dir)
	if !req.force {
		snap, ok, err := cache.Lookup(snapPath, fingerprint)
		if err != nil {
			fmt.Fprintf(c.errOut, "ignoring unreadable snapshot: %v\n", err)
		}
		if ok {
			return c.replay(snap)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if db.Bool("logAppend") {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	logPath := filepath.Join(dir, LogFile)
	logFile, err := os.OpenFile(logPath, flags, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	runID := cache.NewRunID()
	log := ctxlog.New(logFile, "debug", "text").With("run_id", runID)
	log.Info("confprobe configure", "version", Version, "args", req.args, "dir", dir)
	ctx = ctxlog.WithLogger(ctx, log)

	reg, roots, err := c.registry(log, logFile, db)
	if err != nil {
		return c.fatal(err)
	}
	runner := c.runner
	if runner == nil {
		runner = &toolchain.ExecRunner{Log: logFile}
	}
	m := metrics.New()
	fw, err := framework.Run(ctx, req.args, framework.Options{
		Registry: reg,
		Roots:    roots,
		Runner:   runner,
		WorkDir:  filepath.Join(dir, scratchDir),
		Log:      log,
		Metrics:  m,
	})
	if werr := m.WriteTextfile(filepath.Join(dir, MetricsFile)); werr != nil {
		log.Warn("writing metrics", "error", werr)
	}
	var argErr *argdb.ArgumentError
	if errors.As(err, &argErr) {
		log.Error("invalid arguments", "error", err)
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if err != nil {
		log.Error("configure failed", "error", err)
		return c.fatal(err)
	}

	outputs, err := render.WriteAll(fw.State)
	if err != nil {
		return c.fatal(err)
	}
	for _, o := range outputs {
		log.Info("wrote", "file", o)
	}
	snap := &cache.Snapshot{
		RunID:       runID,
		Version:     Version,
		Fingerprint: fingerprint,
		Args:        req.args,
		Dir:         dir,
		Passes:      fw.Pass,
		State:       fw.State,
		Summaries:   fw.Summaries(),
		Outputs:     outputs,
		Time:        time.Now().UTC(),
	}
	if err := cache.Save(snapPath, snap); err != nil {
		log.Warn("saving snapshot", "error", err)
	}
	c.printSummary(snap)
	return nil
}

func (c *configureRun) replay(snap *cache.Snapshot) error {
	outputs, err := render.WriteAll(snap.State)
	if err != nil {
		return c.fatal(err)
	}
	fmt.Fprintf(c.out, "Using the configuration of run %s from %s (--force to check again)\n",
		snap.RunID, snap.Time.Local().Format(time.RFC1123))
	snap.Outputs = outputs
	c.printSummary(snap)
	return nil
}

func (c *configureRun) printSummary(snap *cache.Snapshot) {
	for _, s := range snap.Summaries {
		fmt.Fprintln(c.out, s)
	}
	for _, o := range snap.Outputs {
		fmt.Fprintf(c.out, "%s %s\n", bold("wrote"), o)
	}
}

func (c *configureRun) printHelp(db *argdb.DB, dir string) error {
	reg, roots, err := c.registry(ctxlog.Discard(), io.Discard, db)
	if err != nil {
		return err
	}
	fw := framework.New(db, reg, &toolchain.ExecRunner{}, filepath.Join(dir, scratchDir), nil)
	for _, name := range roots {
		if _, err := fw.Require(name, ""); err != nil {
			return err
		}
	}
	for _, m := range fw.Modules() {
		m.SetupHelp(fw.Help)
	}
	fw.Help.Write(c.out)
	return nil
}

// fatal prints the failure banner and ends the process with status 1.
func (c *configureRun) fatal(err error) error {
	stars := strings.Repeat("*", 80)
	fmt.Fprintln(c.errOut, stars)
	fmt.Fprintln(c.errOut, red("         UNABLE to CONFIGURE with GIVEN OPTIONS    (see "+LogFile+" for details):"))
	fmt.Fprintln(c.errOut, strings.Repeat("-", 80))
	fmt.Fprintln(c.errOut, err)
	fmt.Fprintln(c.errOut, stars)
	return &ExitError{Code: 1}
}
