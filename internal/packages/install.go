package packages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/petsc/confprobe/internal/fetch"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/buildsys"
)

// Installer builds a package from its unpacked sources.
type Installer interface {
	// Config returns the package-native configuration the build will
	// use. A build whose Config is unchanged since the last successful
	// install is skipped.
	Config(ctx context.Context, b *Build) (string, error)
	// Install configures, builds and installs into b.InstallDir.
	Install(ctx context.Context, b *Build) error
}

// Build is the context handed to an Installer.
type Build struct {
	Package    *Package
	SourceDir  string
	InstallDir string
	Runner     toolchain.Runner
}

// Deps returns the found dependencies of the package in link order.
func (b *Build) Deps() []buildsys.Dep {
	var deps []buildsys.Dep
	for _, d := range b.Package.depClosure() {
		deps = append(deps, buildsys.Dep{Name: d.PkgName, Dir: d.Dir, Include: d.Include, Lib: d.Lib})
	}
	return deps
}

// Substitution returns a substitution recorded earlier in the pass, such
// as the AR or RANLIB programs.
func (b *Build) Substitution(name string) string {
	v, _ := b.Package.State().Substitution(name)
	return v
}

// externalDir is the root that downloads, sources and installs live in.
func (p *Package) externalDir() string {
	if dir := p.Args().String("with-external-packages-dir"); dir != "" {
		return dir
	}
	return filepath.Join(p.Framework.WorkDir, "externalpackages")
}

func (p *Package) arch() string {
	if arch := p.Args().String("PETSC_ARCH"); arch != "" {
		return arch
	}
	return "default"
}

func (p *Package) downloadLocation() (string, error) {
	switch mode := p.downloadMode(); mode {
	case "yes", "ifneeded":
		if len(p.Download) == 0 {
			return "", fmt.Errorf("no download location known for %s", p.PkgName)
		}
		return p.Download[0], nil
	default:
		return mode, nil
	}
}

// install fetches and builds the package and returns its install
// directory.
func (p *Package) install(ctx context.Context) (string, error) {
	log := framework.Logger(ctx).With("package", p.PkgName)
	loc, err := p.downloadLocation()
	if err != nil {
		return "", err
	}
	root := p.externalDir()
	src, err := fetch.New(p.Runner()).Fetch(ctx, fetch.Parse(loc), root)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", p.PkgName, err)
	}
	b := &Build{
		Package:    p,
		SourceDir:  src,
		InstallDir: filepath.Join(root, p.arch(), p.ArgName),
		Runner:     p.Runner(),
	}
	conf, err := p.Installer.Config(ctx, b)
	if err != nil {
		return "", err
	}

	cachePath := filepath.Join(root, cacheFile)
	cache, err := loadInstallCache(cachePath)
	if err != nil {
		log.Warn("ignoring unreadable install cache", "path", cachePath, "error", err)
		cache = &installCache{}
	}
	key := cacheKey(p.arch(), p.ArgName)
	if entry, ok := cache.get(key); ok && entry.Metadata == conf && isDir(b.InstallDir) {
		log.Info("install up to date", "dir", b.InstallDir, "built", entry.BuildTime)
		p.Framework.Metrics.Build(p.ArgName, "cached")
		return b.InstallDir, nil
	}

	log.Info("installing", "source", src, "prefix", b.InstallDir)
	if err := os.MkdirAll(b.InstallDir, 0o755); err != nil {
		return "", err
	}
	if err := p.Installer.Install(ctx, b); err != nil {
		p.Framework.Metrics.Build(p.ArgName, "fail")
		var step *buildsys.StepError
		if errors.As(err, &step) {
			return "", &framework.BuildError{Package: p.PkgName, Step: step.Step, Log: step.Output, Err: step.Err}
		}
		return "", &framework.BuildError{Package: p.PkgName, Step: "install", Err: err}
	}
	p.Framework.Metrics.Build(p.ArgName, "ok")

	cache.set(key, &installEntry{Metadata: conf, BuildTime: time.Now()})
	if err := saveInstallCache(cachePath, cache); err != nil {
		log.Warn("could not save install cache", "error", err)
	}
	return b.InstallDir, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
