package cmake

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/buildsys"
)

type defineValue struct {
	value    string
	typeName string
}

// CMake wraps the configure, build and install steps of a CMake project.
type CMake struct {
	SourceDir string
	Defines   map[string]defineValue

	ConfigureTimeout time.Duration
	BuildTimeout     time.Duration

	runner     toolchain.Runner
	buildDir   string
	installDir string
	generator  string
	buildType  string
	env        map[string]string
}

var _ buildsys.BuildSystem = (*CMake)(nil)

// New creates a CMake helper for sourceDir with an out of tree build
// directory beneath it.
func New(r toolchain.Runner, sourceDir string) *CMake {
	return &CMake{
		SourceDir:        sourceDir,
		Defines:          map[string]defineValue{},
		ConfigureTimeout: buildsys.ConfigureTimeout,
		BuildTimeout:     buildsys.BuildTimeout,
		runner:           r,
		buildDir:         filepath.Join(sourceDir, "build"),
		env:              map[string]string{},
	}
}

func (c *CMake) Source(dir string) {
	c.SourceDir = dir
}

func (c *CMake) InstallDir(dir string) {
	c.installDir = dir
}

func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

func (c *CMake) BuildType(name string) *CMake {
	c.buildType = name
	return c
}

func (c *CMake) Define(key, value string) *CMake {
	c.Defines[key] = defineValue{value: value, typeName: "STRING"}
	return c
}

func (c *CMake) DefineBool(key string, value bool) *CMake {
	if value {
		c.Defines[key] = defineValue{value: "ON", typeName: "BOOL"}
		return c
	}
	c.Defines[key] = defineValue{value: "OFF", typeName: "BOOL"}
	return c
}

func (c *CMake) Env(key, value string) {
	c.env[key] = value
}

// Use makes dep visible through CMAKE_PREFIX_PATH and the compiler flags.
func (c *CMake) Use(dep buildsys.Dep) {
	buildsys.UseDep(c.env, dep)
}

func (c *CMake) Configure(ctx context.Context, args ...string) error {
	cmakeArgs := []string{"-S", c.SourceDir, "-B", c.buildDir}
	if c.generator != "" {
		cmakeArgs = append(cmakeArgs, "-G", c.generator)
	}
	if c.installDir != "" {
		c.Define("CMAKE_INSTALL_PREFIX", c.installDir)
	}
	if c.buildType != "" {
		c.Define("CMAKE_BUILD_TYPE", c.buildType)
	}
	cmakeArgs = append(cmakeArgs, c.definesArgs()...)
	cmakeArgs = append(cmakeArgs, args...)
	return buildsys.Run(ctx, c.runner, "cmake configure", toolchain.Cmd{
		Name: "cmake", Args: cmakeArgs, Env: c.env, Timeout: c.ConfigureTimeout,
	})
}

func (c *CMake) Build(ctx context.Context, args ...string) error {
	cmdArgs := []string{"--build", c.buildDir}
	if c.buildType != "" {
		cmdArgs = append(cmdArgs, "--config", c.buildType)
	}
	cmdArgs = append(cmdArgs, args...)
	return buildsys.Run(ctx, c.runner, "cmake build", toolchain.Cmd{
		Name: "cmake", Args: cmdArgs, Env: c.env, Timeout: c.BuildTimeout,
	})
}

func (c *CMake) Install(ctx context.Context, args ...string) error {
	cmdArgs := []string{"--install", c.buildDir}
	if c.installDir != "" {
		cmdArgs = append(cmdArgs, "--prefix", c.installDir)
	}
	cmdArgs = append(cmdArgs, args...)
	return buildsys.Run(ctx, c.runner, "cmake install", toolchain.Cmd{
		Name: "cmake", Args: cmdArgs, Env: c.env, Timeout: c.BuildTimeout,
	})
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (c *CMake) OutputDir() string {
	if c.installDir != "" {
		return c.installDir
	}
	return c.buildDir
}

// DefineArgs returns the -D arguments, sorted by name.
func (c *CMake) DefineArgs() []string {
	return c.definesArgs()
}

func (c *CMake) definesArgs() []string {
	if len(c.Defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Defines))
	for k := range c.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		def := c.Defines[k]
		if def.typeName != "" {
			args = append(args, "-D"+k+":"+def.typeName+"="+def.value)
			continue
		}
		args = append(args, "-D"+k+"="+def.value)
	}
	return args
}
