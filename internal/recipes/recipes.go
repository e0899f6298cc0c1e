// Package recipes loads *_pkg.gox package recipes and turns each into
// a package module of the configure framework.
package recipes

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"reflect"
	"slices"
	"strings"

	"github.com/goplus/ixgo"
	"github.com/goplus/ixgo/xgobuild"

	"github.com/petsc/confprobe/internal/framework"
	cixgo "github.com/petsc/confprobe/internal/ixgo"
	"github.com/petsc/confprobe/internal/packages"
	"github.com/petsc/confprobe/pkgs/buildsys"
	"github.com/petsc/confprobe/pkgs/buildsys/autotools"
	"github.com/petsc/confprobe/pkgs/buildsys/cmake"
	"github.com/petsc/confprobe/recipe"
)

// ModulePrefix prefixes the module names of recipes.
const ModulePrefix = "recipes."

// Recipe is a loaded package recipe.
type Recipe struct {
	structElem reflect.Value

	// Name is the file name without the recipe suffix; it names the
	// module and the with-<Name> arguments.
	Name string

	// NOTE: these types MUST match the fields of PackageF in
	// recipe/classfile.go.
	Title            string
	Download         []string
	Includes         []string
	Functions        []string
	Libraries        [][]string
	Requires         []string
	NeedsCxx         bool
	NeedsFortran     bool
	Requires32BitInt bool
	BuildSystem      string
	ConfigureArgs    []string
	OnCheck          func(c *recipe.Check)
}

// loadFS builds and interprets the recipe file, then extracts the
// descriptor from the class fields.
func loadFS(fsys fs.ReadFileFS, file string) (*Recipe, error) {
	ctx := ixgo.NewContext(0)

	content, err := fsys.ReadFile(file)
	if err != nil {
		return nil, err
	}
	source, err := xgobuild.BuildFile(ctx, file, content)
	if err != nil {
		return nil, err
	}
	pkgs, err := ctx.LoadFile("main.go", source)
	if err != nil {
		return nil, err
	}
	interp, err := ctx.NewInterp(pkgs)
	if err != nil {
		return nil, err
	}
	if err = interp.RunInit(); err != nil {
		return nil, err
	}

	name, ok := strings.CutSuffix(path.Base(file), cixgo.RecipeExt)
	if !ok || name == "" {
		return nil, fmt.Errorf("failed to load recipe: file name is not valid: %s", file)
	}
	typ, ok := interp.GetType(name)
	if !ok {
		return nil, fmt.Errorf("failed to load recipe: class not found: %s", name)
	}
	val := reflect.New(typ)
	class := val.Elem()

	val.Interface().(interface{ Main() }).Main()

	r := &Recipe{
		structElem:       class,
		Name:             name,
		Title:            valueOf(class, "title").(string),
		Download:         valueOf(class, "download").([]string),
		Includes:         valueOf(class, "includes").([]string),
		Functions:        valueOf(class, "functions").([]string),
		Libraries:        valueOf(class, "libraries").([][]string),
		Requires:         valueOf(class, "requires").([]string),
		NeedsCxx:         valueOf(class, "needsCxx").(bool),
		NeedsFortran:     valueOf(class, "needsFortran").(bool),
		Requires32BitInt: valueOf(class, "requires32BitInt").(bool),
		BuildSystem:      valueOf(class, "buildSystem").(string),
		ConfigureArgs:    valueOf(class, "configureArgs").([]string),
		OnCheck:          valueOf(class, "fOnCheck").(func(*recipe.Check)),
	}
	if r.Title == "" {
		r.Title = name
	}
	switch r.BuildSystem {
	case "", "autotools", "cmake":
	default:
		return nil, fmt.Errorf("recipe %s: unknown build system %q", name, r.BuildSystem)
	}
	return r, nil
}

// LoadFS loads the recipe at file in fsys.
func LoadFS(fsys fs.ReadFileFS, file string) (*Recipe, error) {
	return loadFS(fsys, file)
}

// LoadDir loads every recipe in dir, sorted by file name.
func LoadDir(dir string) ([]*Recipe, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fsys := os.DirFS(dir).(fs.ReadFileFS)
	var recipes []*Recipe
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), cixgo.RecipeExt) {
			continue
		}
		r, err := loadFS(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", e.Name(), err)
		}
		recipes = append(recipes, r)
	}
	return recipes, nil
}

// SetStdout sets the stdout writer for the recipe's gsh.App.
func (r *Recipe) SetStdout(w io.Writer) {
	if r.structElem.IsValid() {
		setValue(r.structElem, "fout", w)
	}
}

// SetStderr sets the stderr writer for the recipe's gsh.App.
func (r *Recipe) SetStderr(w io.Writer) {
	if r.structElem.IsValid() {
		setValue(r.structElem, "ferr", w)
	}
}

// ModuleName is the framework module name of r.
func (r *Recipe) ModuleName() string {
	return ModulePrefix + r.Name
}

// deps maps the required names to module names.
func (r *Recipe) deps() []string {
	deps := make([]string, len(r.Requires))
	for i, name := range r.Requires {
		if strings.Contains(name, ".") {
			deps[i] = name
		} else {
			deps[i] = "packages." + name
		}
	}
	return deps
}

// Module returns a fresh package module built from the recipe.
func (r *Recipe) Module() framework.Module {
	p := packages.New(r.Title, r.Name)
	p.Download = slices.Clone(r.Download)
	p.Includes = slices.Clone(r.Includes)
	p.Functions = slices.Clone(r.Functions)
	for _, set := range r.Libraries {
		p.LibList = append(p.LibList, slices.Clone(set))
	}
	p.Deps = r.deps()
	p.NeedsCxx = r.NeedsCxx
	p.NeedsFortran = r.NeedsFortran
	p.Requires32BitInt = r.Requires32BitInt
	if r.BuildSystem != "" {
		p.Installer = installer{r}
	}
	if r.OnCheck != nil {
		p.Check = func(ctx context.Context) error {
			return r.check(ctx, p)
		}
	}
	return p
}

func (r *Recipe) check(ctx context.Context, p *packages.Package) error {
	c := &recipe.Check{
		Dir:     p.Dir,
		Include: slices.Clone(p.Include),
		Lib:     slices.Clone(p.Lib),
	}
	r.OnCheck(c)
	if reason, failed := c.Failed(); failed {
		return framework.Unmet(p.Name(), "%s: %s", p.PkgName, reason)
	}
	for _, d := range c.Defines() {
		p.AddDefine(d.Name, d.Value)
	}
	framework.Logger(ctx).Debug("recipe check passed", "recipe", r.Name, "defines", len(c.Defines()))
	return nil
}

// Register adds one module per recipe to reg and returns the module
// names.
func Register(reg *framework.Registry, recipes []*Recipe) []string {
	names := make([]string, 0, len(recipes))
	for _, r := range recipes {
		reg.Register(r.ModuleName(), r.Module)
		names = append(names, r.ModuleName())
	}
	return names
}

// installer builds a downloaded recipe package with the build system
// the recipe names.
type installer struct {
	r *Recipe
}

func (i installer) system(b *packages.Build) buildsys.BuildSystem {
	var bs buildsys.BuildSystem
	switch i.r.BuildSystem {
	case "cmake":
		bs = cmake.New(b.Runner, b.SourceDir)
	default:
		bs = autotools.New(b.Runner, b.SourceDir)
	}
	bs.InstallDir(b.InstallDir)
	for _, dep := range b.Deps() {
		bs.Use(dep)
	}
	return bs
}

func (i installer) Config(ctx context.Context, b *packages.Build) (string, error) {
	return i.r.BuildSystem + " " + strings.Join(i.r.ConfigureArgs, " "), nil
}

func (i installer) Install(ctx context.Context, b *packages.Build) error {
	bs := i.system(b)
	if err := bs.Configure(ctx, i.r.ConfigureArgs...); err != nil {
		return err
	}
	if err := bs.Build(ctx); err != nil {
		return err
	}
	return bs.Install(ctx)
}
