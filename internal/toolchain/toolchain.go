package toolchain

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Language selects the compiler and flag variable a check uses.
type Language string

const (
	C   Language = "C"
	Cxx Language = "Cxx"
	FC  Language = "FC"
)

type langInfo struct {
	flags string
	ext   string
	cpp   bool
}

var languages = map[Language]langInfo{
	C:   {flags: "CFLAGS", ext: ".c", cpp: true},
	Cxx: {flags: "CXXFLAGS", ext: ".cc", cpp: true},
	FC:  {flags: "FFLAGS", ext: ".F"},
}

// FlagsKey returns the argument holding lang's compiler flags.
func FlagsKey(lang Language) string {
	return languages[lang].flags
}

// ErrNoCompiler is returned when a check needs a compiler that has not
// been configured.
var ErrNoCompiler = errors.New("no compiler configured")

// FlagSource supplies build flags such as CFLAGS and LIBS; *argdb.DB
// satisfies it.
type FlagSource interface {
	String(key string) string
}

// Toolchain synthesizes conftest sources and runs the configured
// compilers on them. It is not safe for concurrent use; checks run one
// at a time.
type Toolchain struct {
	Runner Runner

	args      FlagSource
	dir       string
	compilers map[Language][]string
	stack     []Language
	overrides map[string]string
}

// New returns a Toolchain that writes its conftest files into dir.
func New(r Runner, args FlagSource, dir string) *Toolchain {
	return &Toolchain{
		Runner:    r,
		args:      args,
		dir:       dir,
		compilers: make(map[Language][]string),
		overrides: make(map[string]string),
	}
}

// Dir returns the scratch directory.
func (t *Toolchain) Dir() string {
	return t.dir
}

// SetCompiler sets the compiler command line for lang, e.g. "cc -n32".
func (t *Toolchain) SetCompiler(lang Language, cmdline string) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		delete(t.compilers, lang)
		return
	}
	t.compilers[lang] = fields
}

// Compiler returns the compiler command line for lang.
func (t *Toolchain) Compiler(lang Language) string {
	return strings.Join(t.compilers[lang], " ")
}

// HasCompiler reports whether lang has a compiler.
func (t *Toolchain) HasCompiler(lang Language) bool {
	return len(t.compilers[lang]) > 0
}

// PushLanguage makes lang current until the matching PopLanguage.
func (t *Toolchain) PushLanguage(lang Language) {
	t.stack = append(t.stack, lang)
}

// PopLanguage restores the previous language.
func (t *Toolchain) PopLanguage() {
	if len(t.stack) > 0 {
		t.stack = t.stack[:len(t.stack)-1]
	}
}

// Language returns the current language; C when none was pushed.
func (t *Toolchain) Language() Language {
	if len(t.stack) == 0 {
		return C
	}
	return t.stack[len(t.stack)-1]
}

// Flag returns the value of a flag variable, honouring SetFlag overrides.
func (t *Toolchain) Flag(key string) string {
	if v, ok := t.overrides[key]; ok {
		return v
	}
	if t.args == nil {
		return ""
	}
	return t.args.String(key)
}

// SetFlag overrides a flag variable until the returned restore is called.
func (t *Toolchain) SetFlag(key, value string) (restore func()) {
	old, had := t.overrides[key]
	t.overrides[key] = value
	return func() {
		if had {
			t.overrides[key] = old
		} else {
			delete(t.overrides, key)
		}
	}
}

// CompilerFlags returns the flags of the current language.
func (t *Toolchain) CompilerFlags() string {
	return t.Flag(languages[t.Language()].flags)
}

// Source returns the conftest program for the current language.
func (t *Toolchain) Source(prelude, body string) string {
	if t.Language() == FC {
		var sb strings.Builder
		sb.WriteString("      program main\n")
		if body != "" {
			sb.WriteString(body)
			if !strings.HasSuffix(body, "\n") {
				sb.WriteString("\n")
			}
		}
		sb.WriteString("      end\n")
		return sb.String()
	}
	var sb strings.Builder
	if prelude != "" {
		sb.WriteString(prelude)
		if !strings.HasSuffix(prelude, "\n") {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("int main() {\n")
	if body != "" {
		sb.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			sb.WriteString("\n")
		}
	}
	sb.WriteString(";\n  return 0;\n}\n")
	return sb.String()
}

func (t *Toolchain) writeSource(lang Language, src string) (name string, cleanup func(), err error) {
	name = "conftest" + languages[lang].ext
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(filepath.Join(t.dir, name), []byte(src), 0o644); err != nil {
		return "", nil, err
	}
	return name, func() {
		matches, _ := filepath.Glob(filepath.Join(t.dir, "conftest*"))
		for _, m := range matches {
			os.RemoveAll(m)
		}
	}, nil
}

func (t *Toolchain) compileCmd(lang Language, src string) Cmd {
	cc := t.compilers[lang]
	args := append([]string{}, cc[1:]...)
	args = append(args, "-c", "-o", "conftest.o")
	if languages[lang].cpp {
		args = append(args, strings.Fields(t.Flag("CPPFLAGS"))...)
	}
	args = append(args, strings.Fields(t.Flag(languages[lang].flags))...)
	args = append(args, src)
	return Cmd{Name: cc[0], Args: args, Dir: t.dir}
}

// OutputCompile compiles prelude and body in the current language and
// returns the compiler's result including its diagnostics.
func (t *Toolchain) OutputCompile(ctx context.Context, prelude, body string) (Result, error) {
	lang := t.Language()
	if !t.HasCompiler(lang) {
		return Result{}, ErrNoCompiler
	}
	name, cleanup, err := t.writeSource(lang, t.Source(prelude, body))
	if err != nil {
		return Result{}, err
	}
	defer cleanup()
	return t.Runner.Run(ctx, t.compileCmd(lang, name)), nil
}

// Compile reports whether prelude and body compile.
func (t *Toolchain) Compile(ctx context.Context, prelude, body string) bool {
	res, err := t.OutputCompile(ctx, prelude, body)
	return err == nil && res.OK()
}

// CheckPrototype compiles prelude and body and fails when the compiler
// complains about an implicit declaration, which means the function has
// no prototype in the included headers.
func (t *Toolchain) CheckPrototype(ctx context.Context, prelude, body string) bool {
	res, err := t.OutputCompile(ctx, prelude, body)
	if err != nil {
		return false
	}
	out := res.Output()
	if strings.Contains(out, "implicit") || strings.Contains(out, "Implicit") {
		return false
	}
	return true
}

// OutputLink compiles and links prelude and body against libs, which are
// passed to the linker verbatim (-L/-l flags or library paths).
func (t *Toolchain) OutputLink(ctx context.Context, prelude, body string, libs ...string) (Result, error) {
	lang := t.Language()
	if !t.HasCompiler(lang) {
		return Result{}, ErrNoCompiler
	}
	name, cleanup, err := t.writeSource(lang, t.Source(prelude, body))
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	res := t.Runner.Run(ctx, t.compileCmd(lang, name))
	if !res.OK() {
		return res, nil
	}
	cc := t.compilers[lang]
	args := append([]string{}, cc[1:]...)
	args = append(args, "-o", "conftest")
	args = append(args, strings.Fields(t.Flag(languages[lang].flags))...)
	args = append(args, "conftest.o")
	args = append(args, strings.Fields(t.Flag("LDFLAGS"))...)
	args = append(args, libs...)
	args = append(args, strings.Fields(t.Flag("LIBS"))...)
	return t.Runner.Run(ctx, Cmd{Name: cc[0], Args: args, Dir: t.dir}), nil
}

// Link reports whether prelude and body compile and link against libs.
func (t *Toolchain) Link(ctx context.Context, prelude, body string, libs ...string) bool {
	res, err := t.OutputLink(ctx, prelude, body, libs...)
	return err == nil && res.OK()
}

// Preprocess reports whether code passes the C preprocessor with the
// given extra include directories.
func (t *Toolchain) Preprocess(ctx context.Context, code string, includeDirs ...string) bool {
	lang := t.Language()
	if !languages[lang].cpp {
		lang = C
	}
	if !t.HasCompiler(lang) {
		return false
	}
	name, cleanup, err := t.writeSource(lang, code)
	if err != nil {
		return false
	}
	defer cleanup()

	cc := t.compilers[lang]
	args := append([]string{}, cc[1:]...)
	args = append(args, "-E")
	args = append(args, strings.Fields(t.Flag("CPPFLAGS"))...)
	for _, dir := range includeDirs {
		args = append(args, "-I"+dir)
	}
	args = append(args, name)
	return t.Runner.Run(ctx, Cmd{Name: cc[0], Args: args, Dir: t.dir}).OK()
}

// FindExecutable looks name up in path (a list of directories) or, when
// path is empty, in $PATH.
func FindExecutable(name, path string) (string, bool) {
	if path == "" {
		p, err := exec.LookPath(name)
		return p, err == nil
	}
	for _, dir := range filepath.SplitList(path) {
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			return candidate, true
		}
	}
	return "", false
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
