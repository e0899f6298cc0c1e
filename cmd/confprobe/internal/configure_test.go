package internal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/petsc/confprobe/internal/cache"
	"github.com/petsc/confprobe/internal/env"
	"github.com/petsc/confprobe/internal/toolchain/fake"
)

func TestParseRequest(t *testing.T) {
	opts := filepath.Join(t.TempDir(), "irix.yaml")
	if err := os.WriteFile(opts, []byte("arch: irix6.5\noptions:\n  - --with-cc=cc -n32\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		raw   []string
		want  []string
		force bool
		help  bool
	}{
		{"plain", []string{"--with-cc=gcc", "-PETSC_ARCH=linux"}, []string{"--with-cc=gcc", "-PETSC_ARCH=linux"}, false, false},
		{"force", []string{"--force", "--with-cc=gcc"}, []string{"--with-cc=gcc"}, true, false},
		{"force off", []string{"--force=0"}, nil, false, false},
		{"help", []string{"--help"}, nil, false, true},
		{"short help", []string{"-h", "--with-mpi=0"}, []string{"--with-mpi=0"}, false, true},
		{"options file", []string{"--options-file=" + opts, "--with-fc=0"}, []string{"-PETSC_ARCH=irix6.5", "--with-cc=cc -n32", "--with-fc=0"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parseRequest(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, req.args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
			if req.force != tt.force || req.help != tt.help {
				t.Errorf("force=%v help=%v, want %v %v", req.force, req.help, tt.force, tt.help)
			}
		})
	}
}

func TestParseRequestErrors(t *testing.T) {
	for _, raw := range [][]string{
		{"not-an-option"},
		{"--options-file=" + filepath.Join(t.TempDir(), "missing.yaml")},
	} {
		if _, err := parseRequest(raw); err == nil {
			t.Errorf("parseRequest(%q) succeeded", raw)
		}
	}
}

// petscTree lays out a source tree with the templates the root module
// substitutes and returns it with the options of a host independent
// configure.
func petscTree(t *testing.T) (string, []string) {
	t.Helper()
	t.Setenv(env.HomeEnv, t.TempDir())
	dir := t.TempDir()
	cfg := filepath.Join(dir, "bmake", "config")
	if err := os.MkdirAll(cfg, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"packages", "rules", "variables", "petscfix.h"} {
		if err := os.WriteFile(filepath.Join(cfg, name+".in"), []byte("ARCH = ${PETSC_ARCH}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir, []string{
		"--with-cc=gcc", "--with-cxx=0", "--with-fc=0",
		"-host=x86_64-unknown-linux-gnu",
		"-PETSC_DIR=" + dir,
		"--with-matlab=0",
		"--with-x=0",
		"-with-debugger-path=" + t.TempDir(),
	}
}

func runConfigure(t *testing.T, r *fake.Runner, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := &configureRun{out: &out, errOut: &errOut, runner: r}
	err := c.run(context.Background(), args)
	return out.String(), errOut.String(), err
}

func TestConfigureWritesArtifactsAndReplays(t *testing.T) {
	dir, args := petscTree(t)
	out, errOut, err := runConfigure(t, &fake.Runner{}, args...)
	if err != nil {
		t.Fatalf("configure failed: %v\n%s", err, errOut)
	}
	arch := filepath.Join(dir, "bmake", "linux-gnu")
	header, err := os.ReadFile(filepath.Join(arch, "petscconf.h"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(header), "#define PETSC_HAVE_MPI 1") {
		t.Errorf("header lacks PETSC_HAVE_MPI:\n%s", header)
	}
	variables, err := os.ReadFile(filepath.Join(arch, "variables"))
	if err != nil {
		t.Fatal(err)
	}
	if string(variables) != "ARCH = linux-gnu\n" {
		t.Errorf("variables = %q", variables)
	}
	if !strings.Contains(out, "wrote") {
		t.Errorf("output does not list the written files:\n%s", out)
	}
	prom, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	if err != nil || !strings.Contains(string(prom), "confprobe_passes_total 1") {
		t.Errorf("metrics textfile: %v\n%s", err, prom)
	}
	logData, err := os.ReadFile(filepath.Join(dir, LogFile))
	if err != nil || !strings.Contains(string(logData), "run_id=") {
		t.Errorf("configure.log: %v\n%s", err, logData)
	}
	first, err := cache.Load(cache.Path(dir))
	if err != nil {
		t.Fatal(err)
	}

	// An identical request replays the snapshot without probing.
	if err := os.Remove(filepath.Join(arch, "petscconf.h")); err != nil {
		t.Fatal(err)
	}
	r := &fake.Runner{}
	out, _, err = runConfigure(t, r, args...)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Calls) != 0 {
		t.Errorf("replay ran %d commands", len(r.Calls))
	}
	if !strings.Contains(out, first.RunID) {
		t.Errorf("replay output does not name run %s:\n%s", first.RunID, out)
	}
	if _, err := os.Stat(filepath.Join(arch, "petscconf.h")); err != nil {
		t.Errorf("replay did not rewrite the header: %v", err)
	}

	// --force checks again and records a new run.
	r = &fake.Runner{}
	if _, _, err := runConfigure(t, r, append([]string{"--force"}, args...)...); err != nil {
		t.Fatal(err)
	}
	if len(r.Calls) == 0 {
		t.Error("--force did not check")
	}
	second, err := cache.Load(cache.Path(dir))
	if err != nil {
		t.Fatal(err)
	}
	if second.RunID == first.RunID {
		t.Error("--force kept the old run id")
	}
	if second.Fingerprint != first.Fingerprint {
		t.Error("--force changed the fingerprint")
	}
}

func TestConfigureFatalBanner(t *testing.T) {
	dir, args := petscTree(t)
	r := &fake.Runner{}
	r.On(func(c fake.Call) bool {
		return c.Linking() && strings.Contains(strings.ToLower(c.Source), "ddot")
	}, fake.Fail("undefined reference to `ddot'"))

	_, errOut, err := runConfigure(t, r, args...)
	var exit *ExitError
	if !errors.As(err, &exit) || exit.Code != 1 {
		t.Fatalf("got %v, want exit status 1", err)
	}
	for _, want := range []string{"UNABLE to CONFIGURE", LogFile, "BLAS"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("banner lacks %q:\n%s", want, errOut)
		}
	}
	if _, err := os.Stat(cache.Path(dir)); !os.IsNotExist(err) {
		t.Errorf("snapshot written for a failed run: %v", err)
	}
}

func TestConfigureBadArgument(t *testing.T) {
	_, _, err := runConfigure(t, &fake.Runner{}, "stray")
	var exit *ExitError
	if !errors.As(err, &exit) || exit.Code != 2 {
		t.Fatalf("got %v, want exit status 2", err)
	}
}

func TestConfigureInvalidOptions(t *testing.T) {
	tests := []struct {
		name  string
		extra []string
		key   string
	}{
		{"dynamic without shared", []string{"--with-dynamic-loading=1", "--with-shared-libraries=0"}, "with-dynamic-loading"},
		{"not a boolean", []string{"--with-shared-libraries=maybe"}, "with-shared-libraries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, args := petscTree(t)
			r := &fake.Runner{}
			_, errOut, err := runConfigure(t, r, append(args, tt.extra...)...)
			var exit *ExitError
			if !errors.As(err, &exit) || exit.Code != 2 {
				t.Fatalf("got %v, want exit status 2", err)
			}
			if !strings.Contains(exit.Message, tt.key) {
				t.Errorf("message %q does not name %s", exit.Message, tt.key)
			}
			if strings.Contains(errOut, "UNABLE to CONFIGURE") {
				t.Errorf("usage error printed the failure banner:\n%s", errOut)
			}
			if len(r.Calls) != 0 {
				t.Errorf("%d commands ran before the options were rejected", len(r.Calls))
			}
			if _, err := os.Stat(cache.Path(dir)); !os.IsNotExist(err) {
				t.Errorf("snapshot written for rejected options: %v", err)
			}
		})
	}
}

func TestConfigureHelp(t *testing.T) {
	dir, _ := petscTree(t)
	out, _, err := runConfigure(t, &fake.Runner{}, "--help", "-PETSC_DIR="+dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"with-mpi-dir", "with-recipes", "PETSC_ARCH"} {
		if !strings.Contains(out, want) {
			t.Errorf("help lacks %q", want)
		}
	}
}

func TestShow(t *testing.T) {
	dir, args := petscTree(t)
	if _, errOut, err := runConfigure(t, &fake.Runner{}, args...); err != nil {
		t.Fatalf("configure failed: %v\n%s", err, errOut)
	}
	var out bytes.Buffer
	if err := show(&out, dir, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "petscconf.h") || !strings.Contains(out.String(), "--with-cc=gcc") {
		t.Errorf("show output:\n%s", out.String())
	}
	out.Reset()
	if err := show(&out, dir, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"fingerprint"`) {
		t.Errorf("json output:\n%s", out.String())
	}

	var exit *ExitError
	if err := show(&out, t.TempDir(), false); !errors.As(err, &exit) || exit.Code != 1 {
		t.Errorf("show without a snapshot = %v", err)
	}
}

func TestDocsRejectsUnknownAction(t *testing.T) {
	rootCmd.SetArgs([]string{"docs", t.TempDir(), "purge"})
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	var exit *ExitError
	if !errors.As(err, &exit) || exit.Code != 2 {
		t.Errorf("got %v, want exit status 2", err)
	}
}
