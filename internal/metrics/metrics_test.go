package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Pass()
	m.Pass()
	m.Restart()
	m.ObserveCheck("config.headers", true, 20*time.Millisecond)
	m.ObserveCheck("petsc.missing", false, time.Second)
	m.Build("ml", "ok")

	path := filepath.Join(t.TempDir(), "configure.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		"confprobe_passes_total 2",
		"confprobe_restarts_total 1",
		`confprobe_check_duration_seconds_count{module="config.headers",result="ok"} 1`,
		`confprobe_check_duration_seconds_count{module="petsc.missing",result="fail"} 1`,
		`confprobe_package_builds_total{package="ml",result="ok"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Pass()
	m.Restart()
	m.ObserveCheck("x", true, time.Millisecond)
	m.Build("x", "ok")
}
