// Package metrics records check activity of a configure run in a
// Prometheus registry that is written out as a textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one configure run.
type Metrics struct {
	Registry *prometheus.Registry

	checkDuration *prometheus.HistogramVec
	passes        prometheus.Counter
	restarts      prometheus.Counter
	builds        *prometheus.CounterVec
}

// New registers fresh collectors in their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "confprobe",
				Name:      "check_duration_seconds",
				Help:      "Duration of each configuration check.",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 30, 120, 900},
			},
			[]string{"module", "result"},
		),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "confprobe",
			Name:      "passes_total",
			Help:      "Configuration passes started.",
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "confprobe",
			Name:      "restarts_total",
			Help:      "Passes abandoned because a module requested a restart.",
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "confprobe",
			Name:      "package_builds_total",
			Help:      "Native builds of downloaded packages.",
		}, []string{"package", "result"}),
	}
	reg.MustRegister(m.checkDuration, m.passes, m.restarts, m.builds)
	return m
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}

// ObserveCheck records one check. A nil receiver is a no-op.
func (m *Metrics) ObserveCheck(module string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.checkDuration.WithLabelValues(module, result(ok)).Observe(d.Seconds())
}

// Pass counts a started pass.
func (m *Metrics) Pass() {
	if m == nil {
		return
	}
	m.passes.Inc()
}

// Restart counts an abandoned pass.
func (m *Metrics) Restart() {
	if m == nil {
		return
	}
	m.restarts.Inc()
}

// Build counts a package build; cached builds are counted as "cached".
func (m *Metrics) Build(pkg, outcome string) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(pkg, outcome).Inc()
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
