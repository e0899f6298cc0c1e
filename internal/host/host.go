// Package host identifies the machine being configured for and maps its
// architecture family to the checks that apply to it.
package host

import (
	"regexp"
	"runtime"
	"strings"
)

// Triple is a canonical host description, e.g. mips-sgi-irix6.5.
type Triple struct {
	CPU    string
	Vendor string
	OS     string
}

func (t Triple) String() string {
	return t.CPU + "-" + t.Vendor + "-" + t.OS
}

// Family returns the architecture family of the triple's OS.
func (t Triple) Family() string {
	return Family(t.OS)
}

// Parse splits a cpu-vendor-os triple. The OS part may itself contain
// dashes ("x86_64-unknown-linux-gnu"). Missing parts are "unknown".
func Parse(s string) Triple {
	parts := strings.SplitN(s, "-", 3)
	t := Triple{CPU: "unknown", Vendor: "unknown", OS: "unknown"}
	switch len(parts) {
	case 3:
		t.CPU, t.Vendor, t.OS = parts[0], parts[1], parts[2]
	case 2:
		t.CPU, t.OS = parts[0], parts[1]
	case 1:
		if parts[0] != "" {
			t.OS = parts[0]
		}
	}
	return t
}

var familyRe = regexp.MustCompile(`^[A-Za-z]+`)

// Family strips the version and everything after it from an OS or arch
// tag: "irix6.5-64" is "irix", "linux-gnu-x86_64" is "linux". Tags that
// do not start with a letter have no family.
func Family(tag string) string {
	return strings.ToLower(familyRe.FindString(tag))
}

// Detect describes the running machine from uname, falling back to the
// Go runtime's idea of it.
func Detect() Triple {
	if t, ok := uname(); ok {
		return t
	}
	return fromRuntime(runtime.GOOS, runtime.GOARCH)
}

func fromRuntime(goos, goarch string) Triple {
	cpu := goarch
	switch goarch {
	case "amd64":
		cpu = "x86_64"
	case "386":
		cpu = "i686"
	case "arm64":
		cpu = "aarch64"
	}
	os := goos
	if goos == "linux" {
		os = "linux-gnu"
	}
	return Triple{CPU: cpu, Vendor: vendorFor(goos), OS: os}
}

func vendorFor(sysname string) string {
	switch strings.ToLower(sysname) {
	case "darwin":
		return "apple"
	case "irix", "irix64":
		return "sgi"
	case "sunos", "solaris":
		return "sun"
	case "aix":
		return "ibm"
	}
	return "unknown"
}

// canonical builds a triple from uname fields the way config.guess does.
func canonical(sysname, release, machine string) Triple {
	sys := strings.ToLower(sysname)
	var os string
	switch sys {
	case "linux":
		os = "linux-gnu"
	case "sunos":
		// SunOS 5.x is Solaris 2.x
		if strings.HasPrefix(release, "5.") {
			os = "solaris2." + strings.TrimPrefix(release, "5.")
		} else {
			os = "sunos" + release
		}
	case "irix64":
		os = "irix" + release
	default:
		os = sys + release
	}
	return Triple{CPU: machine, Vendor: vendorFor(sys), OS: os}
}

// Generic is the dispatch key used for families without their own entry.
const Generic = "posix"

// Dispatch maps architecture families to the checks that apply to them.
type Dispatch[P any] map[string][]P

// For returns the checks of family, or the Generic ones.
func (d Dispatch[P]) For(family string) []P {
	if ps, ok := d[family]; ok {
		return ps
	}
	return d[Generic]
}
