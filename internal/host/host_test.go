package host

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFamily(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"irix6.5-64", "irix"},
		{"irix6.5", "irix"},
		{"linux-gnu-x86_64", "linux"},
		{"linux-gnu", "linux"},
		{"solaris2.8", "solaris"},
		{"aix4.3.3.0", "aix"},
		{"freebsd4.2", "freebsd"},
		{"IRIX64", "irix"},
		{"64bit", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Family(tt.tag); got != tt.want {
			t.Errorf("Family(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Triple
	}{
		{"mips-sgi-irix6.5", Triple{"mips", "sgi", "irix6.5"}},
		{"x86_64-unknown-linux-gnu", Triple{"x86_64", "unknown", "linux-gnu"}},
		{"sparc-solaris2.8", Triple{"sparc", "unknown", "solaris2.8"}},
		{"linux", Triple{"unknown", "unknown", "linux"}},
	}
	for _, tt := range tests {
		got := Parse(tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
	if got := Parse("mips-sgi-irix6.5").String(); got != "mips-sgi-irix6.5" {
		t.Errorf("String() = %q", got)
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		sysname, release, machine string
		want                      string
	}{
		{"Linux", "6.1.0", "x86_64", "x86_64-unknown-linux-gnu"},
		{"SunOS", "5.8", "sun4u", "sun4u-sun-solaris2.8"},
		{"IRIX64", "6.5", "IP27", "IP27-sgi-irix6.5"},
		{"Darwin", "23.1.0", "arm64", "arm64-apple-darwin23.1.0"},
	}
	for _, tt := range tests {
		if got := canonical(tt.sysname, tt.release, tt.machine).String(); got != tt.want {
			t.Errorf("canonical(%q, %q) = %q, want %q", tt.sysname, tt.release, got, tt.want)
		}
	}
}

func TestDispatch(t *testing.T) {
	d := Dispatch[string]{
		"linux":  {"double-align-malloc"},
		"irix":   {"kbytes-for-size", "sigfpe"},
		Generic: {"fenv"},
	}
	if diff := cmp.Diff([]string{"kbytes-for-size", "sigfpe"}, d.For(Family("irix6.5-64"))); diff != "" {
		t.Errorf("irix checks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"fenv"}, d.For("hpux")); diff != "" {
		t.Errorf("fallback checks mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect(t *testing.T) {
	tr := Detect()
	if tr.CPU == "" || tr.OS == "" {
		t.Errorf("Detect() = %+v", tr)
	}
}
