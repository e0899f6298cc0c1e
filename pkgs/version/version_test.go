package version

import (
	"regexp"
	"testing"
)

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"1.0", "1.0", 0},
		{"1.2.10", "1.2.9", 1},
		{"1.10", "1.9", 1},
		{"01", "1", 0},
		{"1.0~rc1", "1.0", -1},
		{"6.5", "6.10", -1},
		{"", "", 0},
		{"1.0a", "1.0b", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := sign(Compare(tt.a, tt.b)); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"GNU gdb (GDB) 7.2-ubuntu\nCopyright 2010", "7.2"},
		{"gcc (GCC) 4.1.2 20080704 (Red Hat 4.1.2-44)", "4.1"},
		{"Version 7.10.0.499 (R2010a)", "7.10"},
		{"no digits here", Unknown},
		{"build 42 only", Unknown},
		{"first 1.5 then 2.5", "1.5"},
	}
	for _, tt := range tests {
		if got := Extract(tt.output); got != tt.want {
			t.Errorf("Extract(%q) = %q, want %q", tt.output, got, tt.want)
		}
	}
}

func TestExtractWith(t *testing.T) {
	re := regexp.MustCompile(`Version ([0-9]*\.[0-9]*)`)
	if got := ExtractWith(re, "MATLAB Version 6.5.1"); got != "6.5" {
		t.Errorf("ExtractWith = %q, want 6.5", got)
	}
	if got := ExtractWith(re, "nothing"); got != Unknown {
		t.Errorf("ExtractWith = %q, want %q", got, Unknown)
	}
	if got := ExtractWith(regexp.MustCompile(`[0-9]+`), "abc 12"); got != "12" {
		t.Errorf("ExtractWith without groups = %q, want 12", got)
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		found, min string
		want       bool
	}{
		{"6.5", "6.0", true},
		{"5.3", "6.0", false},
		{"6.0", "6.0", true},
		{"1.2.10", "1.2.9", true},
		{"7.10", "7.9", true},
		{Unknown, "1.0", false},
		{"", "1.0", false},
		{"3.2p1", "3.2", true},
	}
	for _, tt := range tests {
		if got := AtLeast(tt.found, tt.min); got != tt.want {
			t.Errorf("AtLeast(%q, %q) = %v, want %v", tt.found, tt.min, got, tt.want)
		}
	}
}
