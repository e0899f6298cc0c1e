// Package version extracts and compares the free-form version strings
// printed by compilers, debuggers and numeric packages.
package version

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Unknown is reported when no version token can be found.
const Unknown = "unknown"

var floatToken = regexp.MustCompile(`[0-9]+\.[0-9]+`)

// Extract returns the first floating-point token in output, such as "7.2"
// from "GNU gdb (GDB) 7.2-ubuntu". The first match wins; when nothing
// matches Unknown is returned.
func Extract(output string) string {
	if m := floatToken.FindString(output); m != "" {
		return m
	}
	return Unknown
}

// ExtractWith is Extract with a caller supplied pattern. The first
// submatch of the first match is returned, or the whole match when the
// pattern has no groups.
func ExtractWith(re *regexp.Regexp, output string) string {
	m := re.FindStringSubmatch(output)
	switch {
	case m == nil:
		return Unknown
	case len(m) > 1:
		return m[1]
	default:
		return m[0]
	}
}

// AtLeast reports whether found >= min. Both strings are compared as
// semantic versions when they are valid ones (after a "v" prefix is
// added), otherwise with the GNU version ordering. An Unknown version is
// never at least anything.
func AtLeast(found, min string) bool {
	if found == Unknown || found == "" {
		return false
	}
	a, b := canonical(found), canonical(min)
	if semver.IsValid(a) && semver.IsValid(b) {
		return semver.Compare(a, b) >= 0
	}
	return Compare(found, min) >= 0
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// Compare compares two version strings the way GNU sort -V does:
// non-digit runs compare by character order and digit runs by numeric
// value. It returns a negative number, zero or a positive number.
func Compare(a, b string) int {
	s1, s2 := []byte(a), []byte(b)
	i, j := 0, 0

	for i < len(s1) || j < len(s2) {
		firstDiff := 0

		for (i < len(s1) && !isDigit(s1[i])) || (j < len(s2) && !isDigit(s2[j])) {
			var c1, c2 byte
			if i < len(s1) {
				c1 = s1[i]
			}
			if j < len(s2) {
				c2 = s2[j]
			}
			if o1, o2 := order(c1), order(c2); o1 != o2 {
				return o1 - o2
			}
			i++
			j++
		}

		for i < len(s1) && s1[i] == '0' {
			i++
		}
		for j < len(s2) && s2[j] == '0' {
			j++
		}

		for i < len(s1) && j < len(s2) && isDigit(s1[i]) && isDigit(s2[j]) {
			if firstDiff == 0 {
				firstDiff = int(s1[i]) - int(s2[j])
			}
			i++
			j++
		}

		if i < len(s1) && isDigit(s1[i]) {
			return 1
		}
		if j < len(s2) && isDigit(s2[j]) {
			return -1
		}
		if firstDiff != 0 {
			return firstDiff
		}
	}
	return 0
}

// order ranks a byte: digits and NUL 0, letters their ASCII value,
// '~' below everything, other bytes after all letters.
func order(c byte) int {
	switch {
	case isDigit(c), c == 0:
		return 0
	case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		return int(c)
	case c == '~':
		return -1
	default:
		return int(c) + 256
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
