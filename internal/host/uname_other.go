//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package host

func uname() (Triple, bool) {
	return Triple{}, false
}
