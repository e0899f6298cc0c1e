//go:build linux || darwin || freebsd || netbsd || openbsd

package host

import "golang.org/x/sys/unix"

func uname() (Triple, bool) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return Triple{}, false
	}
	return canonical(
		unix.ByteSliceToString(u.Sysname[:]),
		unix.ByteSliceToString(u.Release[:]),
		unix.ByteSliceToString(u.Machine[:]),
	), true
}
