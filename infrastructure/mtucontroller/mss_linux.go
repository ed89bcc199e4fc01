//go:build linux

package mtucontroller

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// QueryMSS reads the kernel's current estimate of the TCP connection's
// send MSS via getsockopt(IPPROTO_TCP, TCP_INFO) (spec §4.2: "query
// the TCP socket for its MSS"). Grounded on the PAL pattern of calling
// into golang.org/x/sys/unix for OS facilities the standard library
// does not expose, rather than hand-writing the getsockopt syscall.
func QueryMSS(fd int) (int, error) {
	info, err := unix.GetsockoptTCPInfo(fd, unix.IPPROTO_TCP, unix.TCP_INFO)
	if err != nil {
		return 0, fmt.Errorf("mtucontroller: GetsockoptTCPInfo: %w", err)
	}
	return int(info.Snd_mss), nil
}
