//go:build linux

package eventloop

import "golang.org/x/sys/unix"

// addSigset sets the bit for signal s in a Linux kernel sigset_t,
// represented by x/sys/unix as a fixed array of uint64 words (one bit
// per signal number, 1-indexed). This is the same representation
// glibc's sigset_t uses internally.
func addSigset(set *unix.Sigset_t, s unix.Signal) {
	word := (int(s) - 1) / 64
	bit := uint((int(s) - 1) % 64)
	set.Val[word] |= 1 << bit
}
