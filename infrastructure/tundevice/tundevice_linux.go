//go:build linux

// Package tundevice adapts a pre-provisioned tun file descriptor
// (the parent process owns tun creation and configuration, spec §1)
// into application.TunDevice. Grounded on the teacher's epoll tun
// wrapper (infrastructure/PAL/linux/tun/epoll/tun.go), reduced here to
// raw non-blocking read/write: readiness is the event loop's job
// (infrastructure/eventloop registers this fd directly with epoll),
// so this package does not run its own internal epoll instance the
// way the teacher's two-directional wrapper does.
package tundevice

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"sslvpnworker/application"
)

// Device wraps a duplicated, non-blocking tun fd.
type Device struct {
	fd     int
	closed atomic.Bool
}

// New takes ownership of fd: it duplicates it, marks the duplicate
// non-blocking and close-on-exec, then leaves the original to the
// caller.
func New(fd int) (*Device, error) {
	dup, err := unix.Dup(fd)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(dup, true); err != nil {
		_ = unix.Close(dup)
		return nil, err
	}
	if _, err := unix.FcntlInt(uintptr(dup), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		_ = unix.Close(dup)
		return nil, err
	}
	return &Device{fd: dup}, nil
}

// Read reads one tun packet, retrying on EINTR. EAGAIN is returned
// wrapped in application.ErrTransientIO, so application.KindOf at the
// call site classifies it as transient (the tunnel loop only calls
// Read after the event loop reports readiness, so EAGAIN here means a
// spurious wakeup, not a design bug).
func (d *Device) Read(p []byte) (int, error) {
	if d.closed.Load() {
		return 0, errors.New("tundevice: device closed")
	}
	for {
		n, err := unix.Read(d.fd, p)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			return 0, fmt.Errorf("%w: tundevice: %v", application.ErrTransientIO, err)
		}
		return 0, err
	}
}

// Write writes one tun packet, retrying on EINTR.
func (d *Device) Write(p []byte) (int, error) {
	if d.closed.Load() {
		return 0, errors.New("tundevice: device closed")
	}
	total := 0
	for total < len(p) {
		n, err := unix.Write(d.fd, p[total:])
		if err == nil {
			total += n
			continue
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return total, err
	}
	return total, nil
}

// Fd returns the duplicated descriptor, for event-loop registration.
func (d *Device) Fd() int { return d.fd }

// Close releases the duplicated descriptor. Safe to call more than once.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(d.fd)
}
