//go:build !linux && !windows

// Package tundevice adapts a pre-provisioned tun file descriptor into
// application.TunDevice. This build reads and writes the fd directly
// via the os package; it has no epoll-equivalent readiness primitive
// of its own, mirroring infrastructure/eventloop's portable fallback.
// Windows is out of scope (SPEC_FULL.md Non-goals): tun provisioning
// and service handling differ fundamentally there and belong to the
// parent process, not this worker.
package tundevice

import (
	"errors"
	"os"
	"sync/atomic"
	"syscall"
)

func dupFd(fd int) (int, error) {
	return syscall.Dup(fd)
}

// Device wraps a duplicated tun file descriptor.
type Device struct {
	f      *os.File
	closed atomic.Bool
}

// New takes ownership of fd: it duplicates it via os.NewFile over a
// dup'd descriptor so closing Device never closes the caller's fd.
func New(fd int) (*Device, error) {
	dup, err := dupFd(fd)
	if err != nil {
		return nil, err
	}
	return &Device{f: os.NewFile(uintptr(dup), "tun")}, nil
}

func (d *Device) Read(p []byte) (int, error) {
	if d.closed.Load() {
		return 0, errors.New("tundevice: device closed")
	}
	return d.f.Read(p)
}

func (d *Device) Write(p []byte) (int, error) {
	if d.closed.Load() {
		return 0, errors.New("tundevice: device closed")
	}
	return d.f.Write(p)
}

// Fd returns the duplicated descriptor, for event-loop registration.
func (d *Device) Fd() int { return int(d.f.Fd()) }

// Close releases the duplicated descriptor. Safe to call more than once.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.f.Close()
}
