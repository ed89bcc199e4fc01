//go:build linux

package tundevice

import (
	"bytes"
	"testing"

	"golang.org/x/sys/unix"
)

func TestDeviceRoundTripsOverSocketpair(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[1])

	dev, err := New(fds[0])
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer dev.Close()
	unix.Close(fds[0])

	payload := []byte("packet-over-socketpair")
	if _, err := unix.Write(fds[1], payload); err != nil {
		t.Fatalf("write to peer: %v", err)
	}

	buf := make([]byte, 1500)
	n, err := dev.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("Read = %q, want %q", buf[:n], payload)
	}

	reply := []byte("reply-packet")
	if _, err := dev.Write(reply); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, err = unix.Read(fds[1], buf)
	if err != nil {
		t.Fatalf("read from peer: %v", err)
	}
	if !bytes.Equal(buf[:n], reply) {
		t.Errorf("peer received = %q, want %q", buf[:n], reply)
	}
}

func TestDeviceFdDiffersFromOriginal(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[1])
	defer unix.Close(fds[0])

	dev, err := New(fds[0])
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer dev.Close()

	if dev.Fd() == fds[0] {
		t.Errorf("Fd() = %d, want a duplicated descriptor distinct from %d", dev.Fd(), fds[0])
	}
}

func TestDeviceCloseIsIdempotentAndBlocksIO(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[1])
	defer unix.Close(fds[0])

	dev, err := New(fds[0])
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, err := dev.Read(make([]byte, 10)); err == nil {
		t.Errorf("Read after Close should fail")
	}
	if _, err := dev.Write([]byte("x")); err == nil {
		t.Errorf("Write after Close should fail")
	}
}
