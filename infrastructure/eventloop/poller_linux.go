//go:build linux

// Package eventloop provides the Tunnel Loop's readiness-wait
// primitive (spec §4.5 step 1): epoll on Linux, registering the
// reliable channel, the tunnel device, the control socket, and
// (once WAIT_FD is past) the datagram channel, plus a signalfd so
// SIGTERM/SIGINT are observed only while blocked in the wait — giving
// atomic wakeup-on-signal (spec §9). Grounded directly on the
// teacher's dual-epoll tun wrapper
// (infrastructure/PAL/linux/tun/epoll/tun.go): EpollCreate1, EpollCtl,
// EpollWait, EINTR-retry loop, Close() unblocks waiters.
package eventloop

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// FDKind labels which fd a readiness event came from, so the tunnel
// loop can dispatch without a second lookup.
type FDKind int

const (
	KindTun FDKind = iota
	KindReliable
	KindDatagram
	KindControl
	KindSignal
)

// Poller is a Linux epoll-backed multi-fd readiness wait with signal
// masking folded in via signalfd.
type Poller struct {
	mu      sync.Mutex
	epfd    int
	sigfd   int
	kinds   map[int]FDKind
	closed  bool
}

// New creates an epoll instance and a signalfd for SIGTERM/SIGINT,
// masking those signals from default disposition so they are only
// observed through Wait (spec §9).
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("eventloop: EpollCreate1: %w", err)
	}

	var mask unix.Sigset_t
	sigset(&mask, unix.SIGTERM, unix.SIGINT)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &mask, nil); err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventloop: PthreadSigmask: %w", err)
	}

	sigfd, err := unix.Signalfd(-1, &mask, 0)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventloop: Signalfd: %w", err)
	}

	p := &Poller{epfd: epfd, sigfd: sigfd, kinds: make(map[int]FDKind)}
	if err := p.Register(sigfd, KindSignal); err != nil {
		_ = unix.Close(sigfd)
		_ = unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

// Register adds fd to the readiness set under the given kind label.
func (p *Poller) Register(fd int, kind FDKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("eventloop: EpollCtl add fd %d: %w", fd, err)
	}
	p.kinds[fd] = kind
	return nil
}

// Unregister removes fd from the readiness set (e.g. when the
// datagram channel is disabled, spec §4.4).
func (p *Poller) Unregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("eventloop: EpollCtl del fd %d: %w", fd, err)
	}
	delete(p.kinds, fd)
	return nil
}

// Wait blocks for readiness on any registered fd, up to timeout (spec
// §4.5 step 1: "with a 10-second timeout"). On spurious EINTR it
// retries transparently, matching the teacher's epoll wrapper.
func (p *Poller) Wait(timeout time.Duration) (ready []FDKind, err error) {
	events := make([]unix.EpollEvent, 16)
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		n, werr := unix.EpollWait(p.epfd, events, int(remaining.Milliseconds()))
		if werr == unix.EINTR {
			if time.Now().After(deadline) {
				return nil, nil
			}
			continue
		}
		if werr != nil {
			return nil, fmt.Errorf("eventloop: EpollWait: %w", werr)
		}

		p.mu.Lock()
		for i := 0; i < n; i++ {
			if kind, ok := p.kinds[int(events[i].Fd)]; ok {
				ready = append(ready, kind)
			}
		}
		p.mu.Unlock()
		return ready, nil
	}
}

// DrainSignal consumes one pending signalfd_siginfo so a repeated
// readiness notification does not loop forever.
func (p *Poller) DrainSignal() error {
	var info unix.SignalfdSiginfo
	buf := make([]byte, unix.SizeofSignalfdSiginfo)
	_, err := unix.Read(p.sigfd, buf)
	if err != nil {
		return fmt.Errorf("eventloop: read signalfd: %w", err)
	}
	_ = info
	return nil
}

// Close releases the epoll and signalfd descriptors, unblocking any
// concurrent Wait the way the teacher's tun wrapper Close() does.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	_ = unix.Close(p.sigfd)
	return unix.Close(p.epfd)
}

func sigset(set *unix.Sigset_t, signals ...unix.Signal) {
	for _, s := range signals {
		addSigset(set, s)
	}
}
