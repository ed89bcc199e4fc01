// Command sslvpnworker is the per-connection worker process (spec
// §1): the parent accepts and authenticates a client, then execs one
// of these per session, handing it a configuration document naming
// its inherited file descriptors. Grounded on the teacher's own thin
// main.go (signal wiring via os/signal, mode dispatch, nonzero exit on
// failure), adapted from an interactive server/client chooser into a
// headless worker entrypoint.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sslvpnworker/application"
	"sslvpnworker/domain/session"
	"sslvpnworker/infrastructure/controlsocket"
	"sslvpnworker/infrastructure/cryptography/chacha20"
	"sslvpnworker/infrastructure/dpdmonitor"
	"sslvpnworker/infrastructure/dtlschannel"
	"sslvpnworker/infrastructure/eventloop"
	"sslvpnworker/infrastructure/logging"
	"sslvpnworker/infrastructure/mtucontroller"
	"sslvpnworker/infrastructure/ratelimit"
	"sslvpnworker/infrastructure/tundevice"
	"sslvpnworker/infrastructure/workerconfig"
	"sslvpnworker/tunnelengine"
)

// watchdogDelay is the hard-kill backstop after a termination signal
// (spec §9: "a 2-second watchdog timer").
const watchdogDelay = 2 * time.Second

func main() {
	os.Exit(run())
}

// run returns the process exit code. Zero is never returned (spec
// §6: "zero is not used") — every path here is either a worker that
// was told to stop or a worker that failed.
func run() int {
	logger := logging.NewLogLogger()

	// SIGHUP is ignored at the process level (spec §6); SIGTERM/SIGINT
	// are handled by the event loop's own signalfd/os-signal channel,
	// masked until the poller blocks in Wait (spec §9).
	signal.Ignore(syscall.SIGHUP)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: sslvpnworker <config-path>")
		return 1
	}

	cfg, err := workerconfig.Read(os.Args[1])
	if err != nil {
		logger.Printf("sslvpnworker: %v", err)
		return 1
	}

	worker, cleanup, err := buildWorker(cfg, logger)
	if err != nil {
		logger.Printf("sslvpnworker: setup failed: %v", err)
		return 1
	}
	defer cleanup()

	return runSupervised(worker, logger)
}

// runSupervised runs the tunnel loop under an errgroup alongside the
// 2-second watchdog goroutine (spec §5, §9): if the loop fails to
// return within watchdogDelay of a termination signal, the watchdog
// wins the race and force-exits the process.
func runSupervised(worker *tunnelengine.Worker, logger application.Logger) int {
	group, ctx := errgroup.WithContext(context.Background())
	done := make(chan struct{})

	group.Go(func() error {
		defer close(done)
		return worker.Run()
	})
	group.Go(func() error {
		select {
		case <-worker.TerminationSignal():
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		}
		select {
		case <-done:
			return nil
		case <-time.After(watchdogDelay):
			logger.Printf("sslvpnworker: graceful exit stalled, hard-killing")
			os.Exit(1)
			return nil // unreachable
		}
	})

	err := group.Wait()
	switch {
	case err == nil, errors.Is(err, application.ErrPeerDisconnect):
		return 1
	default:
		logger.Printf("sslvpnworker: %v", err)
		return 1
	}
}

// buildWorker performs the TLS/CSTP handshake and wires every
// collaborator the tunnel loop needs. The returned cleanup closes
// whatever was opened along the way even on a later failure.
func buildWorker(cfg *workerconfig.Configuration, logger application.Logger) (*tunnelengine.Worker, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rawConn, closeConnFile, err := fdConn(cfg.ConnFD)
	if err != nil {
		return nil, cleanup, fmt.Errorf("reliable socket: %w", err)
	}
	closers = append(closers, func() { _ = rawConn.Close() }, closeConnFile)

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
	if err != nil {
		return nil, cleanup, fmt.Errorf("TLS material: %w", err)
	}
	tlsConn := tls.Server(rawConn, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err := tlsConn.Handshake(); err != nil {
		return nil, cleanup, fmt.Errorf("TLS handshake: %w", err)
	}

	vinfo, err := buildVInfo(cfg)
	if err != nil {
		return nil, cleanup, fmt.Errorf("addressing: %w", err)
	}

	sess, err := tunnelengine.PerformHandshake(tlsConn, cfg.ConnFD, tunnelengine.Config{
		VInfo:          vinfo,
		DPDSeconds:     cfg.DPDSeconds,
		KeepaliveSecs:  cfg.KeepaliveSeconds,
		CookieValidity: cfg.CookieValiditySeconds,
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("CSTP handshake: %w", err)
	}

	tun, err := tundevice.New(cfg.TunFD)
	if err != nil {
		return nil, cleanup, fmt.Errorf("tun device: %w", err)
	}
	closers = append(closers, func() { _ = tun.Close() })

	controlConn, closeControlFile, err := fdConn(cfg.ControlFD)
	if err != nil {
		return nil, cleanup, fmt.Errorf("control socket: %w", err)
	}
	closers = append(closers, func() { _ = controlConn.Close() }, closeControlFile)
	control := controlsocket.New(controlConn, cfg.ControlFD)

	poller, err := eventloop.New()
	if err != nil {
		return nil, cleanup, fmt.Errorf("event loop: %w", err)
	}
	closers = append(closers, func() { _ = poller.Close() })

	mtuCtrl := mtucontroller.New(sess,
		func(mtu int) error {
			if sess.DTLS == nil {
				return nil
			}
			return nil // the record layer derives its own data-MTU from the handshake, not from an external setter
		},
		func(plaintextMTU int) error {
			return control.Send(application.OutboundMessage{Type: application.MsgTunMTU, TunMTU: plaintextMTU})
		},
		func() error {
			return sess.SetUDPState(session.UDPDisabled)
		},
	)

	dpdMon := dpdmonitor.New(sess, time.Duration(cfg.DPDSeconds)*time.Second, func() error {
		return sess.SetUDPState(session.UDPInactive)
	})

	factory := &chacha20.Factory{IsServer: cfg.IsServer}
	dtlsFSM := dtlschannel.New(sess, factory, sess.HeaderDTLSMTU, mtuCtrl.Init, mtuCtrl.Set)

	rateTX := ratelimit.NewTokenBucket(&sess.BucketTX, cfg.TXRateLimitBytesPerSec, cfg.TXRateLimitBytesPerSec)
	rateRX := ratelimit.NewTokenBucket(&sess.BucketRX, cfg.RXRateLimitBytesPerSec, cfg.RXRateLimitBytesPerSec)

	if sess.SelectedCipherSuite != nil {
		if err := control.Send(application.OutboundMessage{
			Type:            application.MsgSessionInfo,
			TLSCipherSuite:  tls.CipherSuiteName(tlsConn.ConnectionState().CipherSuite),
			DTLSCipherSuite: sess.SelectedCipherSuite.Name,
		}); err != nil {
			logger.Printf("sslvpnworker: session info report failed: %v", err)
		}
	}

	worker := tunnelengine.New(sess, mtuCtrl, dpdMon, dtlsFSM, tun, control, poller, logger, rateTX, rateRX,
		time.Duration(cfg.CookieValiditySeconds)*time.Second)
	return worker, cleanup, nil
}

func buildVInfo(cfg *workerconfig.Configuration) (session.VInfo, error) {
	var vinfo session.VInfo
	vinfo.BaseMTU = cfg.BaseMTU

	if cfg.ClientIPv4 != "" {
		addr, err := netip.ParseAddr(cfg.ClientIPv4)
		if err != nil {
			return vinfo, fmt.Errorf("ClientIPv4: %w", err)
		}
		vinfo.IPv4 = addr
	}
	if cfg.ClientIPv4Mask != "" {
		mask, err := netip.ParseAddr(cfg.ClientIPv4Mask)
		if err != nil {
			return vinfo, fmt.Errorf("ClientIPv4Mask: %w", err)
		}
		vinfo.IPv4Mask = mask
	}
	if cfg.ClientIPv6 != "" {
		addr, err := netip.ParseAddr(cfg.ClientIPv6)
		if err != nil {
			return vinfo, fmt.Errorf("ClientIPv6: %w", err)
		}
		vinfo.IPv6 = addr
		vinfo.IPv6Prefix = cfg.ClientIPv6Prefix
	}
	for _, raw := range cfg.DNS {
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return vinfo, fmt.Errorf("DNS entry %q: %w", raw, err)
		}
		vinfo.DNS = append(vinfo.DNS, addr)
	}
	for _, raw := range cfg.SplitInclude {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return vinfo, fmt.Errorf("SplitInclude entry %q: %w", raw, err)
		}
		vinfo.SplitIncludes = append(vinfo.SplitIncludes, prefix)
	}
	return vinfo, nil
}

// fdConn adapts an inherited file descriptor to a net.Conn, the way
// the parent hands down already-accepted sockets (spec §1).
// net.FileConn duplicates the descriptor internally, so the *os.File
// wrapping fd is kept alive (closed only via the returned closer)
// rather than closed immediately — fd itself stays valid for the
// event loop to register, since it shares the same underlying open
// file description as conn's duplicate.
func fdConn(fd int) (conn net.Conn, closeFile func(), err error) {
	f := os.NewFile(uintptr(fd), "inherited-fd")
	if f == nil {
		return nil, func() {}, fmt.Errorf("fd %d is not valid", fd)
	}
	conn, err = net.FileConn(f)
	if err != nil {
		_ = f.Close()
		return nil, func() {}, fmt.Errorf("fd %d is not a usable socket: %w", fd, err)
	}
	return conn, func() { _ = f.Close() }, nil
}
