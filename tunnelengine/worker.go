// Package tunnelengine implements the Tunnel Loop (spec §4.5): the
// event-driven core that multiplexes the tun device, the reliable
// channel, the datagram channel, and the control socket, owning rate
// limiting and termination. Grounded on the teacher's split
// tun-handler/transport-handler/dataplane-worker shape
// (infrastructure/tunnel/dataplane/server/{tcp_chacha20,udp_chacha20}),
// merged here into one per-session loop: the teacher runs one worker
// across many sessions via a per-client dispatch map, whereas this
// worker owns exactly one session, so those maps collapse to direct
// field access.
package tunnelengine

import (
	"fmt"
	"sync"
	"time"

	"sslvpnworker/application"
	"sslvpnworker/domain/frame"
	"sslvpnworker/domain/session"
	"sslvpnworker/infrastructure/eventloop"
	"sslvpnworker/infrastructure/framing"
	"sslvpnworker/infrastructure/iphdr"
	"sslvpnworker/infrastructure/mtucontroller"
)

const (
	waitTimeout      = 10 * time.Second
	periodicInterval = 30 * time.Second
	udpSwitchTime    = 15 * time.Second
)

// Worker owns exactly one client session end to end (spec §5: "the
// parent runs one worker per client").
type Worker struct {
	sess *session.Session

	codec   *framing.Codec
	mtuCtrl application.MTUController
	dpdMon  application.DPDMonitor
	dtlsFSM application.DatagramChannel

	tun     application.TunDevice
	control application.ControlSocket
	poller  *eventloop.Poller
	logger  application.Logger

	rateTX application.RateLimiter
	rateRX application.RateLimiter

	lastUDPRecvAt time.Time
	terminate     bool
	pollMSSFd     int

	// cookieValidity is the server's cookie_validity setting (spec
	// §4.5 step 6: a rekey is only honored once cookie_validity/3 has
	// elapsed since the last one).
	cookieValidity time.Duration

	// termSignal closes the instant a termination signal is observed
	// (spec §9: "a signal observed while the loop is waiting must cause
	// a graceful send of TERM_SERVER and exit"), letting main.go's
	// watchdog goroutine start its 2-second hard-kill countdown from
	// exactly that moment rather than from process start.
	termSignal chan struct{}
	termOnce   sync.Once
}

// TerminationSignal returns a channel that closes once a termination
// signal has been observed by the loop. main.go uses this to start the
// 2-second watchdog backstop described in spec §9.
func (w *Worker) TerminationSignal() <-chan struct{} {
	return w.termSignal
}

// New wires a Worker from its already-constructed collaborators; the
// caller (main.go) is responsible for running PerformHandshake first
// and constructing mtuCtrl/dpdMon/dtlsFSM bound to the same sess.
func New(sess *session.Session, mtuCtrl application.MTUController, dpdMon application.DPDMonitor, dtlsFSM application.DatagramChannel, tun application.TunDevice, control application.ControlSocket, poller *eventloop.Poller, logger application.Logger, rateTX, rateRX application.RateLimiter, cookieValidity time.Duration) *Worker {
	return &Worker{
		sess:           sess,
		codec:          framing.NewCodec(sess.ConnMTU),
		mtuCtrl:        mtuCtrl,
		dpdMon:         dpdMon,
		dtlsFSM:        dtlsFSM,
		tun:            tun,
		control:        control,
		poller:         poller,
		logger:         logger,
		rateTX:         rateTX,
		rateRX:         rateRX,
		pollMSSFd:      sess.TLS.Fd(),
		cookieValidity: cookieValidity,
		termSignal:     make(chan struct{}),
	}
}

// Run executes the unbounded event loop (spec §4.5) until a fatal
// condition, peer disconnect, or termination signal ends the session.
// A non-nil error other than application.ErrPeerDisconnect represents
// an abnormal exit (spec §6: exit codes are always nonzero on abnormal
// termination, handled by main.go).
func (w *Worker) Run() error {
	if err := w.poller.Register(w.tun.Fd(), eventloop.KindTun); err != nil {
		return err
	}
	if err := w.poller.Register(w.sess.TLS.Fd(), eventloop.KindReliable); err != nil {
		return err
	}
	if err := w.poller.Register(w.control.Fd(), eventloop.KindControl); err != nil {
		return err
	}
	defer w.drainOnExit()

	for {
		if w.terminate {
			return w.gracefulExit()
		}

		if w.dtlsFSM.State() == session.UDPHandshake {
			if err := w.pumpHandshake(); err != nil {
				w.logger.Printf("tunnelengine: datagram handshake failed, channel disabled: %v", err)
			}
		}

		// spec §4.5 step 2: a record layer can already hold a decoded
		// record from a prior readiness edge (crypto/tls buffers
		// internally), so check before blocking in poller.Wait.
		if w.sess.TLS.Pending() {
			if err := w.handleReliableReadable(); err != nil {
				return err
			}
			continue
		}
		if w.sess.DTLS != nil && w.sess.DTLS.Pending() {
			if err := w.handleDatagramReadable(); err != nil {
				return err
			}
			continue
		}

		ready, err := w.poller.Wait(waitTimeout)
		if err != nil {
			return fmt.Errorf("tunnelengine: %w", err)
		}

		now := time.Now()
		if now.Sub(w.sess.LastPeriodicCheck) >= periodicInterval {
			if err := w.periodicCheck(now); err != nil {
				return err
			}
		}

		for _, kind := range ready {
			if err := w.dispatch(kind); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) dispatch(kind eventloop.FDKind) error {
	switch kind {
	case eventloop.KindSignal:
		_ = w.poller.DrainSignal()
		w.terminate = true
		w.termOnce.Do(func() { close(w.termSignal) })
		return nil
	case eventloop.KindTun:
		return w.handleTunReadable()
	case eventloop.KindReliable:
		return w.handleReliableReadable()
	case eventloop.KindDatagram:
		return w.handleDatagramReadable()
	case eventloop.KindControl:
		return w.handleControlReadable()
	default:
		return nil
	}
}

// pumpHandshake drives one DriveHandshake step and, on completion,
// registers the now-ACTIVE datagram socket with the poller (spec §4.4
// HANDSHAKE -> ACTIVE).
func (w *Worker) pumpHandshake() error {
	before := w.dtlsFSM.State()
	if err := w.dtlsFSM.DriveHandshake(); err != nil {
		_ = w.dtlsFSM.Disable(err)
		return err
	}
	if before == session.UDPHandshake && w.dtlsFSM.State() == session.UDPActive {
		return w.poller.Register(w.sess.DTLS.Fd(), eventloop.KindDatagram)
	}
	return nil
}

// handleTunReadable implements spec §4.5 step 5.
func (w *Worker) handleTunReadable() error {
	buf := make([]byte, w.sess.ConnMTU-1)
	n, err := w.tun.Read(buf)
	if err != nil {
		if application.KindOf(err) == application.KindTransientIO {
			return nil
		}
		return fmt.Errorf("%w: tunnelengine: tun read: %v", application.ErrFatalIO, err)
	}
	if n == 0 {
		return nil
	}
	payload := buf[:n]

	version, err := iphdr.Version(payload)
	if err != nil {
		return nil // not an IP packet, silently drop
	}
	wantIPv6 := version == 6
	if wantIPv6 && !w.sess.VInfo.HasIPv6() {
		return nil // peer was never assigned this address family
	}
	if !wantIPv6 && !w.sess.VInfo.HasIPv4() {
		return nil
	}

	if !w.rateTX.Allow(n) {
		return nil // silent drop, spec §4.5
	}

	tlsRetry := false
	if w.sess.GetUDPState() == session.UDPActive {
		framed := w.codec.EncodeDatagram(frame.TypeData, payload)
		ciphertext, encErr := w.sess.DTLS.Encrypt(framed)
		if encErr != nil {
			return fmt.Errorf("%w: tunnelengine: datagram encrypt: %v", application.ErrFatalIO, encErr)
		}
		sent, sendErr := w.sess.DTLS.WriteRaw(ciphertext)
		switch {
		case sendErr == nil:
			if sent >= w.sess.ConnMTU {
				if err := w.mtuCtrl.Ok(); err != nil {
					return err
				}
			}
		case application.KindOf(sendErr) == application.KindTooLarge:
			if _, err := w.mtuCtrl.NotOk(); err != nil {
				return err
			}
			tlsRetry = true
		default:
			return fmt.Errorf("%w: tunnelengine: datagram send: %v", application.ErrFatalIO, sendErr)
		}
	}

	if w.sess.GetUDPState() != session.UDPActive || tlsRetry {
		framed := w.codec.EncodeReliable(frame.TypeData, payload)
		if _, err := w.sess.TLS.Encrypt(framed); err != nil {
			return fmt.Errorf("%w: tunnelengine: reliable send: %v", application.ErrFatalIO, err)
		}
	}
	return nil
}

// handleReliableReadable implements spec §4.5 step 6.
func (w *Worker) handleReliableReadable() error {
	buf := w.sess.IOBuf[:cap(w.sess.IOBuf)]
	plaintext, err := w.sess.TLS.Decrypt(buf)
	if err != nil {
		if application.KindOf(err) == application.KindTransientIO {
			return nil
		}
		return fmt.Errorf("%w: tunnelengine: reliable decrypt: %v", application.ErrFatalIO, err)
	}
	if w.sess.TLS.RekeyRequested() {
		return w.handleRekeyRequest()
	}
	if len(plaintext) == 0 {
		return fmt.Errorf("%w: tunnelengine: reliable channel closed", application.ErrPeerDisconnect)
	}
	if !w.rateRX.Allow(len(plaintext)) {
		return nil
	}

	typ, payload, err := framing.DecodeReliable(plaintext)
	if err != nil {
		return err // malformed: fatal to the session, spec §4.1
	}

	now := time.Now()
	w.sess.RefreshTCPActivity(now)

	switch framing.Classify(typ) {
	case framing.ActionToTun:
		if _, err := w.tun.Write(payload); err != nil {
			return fmt.Errorf("%w: tunnelengine: tun write: %v", application.ErrFatalIO, err)
		}
		if w.sess.GetUDPState() == session.UDPActive && now.Sub(w.lastUDPRecvAt) > udpSwitchTime {
			if err := w.dtlsFSM.MarkInactive(); err != nil {
				return err
			}
		}
	case framing.ActionReplyDPD:
		reply := w.codec.EncodeReliable(frame.TypeDPDResp, nil)
		if _, err := w.sess.TLS.Encrypt(reply); err != nil {
			return fmt.Errorf("%w: tunnelengine: dpd reply: %v", application.ErrFatalIO, err)
		}
	case framing.ActionLiveness:
		// already refreshed above
	case framing.ActionDisconnect:
		return fmt.Errorf("%w: tunnelengine: peer sent DISCONN", application.ErrPeerDisconnect)
	case framing.ActionIgnoreLogged:
		w.logger.Printf("tunnelengine: ignored reliable frame type %v", typ)
	}
	return nil
}

// handleRekeyRequest implements spec §4.5 step 6's rekey policy: a
// rekey is honored only once cookie_validity/3 has elapsed since the
// last one, otherwise the session is fatally rejected.
func (w *Worker) handleRekeyRequest() error {
	now := time.Now()
	minInterval := w.cookieValidity / 3
	if !w.sess.LastTLSRehandshake.IsZero() && now.Sub(w.sess.LastTLSRehandshake) < minInterval {
		return fmt.Errorf("%w: tunnelengine: rekey requested before cookie_validity/3 elapsed", application.ErrRekeyTooSoon)
	}
	if err := w.sess.TLS.Rehandshake(); err != nil {
		return fmt.Errorf("%w: tunnelengine: rehandshake: %v", application.ErrFatalIO, err)
	}
	w.sess.LastTLSRehandshake = now
	return nil
}

// handleDatagramReadable implements spec §4.5 step 7.
func (w *Worker) handleDatagramReadable() error {
	if w.sess.DTLS == nil {
		return nil
	}
	raw := make([]byte, w.sess.ConnMTU+w.sess.DTLS.Overhead())
	n, err := w.sess.DTLS.ReadRaw(raw)
	if err != nil {
		if application.KindOf(err) == application.KindTransientIO {
			return nil
		}
		return nil // datagram I/O errors are not fatal to the session (spec §4.5: reliable channel carries on)
	}
	if n == 0 {
		return nil
	}

	plaintext, err := w.sess.DTLS.Decrypt(raw[:n])
	if err != nil {
		w.logger.Printf("tunnelengine: dropping undecryptable datagram: %v", err)
		return nil
	}
	typ, payload, err := framing.DecodeDatagram(plaintext)
	if err != nil {
		w.logger.Printf("tunnelengine: dropping malformed datagram: %v", err)
		return nil
	}

	now := time.Now()
	w.sess.RefreshUDPActivity(now)
	w.lastUDPRecvAt = now

	if w.sess.GetUDPState() == session.UDPInactive {
		if err := w.dtlsFSM.MarkActive(); err != nil {
			return err
		}
	}

	switch framing.Classify(typ) {
	case framing.ActionToTun:
		if _, err := w.tun.Write(payload); err != nil {
			return fmt.Errorf("%w: tunnelengine: tun write: %v", application.ErrFatalIO, err)
		}
	case framing.ActionReplyDPD:
		reply := w.codec.EncodeDatagram(frame.TypeDPDResp, nil)
		ciphertext, encErr := w.sess.DTLS.Encrypt(reply)
		if encErr == nil {
			_, _ = w.sess.DTLS.WriteRaw(ciphertext)
		}
	case framing.ActionDisconnect:
		return fmt.Errorf("%w: tunnelengine: peer sent DISCONN on datagram channel", application.ErrPeerDisconnect)
	case framing.ActionLiveness:
		// already refreshed above
	case framing.ActionIgnoreLogged:
		w.logger.Printf("tunnelengine: ignored datagram frame type %v", typ)
	}
	return nil
}

// handleControlReadable implements spec §4.5 step 8.
func (w *Worker) handleControlReadable() error {
	msg, err := w.control.Recv()
	if err != nil {
		return err // a negative return from the parent-command handler is fatal, spec §4.5
	}

	switch msg.Type {
	case application.MsgUDPFDHandover:
		if err := w.dtlsFSM.OnFDHandover(msg.UDPFd); err != nil {
			w.logger.Printf("tunnelengine: fd handover rejected: %v", err)
			return nil
		}
		if err := w.dtlsFSM.RunSetup(); err != nil {
			w.logger.Printf("tunnelengine: datagram setup failed: %v", err)
		}
	case application.MsgResumeSessionQuery, application.MsgResumeSessionResponse, application.MsgCookieVerifyResponse:
		// delegated entirely to the auth/main collaborators (spec §1); this
		// worker has nothing further to do with these beyond having
		// received them.
	}
	return nil
}

// periodicCheck implements spec §4.3's DPD pass and §4.2's MSS poll,
// run at most once per periodicInterval.
func (w *Worker) periodicCheck(now time.Time) error {
	w.sess.LastPeriodicCheck = now

	sendTCP, sendUDP, tornDown := w.dpdMon.Check(now)
	if tornDown {
		return fmt.Errorf("%w: tunnelengine: reliable channel exceeded dpd deadline", application.ErrFatalIO)
	}
	if sendTCP {
		probe := w.codec.EncodeReliable(frame.TypeDPDOut, nil)
		if _, err := w.sess.TLS.Encrypt(probe); err != nil {
			return fmt.Errorf("%w: tunnelengine: tcp dpd probe: %v", application.ErrFatalIO, err)
		}
	}
	if sendUDP && w.sess.DTLS != nil {
		probe := w.codec.EncodeDatagram(frame.TypeDPDOut, nil)
		if ciphertext, err := w.sess.DTLS.Encrypt(probe); err == nil {
			_, _ = w.sess.DTLS.WriteRaw(ciphertext)
		}
	}

	if mss, err := mtucontroller.QueryMSS(w.pollMSSFd); err == nil {
		if err := w.mtuCtrl.PollMSS(mss); err != nil {
			return err
		}
	}
	return nil
}

// gracefulExit sends TERM_SERVER on the reliable channel and returns,
// implementing the terminate branch of spec §4.5 step 3.
func (w *Worker) gracefulExit() error {
	term := w.codec.EncodeReliable(frame.TypeTermServer, nil)
	_, _ = w.sess.TLS.Encrypt(term)
	return application.ErrPeerDisconnect
}

func (w *Worker) drainOnExit() {
	_ = w.sess.TLS.Close(true)
	if w.sess.DTLS != nil {
		_ = w.sess.DTLS.Close()
	}
}
