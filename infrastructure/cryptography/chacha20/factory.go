package chacha20

import (
	"fmt"
	"net"
	"time"

	"sslvpnworker/domain/session"
)

// Factory implements application.RecordLayerFactory for this
// deployment's datagram record layer.
type Factory struct {
	IsServer     bool
	ProbeTimeout time.Duration
}

// NewDatagramSession constructs and MTU-probes a DatagramSession bound
// to fd (spec §4.4 SETUP: "Set the record layer's transport to the UDP
// FD"). fd must already be a connected UDP socket handed over by the
// parent (spec §4.4 WAIT_FD).
func (f *Factory) NewDatagramSession(masterSecret [48]byte, sessionID [32]byte, cs session.CipherSuite, fd int) (session.DatagramRecordLayer, error) {
	file := fdToFile(fd)
	conn, err := net.FileConn(file)
	if err != nil {
		return nil, fmt.Errorf("chacha20: fd %d is not a usable socket: %w", fd, err)
	}
	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("chacha20: fd %d is not a UDP socket", fd)
	}

	timeout := f.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	shared, err := performKeyExchange(udpConn, timeout)
	if err != nil {
		_ = udpConn.Close()
		return nil, fmt.Errorf("chacha20: datagram key exchange: %w", err)
	}

	sess, err := NewDatagramSession(udpConn, masterSecret, sessionID, shared, cs, f.IsServer)
	if err != nil {
		_ = udpConn.Close()
		return nil, err
	}
	sess.fd = fd

	hs := NewHandshake(sess,
		func(buf []byte) error {
			_, werr := udpConn.Write(buf)
			return werr
		},
		func(buf []byte, d time.Duration) (int, error) {
			_ = udpConn.SetReadDeadline(timeWrap(d))
			return udpConn.Read(buf)
		},
		timeout,
	)
	if err := hs.Drive(576, 1500); err != nil {
		_ = udpConn.Close()
		return nil, fmt.Errorf("chacha20: datagram handshake: %w", err)
	}

	return sess, nil
}
