// Package controlsocket implements the length-prefixed binary wire
// protocol to the parent process (spec §6). Grounded on the teacher's
// own TCP dataplane framing convention — a 4-byte big-endian length
// prefix — generalized here from "ciphertext frame" to "parent-command
// envelope".
package controlsocket

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"sslvpnworker/application"
)

// protocolVersion is sent as the first byte of every message so the
// wire format can evolve without breaking a running parent/worker
// pair mid-session.
const protocolVersion = 1

const maxMessageSize = 64 * 1024

// Socket implements application.ControlSocket over a Unix domain
// socket or pipe connected to the parent.
type Socket struct {
	conn net.Conn
	fd   int
	r    *bufio.Reader
}

// New wraps conn, buffering reads the way the teacher buffers its own
// TCP dataplane reads. fd is the underlying descriptor, handed down by
// the parent alongside conn (mirroring tlsrecordlayer.New), since
// net.Conn implementations do not expose their descriptor directly.
func New(conn net.Conn, fd int) *Socket {
	return &Socket{conn: conn, fd: fd, r: bufio.NewReader(conn)}
}

// Fd returns the underlying file descriptor for readiness
// registration in the event loop.
func (s *Socket) Fd() int {
	return s.fd
}

// Send encodes and writes one outbound message: version byte, 4-byte
// big-endian length, then the message's own encoding.
func (s *Socket) Send(msg application.OutboundMessage) error {
	body, err := encodeOutbound(msg)
	if err != nil {
		return fmt.Errorf("controlsocket: encode: %w", err)
	}

	header := make([]byte, 5)
	header[0] = protocolVersion
	binary.BigEndian.PutUint32(header[1:], uint32(len(body)))

	if _, err := s.conn.Write(header); err != nil {
		return fmt.Errorf("%w: controlsocket: write header: %v", application.ErrFatalIO, err)
	}
	if _, err := s.conn.Write(body); err != nil {
		return fmt.Errorf("%w: controlsocket: write body: %v", application.ErrFatalIO, err)
	}
	return nil
}

// Recv blocks until one inbound message arrives.
func (s *Socket) Recv() (application.InboundMessage, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(s.r, header); err != nil {
		if err == io.EOF {
			return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: parent closed", application.ErrPeerDisconnect)
		}
		return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: read header: %v", application.ErrFatalIO, err)
	}
	if header[0] != protocolVersion {
		return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: unsupported protocol version %d", application.ErrMalformed, header[0])
	}
	length := binary.BigEndian.Uint32(header[1:])
	if length > maxMessageSize {
		return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: message too large: %d bytes", application.ErrMalformed, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: read body: %v", application.ErrFatalIO, err)
	}
	return decodeInbound(body)
}
