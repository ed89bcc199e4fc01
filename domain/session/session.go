// Package session defines the per-connection Session aggregate (spec
// §3): the state a worker owns for the one client it terminates, plus
// the invariants the rest of the engine must preserve when mutating it.
package session

import (
	"bufio"
	"fmt"
	"net/netip"
	"sync"
	"time"
)

// ReliableRecordLayer is the external TLS-over-TCP record-layer
// collaborator (spec §1: "the TLS/DTLS cryptographic primitives
// themselves" are out of scope). The engine only ever calls through
// this contract; infrastructure/cryptography/tlsrecordlayer provides
// one concrete implementation for this deployment profile.
type ReliableRecordLayer interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
	Overhead() int
	Close(sendCloseNotify bool) error
	// Fd exposes the underlying socket for event-loop readiness
	// registration; the record layer owns transform AND transport
	// for the reliable channel, mirroring how crypto/tls conflates
	// record encryption with the connection it reads/writes.
	Fd() int
	// RekeyRequested reports, and clears, whether the peer's last
	// record attempted a renegotiation/rekey (spec §4.5 step 6).
	RekeyRequested() bool
	// Rehandshake re-runs the handshake once a rekey request has been
	// accepted (spec §4.5 step 6's "re-run the handshake").
	Rehandshake() error
	// Pending reports whether the record layer already holds a
	// decoded record the loop has not yet consumed (spec §4.5 step 2).
	Pending() bool
}

// DatagramRecordLayer is the external DTLS-over-UDP record-layer
// collaborator. ErrTooLarge (see application.ErrTooLarge) is returned
// by WriteRaw when the socket rejects a datagram as exceeding the path
// MTU; the MTU controller, not this interface, recovers from it.
type DatagramRecordLayer interface {
	// Encrypt/Decrypt transform already datagram-framed bytes
	// (infrastructure/framing applies the 1-byte type header); they
	// do not themselves touch the socket.
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
	Overhead() int
	DataMTU() int
	Close() error
	// Fd, WriteRaw, ReadRaw expose the underlying UDP socket for
	// event-loop registration and I/O, separate from the crypto
	// transform above.
	Fd() int
	WriteRaw(b []byte) (int, error)
	ReadRaw(b []byte) (int, error)
	// Pending reports whether a decoded datagram is already buffered
	// and unread (spec §4.5 step 2, "either channel").
	Pending() bool
}

// Session is the per-connection state aggregate (spec §3).
type Session struct {
	mu sync.Mutex

	PeerIsIPv6 bool
	PeerAddr   netip.AddrPort

	TLS  ReliableRecordLayer
	DTLS DatagramRecordLayer

	MasterSecret [48]byte
	SessionID    [32]byte

	SelectedCipherSuite *CipherSuite

	VInfo VInfo

	ConnMTU     int
	LastGoodMTU int
	LastBadMTU  int

	// HeaderDTLSMTU is the dtls_mtu the peer announced during the CSTP
	// handshake (spec §9 design note: X-CSTP-MTU only ever feeds the
	// dtls_mtu fallback, never conn_mtu directly), used to cap the
	// datagram channel's own MTU-probe result once the handshake
	// completes.
	HeaderDTLSMTU int

	UDPState UDPState

	LastMsgTCP         time.Time
	LastMsgUDP         time.Time
	LastPeriodicCheck  time.Time
	LastTLSRehandshake time.Time

	BucketTX RateBucket
	BucketRX RateBucket

	IOBuf []byte

	AuthState AuthState

	Reliable *bufio.ReadWriter
}

// RateBucket is the minimal state the Session holds for bidirectional
// rate limiting; infrastructure/ratelimit owns the token-bucket
// algorithm and treats this as its storage cell.
type RateBucket struct {
	Tokens     float64
	Capacity   float64
	RefillRate float64
	LastRefill time.Time
}

// AuthState is polled from the external auth collaborator (spec §1)
// before tunneling begins.
type AuthState int

const (
	AuthPending AuthState = iota
	AuthOK
	AuthDenied
)

// SetUDPState applies the guarded transition (spec §4.4, §3 invariant:
// "once DISABLED, never transitions elsewhere"). It reports an error
// for an illegal edge instead of silently applying it.
func (s *Session) SetUDPState(to UDPState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.UDPState, to) {
		return fmt.Errorf("session: illegal udp_state transition %s -> %s", s.UDPState, to)
	}
	s.UDPState = to
	if to == UDPDisabled {
		s.DTLS = nil
	}
	return nil
}

// GetUDPState reads the current state under the session lock.
func (s *Session) GetUDPState() UDPState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UDPState
}

// MinMTU returns the address-family-dependent MTU floor (spec §3).
func (s *Session) MinMTU() int {
	if s.PeerIsIPv6 || s.VInfo.HasIPv6() {
		return 1281
	}
	return 257
}

// EnsureIOBufCapacity grows IOBuf in place so its capacity is always
// >= conn_mtu + overhead (spec §3 invariant), preserving any buffered
// content in buf[:len(buf)].
func (s *Session) EnsureIOBufCapacity(need int) {
	if cap(s.IOBuf) >= need {
		return
	}
	grown := make([]byte, len(s.IOBuf), need)
	copy(grown, s.IOBuf)
	s.IOBuf = grown
}

// RefreshTCPActivity marks the reliable channel as having just
// produced liveness evidence (spec §4.3: "every observed packet —
// payload, DPD, or keepalive — counts").
func (s *Session) RefreshTCPActivity(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.LastMsgTCP) {
		s.LastMsgTCP = now
	}
}

// RefreshUDPActivity is the datagram-channel counterpart of
// RefreshTCPActivity.
func (s *Session) RefreshUDPActivity(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.LastMsgUDP) {
		s.LastMsgUDP = now
	}
}
