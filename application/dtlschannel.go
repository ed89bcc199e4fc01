package application

import (
	"sslvpnworker/domain/session"
)

// DatagramChannel is the contract for spec §4.4's state machine.
// infrastructure/dtlschannel provides the concrete implementation,
// generalized from the teacher's rekey StateMachine shape (an explicit
// State enum plus guarded transitions under one mutex) to "one
// datagram channel lifecycle" instead of "one rekey in flight."
type DatagramChannel interface {
	// State returns the current udp_state.
	State() session.UDPState
	// OnFDHandover advances WAIT_FD -> SETUP on receipt of the UDP fd
	// from the parent.
	OnFDHandover(fd int) error
	// RunSetup constructs the datagram record-layer session seeded
	// with master_secret/session_id and the selected cipher suite,
	// and advances SETUP -> HANDSHAKE.
	RunSetup() error
	// DriveHandshake advances the datagram handshake. TooLarge is
	// recovered by the caller invoking the MTU controller and
	// retrying; a fatal error transitions -> DISABLED.
	DriveHandshake() error
	// MarkInactive transitions ACTIVE -> INACTIVE (spec §4.3, §4.5).
	MarkInactive() error
	// MarkActive transitions INACTIVE -> ACTIVE on receipt of any
	// datagram frame (spec §4.4).
	MarkActive() error
	// Disable forces a transition to the terminal DISABLED state.
	Disable(reason error) error
}

// RecordLayerFactory constructs the concrete record-layer sessions the
// engine drives through the ReliableRecordLayer/DatagramRecordLayer
// contracts (domain/session). infrastructure/cryptography/chacha20
// implements this for the deployment profile named in SPEC_FULL.md.
type RecordLayerFactory interface {
	NewDatagramSession(masterSecret [48]byte, sessionID [32]byte, cs session.CipherSuite, fd int) (session.DatagramRecordLayer, error)
}
