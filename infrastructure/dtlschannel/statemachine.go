// Package dtlschannel implements the Datagram Channel State Machine
// (spec §4.4). It is shaped directly after the teacher's rekey
// StateMachine (infrastructure/cryptography/chacha20/rekey/state_machine.go):
// a sync.Mutex-guarded struct, an explicit State enum, and guarded
// transition methods — generalized here from "one rekey in flight" to
// "one datagram channel lifecycle" per session.
package dtlschannel

import (
	"fmt"
	"sync"

	"sslvpnworker/application"
	"sslvpnworker/domain/session"
)

// StateMachine implements application.DatagramChannel.
type StateMachine struct {
	mu sync.Mutex

	sess    *session.Session
	factory application.RecordLayerFactory

	fd int

	// mtuInit/mtuSet are invoked on HANDSHAKE completion (spec §4.4:
	// "call MTU.init(mtu) and MTU.set(mtu)").
	mtuInit func(mtu int)
	mtuSet  func(mtu int) error

	// headerDTLSMTU is the dtls_mtu value the peer announced during
	// the CSTP handshake (spec §4.4: "cap it by the MTU already
	// announced in headers").
	headerDTLSMTU int
}

// New constructs a StateMachine bound to sess. The session starts in
// whatever udp_state the caller already set (DISABLED or WAIT_FD,
// depending on whether the peer supplied a master secret, spec §4.4).
func New(sess *session.Session, factory application.RecordLayerFactory, headerDTLSMTU int, mtuInit func(int), mtuSet func(int) error) *StateMachine {
	return &StateMachine{sess: sess, factory: factory, headerDTLSMTU: headerDTLSMTU, mtuInit: mtuInit, mtuSet: mtuSet}
}

// State returns the current udp_state.
func (m *StateMachine) State() session.UDPState {
	return m.sess.GetUDPState()
}

// OnFDHandover advances WAIT_FD -> SETUP (spec §4.4).
func (m *StateMachine) OnFDHandover(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.UDPState != session.UDPWaitFD {
		return fmt.Errorf("dtlschannel: fd handover in state %s, want WAIT_FD", m.sess.UDPState)
	}
	m.fd = fd
	return m.sess.SetUDPState(session.UDPSetup)
}

// RunSetup constructs the datagram record-layer session seeded with
// master_secret/session_id and the selected cipher suite, and advances
// SETUP -> HANDSHAKE (spec §4.4).
func (m *StateMachine) RunSetup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.UDPState != session.UDPSetup {
		return fmt.Errorf("dtlschannel: RunSetup in state %s, want SETUP", m.sess.UDPState)
	}
	if m.sess.SelectedCipherSuite == nil {
		_ = m.sess.SetUDPState(session.UDPDisabled)
		return fmt.Errorf("%w: no datagram cipher suite negotiated", application.ErrConfigError)
	}

	dtls, err := m.factory.NewDatagramSession(m.sess.MasterSecret, m.sess.SessionID, *m.sess.SelectedCipherSuite, m.fd)
	if err != nil {
		_ = m.sess.SetUDPState(session.UDPDisabled)
		return fmt.Errorf("dtlschannel: datagram session construction failed: %w", err)
	}
	m.sess.DTLS = dtls
	return m.sess.SetUDPState(session.UDPHandshake)
}

// DriveHandshake drives one step of the datagram handshake (spec
// §4.4). A concrete DatagramRecordLayer's handshake is assumed
// complete once DataMTU() returns a positive value. An error is
// returned without a state change; moving to DISABLED is left to the
// caller (Disable).
func (m *StateMachine) DriveHandshake() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.UDPState != session.UDPHandshake {
		return fmt.Errorf("dtlschannel: DriveHandshake in state %s, want HANDSHAKE", m.sess.UDPState)
	}

	mtu := m.sess.DTLS.DataMTU()
	if mtu <= 0 {
		return nil // handshake still in progress; caller retries
	}
	if m.headerDTLSMTU > 0 && mtu > m.headerDTLSMTU {
		mtu = m.headerDTLSMTU
	}

	if m.mtuInit != nil {
		m.mtuInit(mtu)
	}
	if m.mtuSet != nil {
		if err := m.mtuSet(mtu); err != nil {
			return fmt.Errorf("dtlschannel: mtuSet on handshake completion: %w", err)
		}
	}
	return m.sess.SetUDPState(session.UDPActive)
}

// MarkInactive transitions ACTIVE -> INACTIVE (spec §4.3, §4.5).
func (m *StateMachine) MarkInactive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.UDPState != session.UDPActive {
		return nil
	}
	return m.sess.SetUDPState(session.UDPInactive)
}

// MarkActive transitions INACTIVE -> ACTIVE on receipt of any
// datagram frame (spec §4.4: "the next successfully decoded datagram
// frame transitions -> ACTIVE").
func (m *StateMachine) MarkActive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.UDPState != session.UDPInactive {
		return nil
	}
	return m.sess.SetUDPState(session.UDPActive)
}

// Disable forces a transition to the terminal DISABLED state, from
// any non-terminal state (spec §4.4: MTU collapse, fatal handshake
// error, or no master secret at all).
func (m *StateMachine) Disable(reason error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.UDPState == session.UDPDisabled {
		return nil
	}
	return m.sess.SetUDPState(session.UDPDisabled)
}

var _ application.DatagramChannel = (*StateMachine)(nil)
