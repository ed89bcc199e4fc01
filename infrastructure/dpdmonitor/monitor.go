// Package dpdmonitor implements the DPD/Liveness Monitor (spec §4.3):
// per-channel last-activity tracking with two-tier escalation (probe
// at 2*dpd, disable/teardown at 3*dpd). Grounded on the teacher's
// keepalive/idle-reaper constants (infrastructure/settings/keepalive.go,
// session_lifetime.go) generalized from one fixed interval to a
// configurable per-session dpd period.
package dpdmonitor

import (
	"time"

	"sslvpnworker/domain/session"
)

// Monitor implements application.DPDMonitor over a Session.
type Monitor struct {
	sess *session.Session
	dpd  time.Duration

	// markInactive transitions udp_state ACTIVE -> INACTIVE.
	markInactive func() error
}

// New constructs a Monitor with the given per-session dpd period
// (spec §4.3: "configured with a period dpd").
func New(sess *session.Session, dpd time.Duration, markInactive func() error) *Monitor {
	return &Monitor{sess: sess, dpd: dpd, markInactive: markInactive}
}

// Check runs one periodic-check pass (spec §4.3).
func (m *Monitor) Check(now time.Time) (sendTCPProbe, sendUDPProbe, tornDown bool) {
	s := m.sess

	if s.UDPState == session.UDPActive {
		idleUDP := now.Sub(s.LastMsgUDP)
		if idleUDP > 2*m.dpd {
			sendUDPProbe = true
		}
		if idleUDP > 3*m.dpd {
			if m.markInactive != nil {
				_ = m.markInactive()
			}
		}
	}

	idleTCP := now.Sub(s.LastMsgTCP)
	if idleTCP > 2*m.dpd {
		sendTCPProbe = true
	}
	if idleTCP > 3*m.dpd {
		tornDown = true
	}

	return sendTCPProbe, sendUDPProbe, tornDown
}
