// Package mtucontroller implements the MTU Controller (spec §4.2): a
// bisection-driven adaptive estimate of the largest payload the
// datagram path accepts, informed by send outcomes and periodic TCP
// MSS feedback. Grounded on the teacher's DiscoverMTU binary-search
// shape (application/mtu_discovery.go), adapted from a one-shot probe
// loop into session-resident, incrementally-driven state.
package mtucontroller

import (
	"fmt"

	"sslvpnworker/application"
	"sslvpnworker/domain/session"
	"sslvpnworker/infrastructure/iphdr"
)

// Controller implements application.MTUController over a Session.
type Controller struct {
	sess *session.Session

	// setDataMTU informs the datagram record layer of the new
	// data-MTU (spec §4.2 set()); nil if no datagram channel exists
	// yet (e.g. CSTP-only session).
	setDataMTU func(mtu int) error
	// report sends TUN_MTU{mtu-1} to the parent (spec §4.2, §6).
	report func(plaintextMTU int) error
	// disableUDP is invoked when not_ok() collapses last_good_mtu to
	// the floor (spec §4.2: "disable the datagram channel entirely").
	disableUDP func() error
}

// New constructs a Controller bound to sess. setDataMTU, report, and
// disableUDP may be nil only in tests; a wired worker must supply all
// three.
func New(sess *session.Session, setDataMTU func(int) error, report func(int) error, disableUDP func() error) *Controller {
	return &Controller{
		sess:       sess,
		setDataMTU: setDataMTU,
		report:     report,
		disableUDP: disableUDP,
	}
}

// overhead is mtu_overhead (spec §4.2): CSTP_OVERHEAD queried from the
// reliable record layer when the datagram channel is disabled, or the
// per-family IP+UDP overhead plus the datagram record layer's own
// per-packet overhead (AEAD tag, nonce, and CSTP-DTLS type byte, all
// folded into DatagramRecordLayer.Overhead()) once it is active. Queried
// live rather than cached so a udp_state transition is picked up on the
// very next call instead of needing the controller rebuilt.
func (c *Controller) overhead() int {
	if c.sess.DTLS == nil {
		return c.sess.TLS.Overhead()
	}
	sample := []byte{4 << 4}
	if c.sess.VInfo.HasIPv6() && !c.sess.VInfo.HasIPv4() {
		sample[0] = 6 << 4
	}
	ipOverhead, err := iphdr.Overhead(sample)
	if err != nil {
		ipOverhead = 28 // IPv4(20) + UDP(8), the conservative default
	}
	return ipOverhead + c.sess.DTLS.Overhead()
}

// Set updates conn_mtu, informs the datagram record layer, and
// reports mtu-1 to the parent (spec §4.2).
func (c *Controller) Set(mtu int) error {
	if mtu < c.sess.MinMTU() {
		mtu = c.sess.MinMTU()
	}
	c.sess.ConnMTU = mtu
	c.sess.EnsureIOBufCapacity(mtu + c.overhead())
	if c.setDataMTU != nil {
		if err := c.setDataMTU(mtu); err != nil {
			return fmt.Errorf("mtucontroller: setDataMTU: %w", err)
		}
	}
	if c.report != nil {
		if err := c.report(mtu - 1); err != nil {
			return fmt.Errorf("mtucontroller: report: %w", err)
		}
	}
	return nil
}

// Init sets last_good_mtu = last_bad_mtu = mtu (spec §4.2).
func (c *Controller) Init(mtu int) {
	c.sess.LastGoodMTU = mtu
	c.sess.LastBadMTU = mtu
}

// Ok is called after a successful send at or above conn_mtu.
func (c *Controller) Ok() error {
	s := c.sess
	if s.LastBadMTU == s.ConnMTU || s.LastBadMTU == s.ConnMTU+1 {
		return nil // converged
	}
	s.LastGoodMTU = s.ConnMTU
	next := (s.ConnMTU + s.LastBadMTU) / 2
	return c.Set(next)
}

// NotOk is called when a send returns TooLarge.
func (c *Controller) NotOk() (stillEnabled bool, err error) {
	s := c.sess
	s.LastBadMTU = s.ConnMTU
	minMTU := s.MinMTU()

	if s.LastGoodMTU == minMTU {
		if c.disableUDP != nil {
			if derr := c.disableUDP(); derr != nil {
				return false, fmt.Errorf("mtucontroller: disableUDP: %w", derr)
			}
		}
		return false, nil
	}

	if s.LastGoodMTU >= s.ConnMTU {
		candidate := (2 * s.ConnMTU) / 3
		if candidate < minMTU {
			candidate = minMTU
		}
		s.LastGoodMTU = candidate
	}
	if err := c.Set(s.LastGoodMTU); err != nil {
		return true, err
	}
	return true, nil
}

// PollMSS applies periodic TCP_INFO MSS feedback (spec §4.2). The
// -13 constant models observed TCP option overhead, per spec.
func (c *Controller) PollMSS(mss int) error {
	budget := mss - 13 - c.overhead()
	if budget < c.sess.ConnMTU {
		return c.Set(budget)
	}
	return nil
}

// ConnMTU returns the current conn_mtu.
func (c *Controller) ConnMTU() int {
	return c.sess.ConnMTU
}

var _ application.MTUController = (*Controller)(nil)
