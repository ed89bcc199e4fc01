package session

import "net/netip"

// VInfo ("vhost info") is the set of network facts the parent assigns
// to a session and the engine advertises to the peer during the CSTP
// handshake (spec §4.5): assigned addresses, netmasks, DNS/NBNS, split
// routes, and the session's base MTU before any probing adjusts it.
type VInfo struct {
	IPv4       netip.Addr
	IPv4Mask   netip.Addr
	IPv6       netip.Addr
	IPv6Prefix int

	DNS  []netip.Addr
	NBNS []netip.Addr

	SplitIncludes []netip.Prefix

	BaseMTU int
}

// HasIPv4 and HasIPv6 report whether the respective family was
// assigned at all; an unassigned family must be rejected per the
// peer's X-CSTP-Address-Type header (spec §6).
func (v VInfo) HasIPv4() bool { return v.IPv4.IsValid() }
func (v VInfo) HasIPv6() bool { return v.IPv6.IsValid() }

// MinMTU returns the floor conn_mtu must never drop below (spec §3
// invariant): 1281 if IPv6 is assigned, else 257.
func (v VInfo) MinMTU() int {
	if v.HasIPv6() {
		return 1281
	}
	return 257
}
