// Package iphdr extracts the facts the MTU controller and tun-device
// path need from a raw IP packet header without a full parse: IP
// version and destination address. Grounded directly on the teacher's
// header parser (infrastructure/network/ip/header_parser.go), which
// uses golang.org/x/net/ipv4 and golang.org/x/net/ipv6 for the
// per-version header-length constants rather than hand-rolling them.
package iphdr

import (
	"fmt"
	"net/netip"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Overhead returns the IP+UDP byte overhead the datagram channel must
// budget for this packet's address family (spec §4.2: per-family mtu
// overhead). It inspects only the version nibble, so it works for
// packets the MTU controller has not otherwise validated yet.
func Overhead(packet []byte) (int, error) {
	version, err := Version(packet)
	if err != nil {
		return 0, err
	}
	const udpHeaderLen = 8
	if version == 6 {
		return ipv6.HeaderLen + udpHeaderLen, nil
	}
	return ipv4.HeaderLen + udpHeaderLen, nil
}

// Version reports the IP version (4 or 6) from the packet's leading
// nibble, rejecting anything else as spec §6's address-family
// validation requires.
func Version(packet []byte) (int, error) {
	if len(packet) < 1 {
		return 0, fmt.Errorf("iphdr: empty packet")
	}
	switch packet[0] >> 4 {
	case 4:
		return 4, nil
	case 6:
		return 6, nil
	default:
		return 0, fmt.Errorf("iphdr: unrecognized IP version nibble %d", packet[0]>>4)
	}
}

// DestinationAddress parses an IPv4/IPv6 header and returns the
// destination address (IPv4: header[16:20], IPv6: header[24:40]).
func DestinationAddress(header []byte) (netip.Addr, error) {
	version, err := Version(header)
	if err != nil {
		return netip.Addr{}, err
	}

	switch version {
	case 4:
		if len(header) < ipv4.HeaderLen {
			return netip.Addr{}, fmt.Errorf("iphdr: invalid IPv4 header: too small (%d bytes)", len(header))
		}
		ihl := int(header[0]&0x0F) * 4
		if ihl < ipv4.HeaderLen || len(header) < ihl {
			return netip.Addr{}, fmt.Errorf("iphdr: invalid IPv4 header: IHL=%d, len=%d", ihl, len(header))
		}
		return netip.AddrFrom4([4]byte{header[16], header[17], header[18], header[19]}), nil
	default:
		if len(header) < ipv6.HeaderLen {
			return netip.Addr{}, fmt.Errorf("iphdr: invalid IPv6 header: too small (%d bytes)", len(header))
		}
		var a16 [16]byte
		copy(a16[:], header[24:40])
		return netip.AddrFrom16(a16), nil
	}
}
