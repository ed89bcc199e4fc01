package iphdr

import (
	"net/netip"
	"testing"
)

func ipv4Header(dst [4]byte) []byte {
	h := make([]byte, 20)
	h[0] = 0x45 // version 4, IHL 5
	copy(h[16:20], dst[:])
	return h
}

func ipv6Header(dst [16]byte) []byte {
	h := make([]byte, 40)
	h[0] = 0x60 // version 6
	copy(h[24:40], dst[:])
	return h
}

func TestVersion(t *testing.T) {
	cases := []struct {
		name    string
		packet  []byte
		want    int
		wantErr bool
	}{
		{"ipv4", ipv4Header([4]byte{10, 0, 0, 1}), 4, false},
		{"ipv6", ipv6Header([16]byte{0x20, 0x01}), 6, false},
		{"empty", nil, 0, true},
		{"unrecognized", []byte{0x50}, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Version(tc.packet)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got version %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Version: %v", err)
			}
			if got != tc.want {
				t.Errorf("Version() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestOverhead(t *testing.T) {
	v4Overhead, err := Overhead(ipv4Header([4]byte{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("Overhead(v4): %v", err)
	}
	if v4Overhead != 28 {
		t.Errorf("Overhead(v4) = %d, want 28", v4Overhead)
	}

	v6Overhead, err := Overhead(ipv6Header([16]byte{}))
	if err != nil {
		t.Fatalf("Overhead(v6): %v", err)
	}
	if v6Overhead != 48 {
		t.Errorf("Overhead(v6) = %d, want 48", v6Overhead)
	}
}

func TestDestinationAddress(t *testing.T) {
	wantV4 := netip.AddrFrom4([4]byte{192, 168, 1, 1})
	gotV4, err := DestinationAddress(ipv4Header([4]byte{192, 168, 1, 1}))
	if err != nil {
		t.Fatalf("DestinationAddress(v4): %v", err)
	}
	if gotV4 != wantV4 {
		t.Errorf("DestinationAddress(v4) = %v, want %v", gotV4, wantV4)
	}

	var dst16 [16]byte
	dst16[0] = 0xfe
	dst16[1] = 0x80
	dst16[15] = 0x01
	wantV6 := netip.AddrFrom16(dst16)
	gotV6, err := DestinationAddress(ipv6Header(dst16))
	if err != nil {
		t.Fatalf("DestinationAddress(v6): %v", err)
	}
	if gotV6 != wantV6 {
		t.Errorf("DestinationAddress(v6) = %v, want %v", gotV6, wantV6)
	}
}

func TestDestinationAddressRejectsTruncated(t *testing.T) {
	if _, err := DestinationAddress([]byte{0x45, 0, 0}); err == nil {
		t.Fatalf("expected error for truncated IPv4 header")
	}
}
