package httphandshake

import (
	"fmt"
	"io"
)

// TunnelHeaders is the fixed set of X-CSTP-*/X-DTLS-* headers the
// engine advertises once the CONNECT handshake succeeds (spec §4.5).
type TunnelHeaders struct {
	Address       string
	Netmask       string
	DNS           []string
	SplitInclude  []string
	DPDSeconds    int
	KeepaliveSecs int
	RekeyTime     int // floor(2*cookie_validity/3), spec §4.5
	RekeyMethod   string
	MTU           int // plaintext MTU (conn_mtu - 1)

	DTLSEnabled     bool
	DTLSCipherSuite string
	DTLSMTU         int
}

// WriteTunnelEstablished emits "HTTP/1.1 200 CONNECTED", the fixed
// header set, and the terminating CRLFCRLF (spec §6). Raw framed
// traffic follows on the same connection after this call returns.
func WriteTunnelEstablished(w io.Writer, h TunnelHeaders) error {
	buf := fmt.Sprintf("HTTP/1.1 200 CONNECTED\r\n"+
		"X-CSTP-Address: %s\r\n"+
		"X-CSTP-Netmask: %s\r\n"+
		"X-CSTP-DPD: %d\r\n"+
		"X-CSTP-Keepalive: %d\r\n"+
		"X-CSTP-Rekey-Time: %d\r\n"+
		"X-CSTP-Rekey-Method: %s\r\n"+
		"X-CSTP-MTU: %d\r\n",
		h.Address, h.Netmask, h.DPDSeconds, h.KeepaliveSecs, h.RekeyTime, h.RekeyMethod, h.MTU)

	for _, dns := range h.DNS {
		buf += fmt.Sprintf("X-CSTP-DNS: %s\r\n", dns)
	}
	for _, route := range h.SplitInclude {
		buf += fmt.Sprintf("X-CSTP-Split-Include: %s\r\n", route)
	}

	if h.DTLSEnabled {
		buf += fmt.Sprintf("X-DTLS-CipherSuite: %s\r\n", h.DTLSCipherSuite)
		buf += fmt.Sprintf("X-DTLS-MTU: %d\r\n", h.DTLSMTU)
	}

	buf += "\r\n"

	_, err := io.WriteString(w, buf)
	return err
}

// WriteNotFound emits a 404 for any CONNECT URL other than
// TunnelPath (spec §6).
func WriteNotFound(w io.Writer) error {
	_, err := io.WriteString(w, "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n")
	return err
}

// WriteServiceUnavailable emits a 503 for AuthFailure/ConfigError
// (spec §7), optionally with an X-Reason header.
func WriteServiceUnavailable(w io.Writer, reason string) error {
	if reason == "" {
		_, err := io.WriteString(w, "HTTP/1.1 503 Service Unavailable\r\nContent-Length: 0\r\n\r\n")
		return err
	}
	_, err := io.WriteString(w, fmt.Sprintf("HTTP/1.1 503 Service Unavailable\r\nX-Reason: %s\r\nContent-Length: 0\r\n\r\n", reason))
	return err
}
