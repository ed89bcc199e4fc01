package httphandshake

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestParseRequestExtractsHandshakeHeaders(t *testing.T) {
	masterSecret := strings.Repeat("a", 96)
	raw := "CONNECT /CSCOSSLC/tunnel HTTP/1.1\r\n" +
		"Host: vpn.example.com\r\n" +
		"Cookie: webvpn=YWJjZGVm; webvpncontext=c2Vzc2lvbmlk\r\n" +
		"X-DTLS-Master-Secret: " + masterSecret + "\r\n" +
		"X-DTLS-CipherSuite: OC-DTLS1_2-AES256-GCM:OC-DTLS1_2-AES128-GCM\r\n" +
		"X-DTLS-MTU: 1400\r\n" +
		"X-CSTP-MTU: 1406\r\n" +
		"X-CSTP-Address-Type: IPv4,IPv6\r\n" +
		"X-CSTP-Hostname: client-host\r\n" +
		"User-Agent: OpenConnect/9.0\r\n" +
		"\r\n"

	req, err := ParseRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}

	if req.Method != "CONNECT" || req.URL != TunnelPath {
		t.Errorf("method/url = %s %s, want CONNECT %s", req.Method, req.URL, TunnelPath)
	}
	if req.WebVPNCookie != "YWJjZGVm" {
		t.Errorf("WebVPNCookie = %q", req.WebVPNCookie)
	}
	if req.WebVPNContext != "c2Vzc2lvbmlk" {
		t.Errorf("WebVPNContext = %q", req.WebVPNContext)
	}
	if req.DTLSMasterSecretHex != masterSecret {
		t.Errorf("DTLSMasterSecretHex not captured")
	}
	if len(req.DTLSCipherSuites) != 2 || req.DTLSCipherSuites[0] != "OC-DTLS1_2-AES256-GCM" {
		t.Errorf("DTLSCipherSuites = %v", req.DTLSCipherSuites)
	}
	if req.DTLSMTU != 1400 || req.CSTPMTU != 1406 {
		t.Errorf("MTUs = %d/%d, want 1400/1406", req.DTLSMTU, req.CSTPMTU)
	}
	if !req.AllowIPv4 || !req.AllowIPv6 {
		t.Errorf("address families = %v/%v, want both true", req.AllowIPv4, req.AllowIPv6)
	}
	if req.Hostname != "client-host" || req.UserAgent != "OpenConnect/9.0" {
		t.Errorf("hostname/useragent = %q/%q", req.Hostname, req.UserAgent)
	}
}

func TestDTLSMTUFallback(t *testing.T) {
	cases := []struct {
		name          string
		dtlsMTU       int
		cstpMTU       int
		wantFallback  int
	}{
		{"dtls present wins", 1400, 1406, 1400},
		{"dtls absent falls back to cstp", 0, 1406, 1406},
		{"both absent", 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := HandshakeRequest{DTLSMTU: tc.dtlsMTU, CSTPMTU: tc.cstpMTU}
			if got := req.DTLSMTUOrFallback(); got != tc.wantFallback {
				t.Errorf("DTLSMTUOrFallback() = %d, want %d", got, tc.wantFallback)
			}
		})
	}
}

func TestParseRequestRejectsShortMasterSecret(t *testing.T) {
	raw := "CONNECT /CSCOSSLC/tunnel HTTP/1.1\r\n" +
		"Host: vpn.example.com\r\n" +
		"X-DTLS-Master-Secret: deadbeef\r\n" +
		"\r\n"
	req, err := ParseRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.DTLSMasterSecretHex != "" {
		t.Errorf("short master secret should be rejected, got %q", req.DTLSMasterSecretHex)
	}
}

func TestWriteTunnelEstablished(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTunnelEstablished(&buf, TunnelHeaders{
		Address:         "10.0.0.2",
		Netmask:         "255.255.255.0",
		DPDSeconds:      30,
		KeepaliveSecs:   20,
		RekeyTime:       1200,
		RekeyMethod:     "new-tunnel",
		MTU:             1399,
		DTLSEnabled:     true,
		DTLSCipherSuite: "OC-DTLS1_2-AES256-GCM",
		DTLSMTU:         1399,
	})
	if err != nil {
		t.Fatalf("WriteTunnelEstablished: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "HTTP/1.1 200 CONNECTED\r\n") {
		t.Errorf("missing 200 CONNECTED status line: %q", out)
	}
	if !strings.Contains(out, "X-DTLS-CipherSuite: OC-DTLS1_2-AES256-GCM\r\n") {
		t.Errorf("missing DTLS cipher suite header: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\n") {
		t.Errorf("missing terminating CRLFCRLF: %q", out)
	}
}
