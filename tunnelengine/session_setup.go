package tunnelengine

import (
	"bufio"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"sslvpnworker/application"
	"sslvpnworker/domain/session"
	"sslvpnworker/infrastructure/cryptography/tlsrecordlayer"
	"sslvpnworker/infrastructure/httphandshake"
)

// Config carries the facts the parent process establishes before
// handing a connection to the worker: the assigned network info and
// the DPD/keepalive/rekey policy (spec §1: tun/socket provisioning is
// the "main" collaborator's job; the worker receives these, it does not
// derive them). The reliable socket's fd is passed to PerformHandshake
// separately.
type Config struct {
	VInfo          session.VInfo
	DPDSeconds     int
	KeepaliveSecs  int
	CookieValidity int // seconds; rekey time advertised is floor(2/3 of this)
}

// PerformHandshake consumes HTTP/1.x requests on conn up to
// httphandshake.MaxRequestsBeforeTunnel times, looking for a CONNECT
// to httphandshake.TunnelPath (spec §6). On success it emits the 200
// CONNECTED response with the fixed header set (spec §4.5) and
// returns a Session primed with the negotiated facts. tlsConn and fd
// are the already-handshaken TLS connection and its underlying socket
// descriptor.
func PerformHandshake(tlsConn *tls.Conn, fd int, cfg Config) (*session.Session, error) {
	r := bufio.NewReader(tlsConn)

	var req *httphandshake.HandshakeRequest
	for attempt := 0; attempt < httphandshake.MaxRequestsBeforeTunnel; attempt++ {
		parsed, err := httphandshake.ParseRequest(r)
		if err != nil {
			return nil, fmt.Errorf("tunnelengine: handshake: %w", err)
		}
		if parsed.Method == "CONNECT" && parsed.URL == httphandshake.TunnelPath {
			req = parsed
			break
		}
		if err := httphandshake.WriteNotFound(tlsConn); err != nil {
			return nil, fmt.Errorf("%w: tunnelengine: write 404: %v", application.ErrFatalIO, err)
		}
	}
	if req == nil {
		return nil, fmt.Errorf("%w: tunnelengine: no CONNECT to %s within %d requests", application.ErrFatalIO, httphandshake.TunnelPath, httphandshake.MaxRequestsBeforeTunnel)
	}

	if !cfg.VInfo.HasIPv4() && !req.AllowIPv4 && !cfg.VInfo.HasIPv6() && !req.AllowIPv6 {
		_ = httphandshake.WriteServiceUnavailable(tlsConn, "no-network-configured")
		return nil, fmt.Errorf("%w: tunnelengine: no address family negotiated", application.ErrConfigError)
	}

	sess := &session.Session{
		TLS:   tlsrecordlayer.New(tlsConn, fd),
		VInfo: cfg.VInfo,
	}
	sess.ConnMTU = cfg.VInfo.BaseMTU
	sess.LastGoodMTU = cfg.VInfo.BaseMTU
	sess.LastBadMTU = cfg.VInfo.BaseMTU
	sess.EnsureIOBufCapacity(cfg.VInfo.BaseMTU + 64)

	dtlsEnabled := false
	dtlsMTU := req.DTLSMTUOrFallback()
	sess.HeaderDTLSMTU = dtlsMTU

	if req.DTLSMasterSecretHex != "" {
		if secretBytes, err := hex.DecodeString(req.DTLSMasterSecretHex[:96]); err == nil && len(secretBytes) == 48 {
			copy(sess.MasterSecret[:], secretBytes)
			if cs, ok := session.SelectCipherSuite(req.DTLSCipherSuites); ok {
				sess.SelectedCipherSuite = &cs
				sess.UDPState = session.UDPWaitFD
				dtlsEnabled = true
			}
		}
	}
	if !dtlsEnabled {
		sess.UDPState = session.UDPDisabled
	}

	if req.WebVPNContext != "" {
		if ctxBytes, err := base64.StdEncoding.DecodeString(req.WebVPNContext); err == nil && len(ctxBytes) <= 32 {
			copy(sess.SessionID[:], ctxBytes)
		}
	}

	rekeyTime := (2 * cfg.CookieValidity) / 3

	headers := httphandshake.TunnelHeaders{
		Address:       cfg.VInfo.IPv4.String(),
		Netmask:       cfg.VInfo.IPv4Mask.String(),
		DPDSeconds:    cfg.DPDSeconds,
		KeepaliveSecs: cfg.KeepaliveSecs,
		RekeyTime:     rekeyTime,
		RekeyMethod:   "new-tunnel",
		MTU:           sess.ConnMTU - 1,
		DTLSEnabled:   dtlsEnabled,
	}
	if dtlsEnabled {
		headers.DTLSCipherSuite = sess.SelectedCipherSuite.Name
		headers.DTLSMTU = dtlsMTU - 1
	}
	for _, dns := range cfg.VInfo.DNS {
		headers.DNS = append(headers.DNS, dns.String())
	}
	for _, route := range cfg.VInfo.SplitIncludes {
		headers.SplitInclude = append(headers.SplitInclude, route.String())
	}

	if err := httphandshake.WriteTunnelEstablished(tlsConn, headers); err != nil {
		return nil, fmt.Errorf("%w: tunnelengine: write 200 CONNECTED: %v", application.ErrFatalIO, err)
	}

	return sess, nil
}
