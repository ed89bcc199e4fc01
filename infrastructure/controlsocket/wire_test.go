package controlsocket

import (
	"net"
	"testing"

	"sslvpnworker/application"
)

func TestSendRecvUDPFDHandover(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := New(clientConn, 1)
	server := New(serverConn, 2)

	done := make(chan error, 1)
	go func() {
		body := []byte{tagUDPFDHandover, 0, 0, 0, 7}
		header := []byte{protocolVersion, 0, 0, 0, byte(len(body))}
		if _, err := clientConn.Write(header); err != nil {
			done <- err
			return
		}
		_, err := clientConn.Write(body)
		done <- err
	}()

	msg, err := server.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("write: %v", err)
	}

	if msg.Type != application.MsgUDPFDHandover || msg.UDPFd != 7 {
		t.Fatalf("Recv() = %+v, want UDPFDHandover fd=7", msg)
	}

	_ = client
}

func TestFdReturnsConstructorValue(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	s := New(clientConn, 42)
	if s.Fd() != 42 {
		t.Errorf("Fd() = %d, want 42", s.Fd())
	}
	_ = serverConn
}

func TestEncodeOutbound(t *testing.T) {
	cases := []application.OutboundMessage{
		{Type: application.MsgTunMTU, TunMTU: 1399},
		{Type: application.MsgSessionInfo, TLSCipherSuite: "TLS_CHACHA20_POLY1305_SHA256", DTLSCipherSuite: "OC-DTLS1_2-AES256-GCM", UserAgent: "OpenConnect/9.0"},
	}
	for _, msg := range cases {
		body, err := encodeOutbound(msg)
		if err != nil {
			t.Fatalf("encodeOutbound(%+v): %v", msg, err)
		}
		if len(body) == 0 {
			t.Fatalf("encodeOutbound(%+v) produced empty body", msg)
		}
	}
}

func TestDecodeInboundMalformed(t *testing.T) {
	cases := [][]byte{
		{},
		{tagUDPFDHandover, 1, 2},
		{0xFF},
	}
	for _, body := range cases {
		if _, err := decodeInbound(body); err == nil {
			t.Errorf("decodeInbound(%v): expected error, got nil", body)
		}
	}
}
